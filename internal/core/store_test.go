package core

import (
	"context"
	"errors"
	"testing"

	"cellcore/pkg/domain"
)

func TestManagerStoreRegisterAndGet(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	class := NewModelClass("scvi", Capabilities{})
	ds := newCountsDataset(t, 4, 3, nil)
	mgr, err := svc.Setup(ctx, class, domain.SetupArgs{}, ds)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	got, err := svc.Store().GetFromRegistry(class.Name, ds.Reserved().DatasetID)
	if err != nil {
		t.Fatalf("get from registry: %v", err)
	}
	if got.ID != mgr.ID {
		t.Fatalf("got manager %s, want %s", got.ID, mgr.ID)
	}
	// Returned managers are copies: mutating one must not leak into the store.
	got.Summaries["injected"] = domain.FieldSummary{}
	again, err := svc.Store().GetFromRegistry(class.Name, ds.Reserved().DatasetID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if _, ok := again.Summaries["injected"]; ok {
		t.Fatalf("store returned shared manager state")
	}
}

func TestManagerStoreUnregisteredLookup(t *testing.T) {
	store := NewManagerStore()
	_, err := store.GetFromRegistry("scvi", domain.DatasetID("nope"))
	var unregistered domain.UnregisteredDatasetError
	if !errors.As(err, &unregistered) {
		t.Fatalf("expected UnregisteredDatasetError, got %v", err)
	}
	if unregistered.ModelClass != "scvi" || unregistered.Dataset != "nope" {
		t.Fatalf("error should identify class and dataset: %+v", unregistered)
	}
}

func TestManagerStoreLastWriteWins(t *testing.T) {
	store := NewManagerStore()
	id := domain.NewDatasetID()
	first := &domain.Manager{ID: domain.NewManagerID(), ModelClass: "scvi", DatasetID: id}
	second := &domain.Manager{ID: domain.NewManagerID(), ModelClass: "scvi", DatasetID: id}
	store.RegisterManager(first)
	store.RegisterManager(second)
	got, err := store.GetFromRegistry("scvi", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("expected last registration to win, got %s", got.ID)
	}
}

func TestManagerStoreInstanceIndex(t *testing.T) {
	store := NewManagerStore()
	id := domain.NewDatasetID()
	mgr := &domain.Manager{ID: domain.NewManagerID(), ModelClass: "scvi", DatasetID: id}
	instance := domain.NewModelID()
	store.AssociateInstance(instance, mgr)

	got, ok := store.InstanceManager(instance, id)
	if !ok || got.ID != mgr.ID {
		t.Fatalf("instance lookup failed: ok=%v", ok)
	}
	if _, ok := store.InstanceManager(domain.NewModelID(), id); ok {
		t.Fatalf("unrelated instance should not resolve")
	}
	store.DropInstance(instance)
	if _, ok := store.InstanceManager(instance, id); ok {
		t.Fatalf("dropped instance should not resolve")
	}
}

func TestManagerStoreReset(t *testing.T) {
	store := NewManagerStore()
	id := domain.NewDatasetID()
	mgr := &domain.Manager{ID: domain.NewManagerID(), ModelClass: "scvi", DatasetID: id}
	store.RegisterManager(mgr)
	store.AssociateInstance(domain.NewModelID(), mgr)
	if len(store.Managers()) != 1 {
		t.Fatalf("expected one manager before reset")
	}
	store.Reset()
	if len(store.Managers()) != 0 {
		t.Fatalf("expected empty store after reset")
	}
	if _, err := store.GetFromRegistry("scvi", id); err == nil {
		t.Fatalf("expected lookup failure after reset")
	}
}
