package core

import (
	"path/filepath"
	"testing"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	t.Setenv("CELLCORE_STORAGE_DRIVER", "memory")
	store, err := OpenPersistentStore()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
}

func TestOpenPersistentStoreSQLiteDefault(t *testing.T) {
	t.Setenv("CELLCORE_STORAGE_DRIVER", "")
	t.Setenv("CELLCORE_SQLITE_PATH", filepath.Join(t.TempDir(), "state.db"))
	store, err := OpenPersistentStore()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	t.Setenv("CELLCORE_STORAGE_DRIVER", "etcd")
	if _, err := OpenPersistentStore(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
