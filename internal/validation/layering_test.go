package validation

import "testing"

func TestPublicPackagesDoNotImportInternal(t *testing.T) {
	violations, err := CheckLayering(repoRoot(t))
	if err != nil {
		t.Fatalf("check layering: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s", v)
	}
}

func TestDomainPackageIsALeaf(t *testing.T) {
	violations, err := CheckDomainIsolation(repoRoot(t))
	if err != nil {
		t.Fatalf("check domain isolation: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s", v)
	}
}
