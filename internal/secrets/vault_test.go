package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestVault(t *testing.T) (*Vault, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.json")
	v, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open vault: %v", err)
	}
	return v, path
}

func TestCreateAndResolve(t *testing.T) {
	v, _ := newTestVault(t)

	cred, err := v.Create("router snmp", "snmp community", "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.ID == "" {
		t.Fatal("expected credential ID")
	}

	value, ok := v.TryResolve(cred.ID)
	if !ok || value != "s3cret" {
		t.Fatalf("resolve = %q/%v, want s3cret/true", value, ok)
	}
}

func TestResolveUnknownFallsThrough(t *testing.T) {
	v, _ := newTestVault(t)

	if _, ok := v.TryResolve(""); ok {
		t.Fatal("empty ID must not resolve")
	}
	if _, ok := v.TryResolve("nope"); ok {
		t.Fatal("unknown ID must not resolve")
	}
}

func TestValueSealedOnDisk(t *testing.T) {
	v, path := newTestVault(t)

	if _, err := v.Create("unifi login", "controller password", "hunter2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read vault file: %v", err)
	}
	if strings.Contains(string(raw), "hunter2") {
		t.Fatal("plaintext value leaked into the vault file")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	v, path := newTestVault(t)

	cred, err := v.Create("name", "", "value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen vault: %v", err)
	}
	value, ok := reopened.TryResolve(cred.ID)
	if !ok || value != "value" {
		t.Fatalf("resolve after reopen = %q/%v", value, ok)
	}
}

func TestListAndDelete(t *testing.T) {
	v, _ := newTestVault(t)

	a, _ := v.Create("a", "", "1")
	b, _ := v.Create("b", "", "2")

	creds, err := v.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creds) != 2 {
		t.Fatalf("got %d credentials, want 2", len(creds))
	}

	if err := v.Delete(a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := v.TryResolve(a.ID); ok {
		t.Fatal("deleted credential still resolves")
	}
	if _, ok := v.TryResolve(b.ID); !ok {
		t.Fatal("surviving credential no longer resolves")
	}

	if err := v.Delete("missing"); err == nil {
		t.Fatal("expected error deleting unknown credential")
	}
}

func TestCreateValidation(t *testing.T) {
	v, _ := newTestVault(t)

	if _, err := v.Create("", "", "x"); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := v.Create("n", "", ""); err == nil {
		t.Fatal("expected error for empty value")
	}
}
