package security

import (
	"slices"
	"sync"
	"testing"
)

func TestCredentialStore_SetGet(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	store.Set(CredentialClassifierKey, "sk-test123")

	val, ok := store.Get(CredentialClassifierKey)
	if !ok {
		t.Fatal("expected credential to exist")
	}
	if val != "sk-test123" {
		t.Fatalf("got %q, want %q", val, "sk-test123")
	}
}

func TestCredentialStore_GetMissing(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	if _, ok := store.Get("missing"); ok {
		t.Fatal("expected missing credential to return false")
	}
}

func TestCredentialStore_EmptyValueDeletes(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	store.Set(CredentialAdminToken, "token-value")
	store.Set(CredentialAdminToken, "")

	if _, ok := store.Get(CredentialAdminToken); ok {
		t.Fatal("empty Set should remove the credential")
	}
}

func TestCredentialStore_NamesSorted(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	store.Set("zeta", "1")
	store.Set("alpha", "2")

	if got := store.Names(); !slices.Equal(got, []string{"alpha", "zeta"}) {
		t.Fatalf("Names() = %v", got)
	}
}

func TestCredentialStore_Concurrent(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Set(CredentialClassifierKey, "value-abcdefgh")
		}()
		go func() {
			defer wg.Done()
			_ = store.Values()
		}()
	}
	wg.Wait()

	if len(store.Values()) != 1 {
		t.Fatalf("expected exactly one value")
	}
}
