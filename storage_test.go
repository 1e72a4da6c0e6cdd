package tss

import (
	"errors"
	"testing"
)

func TestInMemoryStorage(t *testing.T) {
	store := NewInMemoryStorage()

	if err := store.Put("k", []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := store.Get("k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "value" {
		t.Fatalf("Get returned %q", got)
	}

	// Returned slices are copies; mutating one must not affect the store.
	got[0] = 'X'
	again, err := store.Get("k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(again) != "value" {
		t.Fatal("Stored value was mutated through a returned copy")
	}

	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get("k"); !errors.Is(err, ErrStorageKeyNotFound) {
		t.Fatalf("Expected ErrStorageKeyNotFound, got %v", err)
	}
	// Deleting a missing key is not an error.
	if err := store.Delete("k"); err != nil {
		t.Fatalf("Second Delete failed: %v", err)
	}
}

func TestStoreAndLoadShare(t *testing.T) {
	engine := NewEngine(newDeterministicRand("storage"))
	keyPair, err := engine.GenerateKeyPair(CurveSecp256k1, 2, 3)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	store := NewInMemoryStorage()
	for _, share := range keyPair.Shares {
		if err := StoreShare(store, share); err != nil {
			t.Fatalf("StoreShare failed for share %d: %v", share.Index, err)
		}
	}

	keyID := keyPair.Shares[0].Metadata.KeyID
	loaded, err := LoadShare(store, keyID, 2)
	if err != nil {
		t.Fatalf("LoadShare failed: %v", err)
	}
	if loaded.Index != 2 || !loaded.Value.Equal(keyPair.Shares[1].Value) {
		t.Fatal("Loaded share does not match the stored one")
	}

	if _, err := LoadShare(store, keyID, 99); !errors.Is(err, ErrStorageKeyNotFound) {
		t.Fatalf("Expected ErrStorageKeyNotFound, got %v", err)
	}
}
