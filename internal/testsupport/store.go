package testsupport

import (
	"context"
	"testing"
	"time"

	"paddock/internal/bundle"
	"paddock/internal/config"
)

// MustOpenStore opens a bundle.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *bundle.Store {
	t.Helper()

	store, err := bundle.Open(cfg)
	if err != nil {
		t.Fatalf("bundle.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// ObserveBundle records a member file sighting for tests using the provided store.
func ObserveBundle(t testing.TB, store *bundle.Store, sessionKey string, at time.Time) *bundle.Bundle {
	t.Helper()

	b, err := store.Observe(context.Background(), sessionKey, at)
	if err != nil {
		t.Fatalf("store.Observe: %v", err)
	}
	return b
}
