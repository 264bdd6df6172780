package testsupport

import (
	"context"
	"testing"

	"vidseg/internal/config"
	"vidseg/internal/store"
)

// MustOpenStore opens the configured store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), store.Config{
		Backend:   cfg.Store.Backend,
		StateDir:  cfg.Paths.StateDir,
		RedisURL:  cfg.Store.RedisURL,
		KeyPrefix: cfg.Store.KeyPrefix,
		TTL:       cfg.StoreTTL(),
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if s == nil {
		t.Fatalf("store backend %q yields no store", cfg.Store.Backend)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
