package testsupport

import (
	"context"
	"testing"

	"stitch/internal/config"
	"stitch/internal/mapping"
)

// MustOpenStore opens a mapping.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *mapping.Store {
	t.Helper()

	store, err := mapping.Open(cfg)
	if err != nil {
		t.Fatalf("mapping.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewMapping persists a mapping for tests using the provided store.
func NewMapping(t testing.TB, store *mapping.Store, centralUserID string, serviceConfigID int64, serviceUserID, serviceUsername string) *mapping.UserMapping {
	t.Helper()

	created, err := store.Create(context.Background(), mapping.NewMappingRequest{
		CentralUserID:   centralUserID,
		CentralUsername: serviceUsername,
		ServiceConfigID: serviceConfigID,
		ServiceUserID:   serviceUserID,
		ServiceUsername: serviceUsername,
		Role:            mapping.RoleUser,
		SyncEnabled:     true,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return created
}
