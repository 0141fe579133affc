package mapping_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stitch/internal/mapping"
	"stitch/internal/testsupport"
)

func TestCreateAndFetch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	created, err := store.Create(ctx, mapping.NewMappingRequest{
		CentralUserID:   "alice@example.com",
		CentralUsername: "alice",
		CentralEmail:    "alice@example.com",
		ServiceConfigID: 1,
		ServiceUserID:   "42",
		ServiceUsername: "alice",
		ServiceEmail:    "alice@example.com",
		Role:            mapping.RoleAdmin,
		SyncEnabled:     true,
		Metadata:        map[string]string{"managed": "true"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected mapping ID to be assigned")
	}
	if created.Status != mapping.StatusActive {
		t.Fatalf("expected new mapping to be active, got %s", created.Status)
	}
	if created.SyncAttempts != 0 {
		t.Fatalf("expected zero sync attempts, got %d", created.SyncAttempts)
	}
	if created.Role != mapping.RoleAdmin {
		t.Fatalf("expected admin role, got %s", created.Role)
	}
	if !created.SyncEnabled {
		t.Fatal("expected sync enabled")
	}
	if created.Metadata["managed"] != "true" {
		t.Fatalf("expected metadata to round-trip, got %#v", created.Metadata)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	fetched, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.CentralUserID != "alice@example.com" || fetched.ServiceUsername != "alice" {
		t.Fatalf("unexpected fetched mapping: %#v", fetched)
	}

	byPair, err := store.GetByPair(ctx, "alice@example.com", 1)
	if err != nil {
		t.Fatalf("GetByPair failed: %v", err)
	}
	if byPair.ID != created.ID {
		t.Fatalf("expected pair lookup to find mapping %d, got %d", created.ID, byPair.ID)
	}

	if _, err := store.GetByID(ctx, created.ID+100); !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestCreateDefaultsRoleToUser(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	created, err := store.Create(context.Background(), mapping.NewMappingRequest{
		CentralUserID:   "bob",
		CentralUsername: "bob",
		ServiceConfigID: 1,
		ServiceUserID:   "7",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Role != mapping.RoleUser {
		t.Fatalf("expected default role user, got %s", created.Role)
	}
	if created.SyncEnabled {
		t.Fatal("expected sync disabled when not requested")
	}
}

func TestCreateDuplicatePairConflict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewMapping(t, store, "alice@example.com", 1, "42", "alice")

	_, err := store.Create(ctx, mapping.NewMappingRequest{
		CentralUserID:   "alice@example.com",
		CentralUsername: "alice",
		ServiceConfigID: 1,
		ServiceUserID:   "99",
		ServiceUsername: "alice2",
	})
	if !errors.Is(err, mapping.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate pair, got %v", err)
	}

	// The same central user on a different service is fine.
	if _, err := store.Create(ctx, mapping.NewMappingRequest{
		CentralUserID:   "alice@example.com",
		CentralUsername: "alice",
		ServiceConfigID: 2,
		ServiceUserID:   "7",
		ServiceUsername: "alice",
	}); err != nil {
		t.Fatalf("Create on second service failed: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name string
		req  mapping.NewMappingRequest
	}{
		{"missing central id", mapping.NewMappingRequest{
			CentralUsername: "alice", ServiceConfigID: 1, ServiceUserID: "42",
		}},
		{"missing central username", mapping.NewMappingRequest{
			CentralUserID: "alice", ServiceConfigID: 1, ServiceUserID: "42",
		}},
		{"missing service", mapping.NewMappingRequest{
			CentralUserID: "alice", CentralUsername: "alice", ServiceUserID: "42",
		}},
		{"no identifying attribute", mapping.NewMappingRequest{
			CentralUserID: "alice", CentralUsername: "alice", ServiceConfigID: 1,
		}},
		{"unknown role", mapping.NewMappingRequest{
			CentralUserID: "alice", CentralUsername: "alice", ServiceConfigID: 1,
			ServiceUserID: "42", Role: mapping.Role("owner"),
		}},
	}
	for _, tc := range cases {
		if _, err := store.Create(ctx, tc.req); !errors.Is(err, mapping.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}

	// Validation failures must not leave partial rows behind.
	_, total, err := store.List(ctx, mapping.Filter{}, mapping.Page{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected empty store after rejected requests, got %d rows", total)
	}
}

func TestListFilterAndPagination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		testsupport.NewMapping(t, store, "alice", int64(i), fmt.Sprintf("a-%d", i), "alice")
	}
	bob := testsupport.NewMapping(t, store, "bob", 1, "b-1", "bob")

	status := mapping.StatusFailed
	if _, err := store.Update(ctx, bob.ID, mapping.UpdateRequest{Status: &status}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	all, total, err := store.List(ctx, mapping.Filter{}, mapping.Page{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Fatalf("expected 4 mappings, got total=%d len=%d", total, len(all))
	}

	alice, total, err := store.List(ctx, mapping.Filter{CentralUserID: "alice"}, mapping.Page{})
	if err != nil {
		t.Fatalf("List by central failed: %v", err)
	}
	if total != 3 || len(alice) != 3 {
		t.Fatalf("expected 3 alice mappings, got total=%d len=%d", total, len(alice))
	}

	svc1, total, err := store.List(ctx, mapping.Filter{ServiceConfigID: 1}, mapping.Page{})
	if err != nil {
		t.Fatalf("List by service failed: %v", err)
	}
	if total != 2 || len(svc1) != 2 {
		t.Fatalf("expected 2 mappings on service 1, got total=%d len=%d", total, len(svc1))
	}

	failed, total, err := store.List(ctx, mapping.Filter{Status: mapping.StatusFailed}, mapping.Page{})
	if err != nil {
		t.Fatalf("List by status failed: %v", err)
	}
	if total != 1 || len(failed) != 1 || failed[0].ID != bob.ID {
		t.Fatalf("expected only bob's failed mapping, got total=%d %#v", total, failed)
	}

	// Pagination reports the unpaginated total.
	page, total, err := store.List(ctx, mapping.Filter{CentralUserID: "alice"}, mapping.Page{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List paged failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3 with pagination, got %d", total)
	}
	if len(page) != 1 || page[0].ServiceConfigID != 3 {
		t.Fatalf("expected final page with service 3, got %#v", page)
	}

	// Negative bounds fall back to the defaults.
	page, _, err = store.List(ctx, mapping.Filter{CentralUserID: "alice"}, mapping.Page{Limit: -1, Offset: -1})
	if err != nil {
		t.Fatalf("List with negative page failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected the default page to hold all 3 rows, got %d", len(page))
	}
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	created := testsupport.NewMapping(t, store, "alice", 1, "42", "alice")

	email := "alice@new.example.com"
	disabled := false
	role := mapping.RoleAdmin
	updated, err := store.Update(ctx, created.ID, mapping.UpdateRequest{
		ServiceEmail: &email,
		SyncEnabled:  &disabled,
		Role:         &role,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ServiceEmail != email {
		t.Fatalf("expected updated email %q, got %q", email, updated.ServiceEmail)
	}
	if updated.SyncEnabled {
		t.Fatal("expected sync disabled after update")
	}
	if updated.Role != mapping.RoleAdmin {
		t.Fatalf("expected role admin, got %s", updated.Role)
	}
	if updated.ServiceUsername != "alice" || updated.CentralUserID != "alice" {
		t.Fatalf("expected untouched fields preserved, got %#v", updated)
	}
	if updated.Status != mapping.StatusActive {
		t.Fatalf("expected status unchanged, got %s", updated.Status)
	}

	if _, err := store.Update(ctx, created.ID+100, mapping.UpdateRequest{ServiceEmail: &email}); !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	badRole := mapping.Role("owner")
	if _, err := store.Update(ctx, created.ID, mapping.UpdateRequest{Role: &badRole}); !errors.Is(err, mapping.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown role, got %v", err)
	}
}

func TestSyncLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	created := testsupport.NewMapping(t, store, "alice", 1, "42", "alice")

	syncing, err := store.BeginSync(ctx, created.ID)
	if err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	if syncing.Status != mapping.StatusSyncing {
		t.Fatalf("expected syncing, got %s", syncing.Status)
	}

	synced, err := store.CompleteSync(ctx, created.ID, true, "")
	if err != nil {
		t.Fatalf("CompleteSync failed: %v", err)
	}
	if synced.Status != mapping.StatusActive {
		t.Fatalf("expected active after success, got %s", synced.Status)
	}
	if synced.SyncAttempts != 0 {
		t.Fatalf("expected attempts reset, got %d", synced.SyncAttempts)
	}
	if synced.LastSyncSuccess == nil || !*synced.LastSyncSuccess {
		t.Fatal("expected last sync success recorded")
	}
	if synced.LastSyncAt == nil {
		t.Fatal("expected last sync timestamp recorded")
	}

	// Failure path increments the attempt counter and records the error.
	if _, err := store.BeginSync(ctx, created.ID); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	failed, err := store.CompleteSync(ctx, created.ID, false, "connection refused")
	if err != nil {
		t.Fatalf("CompleteSync failure failed: %v", err)
	}
	if failed.Status != mapping.StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.SyncAttempts != 1 {
		t.Fatalf("expected one attempt, got %d", failed.SyncAttempts)
	}
	if failed.LastSyncError != "connection refused" {
		t.Fatalf("expected error recorded, got %q", failed.LastSyncError)
	}
	if failed.LastSyncSuccess == nil || *failed.LastSyncSuccess {
		t.Fatal("expected last sync success false")
	}

	// Failed mappings may retry; a second failure keeps counting.
	if _, err := store.BeginSync(ctx, created.ID); err != nil {
		t.Fatalf("BeginSync from failed failed: %v", err)
	}
	failed, err = store.CompleteSync(ctx, created.ID, false, "still down")
	if err != nil {
		t.Fatalf("CompleteSync second failure failed: %v", err)
	}
	if failed.SyncAttempts != 2 {
		t.Fatalf("expected two attempts, got %d", failed.SyncAttempts)
	}

	// Success resets the counter and clears the error.
	if _, err := store.BeginSync(ctx, created.ID); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	recovered, err := store.CompleteSync(ctx, created.ID, true, "")
	if err != nil {
		t.Fatalf("CompleteSync recovery failed: %v", err)
	}
	if recovered.Status != mapping.StatusActive || recovered.SyncAttempts != 0 {
		t.Fatalf("expected recovered active mapping, got %#v", recovered)
	}
	if recovered.LastSyncError != "" {
		t.Fatalf("expected error cleared, got %q", recovered.LastSyncError)
	}
}

func TestSyncTransitionGuards(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	created := testsupport.NewMapping(t, store, "alice", 1, "42", "alice")

	// CompleteSync without a sync in flight is a state conflict.
	if _, err := store.CompleteSync(ctx, created.ID, true, ""); !errors.Is(err, mapping.ErrConflict) {
		t.Fatalf("expected ErrConflict without sync in flight, got %v", err)
	}

	// Double BeginSync is a state conflict too.
	if _, err := store.BeginSync(ctx, created.ID); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	if _, err := store.BeginSync(ctx, created.ID); !errors.Is(err, mapping.ErrConflict) {
		t.Fatalf("expected ErrConflict on double BeginSync, got %v", err)
	}

	if _, err := store.BeginSync(ctx, created.ID+100); !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown mapping, got %v", err)
	}
}

func TestDeleteLeavesSiblings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewMapping(t, store, "alice", 1, "42", "alice")
	second := testsupport.NewMapping(t, store, "alice", 2, "7", "alice")

	if err := store.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetByID(ctx, first.ID); !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("expected deleted mapping gone, got %v", err)
	}

	sibling, err := store.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("sibling lookup failed: %v", err)
	}
	if sibling.Status != mapping.StatusActive {
		t.Fatalf("expected sibling untouched, got %#v", sibling)
	}

	if err := store.Delete(ctx, first.ID); !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestDeleteCentralUserRemovesGroup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewMapping(t, store, "alice", 1, "42", "alice")
	testsupport.NewMapping(t, store, "alice", 2, "7", "alice")
	keeper := testsupport.NewMapping(t, store, "bob", 1, "9", "bob")

	removed, err := store.DeleteCentralUser(ctx, "alice")
	if err != nil {
		t.Fatalf("DeleteCentralUser failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 mappings removed, got %d", removed)
	}

	_, total, err := store.List(ctx, mapping.Filter{}, mapping.Page{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected only bob left, got %d rows", total)
	}
	if _, err := store.GetByID(ctx, keeper.ID); err != nil {
		t.Fatalf("expected bob's mapping intact: %v", err)
	}

	if _, err := store.DeleteCentralUser(ctx, "alice"); !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for removed user, got %v", err)
	}
}

func TestListSyncable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	fresh := testsupport.NewMapping(t, store, "alice", 1, "42", "alice")
	never := testsupport.NewMapping(t, store, "bob", 1, "7", "bob")
	paused := testsupport.NewMapping(t, store, "carol", 1, "9", "carol")

	// Sync alice now so her mapping is no longer stale.
	if _, err := store.BeginSync(ctx, fresh.ID); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	if _, err := store.CompleteSync(ctx, fresh.ID, true, ""); err != nil {
		t.Fatalf("CompleteSync failed: %v", err)
	}

	disabled := false
	if _, err := store.Update(ctx, paused.ID, mapping.UpdateRequest{SyncEnabled: &disabled}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stale, err := store.ListSyncable(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListSyncable failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != never.ID {
		t.Fatalf("expected only never-synced bob, got %#v", stale)
	}

	all, err := store.ListSyncable(ctx, time.Time{})
	if err != nil {
		t.Fatalf("ListSyncable all failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 syncable mappings, got %d", len(all))
	}
	for _, m := range all {
		if m.ID == paused.ID {
			t.Fatal("expected paused mapping excluded")
		}
	}
}

func TestReleaseStuckSyncing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	created := testsupport.NewMapping(t, store, "alice", 1, "42", "alice")
	if _, err := store.BeginSync(ctx, created.ID); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}

	count, err := store.ReleaseStuckSyncing(ctx, "daemon stopped")
	if err != nil {
		t.Fatalf("ReleaseStuckSyncing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 mapping released, got %d", count)
	}

	released, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if released.Status != mapping.StatusFailed {
		t.Fatalf("expected failed after release, got %s", released.Status)
	}
	if released.LastSyncError != "daemon stopped" {
		t.Fatalf("expected release reason recorded, got %q", released.LastSyncError)
	}
	if released.SyncAttempts != 1 {
		t.Fatalf("expected attempt recorded, got %d", released.SyncAttempts)
	}
}

func TestStatsAndCentralUsers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewMapping(t, store, "alice", 1, "42", "alice")
	testsupport.NewMapping(t, store, "alice", 2, "7", "alice")
	bob := testsupport.NewMapping(t, store, "bob", 1, "9", "bob")

	status := mapping.StatusFailed
	if _, err := store.Update(ctx, bob.ID, mapping.UpdateRequest{Status: &status}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("expected 3 mappings, got %d", stats.Total)
	}
	if stats.ByStatus[mapping.StatusActive] != 2 || stats.ByStatus[mapping.StatusFailed] != 1 {
		t.Fatalf("unexpected status counts: %#v", stats.ByStatus)
	}
	if stats.CentralUsers != 2 {
		t.Fatalf("expected 2 central users, got %d", stats.CentralUsers)
	}
	if stats.Services != 2 {
		t.Fatalf("expected 2 services, got %d", stats.Services)
	}
	if stats.SyncEnabled != 3 {
		t.Fatalf("expected 3 sync-enabled mappings, got %d", stats.SyncEnabled)
	}

	users, err := store.CentralUsers(ctx)
	if err != nil {
		t.Fatalf("CentralUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 central users, got %d", len(users))
	}
	if users[0].CentralUserID != "alice" || users[0].Mappings != 2 {
		t.Fatalf("unexpected first central user: %#v", users[0])
	}
	if users[1].CentralUserID != "bob" || users[1].Mappings != 1 {
		t.Fatalf("unexpected second central user: %#v", users[1])
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewMapping(t, store, "alice", 1, "42", "alice")

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("expected healthy database, got %#v", health)
	}
	if !health.TableExists {
		t.Fatal("expected user_mappings table present")
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("expected no missing columns, got %v", health.MissingColumns)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
	if health.TotalMappings != 1 {
		t.Fatalf("expected 1 mapping counted, got %d", health.TotalMappings)
	}
}
