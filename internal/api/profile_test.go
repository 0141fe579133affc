package api_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"stitch/internal/api"
	"stitch/internal/identity"
	"stitch/internal/mapping"
	"stitch/internal/services"
	"stitch/internal/testsupport"
)

func TestSyncProfileRefreshesFromService(t *testing.T) {
	directory := &testsupport.FakeDirectory{
		ID:      1,
		DirName: "media",
		Records: []identity.Record{
			{NativeID: "m1", Username: "alice_new", Email: "alice@example.com", DisplayName: "Alice E.", IsActive: true},
		},
	}
	engine := newEngine(t, []services.Directory{directory})
	ctx := context.Background()

	created := testsupport.NewMapping(t, engine.Store(), "alice", 1, "m1", "alice")

	outcomes, err := engine.SyncProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	outcome := outcomes[0]
	if !outcome.Synced || outcome.Status != mapping.StatusActive {
		t.Fatalf("outcome = %+v, want synced and active", outcome)
	}
	if outcome.ServiceName != "media" {
		t.Fatalf("ServiceName = %q, want media", outcome.ServiceName)
	}

	refreshed, err := engine.GetMapping(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if refreshed.LastSyncAt == nil || refreshed.LastSyncSuccess == nil || !*refreshed.LastSyncSuccess {
		t.Fatalf("sync bookkeeping missing: %+v", refreshed)
	}
	if refreshed.SyncAttempts != 0 {
		t.Fatalf("SyncAttempts = %d, want 0 after success", refreshed.SyncAttempts)
	}

	// The refreshed record lands in the profile without erasing history.
	profile, err := engine.GetProfile(ctx, "alice", false)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !slices.Contains(profile.Usernames, "alice") || !slices.Contains(profile.Usernames, "alice_new") {
		t.Fatalf("Usernames = %v, want both the original and the renamed form", profile.Usernames)
	}
	if got := profile.ServiceData[1].DisplayName; got != "Alice E." {
		t.Fatalf("snapshot DisplayName = %q, want Alice E.", got)
	}
}

func TestSyncProfileMarksUnreachableServiceFailed(t *testing.T) {
	broken := &testsupport.FakeDirectory{ID: 1, DirName: "media", Err: errors.New("connection refused")}
	healthy := &testsupport.FakeDirectory{
		ID:      2,
		DirName: "sso",
		Records: []identity.Record{{NativeID: "f1", Username: "alice"}},
	}
	engine := newEngine(t, []services.Directory{broken, healthy})
	ctx := context.Background()

	testsupport.NewMapping(t, engine.Store(), "alice", 1, "m1", "alice")
	testsupport.NewMapping(t, engine.Store(), "alice", 2, "f1", "alice")

	outcomes, err := engine.SyncProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}

	byService := map[int64]int{}
	for i, outcome := range outcomes {
		byService[outcome.ServiceConfigID] = i
	}
	brokenOutcome := outcomes[byService[1]]
	if brokenOutcome.Synced || brokenOutcome.Status != mapping.StatusFailed {
		t.Fatalf("broken outcome = %+v, want failed", brokenOutcome)
	}
	if !strings.Contains(brokenOutcome.Error, "connection refused") {
		t.Fatalf("Error = %q, want the adapter failure", brokenOutcome.Error)
	}
	healthyOutcome := outcomes[byService[2]]
	if !healthyOutcome.Synced || healthyOutcome.Status != mapping.StatusActive {
		t.Fatalf("healthy outcome = %+v, one bad service must not block the other", healthyOutcome)
	}

	failed, err := engine.Store().GetByPair(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("GetByPair: %v", err)
	}
	if failed.SyncAttempts != 1 || failed.LastSyncError == "" {
		t.Fatalf("failed mapping = %+v, want one recorded attempt", failed)
	}
}

func TestSyncProfileUserMissingFromListing(t *testing.T) {
	directory := &testsupport.FakeDirectory{
		ID:      1,
		DirName: "media",
		Records: []identity.Record{{NativeID: "other", Username: "bob"}},
	}
	engine := newEngine(t, []services.Directory{directory})

	testsupport.NewMapping(t, engine.Store(), "alice", 1, "m1", "alice")

	outcomes, err := engine.SyncProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if outcomes[0].Synced || !strings.Contains(outcomes[0].Error, "not found on service") {
		t.Fatalf("outcome = %+v, want a deleted-upstream failure", outcomes[0])
	}
}

func TestSyncProfileWithoutConfiguredDirectory(t *testing.T) {
	engine := newEngine(t, nil)

	testsupport.NewMapping(t, engine.Store(), "alice", 9, "x1", "alice")

	outcomes, err := engine.SyncProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if outcomes[0].Synced || !strings.Contains(outcomes[0].Error, "not configured") {
		t.Fatalf("outcome = %+v, want a not-configured failure", outcomes[0])
	}
	if outcomes[0].Status != mapping.StatusFailed {
		t.Fatalf("Status = %s, want failed so the problem is visible", outcomes[0].Status)
	}
}

func TestSyncProfileUnknownCentralUser(t *testing.T) {
	engine := newEngine(t, nil)

	_, err := engine.SyncProfile(context.Background(), "ghost")
	if !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSyncProfileRunsForPausedMappings(t *testing.T) {
	directory := &testsupport.FakeDirectory{
		ID:      1,
		DirName: "media",
		Records: []identity.Record{{NativeID: "m1", Username: "alice"}},
	}
	engine := newEngine(t, []services.Directory{directory})
	ctx := context.Background()

	created := testsupport.NewMapping(t, engine.Store(), "alice", 1, "m1", "alice")
	paused := false
	if _, err := engine.UpdateMapping(ctx, created.ID, mapping.UpdateRequest{SyncEnabled: &paused}); err != nil {
		t.Fatalf("UpdateMapping: %v", err)
	}

	outcomes, err := engine.SyncProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if !outcomes[0].Synced {
		t.Fatalf("outcome = %+v, explicit sync must run despite the pause", outcomes[0])
	}
}

func TestGetProfileRefreshFlagControlsServiceCalls(t *testing.T) {
	directory := &testsupport.FakeDirectory{
		ID:      1,
		DirName: "media",
		Records: []identity.Record{{NativeID: "m1", Username: "alice", Email: "alice@new.example.com"}},
	}
	engine := newEngine(t, []services.Directory{directory})
	ctx := context.Background()

	testsupport.NewMapping(t, engine.Store(), "alice", 1, "m1", "alice")

	profile, err := engine.GetProfile(ctx, "alice", false)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if directory.Calls() != 0 {
		t.Fatalf("plain profile read hit the service %d times", directory.Calls())
	}
	if slices.Contains(profile.Emails, "alice@new.example.com") {
		t.Fatal("email should not appear before a refresh")
	}

	profile, err = engine.GetProfile(ctx, "alice", true)
	if err != nil {
		t.Fatalf("GetProfile(refresh): %v", err)
	}
	if directory.Calls() != 1 {
		t.Fatalf("refresh called the service %d times, want 1", directory.Calls())
	}
	if !slices.Contains(profile.Emails, "alice@new.example.com") {
		t.Fatalf("Emails = %v, want the refreshed address", profile.Emails)
	}
}

func TestRefreshMappingsGroupsByService(t *testing.T) {
	directory := &testsupport.FakeDirectory{
		ID:      1,
		DirName: "media",
		Records: []identity.Record{
			{NativeID: "m1", Username: "alice"},
			{NativeID: "m2", Username: "bob"},
		},
	}
	engine := newEngine(t, []services.Directory{directory})
	ctx := context.Background()

	first := testsupport.NewMapping(t, engine.Store(), "alice", 1, "m1", "alice")
	second := testsupport.NewMapping(t, engine.Store(), "bob", 1, "m2", "bob")

	outcomes := engine.RefreshMappings(ctx, mustMappings(t, engine, first.ID, second.ID))
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	for _, outcome := range outcomes {
		if !outcome.Synced {
			t.Fatalf("outcome = %+v, want synced", outcome)
		}
	}
	if directory.Calls() != 1 {
		t.Fatalf("service was listed %d times, want one call for the whole group", directory.Calls())
	}
}

func mustMappings(t *testing.T, engine *api.Engine, ids ...int64) []*mapping.UserMapping {
	t.Helper()

	out := make([]*mapping.UserMapping, 0, len(ids))
	for _, id := range ids {
		m, err := engine.GetMapping(context.Background(), id)
		if err != nil {
			t.Fatalf("GetMapping(%d): %v", id, err)
		}
		out = append(out, m)
	}
	return out
}
