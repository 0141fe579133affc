package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stitch/internal/api"
	"stitch/internal/identity"
	"stitch/internal/match"
)

func TestCLIShowsHelpWithoutArgs(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, nil, env.configPath)
	if err != nil {
		t.Fatalf("runCLI: %v", err)
	}
	for _, name := range []string{"users", "detect", "mappings", "profile", "status", "start", "stop", "config"} {
		requireContains(t, stdout, name)
	}
}

func TestCLIMappingLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{
		"mappings", "create",
		"--user", "Alice@Example.com",
		"--service", "3",
		"--service-username", "alice",
		"--service-user-id", "u-100",
	}, env.configPath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	requireContains(t, stdout, "Created mapping 1")
	requireContains(t, stdout, "alice@example.com")

	stdout, _, err = runCLI(t, []string{"mappings", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, stdout, "alice@example.com")
	requireContains(t, stdout, "Total: 1")

	// The list filter folds the central user id the same way create did.
	stdout, _, err = runCLI(t, []string{"mappings", "list", "--user", "ALICE@example.com"}, env.configPath)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	requireContains(t, stdout, "Total: 1")

	stdout, _, err = runCLI(t, []string{"mappings", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("status list: %v", err)
	}
	requireContains(t, stdout, "No mappings found")

	stdout, _, err = runCLI(t, []string{"mappings", "update", "1", "--status", "pending", "--role", "admin"}, env.configPath)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	requireContains(t, stdout, "pending")
	requireContains(t, stdout, "admin")

	_, _, err = runCLI(t, []string{"mappings", "update", "1"}, env.configPath)
	if err == nil {
		t.Fatal("expected update without field flags to fail")
	}
	requireContains(t, err.Error(), "nothing to update")

	stdout, _, err = runCLI(t, []string{"mappings", "delete", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, stdout, "Deleted mapping 1")

	stdout, _, err = runCLI(t, []string{"mappings", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("final list: %v", err)
	}
	requireContains(t, stdout, "No mappings found")
}

func TestCLIMappingsRejectBadInput(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"mappings", "list", "--status", "bogus"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown status to fail")
	}
	requireContains(t, err.Error(), `unknown status "bogus"`)

	_, _, err = runCLI(t, []string{
		"mappings", "create", "--user", "alice", "--service", "1", "--role", "overlord",
	}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown role to fail")
	}
	requireContains(t, err.Error(), `unknown role "overlord"`)

	_, _, err = runCLI(t, []string{"mappings", "delete", "zero"}, env.configPath)
	if err == nil {
		t.Fatal("expected bad mapping id to fail")
	}
	requireContains(t, err.Error(), `invalid mapping id "zero"`)
}

func TestCLIProfileLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, args := range [][]string{
		{"mappings", "create", "--user", "casey@example.com", "--service", "1", "--service-username", "casey", "--service-email", "casey@example.com"},
		{"mappings", "create", "--user", "casey@example.com", "--service", "2", "--service-username", "casey.w"},
	} {
		if _, _, err := runCLI(t, args, env.configPath); err != nil {
			t.Fatalf("create %v: %v", args, err)
		}
	}

	stdout, _, err := runCLI(t, []string{"profile", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("profile list: %v", err)
	}
	requireContains(t, stdout, "casey@example.com")
	requireContains(t, stdout, "2")

	stdout, _, err = runCLI(t, []string{"profile", "show", "Casey@Example.com"}, env.configPath)
	if err != nil {
		t.Fatalf("profile show: %v", err)
	}
	requireContains(t, stdout, "Central user:  casey@example.com")
	requireContains(t, stdout, "casey.w")

	// No services are configured, so an explicit sync fails every mapping
	// but still reports one outcome per mapping.
	stdout, _, err = runCLI(t, []string{"profile", "sync", "casey@example.com"}, env.configPath)
	if err != nil {
		t.Fatalf("profile sync: %v", err)
	}
	requireContains(t, stdout, "0 of 2 mappings synced")
	requireContains(t, stdout, "service is not configured")

	stdout, _, err = runCLI(t, []string{"profile", "delete", "casey@example.com"}, env.configPath)
	if err != nil {
		t.Fatalf("profile delete: %v", err)
	}
	requireContains(t, stdout, "Removed 2 mappings for casey@example.com")

	stdout, _, err = runCLI(t, []string{"profile", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("final profile list: %v", err)
	}
	requireContains(t, stdout, "No central users")
}

func TestCLIUsersWithoutServices(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"users"}, env.configPath)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	requireContains(t, stdout, "No services configured")
}

func TestCLIDetectWritesResultFile(t *testing.T) {
	env := setupCLITestEnv(t)
	outPath := filepath.Join(env.baseDir, "detect.json")

	stdout, _, err := runCLI(t, []string{"detect", "--output", outPath}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	requireContains(t, stdout, "No services configured")
	requireContains(t, stdout, "Saved detection result to "+outPath)

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read detection file: %v", err)
	}
	var result api.DetectionResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("parse detection file: %v", err)
	}
	if result.RunID == "" {
		t.Fatal("expected detection file to carry a run id")
	}
	if result.TotalServices != 0 {
		t.Fatalf("expected 0 services, got %d", result.TotalServices)
	}

	stdout, _, err = runCLI(t, []string{"mappings", "approve", "--from", outPath}, env.configPath)
	if err != nil {
		t.Fatalf("approve empty result: %v", err)
	}
	requireContains(t, stdout, "No suggestions in detection result")
}

func TestCLIApproveFromFile(t *testing.T) {
	env := setupCLITestEnv(t)
	fromPath := filepath.Join(env.baseDir, "suggestions.json")
	writeSuggestionFile(t, fromPath)

	// Default approval takes the high-confidence suggestion only, one
	// mapping per member record.
	stdout, stderr, err := runCLI(t, []string{"mappings", "approve", "--from", fromPath}, env.configPath)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	requireContains(t, stdout, "Created 2 mappings")
	if strings.Contains(stderr, "warning:") {
		t.Fatalf("unexpected warnings: %s", stderr)
	}

	stdout, _, err = runCLI(t, []string{"mappings", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, stdout, "casey@example.com")
	requireContains(t, stdout, "Total: 2")

	// --all adds the medium suggestion; the already-approved pair surfaces
	// as conflict warnings instead of aborting the batch.
	stdout, stderr, err = runCLI(t, []string{"mappings", "approve", "--from", fromPath, "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("approve --all: %v", err)
	}
	requireContains(t, stdout, "Created 2 mappings")
	requireContains(t, stderr, "already has a mapping")

	stdout, _, err = runCLI(t, []string{"mappings", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("final list: %v", err)
	}
	requireContains(t, stdout, "rowan")
	requireContains(t, stdout, "Total: 4")
}

func writeSuggestionFile(t *testing.T, path string) {
	t.Helper()
	payload := api.DetectionResult{
		RunID: "cli-test-run",
		Suggestions: []api.Suggestion{
			{
				CentralUserID: "casey@example.com",
				UserA:         identity.Record{ServiceConfigID: 1, Service: "media", NativeID: "41", Username: "casey", Email: "casey@example.com"},
				UserB:         identity.Record{ServiceConfigID: 2, Service: "wiki", NativeID: "9", Username: "casey", Email: "casey@example.com"},
				Attributes:    []match.Attribute{match.AttributeEmailExact, match.AttributeUsernameExact},
				Confidence:    0.95,
				Bucket:        match.BucketHigh,
			},
			{
				CentralUserID: "rowan",
				UserA:         identity.Record{ServiceConfigID: 1, Service: "media", NativeID: "57", Username: "rowan"},
				UserB:         identity.Record{ServiceConfigID: 2, Service: "wiki", NativeID: "31", Username: "rowan-w"},
				Attributes:    []match.Attribute{match.AttributeUsernameFuzzy},
				Confidence:    0.62,
				Bucket:        match.BucketMedium,
			},
		},
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		t.Fatalf("marshal suggestions: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write suggestions: %v", err)
	}
}

func TestCLILogsTailsCurrentFile(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs without file: %v", err)
	}
	requireContains(t, stdout, "No log entries available")

	logPath := filepath.Join(env.cfg.Paths.LogDir, "stitch.log")
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	stdout, _, err = runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, stdout, "second")
	requireContains(t, stdout, "third")
	if strings.Contains(stdout, "first") {
		t.Fatalf("expected only the last two lines, got %q", stdout)
	}
}

func TestCLIStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, stdout, "Not running")
	requireContains(t, stdout, "System Checks")
	requireContains(t, stdout, "State directory")
	requireContains(t, stdout, "No mapping database yet")
	requireContains(t, stdout, "Mappings")
}

func TestCLIStatusOfflineJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var payload struct {
		Running  bool   `json:"running"`
		Database string `json:"database"`
	}
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("parse status JSON: %v", err)
	}
	if payload.Running {
		t.Fatal("expected running=false without a daemon")
	}
	if payload.Database == "" {
		t.Fatal("expected a database detail line")
	}
}
