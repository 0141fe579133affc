package overseerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stitch/internal/services"
)

func TestListUsersWalksPagination(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/user" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "key" {
			t.Fatalf("X-Api-Key = %q, want key", got)
		}
		requests++
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("skip") {
		case "0":
			_, _ = fmt.Fprint(w, `{
				"pageInfo": {"pages": 2, "pageSize": 1, "results": 2, "page": 1},
				"results": [{"id": 1, "email": "alice@example.com", "username": "alice", "permissions": 2, "displayName": "Alice"}]
			}`)
		case "1":
			_, _ = fmt.Fprint(w, `{
				"pageInfo": {"pages": 2, "pageSize": 1, "results": 2, "page": 2},
				"results": [{"id": 2, "email": "", "username": "", "plexUsername": "bobplex", "permissions": 32, "displayName": "Bob"}]
			}`)
		default:
			t.Fatalf("unexpected skip value %q", r.URL.Query().Get("skip"))
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "key"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	records, err := client.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if requests != 2 {
		t.Fatalf("expected 2 page fetches, got %d", requests)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].NativeID != "1" || !records[0].IsAdmin {
		t.Fatalf("first record = %+v", records[0])
	}
	if records[1].Username != "bobplex" {
		t.Fatalf("plex username should back-fill username, got %q", records[1].Username)
	}
	if records[1].IsAdmin {
		t.Fatal("permissions without admin bit should not mark admin")
	}
}

func TestListUsersUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "key"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if _, err := client.ListUsers(context.Background()); !errors.Is(err, services.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestListUsersEmptyInstance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"pageInfo": {"pages": 0, "pageSize": 100, "results": 0, "page": 1}, "results": []}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "key"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	records, err := client.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
