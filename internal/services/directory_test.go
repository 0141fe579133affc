package services_test

import (
	"context"
	"testing"

	"stitch/internal/identity"
	"stitch/internal/services"
)

type staticLister []identity.Record

func (s staticLister) ListUsers(ctx context.Context) ([]identity.Record, error) {
	records := make([]identity.Record, len(s))
	copy(records, s)
	return records, nil
}

func TestBindStampsRecords(t *testing.T) {
	lister := staticLister{
		{NativeID: "1", Username: "alice"},
		{NativeID: "2", Username: "bob"},
	}
	dir := services.Bind(7, services.TypeJellyfin, "media box", lister)

	if dir.ServiceConfigID() != 7 || dir.Type() != services.TypeJellyfin || dir.Name() != "media box" {
		t.Fatalf("directory identity not preserved: %d %s %s", dir.ServiceConfigID(), dir.Type(), dir.Name())
	}

	records, err := dir.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	for _, rec := range records {
		if rec.ServiceConfigID != 7 {
			t.Errorf("record %s missing config id", rec.NativeID)
		}
		if rec.Service != "jellyfin" {
			t.Errorf("record %s missing service type, got %q", rec.NativeID, rec.Service)
		}
	}
}
