package testsupport

import (
	"context"
	"sync"
	"time"

	"stitch/internal/identity"
	"stitch/internal/services"
)

// FakeDirectory implements services.Directory with canned results for tests.
// It stamps records the way a bound directory would, honors an optional
// response delay, and counts calls.
type FakeDirectory struct {
	ID      int64
	Kind    services.Type
	DirName string
	Records []identity.Record
	Err     error
	Delay   time.Duration

	mu    sync.Mutex
	calls int
}

var _ services.Directory = (*FakeDirectory)(nil)

func (f *FakeDirectory) ServiceConfigID() int64 { return f.ID }

func (f *FakeDirectory) Type() services.Type {
	if f.Kind == "" {
		return services.TypeJellyfin
	}
	return f.Kind
}

func (f *FakeDirectory) Name() string {
	if f.DirName != "" {
		return f.DirName
	}
	return string(f.Type())
}

func (f *FakeDirectory) ListUsers(ctx context.Context) ([]identity.Record, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrTimeout, f.Name(), "list users", "request failed", ctx.Err())
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}

	records := make([]identity.Record, len(f.Records))
	copy(records, f.Records)
	for i := range records {
		records[i].ServiceConfigID = f.ID
		records[i].Service = string(f.Type())
	}
	return records, nil
}

// Calls reports how many times ListUsers was invoked.
func (f *FakeDirectory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
