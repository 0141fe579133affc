package api

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"stitch/internal/identity"
	"stitch/internal/logging"
	"stitch/internal/mapping"
	"stitch/internal/services"
	"stitch/internal/textutil"
)

// GetProfile returns the merged profile for one central user. With refresh
// set, every mapped service is re-queried first so the profile reflects
// current upstream state; a service that cannot be reached marks its own
// mapping failed without blocking the rest of the profile.
func (e *Engine) GetProfile(ctx context.Context, centralUserID string, refresh bool) (*mapping.Profile, error) {
	centralUserID = identity.CanonicalCentralID(centralUserID)
	if refresh {
		if _, err := e.SyncProfile(ctx, centralUserID); err != nil {
			return nil, err
		}
	}
	return e.store.GetProfile(ctx, centralUserID)
}

// SyncProfile re-queries every service the central user is mapped to and
// reports one outcome per mapping. An explicit sync runs even for mappings
// whose automatic sync is paused. Adapter failures land in the outcome list;
// only an unknown central user or storage trouble returns an error.
func (e *Engine) SyncProfile(ctx context.Context, centralUserID string) ([]SyncOutcome, error) {
	centralUserID = identity.CanonicalCentralID(centralUserID)
	mappings, err := e.store.ByCentralUser(ctx, centralUserID)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("central user %q: %w", centralUserID, mapping.ErrNotFound)
	}
	return e.RefreshMappings(ctx, mappings), nil
}

// RefreshMappings drives the sync state machine for a batch of mappings.
// Mappings are grouped by service so each adapter is asked for its listing
// once per sweep, and the groups fan out under the detection concurrency
// limit. Outcomes come back in the order the mappings were given.
func (e *Engine) RefreshMappings(ctx context.Context, mappings []*mapping.UserMapping) []SyncOutcome {
	outcomes := make([]SyncOutcome, len(mappings))
	if len(mappings) == 0 {
		return outcomes
	}

	slots := make(map[int64]int, len(mappings))
	groups := make(map[int64][]*mapping.UserMapping)
	order := make([]int64, 0, len(mappings))
	for i, m := range mappings {
		slots[m.ID] = i
		if _, ok := groups[m.ServiceConfigID]; !ok {
			order = append(order, m.ServiceConfigID)
		}
		groups[m.ServiceConfigID] = append(groups[m.ServiceConfigID], m)
	}

	concurrency := 1
	if e.cfg != nil && e.cfg.Detection.Concurrency > 0 {
		concurrency = e.cfg.Detection.Concurrency
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, serviceConfigID := range order {
		group := groups[serviceConfigID]
		wg.Add(1)
		go func(serviceConfigID int64, group []*mapping.UserMapping) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				for _, m := range group {
					outcomes[slots[m.ID]] = SyncOutcome{
						MappingID:       m.ID,
						CentralUserID:   m.CentralUserID,
						ServiceConfigID: m.ServiceConfigID,
						Status:          m.Status,
						Error:           ctx.Err().Error(),
					}
				}
				return
			}
			for _, outcome := range e.refreshServiceGroup(ctx, serviceConfigID, group) {
				outcomes[slots[outcome.MappingID]] = outcome
			}
		}(serviceConfigID, group)
	}
	wg.Wait()
	return outcomes
}

// refreshServiceGroup syncs all mappings that point at one service. The
// whole group enters syncing before the network call so a crash mid-refresh
// is visible in the store, then each mapping completes individually.
func (e *Engine) refreshServiceGroup(ctx context.Context, serviceConfigID int64, group []*mapping.UserMapping) []SyncOutcome {
	outcomes := make([]SyncOutcome, 0, len(group))
	directory, ok := e.directoryFor(serviceConfigID)
	serviceName := ""
	if ok {
		serviceName = directory.Name()
	}

	begun := make([]*mapping.UserMapping, 0, len(group))
	for _, m := range group {
		if _, err := e.store.BeginSync(ctx, m.ID); err != nil {
			outcomes = append(outcomes, SyncOutcome{
				MappingID:       m.ID,
				CentralUserID:   m.CentralUserID,
				ServiceConfigID: m.ServiceConfigID,
				ServiceName:     serviceName,
				Status:          m.Status,
				Error:           err.Error(),
			})
			continue
		}
		begun = append(begun, m)
	}
	if len(begun) == 0 {
		return outcomes
	}

	if !ok {
		return append(outcomes, e.failGroup(ctx, begun, serviceName, "service is not configured")...)
	}

	records, err := e.listUsers(ctx, directory)
	if err != nil {
		return append(outcomes, e.failGroup(ctx, begun, serviceName, err.Error())...)
	}

	for _, m := range begun {
		record, found := locateRecord(records, m)
		if !found {
			outcomes = append(outcomes, e.finishSync(ctx, m, serviceName, false, "user not found on service"))
			continue
		}
		if _, err := e.store.ObserveRecord(ctx, m.ID, record); err != nil {
			outcomes = append(outcomes, e.finishSync(ctx, m, serviceName, false, err.Error()))
			continue
		}
		outcomes = append(outcomes, e.finishSync(ctx, m, serviceName, true, ""))
	}
	return outcomes
}

func (e *Engine) failGroup(ctx context.Context, group []*mapping.UserMapping, serviceName, message string) []SyncOutcome {
	outcomes := make([]SyncOutcome, 0, len(group))
	for _, m := range group {
		outcomes = append(outcomes, e.finishSync(ctx, m, serviceName, false, message))
	}
	return outcomes
}

// finishSync records the sync result in the store and reports the mapping's
// resulting status.
func (e *Engine) finishSync(ctx context.Context, m *mapping.UserMapping, serviceName string, success bool, message string) SyncOutcome {
	outcome := SyncOutcome{
		MappingID:       m.ID,
		CentralUserID:   m.CentralUserID,
		ServiceConfigID: m.ServiceConfigID,
		ServiceName:     serviceName,
		Synced:          success,
		Error:           message,
	}
	updated, err := e.store.CompleteSync(ctx, m.ID, success, message)
	if err != nil {
		outcome.Synced = false
		outcome.Status = m.Status
		if outcome.Error == "" {
			outcome.Error = err.Error()
		}
		return outcome
	}
	outcome.Status = updated.Status
	if !success {
		logging.WarnWithContext(e.logger, "mapping sync failed", "sync_failed",
			logging.Int64(logging.FieldMappingID, m.ID),
			logging.String(logging.FieldCentralUserID, m.CentralUserID),
			logging.Int64(logging.FieldServiceConfigID, m.ServiceConfigID),
			logging.String("error", message),
			logging.Int("sync_attempts", updated.SyncAttempts),
			logging.String(logging.FieldErrorHint, "check service connectivity and credentials"),
			logging.String(logging.FieldImpact, "profile data for this service is stale"))
	}
	return outcome
}

// listUsers queries one directory under the per-service timeout.
func (e *Engine) listUsers(ctx context.Context, directory services.Directory) ([]identity.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.serviceTimeout(directory.ServiceConfigID()))
	defer cancel()
	return directory.ListUsers(services.WithService(callCtx, directory.Name()))
}

// locateRecord finds the mapped account in a fresh listing: native id first,
// then folded username, then folded email.
func locateRecord(records []identity.Record, m *mapping.UserMapping) (identity.Record, bool) {
	if id := strings.TrimSpace(m.ServiceUserID); id != "" {
		for _, record := range records {
			if strings.TrimSpace(record.NativeID) == id {
				return record, true
			}
		}
	}
	if username := textutil.Fold(m.ServiceUsername); username != "" {
		for _, record := range records {
			if record.CanonicalUsername() == username {
				return record, true
			}
		}
	}
	if email := textutil.FoldEmail(m.ServiceEmail); email != "" {
		for _, record := range records {
			if record.CanonicalEmail() == email {
				return record, true
			}
		}
	}
	return identity.Record{}, false
}
