package api

import (
	"context"
	"fmt"
	"strings"

	"stitch/internal/identity"
	"stitch/internal/logging"
	"stitch/internal/mapping"
	"stitch/internal/match"
)

// CreateMappingsFromSuggestions turns detection suggestions into persisted
// mappings. The caller passes the suggestions it wants approved; with
// autoApproveHighConfidence set only the high-confidence subset is taken, so
// a client can feed an entire detection run through unfiltered.
//
// Every member record of an approved suggestion becomes one mapping. A
// record that appears in several suggestions of the batch is created once,
// and a conflict with an existing mapping is reported in Errors rather than
// aborting the batch.
func (e *Engine) CreateMappingsFromSuggestions(ctx context.Context, selected []Suggestion, autoApproveHighConfidence bool) (*ApprovalResult, error) {
	result := &ApprovalResult{Errors: []string{}}
	seen := make(map[string]struct{})

	for _, suggestion := range selected {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			break
		}
		if autoApproveHighConfidence && suggestion.Bucket != match.BucketHigh {
			continue
		}
		centralID := identity.CanonicalCentralID(suggestion.CentralUserID)
		if centralID == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("suggestion %s / %s has no central user id", suggestion.UserA.Label(), suggestion.UserB.Label()))
			continue
		}
		centralUsername := firstNonEmpty(suggestion.UserA.Username, suggestion.UserB.Username, centralID)
		centralEmail := firstNonEmpty(suggestion.UserA.Email, suggestion.UserB.Email)

		for _, record := range []identity.Record{suggestion.UserA, suggestion.UserB} {
			key := fmt.Sprintf("%s|%d", centralID, record.ServiceConfigID)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if err := e.approveMember(ctx, centralID, centralUsername, centralEmail, record); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.CreatedMappings++
		}
	}

	e.logger.Info("suggestions approved",
		logging.Int("created_mappings", result.CreatedMappings),
		logging.Int("errors", len(result.Errors)),
		logging.Bool("auto_approve_high_confidence", autoApproveHighConfidence))
	return result, nil
}

// approveMember creates the mapping for one member record and stores the
// record as the mapping's first service snapshot.
func (e *Engine) approveMember(ctx context.Context, centralID, centralUsername, centralEmail string, record identity.Record) error {
	created, err := e.store.Create(ctx, mapping.NewMappingRequest{
		CentralUserID:   centralID,
		CentralUsername: centralUsername,
		CentralEmail:    centralEmail,
		ServiceConfigID: record.ServiceConfigID,
		ServiceUserID:   record.NativeID,
		ServiceUsername: record.Username,
		ServiceEmail:    record.Email,
		Role:            roleFor(record),
		SyncEnabled:     true,
		Metadata:        record.Metadata,
	})
	if err != nil {
		return err
	}
	if _, err := e.store.ObserveRecord(ctx, created.ID, record); err != nil {
		return fmt.Errorf("mapping %d: record snapshot: %w", created.ID, err)
	}
	return nil
}

func roleFor(record identity.Record) mapping.Role {
	if record.IsAdmin {
		return mapping.RoleAdmin
	}
	return mapping.RoleUser
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
