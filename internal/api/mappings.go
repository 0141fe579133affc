package api

import (
	"context"

	"stitch/internal/identity"
	"stitch/internal/logging"
	"stitch/internal/mapping"
)

// CreateMapping persists a mapping the operator specified by hand. The
// central id is canonicalized the same way detection derives them so manual
// and approved mappings land in the same group, and a missing central
// username falls back the same way approval does.
func (e *Engine) CreateMapping(ctx context.Context, req mapping.NewMappingRequest) (*mapping.UserMapping, error) {
	req.CentralUserID = identity.CanonicalCentralID(req.CentralUserID)
	req.CentralUsername = firstNonEmpty(req.CentralUsername, req.ServiceUsername, req.CentralUserID)
	created, err := e.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	e.logger.Info("mapping created",
		logging.Int64(logging.FieldMappingID, created.ID),
		logging.String(logging.FieldCentralUserID, created.CentralUserID),
		logging.Int64(logging.FieldServiceConfigID, created.ServiceConfigID))
	return created, nil
}

// ListMappings returns mappings matching the filter plus the unpaged total.
func (e *Engine) ListMappings(ctx context.Context, filter mapping.Filter, page mapping.Page) (*MappingList, error) {
	mappings, total, err := e.store.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	return &MappingList{Mappings: mappings, Total: total}, nil
}

// GetMapping loads a single mapping by row id.
func (e *Engine) GetMapping(ctx context.Context, id int64) (*mapping.UserMapping, error) {
	return e.store.GetByID(ctx, id)
}

// UpdateMapping applies the provided fields to an existing mapping.
func (e *Engine) UpdateMapping(ctx context.Context, id int64, req mapping.UpdateRequest) (*mapping.UserMapping, error) {
	updated, err := e.store.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	e.logger.Info("mapping updated",
		logging.Int64(logging.FieldMappingID, updated.ID),
		logging.String(logging.FieldCentralUserID, updated.CentralUserID),
		logging.String("status", string(updated.Status)))
	return updated, nil
}

// DeleteMapping removes one mapping. Sibling mappings of the same central
// user and their recorded profile history are untouched.
func (e *Engine) DeleteMapping(ctx context.Context, id int64) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("mapping deleted", logging.Int64(logging.FieldMappingID, id))
	return nil
}

// DeleteCentralUser removes every mapping for the central user along with
// the accumulated profile value history. It reports how many mappings went.
func (e *Engine) DeleteCentralUser(ctx context.Context, centralUserID string) (int64, error) {
	centralUserID = identity.CanonicalCentralID(centralUserID)
	removed, err := e.store.DeleteCentralUser(ctx, centralUserID)
	if err != nil {
		return 0, err
	}
	e.logger.Info("central user deleted",
		logging.String(logging.FieldCentralUserID, centralUserID),
		logging.Int64("mappings_removed", removed))
	return removed, nil
}

// CentralUsers summarizes the known central users and their mapping counts.
func (e *Engine) CentralUsers(ctx context.Context) ([]mapping.CentralUser, error) {
	return e.store.CentralUsers(ctx)
}
