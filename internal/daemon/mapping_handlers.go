package daemon

import (
	"net/http"
	"strconv"
	"strings"

	"stitch/internal/api"
	"stitch/internal/identity"
	"stitch/internal/logging"
	"stitch/internal/mapping"
)

// handleMappings serves the mapping collection: filtered listing and manual
// creation.
func (s *apiServer) handleMappings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listMappings(w, r)
	case http.MethodPost:
		s.createMapping(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listMappings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter mapping.Filter
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := mapping.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(raw))
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(query.Get("service_config_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "service_config_id must be an integer")
			return
		}
		filter.ServiceConfigID = id
	}
	if raw := strings.TrimSpace(query.Get("central_user_id")); raw != "" {
		filter.CentralUserID = identity.CanonicalCentralID(raw)
	}
	page := mapping.Page{
		Limit:  queryInt(query.Get("limit")),
		Offset: queryInt(query.Get("offset")),
	}
	list, err := s.daemon.engine.ListMappings(r.Context(), filter, page)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *apiServer) createMapping(w http.ResponseWriter, r *http.Request) {
	var req mapping.NewMappingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created, err := s.daemon.engine.CreateMapping(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

// handleMappingItem serves /api/mappings/{id} and the bulk approval endpoint
// /api/mappings/suggestions.
func (s *apiServer) handleMappingItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/mappings/"), "/")
	if rest == "suggestions" {
		s.approveSuggestions(w, r)
		return
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "mapping id must be a positive integer")
		return
	}
	switch r.Method {
	case http.MethodGet:
		found, err := s.daemon.engine.GetMapping(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, found)
	case http.MethodPatch:
		var req mapping.UpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		updated, err := s.daemon.engine.UpdateMapping(r.Context(), id, req)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.daemon.engine.DeleteMapping(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.DeleteResult{Removed: 1})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) approveSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ApproveSuggestionsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Suggestions) == 0 {
		s.writeError(w, http.StatusBadRequest, "no suggestions submitted")
		return
	}
	result, err := s.daemon.engine.CreateMappingsFromSuggestions(r.Context(), req.Suggestions, req.AutoApproveHighConfidence)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.daemon.notifier.NotifyMappingsCreated(r.Context(), result.CreatedMappings, len(result.Errors)); err != nil {
		s.log().Warn("mapping notification failed", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, result)
}

// queryInt parses a non-negative integer query parameter, treating absent or
// malformed values as zero.
func queryInt(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
