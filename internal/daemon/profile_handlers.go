package daemon

import (
	"net/http"
	"net/url"
	"strings"

	"stitch/internal/api"
)

// handleCentralUsers lists every central identity with its mapping count.
func (s *apiServer) handleCentralUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	users, err := s.daemon.engine.CentralUsers(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

// handleProfiles serves /api/profiles/{central-user-id} and the explicit
// refresh endpoint /api/profiles/{central-user-id}/sync. Central user ids
// may contain characters that need escaping (emails do), so the id segment
// is unescaped before use.
func (s *apiServer) handleProfiles(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/profiles/"), "/")
	syncRequested := false
	if trimmed, ok := strings.CutSuffix(rest, "/sync"); ok {
		rest = trimmed
		syncRequested = true
	}
	centralUserID, err := url.PathUnescape(rest)
	if err != nil || strings.TrimSpace(centralUserID) == "" {
		s.writeError(w, http.StatusBadRequest, "central user id is required")
		return
	}

	if syncRequested {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		outcomes, err := s.daemon.engine.SyncProfile(r.Context(), centralUserID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, outcomes)
		return
	}

	switch r.Method {
	case http.MethodGet:
		refresh := isTruthy(r.URL.Query().Get("refresh"))
		profile, err := s.daemon.engine.GetProfile(r.Context(), centralUserID, refresh)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, profile)
	case http.MethodDelete:
		removed, err := s.daemon.engine.DeleteCentralUser(r.Context(), centralUserID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.DeleteResult{Removed: removed})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
