package daemon

import (
	"net/http"
	"time"

	"stitch/internal/api"
	"stitch/internal/logging"
)

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	checks := make([]api.CheckResult, 0, len(status.Checks))
	for _, check := range status.Checks {
		checks = append(checks, api.CheckResult{
			Name:   check.Name,
			Passed: check.Passed,
			Detail: check.Detail,
		})
	}
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		StartedAt:    formatStatusTime(status.StartedAt),
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Sync: api.SyncStatus{
			Enabled:         status.Sync.Enabled,
			Running:         status.Sync.Running,
			IntervalSeconds: int(status.Sync.Interval / time.Second),
			LastSweepAt:     formatStatusTime(status.Sync.LastSweep),
			LastSynced:      status.Sync.LastSynced,
			LastFailed:      status.Sync.LastFailed,
			Sweeps:          status.Sync.Sweeps,
			LastError:       status.Sync.LastError,
		},
		Mappings: status.Mappings,
		Checks:   checks,
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.daemon.engine.CheckHealth(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, health)
		return
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *apiServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.engine.EnumerateUsers(r.Context()))
}

func (s *apiServer) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result := s.daemon.engine.DetectMappings(r.Context())
	if err := s.daemon.notifier.NotifyDetectionCompleted(r.Context(), len(result.Suggestions), result.HighConfidence, result.ServicesScanned); err != nil {
		s.log().Warn("detection notification failed", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, detail, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		detail = detail + ": " + err.Error()
	}
	s.writeJSON(w, http.StatusOK, api.TestNotificationResult{Sent: sent, Detail: detail})
}

func formatStatusTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
