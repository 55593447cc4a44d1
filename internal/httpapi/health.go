package httpapi

import "net/http"

// handleHealth is a liveness probe: always 200 once the process is
// serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz checks the dependencies named in §6: the DB and the
// event bus. A JetStream-less bus (local/dev mode) still counts as
// ready since it's a supported configuration, not a degraded one.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unreachable"})
		return
	}
	if s.bus != nil && s.bus.JetStreamEnabled() {
		if _, err := s.bus.JetStream().AccountInfo(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "event bus unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
