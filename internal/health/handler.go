package health

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter serves /health with the reporter's status (503 unless healthy and synced) and
// /healthz as a plain liveness probe.
func NewRouter(reporter Reporter, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter()
	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).Methods(http.MethodGet)

	r.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		status, err := reporter.Report(req.Context())
		if err != nil {
			logger.Warn("health report failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		code := http.StatusOK
		if !status.OK() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
