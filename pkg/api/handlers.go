package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/metadata"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, resp Response) {
	resp.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("failed to encode API response", logger.KeyError, err.Error())
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Status: "healthy"})
}

// handleStats reports the metadata store counters.
func handleStats(store metadata.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSON(w, http.StatusServiceUnavailable, Response{
				Status: "error",
				Error:  "store not available",
			})
			return
		}
		stats, err := store.Stats(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, Response{
				Status: "error",
				Error:  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, Response{Status: "ok", Data: stats})
	}
}
