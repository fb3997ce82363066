package incidentapi

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	entries, err := a.ledger.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list incidents")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"incidents": entries,
		"count":     len(entries),
	})
}

// handlePoll requests an immediate poll cycle. The cycle runs on the agent's
// single poll loop, so a trigger never causes concurrent mailbox processing;
// it only shortens the wait until the next cycle.
func (a *API) handlePoll(w http.ResponseWriter, r *http.Request) {
	if a.poll == nil {
		http.Error(w, `{"error":"polling not available"}`, http.StatusServiceUnavailable)
		return
	}

	triggered := a.poll()
	if !triggered {
		a.logger.Info(r.Context(), "manual poll ignored, cycle already pending")
	} else {
		a.logger.Info(r.Context(), "manual poll triggered")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"triggered": triggered,
	})
}
