// Package incidentapi exposes the read-only incident ledger and a manual
// poll trigger over HTTP.
package incidentapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/mailroom/internal/incident"
)

// PollTrigger requests an immediate poll cycle. It reports false when a
// cycle is already queued or running.
type PollTrigger func() bool

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	ledger incident.Ledger
	poll   PollTrigger
}

// New creates a new API handler. poll may be nil, in which case the manual
// trigger endpoint responds 503.
func New(logger log.Logger, ledger incident.Ledger, poll PollTrigger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if ledger == nil {
		panic(xerrors.New("incident ledger is required"))
	}
	return &API{
		logger: logger,
		ledger: ledger,
		poll:   poll,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/incidents", a.handleListIncidents)
		r.Get("/incidents/{id}", a.handleGetIncident)
		r.Post("/poll", a.handlePoll)
	})
}

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("mailroom.incident.id", id))

	entry, ok, err := a.ledger.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get incident", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("mailroom.incident.priority", string(entry.Priority)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entry)
}
