package incidentapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/mailroom/internal/incident"
	"github.com/linnemanlabs/mailroom/internal/incident/memledger"
)

func newTestRouter(t *testing.T, poll PollTrigger) (chi.Router, *memledger.Ledger) {
	t.Helper()
	ledger := memledger.New()
	api := New(nil, ledger, poll)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r, ledger
}

func seedEntry(t *testing.T, ledger *memledger.Ledger, id string, p incident.Priority) {
	t.Helper()
	err := ledger.MarkHandled(context.Background(), &incident.Entry{
		ID:        id,
		RunID:     "01JN123",
		Subject:   "subject for " + id,
		Sender:    "alice@example.com",
		Priority:  p,
		Team:      "DatabaseTeam",
		HandledAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

// New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, memledger.New(), nil)
	if api == nil {
		t.Fatal("New returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New left logger nil; expected Nop logger")
	}
}

func TestNew_WithLogger(t *testing.T) {
	t.Parallel()

	api := New(log.Nop(), memledger.New(), nil)
	if api == nil {
		t.Fatal("New returned nil API")
	}
}

func TestNew_NilLedger_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil, nil) did not panic; expected panic for nil ledger")
		}
	}()
	New(nil, nil, nil)
}

// Routing

func TestRegisterRoutes_Incidents(t *testing.T) {
	t.Parallel()

	r, ledger := newTestRouter(t, nil)
	seedEntry(t, ledger, "abc@example.com", incident.PriorityP1)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET list", http.MethodGet, "/api/v1/incidents", http.StatusOK},
		{"GET known id", http.MethodGet, "/api/v1/incidents/abc@example.com", http.StatusOK},
		{"GET unknown id", http.MethodGet, "/api/v1/incidents/missing", http.StatusNotFound},
		{"POST list not allowed", http.MethodPost, "/api/v1/incidents", http.StatusMethodNotAllowed},
		{"DELETE id not allowed", http.MethodDelete, "/api/v1/incidents/abc@example.com", http.StatusMethodNotAllowed},
		{"GET unknown path", http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
			}
		})
	}
}

// Get

func TestHandleGetIncident(t *testing.T) {
	t.Parallel()

	r, ledger := newTestRouter(t, nil)
	seedEntry(t, ledger, "abc@example.com", incident.PriorityP1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/abc@example.com", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entry incident.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entry); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if entry.ID != "abc@example.com" {
		t.Errorf("id = %q", entry.ID)
	}
	if entry.Priority != incident.PriorityP1 {
		t.Errorf("priority = %q", entry.Priority)
	}
	if entry.Team != "DatabaseTeam" {
		t.Errorf("team = %q", entry.Team)
	}
}

// List

func TestHandleListIncidents(t *testing.T) {
	t.Parallel()

	r, ledger := newTestRouter(t, nil)
	seedEntry(t, ledger, "one@example.com", incident.PriorityP1)
	seedEntry(t, ledger, "two@example.com", incident.PriorityP3)
	seedEntry(t, ledger, "three@example.com", incident.PriorityP4)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents?limit=2", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Incidents []incident.Entry `json:"incidents"`
		Count     int              `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Incidents) != 2 {
		t.Fatalf("count = %d, entries = %d, want 2", resp.Count, len(resp.Incidents))
	}
	// Most recently handled first.
	if resp.Incidents[0].ID != "three@example.com" {
		t.Errorf("first entry = %q, want three@example.com", resp.Incidents[0].ID)
	}
}

func TestHandleListIncidents_InvalidLimit(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, nil)

	for _, limit := range []string{"abc", "0", "-5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents?limit="+limit, http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want %d", limit, rec.Code, http.StatusBadRequest)
		}
	}
}

// Poll trigger

func TestHandlePoll_Triggered(t *testing.T) {
	t.Parallel()

	calls := 0
	r, _ := newTestRouter(t, func() bool {
		calls++
		return true
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/poll", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if calls != 1 {
		t.Errorf("trigger calls = %d, want 1", calls)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["triggered"] != true {
		t.Errorf("triggered = %v, want true", resp["triggered"])
	}
}

func TestHandlePoll_AlreadyPending(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, func() bool { return false })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/poll", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["triggered"] != false {
		t.Errorf("triggered = %v, want false", resp["triggered"])
	}
}

func TestHandlePoll_Unavailable(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/poll", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
