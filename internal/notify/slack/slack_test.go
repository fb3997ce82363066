package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/mailroom/internal/incident"
)

func TestNotify_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	rec := &incident.Record{
		ID:           "abc@example.com",
		Subject:      "Database outage in production",
		Body:         "Primary cluster down.",
		Sender:       "alice@example.com",
		Priority:     incident.PriorityP1,
		AssignedTeam: "DatabaseTeam",
		TicketRef:    "ITSM-123",
		ReceivedAt:   time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}

	if err := n.Notify(context.Background(), rec); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, details, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Database outage in production") {
		t.Errorf("header text = %q, want to contain the subject", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Errorf("header should contain red circle for P1")
	}

	fields := blocks[2].(map[string]any)["fields"].([]any)
	var joined strings.Builder
	for _, f := range fields {
		joined.WriteString(f.(map[string]any)["text"].(string))
		joined.WriteString("\n")
	}
	for _, want := range []string{"*Ticket:* ITSM-123", "*Team:* DatabaseTeam", "*Reported by:* alice@example.com"} {
		if !strings.Contains(joined.String(), want) {
			t.Errorf("fields missing %q:\n%s", want, joined.String())
		}
	}
}

func TestNotify_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.Notify(context.Background(), &incident.Record{}); err != nil {
		t.Fatalf("Notify with empty URL should be no-op, got: %v", err)
	}
}

func TestNotify_TruncatesLongBody(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Notify(context.Background(), &incident.Record{
		ID:       "long@example.com",
		Subject:  "Flood",
		Priority: incident.PriorityP1,
		Body:     strings.Repeat("x", 4000),
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks := got["blocks"].([]any)
	details := blocks[4].(map[string]any)
	text := details["text"].(map[string]any)["text"].(string)

	if len(text) > maxDetailsLen+len("*Details*\n\n") {
		t.Errorf("details length = %d, expected <= %d", len(text), maxDetailsLen+len("*Details*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated details to end with ...")
	}
}

func TestPriorityEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		priority incident.Priority
		want     string
	}{
		{incident.PriorityP1, "\U0001f534"},
		{incident.PriorityP2, "\U0001f7e0"},
		{incident.PriorityP3, "\U0001f7e1"},
		{incident.PriorityP4, "\U0001f7e2"},
		{incident.Priority(""), "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			t.Parallel()
			if got := priorityEmoji(tt.priority); got != tt.want {
				t.Errorf("priorityEmoji(%q) = %q, want %q", tt.priority, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("Database down", "P1", "Primary cluster unreachable.", "alice@example.com")
	f.Add("", "", "", "")
	f.Add("<@U123> mention", "P2", "*bold* _italic_ ~strike~", "bob@example.com")
	f.Add("subject\x00\x01\x02", "P3", "body\ttab", "s\x00nder")
	f.Add(strings.Repeat("A", 5000), "P1", strings.Repeat("x", 10000), "carol@example.com")
	f.Add("test", "P4", "```code block``` and <http://example.com|link>", "dave@example.com")

	f.Fuzz(func(t *testing.T, subject, priority, body, sender string) {
		rec := &incident.Record{
			ID:           "fuzz-id",
			Subject:      subject,
			Body:         body,
			Sender:       sender,
			Priority:     incident.Priority(priority),
			AssignedTeam: "Team",
			ReceivedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		// Must not panic
		msg := buildMessage(rec)

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		// Must round-trip
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}

func TestNotify_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Notify(context.Background(), &incident.Record{
		ID:       "err@example.com",
		Priority: incident.PriorityP1,
	})
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
