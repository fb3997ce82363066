package pgledger_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/mailroom/internal/incident"
	"github.com/linnemanlabs/mailroom/internal/incident/pgledger"
	"github.com/linnemanlabs/mailroom/internal/postgres"
)

func openLedger(t *testing.T) *pgledger.Ledger {
	t.Helper()
	dsn := os.Getenv("MAILROOM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MAILROOM_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	l, err := pgledger.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgledger.New: %v", err)
	}
	return l
}

func testEntry(id string) *incident.Entry {
	return &incident.Entry{
		ID:        id,
		RunID:     ulid.Make().String(),
		Subject:   "Database outage",
		Sender:    "reporter@example.com",
		Priority:  incident.PriorityP1,
		Team:      "DatabaseTeam",
		TicketRef: "ITSM-42",
		HandledAt: time.Now().Truncate(time.Microsecond).UTC(),
	}
}

func TestMarkHandledAndHas(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	id := "test-has-" + ulid.Make().String()

	has, err := l.Has(ctx, id)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if has {
		t.Fatal("expected unseen identifier")
	}

	if err := l.MarkHandled(ctx, testEntry(id)); err != nil {
		t.Fatalf("MarkHandled: %v", err)
	}

	has, err = l.Has(ctx, id)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Fatal("expected handled identifier")
	}
}

func TestMarkHandled_Idempotent(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	id := "test-idem-" + ulid.Make().String()

	first := testEntry(id)
	if err := l.MarkHandled(ctx, first); err != nil {
		t.Fatalf("first MarkHandled: %v", err)
	}

	second := testEntry(id)
	second.TicketRef = "ITSM-99"
	if err := l.MarkHandled(ctx, second); err != nil {
		t.Fatalf("second MarkHandled: %v", err)
	}

	// First completion wins; re-marking must not overwrite.
	got, ok, err := l.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.TicketRef != "ITSM-42" {
		t.Errorf("TicketRef = %q, want ITSM-42 (first write preserved)", got.TicketRef)
	}
}

func TestGetAndRecent(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	id := "test-get-" + ulid.Make().String()

	e := testEntry(id)
	if err := l.MarkHandled(ctx, e); err != nil {
		t.Fatalf("MarkHandled: %v", err)
	}

	got, ok, err := l.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected entry")
	}
	if got.Priority != incident.PriorityP1 || got.Team != "DatabaseTeam" {
		t.Errorf("entry = %+v, want P1/DatabaseTeam", got)
	}

	recent, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	found := false
	for _, r := range recent {
		if r.ID == id {
			found = true
		}
	}
	if !found && len(recent) == 10 {
		t.Skip("entry rotated out of recent window on shared test database")
	}
	if !found {
		t.Error("expected new entry in recent list")
	}
}

func TestGet_Missing(t *testing.T) {
	l := openLedger(t)

	_, ok, err := l.Get(context.Background(), "nonexistent-"+ulid.Make().String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing identifier")
	}
}
