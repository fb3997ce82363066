// Package pgledger provides a PostgreSQL implementation of incident.Ledger,
// giving the dedup set durability across agent restarts.
package pgledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/mailroom/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/mailroom/internal/incident/pgledger")

//go:embed schema.sql
var schema string

// Ledger persists handled-incident entries in PostgreSQL.
type Ledger struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Ledger. The pool stays owned by
// the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Ledger, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Ledger{pool: pool}, nil
}

const entryColumns = `id, run_id, subject, sender, priority, team, ticket_ref, handled_at`

// Has reports whether the identifier has been handled. Errors surface to the
// caller untouched so the Processor can abort the cycle instead of treating
// an unreachable database as "nothing seen".
func (l *Ledger) Has(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgledger.Has", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM handled_incidents WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("has: %w", err)
	}
	return exists, nil
}

// MarkHandled inserts the entry. ON CONFLICT DO NOTHING makes re-marking an
// already-handled identifier a no-op; the first completion wins.
func (l *Ledger) MarkHandled(ctx context.Context, e *incident.Entry) error {
	ctx, span := tracer.Start(ctx, "pgledger.MarkHandled", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	_, err := l.pool.Exec(ctx,
		`INSERT INTO handled_incidents (`+entryColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.RunID, e.Subject, e.Sender, string(e.Priority), e.Team, e.TicketRef, e.HandledAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("mark handled: %w", err)
	}
	return nil
}

// Get retrieves an entry by incident identifier.
func (l *Ledger) Get(ctx context.Context, id string) (*incident.Entry, bool, error) {
	ctx, span := tracer.Start(ctx, "pgledger.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + entryColumns + ` FROM handled_incidents WHERE id = $1`
	e, err := scanEntry(l.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if e == nil {
		return nil, false, nil
	}
	return e, true, nil
}

// Recent returns up to limit entries, most recently handled first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*incident.Entry, error) {
	ctx, span := tracer.Start(ctx, "pgledger.Recent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := l.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM handled_incidents ORDER BY handled_at DESC LIMIT $1`, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []*incident.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate recent: %w", err)
	}
	return out, nil
}

// scanEntry scans a single row into an incident.Entry. Returns (nil, nil)
// when no row is found.
func scanEntry(row pgx.Row) (*incident.Entry, error) {
	var (
		e        incident.Entry
		priority string
	)
	err := row.Scan(&e.ID, &e.RunID, &e.Subject, &e.Sender, &priority, &e.Team, &e.TicketRef, &e.HandledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	e.Priority = incident.Priority(priority)
	return &e, nil
}
