package incident

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/mailroom/internal/rules"
)

var tracer = otel.Tracer("github.com/linnemanlabs/mailroom/internal/incident")

// Fetcher supplies the candidate messages for one poll cycle. Finite per
// cycle; not restartable mid-cycle.
//
// MarkSeen acknowledges messages back to the source so they are not supplied
// again. The processor calls it only for messages whose outcome is terminal
// (handled, duplicate, malformed); a message left unacknowledged must be
// re-supplied by a later Fetch.
type Fetcher interface {
	Fetch(ctx context.Context) ([]RawMessage, error)
	MarkSeen(ctx context.Context, uids []uint32) error
}

// Acknowledger delivers the acknowledgement reply for a classified incident.
type Acknowledger interface {
	Acknowledge(ctx context.Context, rec *Record) error
}

// TicketFiler creates a tracker ticket for a P1 incident and returns its
// reference.
type TicketFiler interface {
	File(ctx context.Context, rec *Record) (string, error)
}

// Notifier is an optional side channel pinged after a P1 ticket is filed.
// Best effort: failures are logged and never block the incident from being
// marked handled.
type Notifier interface {
	Notify(ctx context.Context, rec *Record) error
}

// Per-incident outcomes, used as metric label values and cycle counters.
const (
	outcomeHandled   = "handled"
	outcomeDuplicate = "duplicate"
	outcomeMalformed = "malformed"
	outcomeRetry     = "retry"
)

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	Fetched    int
	Handled    int
	Duplicates int
	Malformed  int
	Retries    int // incidents left unmarked for the next cycle
}

// Processor sequences the intake pipeline for each poll cycle. It is not safe
// for concurrent use: the ledger invariants assume strictly sequential
// evaluation, so callers must run one cycle at a time.
type Processor struct {
	fetcher  Fetcher
	ledger   Ledger
	table    *rules.Table
	ack      Acknowledger
	filer    TicketFiler
	notifier Notifier
	logger   log.Logger
	metrics  *Metrics
}

// NewProcessor creates a Processor. The notifier may be nil; everything else
// is required.
func NewProcessor(fetcher Fetcher, ledger Ledger, table *rules.Table, ack Acknowledger, filer TicketFiler, notifier Notifier, logger log.Logger, metrics *Metrics) *Processor {
	if fetcher == nil || ledger == nil || table == nil || ack == nil || filer == nil || metrics == nil {
		panic(xerrors.New("incident: all Processor dependencies except notifier are required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Processor{
		fetcher:  fetcher,
		ledger:   ledger,
		table:    table,
		ack:      ack,
		filer:    filer,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// RunCycle executes one full poll cycle: fetch all candidates, then process
// them strictly sequentially. Per-message failures (malformed input, delivery
// or ticket errors) are logged and do not abort the batch; a ledger failure
// aborts the cycle immediately because continuing would risk duplicate
// outbound side effects.
func (p *Processor) RunCycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "incident.RunCycle")
	defer span.End()

	res := &CycleResult{}

	msgs, err := p.fetcher.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.CyclesTotal.WithLabelValues("fetch_error").Inc()
		return res, err
	}

	res.Fetched = len(msgs)
	p.metrics.FetchedTotal.Add(float64(len(msgs)))
	span.SetAttributes(attribute.Int("mailroom.cycle.fetched", len(msgs)))

	// Messages with a terminal outcome are acknowledged back to the source at
	// the end of the cycle. Retry outcomes stay unacknowledged so the next
	// Fetch supplies them again.
	var terminal []uint32

	for i := range msgs {
		outcome, err := p.processOne(ctx, msgs[i])
		p.metrics.ProcessedTotal.WithLabelValues(outcome).Inc()

		switch outcome {
		case outcomeHandled:
			res.Handled++
			terminal = append(terminal, msgs[i].UID)
		case outcomeDuplicate:
			res.Duplicates++
			terminal = append(terminal, msgs[i].UID)
		case outcomeMalformed:
			res.Malformed++
			terminal = append(terminal, msgs[i].UID)
		case outcomeRetry:
			res.Retries++
		}

		if err != nil {
			// Only ledger unavailability propagates out of processOne. Still
			// acknowledge what already completed before the abort.
			p.markSeen(ctx, terminal)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.metrics.CyclesTotal.WithLabelValues("ledger_error").Inc()
			return res, err
		}
	}

	p.markSeen(ctx, terminal)

	p.metrics.CyclesTotal.WithLabelValues("ok").Inc()
	p.metrics.CycleDuration.Observe(time.Since(start).Seconds())

	p.logger.Info(ctx, "cycle complete",
		"fetched", res.Fetched,
		"handled", res.Handled,
		"duplicates", res.Duplicates,
		"malformed", res.Malformed,
		"retries", res.Retries,
		"duration", time.Since(start).Seconds(),
	)
	return res, nil
}

// markSeen is best effort: the ledger is the authority for dedup, so a failed
// acknowledgement only costs a duplicate-outcome pass on the next cycle.
func (p *Processor) markSeen(ctx context.Context, uids []uint32) {
	if len(uids) == 0 {
		return
	}
	if err := p.fetcher.MarkSeen(ctx, uids); err != nil {
		p.logger.Warn(ctx, "failed to acknowledge processed messages", "count", len(uids), "error", err)
	}
}

// processOne runs the per-incident sequence. The returned error is non-nil
// only for ledger unavailability; every other failure is absorbed into the
// outcome so the rest of the batch still runs.
func (p *Processor) processOne(ctx context.Context, raw RawMessage) (string, error) {
	rec, err := New(raw)
	if err != nil {
		var me *MalformedError
		if errors.As(err, &me) {
			p.logger.Warn(ctx, "skipping malformed message", "uid", raw.UID, "reason", me.Reason)
			return outcomeMalformed, nil
		}
		p.logger.Error(ctx, err, "unexpected build failure", "uid", raw.UID)
		return outcomeMalformed, nil
	}

	L := p.logger.With("incident_id", rec.ID, "subject", rec.Subject)

	seen, err := p.ledger.Has(ctx, rec.ID)
	if err != nil {
		lerr := &LedgerUnavailableError{Op: "has", Err: err}
		L.Error(ctx, lerr, "ledger query failed, aborting cycle")
		return outcomeRetry, lerr
	}
	if seen {
		L.Info(ctx, "already handled, skipping")
		p.metrics.DedupSkipsTotal.Inc()
		return outcomeDuplicate, nil
	}

	rec.RunID = ulid.Make().String()
	L = L.With("run_id", rec.RunID)

	cls := Classify(rec.Subject+" "+rec.Body, p.table)
	rec.Priority = cls.Priority
	rec.AssignedTeam = cls.Team
	if contact, ok := p.table.Contact(cls.Team); ok {
		rec.TeamContact = contact
	}
	p.metrics.ClassifiedTotal.WithLabelValues(string(rec.Priority)).Inc()

	L.Info(ctx, "classified",
		"priority", rec.Priority,
		"team", rec.AssignedTeam,
		"priority_keyword", cls.PriorityKeyword,
		"team_keyword", cls.TeamKeyword,
	)

	// Acknowledge first. If this fails the incident stays unmarked and the
	// ticket is not attempted; the whole sequence retries next cycle.
	if err := p.ack.Acknowledge(ctx, rec); err != nil {
		L.Error(ctx, err, "acknowledgement failed, will retry next cycle", "stage", "acknowledge")
		p.metrics.AcksTotal.WithLabelValues("error").Inc()
		return outcomeRetry, nil
	}
	p.metrics.AcksTotal.WithLabelValues("ok").Inc()

	if rec.Priority == PriorityP1 {
		ref, err := p.filer.File(ctx, rec)
		if err != nil {
			L.Error(ctx, err, "ticket creation failed, will retry next cycle", "stage", "file_ticket")
			p.metrics.TicketsTotal.WithLabelValues("error").Inc()
			return outcomeRetry, nil
		}
		rec.TicketRef = ref
		p.metrics.TicketsTotal.WithLabelValues("ok").Inc()
		L.Info(ctx, "ticket filed", "ticket_ref", ref)

		if p.notifier != nil {
			if err := p.notifier.Notify(ctx, rec); err != nil {
				L.Warn(ctx, "notification failed", "stage", "notify", "error", err)
			}
		}
	}

	entry := &Entry{
		ID:        rec.ID,
		RunID:     rec.RunID,
		Subject:   rec.Subject,
		Sender:    rec.Sender,
		Priority:  rec.Priority,
		Team:      rec.AssignedTeam,
		TicketRef: rec.TicketRef,
		HandledAt: time.Now(),
	}
	if err := p.ledger.MarkHandled(ctx, entry); err != nil {
		// The ack (and possibly ticket) went out but we could not record it.
		// At-least-once policy: abort the cycle and accept a possible
		// duplicate next time rather than lose track of ledger state.
		lerr := &LedgerUnavailableError{Op: "mark_handled", Err: err}
		L.Error(ctx, lerr, "failed to mark handled, aborting cycle")
		return outcomeRetry, lerr
	}

	L.Info(ctx, "incident handled", "priority", rec.Priority, "team", rec.AssignedTeam, "ticket_ref", rec.TicketRef)
	return outcomeHandled, nil
}
