package incident

import (
	"context"
	"time"
)

// Entry is what the Ledger persists for a handled incident. Only the
// identifier matters for dedup; the rest lets an operator see what happened
// to a message after the Record itself is gone.
type Entry struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Subject   string    `json:"subject"`
	Sender    string    `json:"sender"`
	Priority  Priority  `json:"priority"`
	Team      string    `json:"team"`
	TicketRef string    `json:"ticket_ref,omitempty"`
	HandledAt time.Time `json:"handled_at"`
}

// Ledger records which incident identifiers have completed the full
// processing pipeline. An identifier moves Unseen -> Handled once and never
// back; there is no unmark. Implementations must return errors the Processor
// can wrap in LedgerUnavailableError rather than silently answering "unseen"
// when their backing store is down.
type Ledger interface {
	// Has reports whether id has already been handled. Pure query.
	Has(ctx context.Context, id string) (bool, error)

	// MarkHandled records a completed incident. Idempotent: marking an
	// already-present identifier is a no-op, not an error.
	MarkHandled(ctx context.Context, e *Entry) error

	// Get retrieves the ledger entry for an identifier.
	Get(ctx context.Context, id string) (*Entry, bool, error)

	// Recent returns up to limit entries, most recently handled first.
	Recent(ctx context.Context, limit int) ([]*Entry, error)
}
