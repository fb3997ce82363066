package incident

import "fmt"

// MalformedError marks an inbound message the core cannot turn into a Record
// (no usable identifier or sender). Recoverable: the Processor logs and skips
// the message without aborting the cycle.
type MalformedError struct {
	UID    uint32
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed incident (uid %d): %s", e.UID, e.Reason)
}

// LedgerUnavailableError means the ledger's backing store could not answer.
// Fatal to the cycle: proceeding as if nothing were seen risks duplicate
// acknowledgements and tickets, which is exactly what the ledger prevents.
type LedgerUnavailableError struct {
	Op  string
	Err error
}

func (e *LedgerUnavailableError) Error() string {
	return fmt.Sprintf("ledger unavailable during %s: %v", e.Op, e.Err)
}

func (e *LedgerUnavailableError) Unwrap() error { return e.Err }
