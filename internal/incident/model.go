package incident

import "time"

// Priority is the severity ranking of an incident, P1 highest.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// DefaultPriority is assigned when no priority keyword matches. Defaulting to
// medium rather than low is a deliberate policy: an unmatched report still
// gets a human look within normal hours.
const DefaultPriority = PriorityP3

// RawMessage is a candidate incident as handed over by the inbound transport:
// already-extracted plain text plus sender metadata. The transport owns the
// wire protocol; the core never sees raw RFC822 bytes.
type RawMessage struct {
	UID       uint32 // transport identifier, echoed back via Fetcher.MarkSeen
	MessageID string // globally unique message identifier, may be empty
	Subject   string
	Sender    string // reply-to target
	Date      time.Time
	Body      string
}

// Record is the canonical in-memory representation of one incident for the
// duration of a poll cycle. Priority and AssignedTeam are set together,
// exactly once, by the Processor before any outbound action.
type Record struct {
	ID           string    `json:"id"` // dedup key
	RunID        string    `json:"run_id"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	Sender       string    `json:"sender"`
	Priority     Priority  `json:"priority,omitempty"`
	AssignedTeam string    `json:"assigned_team,omitempty"`
	TeamContact  string    `json:"team_contact,omitempty"`
	TicketRef    string    `json:"ticket_ref,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}
