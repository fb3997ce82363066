// Package mail implements the inbound and outbound mail transports: an IMAP
// fetcher that turns unread inbox messages into incident.RawMessage values,
// and an SMTP acknowledger that replies to the reporter. The core never
// touches the wire protocols directly.
package mail

import "fmt"

// DeliveryError reports a failed acknowledgement delivery. The Processor
// leaves the incident unmarked so delivery is retried next cycle.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
