package incident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// DerivedIDPrefix marks incident ids that were synthesized from headers
// because the message carried no Message-ID. Derived ids must never be used
// for reply threading.
const DerivedIDPrefix = "derived-"

// New builds a Record from raw inbound data. It fails with *MalformedError
// when no usable sender address exists, or when no identifier can be
// extracted or derived. Side-effect free.
func New(raw RawMessage) (*Record, error) {
	sender, err := normalizeSender(raw.Sender)
	if err != nil {
		return nil, &MalformedError{UID: raw.UID, Reason: fmt.Sprintf("sender address: %v", err)}
	}

	id := strings.Trim(strings.TrimSpace(raw.MessageID), "<>")
	if id == "" {
		// The transport gave us no Message-ID. Derive a stable identifier
		// from sender, subject and date so the same report dedupes across
		// poll cycles.
		id, err = deriveID(sender, raw.Subject, raw.Date)
		if err != nil {
			return nil, &MalformedError{UID: raw.UID, Reason: err.Error()}
		}
	}

	received := raw.Date
	if received.IsZero() {
		received = time.Now()
	}

	return &Record{
		ID:         id,
		Subject:    strings.TrimSpace(raw.Subject),
		Body:       raw.Body,
		Sender:     sender,
		ReceivedAt: received,
	}, nil
}

func normalizeSender(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Address), nil
}

func deriveID(sender, subject string, date time.Time) (string, error) {
	if subject == "" && date.IsZero() {
		return "", fmt.Errorf("no message id and nothing to derive one from")
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d", sender, subject, date.Unix())
	return DerivedIDPrefix + hex.EncodeToString(h.Sum(nil))[:24], nil
}
