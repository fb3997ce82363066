package mail

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	gomsgmail "github.com/emersion/go-message/mail"

	"github.com/linnemanlabs/mailroom/internal/incident"
)

// Subject phrases that mark auto-replies, out-of-office answers and delivery
// status notifications. Matching messages are dropped before they reach the
// core.
var autoReplyPhrases = []string{
	"auto-reply",
	"automatic reply",
	"out of office",
	"undeliverable",
	"delivery status notification",
}

var (
	htmlBlockRe = regexp.MustCompile(`(?is)<(style|script)[^>]*>.*?</(style|script)>`)
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// parseMessage reads one RFC822 message and extracts the fields the core
// needs. The second return value reports whether the message should be
// skipped (auto-generated or sent by the agent itself); skipped messages are
// not errors.
func parseMessage(r io.Reader, uid uint32, selfAddress string) (incident.RawMessage, bool, error) {
	mr, err := gomsgmail.CreateReader(r)
	if err != nil {
		return incident.RawMessage{}, false, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	h := mr.Header

	subject, _ := h.Subject()
	if isAutoGenerated(subject, h.Get("Auto-Submitted"), h.Get("X-Auto-Response-Suppress")) {
		return incident.RawMessage{}, true, nil
	}

	var sender string
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		sender = addrs[0].Address
	}
	if selfAddress != "" && strings.EqualFold(sender, selfAddress) {
		// Our own acknowledgement bounced back into the inbox.
		return incident.RawMessage{}, true, nil
	}

	msgID, _ := h.MessageID()
	date, _ := h.Date()

	body, err := extractBody(mr)
	if err != nil {
		return incident.RawMessage{}, false, err
	}

	return incident.RawMessage{
		UID:       uid,
		MessageID: msgID,
		Subject:   subject,
		Sender:    sender,
		Date:      date,
		Body:      body,
	}, false, nil
}

// isAutoGenerated applies the RFC 3834 Auto-Submitted header, the Exchange
// X-Auto-Response-Suppress header, and a subject phrase filter.
func isAutoGenerated(subject, autoSubmitted, suppress string) bool {
	if as := strings.ToLower(strings.TrimSpace(autoSubmitted)); as != "" && as != "no" {
		return true
	}
	if strings.Contains(suppress, "All") {
		return true
	}
	lower := strings.ToLower(subject)
	for _, phrase := range autoReplyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// extractBody walks the MIME parts, preferring text/plain and falling back
// to tag-stripped text/html. Attachments are skipped.
func extractBody(mr *gomsgmail.Reader) (string, error) {
	var plain, html []string

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next part: %w", err)
		}

		ih, ok := p.Header.(*gomsgmail.InlineHeader)
		if !ok {
			continue // attachment
		}

		ct, _, err := ih.ContentType()
		if err != nil {
			continue
		}

		content, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("read part: %w", err)
		}

		switch ct {
		case "text/plain":
			plain = append(plain, string(content))
		case "text/html":
			html = append(html, string(content))
		}
	}

	if len(plain) > 0 {
		return strings.TrimSpace(strings.Join(plain, "\n")), nil
	}
	if len(html) > 0 {
		return stripHTML(strings.Join(html, "\n")), nil
	}
	return "", nil
}

// stripHTML is a crude tag remover, good enough for keyword matching. Rich
// rendering is not a goal.
func stripHTML(s string) string {
	s = htmlBlockRe.ReplaceAllString(s, "")
	s = htmlTagRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
