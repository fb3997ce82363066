package mail

import (
	"context"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/mailroom/internal/incident"
)

// SenderConfig holds SMTP submission settings. STARTTLS is mandatory.
type SenderConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string // sender address, also used to detect self-sent mail
	AgentName   string // signature used in acknowledgement bodies
	JiraBaseURL string // optional, for ticket links in acknowledgements
}

// Sender delivers acknowledgement emails for processed incidents.
type Sender struct {
	cfg    SenderConfig
	logger log.Logger
}

// NewSender creates an SMTP acknowledgement sender.
func NewSender(cfg SenderConfig, logger log.Logger) *Sender {
	if logger == nil {
		logger = log.Nop()
	}
	return &Sender{cfg: cfg, logger: logger}
}

// Acknowledge implements incident.Acknowledger. The reply goes to the
// reporting sender and is threaded onto the original message when the
// incident id is a real Message-ID rather than a derived one.
func (s *Sender) Acknowledge(ctx context.Context, rec *incident.Record) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return &DeliveryError{Recipient: rec.Sender, Err: fmt.Errorf("from address: %w", err)}
	}
	if err := msg.To(rec.Sender); err != nil {
		return &DeliveryError{Recipient: rec.Sender, Err: fmt.Errorf("to address: %w", err)}
	}
	msg.Subject(ackSubject(rec))
	msg.SetBodyString(gomail.TypeTextPlain, s.ackBody(rec))

	if ref := threadingRef(rec.ID); ref != "" {
		msg.SetGenHeader("In-Reply-To", ref)
		msg.SetGenHeader("References", ref)
	}

	c, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return &DeliveryError{Recipient: rec.Sender, Err: fmt.Errorf("smtp client: %w", err)}
	}

	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return &DeliveryError{Recipient: rec.Sender, Err: err}
	}

	s.logger.Info(ctx, "acknowledgement sent", "incident_id", rec.ID, "recipient", rec.Sender)
	return nil
}

func ackSubject(rec *incident.Record) string {
	return fmt.Sprintf("RE: %s [Incident ACK - ID: %s]", rec.Subject, rec.ID)
}

func (s *Sender) ackBody(rec *incident.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n")
	fmt.Fprintf(&b, "This is an automated message from %s.\n", s.cfg.AgentName)
	fmt.Fprintf(&b, "We have received your incident report titled: '%s'.\n\n", rec.Subject)
	fmt.Fprintf(&b, "Initial Assessment:\n")
	fmt.Fprintf(&b, "- Incident Source ID: %s\n", rec.ID)
	fmt.Fprintf(&b, "- Assigned Priority: %s\n", rec.Priority)
	fmt.Fprintf(&b, "- Assigned Team: %s\n", rec.AssignedTeam)
	if rec.TicketRef != "" {
		if s.cfg.JiraBaseURL != "" {
			fmt.Fprintf(&b, "- Jira Ticket: %s (Link: %s/browse/%s)\n",
				rec.TicketRef, strings.TrimRight(s.cfg.JiraBaseURL, "/"), rec.TicketRef)
		} else {
			fmt.Fprintf(&b, "- Jira Ticket: %s\n", rec.TicketRef)
		}
	}
	fmt.Fprintf(&b, "\nThis incident is being processed. You will receive further updates from the assigned team.\n\n")
	fmt.Fprintf(&b, "Regards,\n%s", s.cfg.AgentName)
	return b.String()
}

// threadingRef returns the angle-bracketed Message-ID for reply threading,
// or "" when the incident id was derived from headers and no real
// Message-ID exists.
func threadingRef(id string) string {
	if id == "" || strings.HasPrefix(id, incident.DerivedIDPrefix) {
		return ""
	}
	if strings.HasPrefix(id, "<") {
		return id
	}
	return "<" + id + ">"
}
