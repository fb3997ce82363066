// Package jira files tickets for critical incidents.
package jira

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	gojira "github.com/andygrunwald/go-jira"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/mailroom/internal/incident"
)

// Jira summaries are capped at 255 characters; stay one under and leave room
// for the ellipsis when truncating.
const maxSummaryLen = 254

// CreationError reports a failed ticket creation. The incident stays
// unhandled so the next poll cycle retries it.
type CreationError struct {
	IncidentID string
	Err        error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("jira ticket creation for incident %s: %v", e.IncidentID, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// Config holds Jira server settings.
type Config struct {
	BaseURL    string
	Username   string
	APIToken   string
	ProjectKey string
	IssueType  string // issue type name for filed tickets, e.g. "Incident"
	AgentName  string // named in ticket descriptions as the reporting system
}

// Filer creates Jira issues for P1 incidents.
type Filer struct {
	cfg    Config
	client *gojira.Client
	logger log.Logger
}

// NewFiler creates a Jira ticket filer using basic auth with an API token.
func NewFiler(cfg Config, logger log.Logger) (*Filer, error) {
	if logger == nil {
		logger = log.Nop()
	}
	tp := gojira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.APIToken,
	}
	client, err := gojira.NewClient(tp.Client(), strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("jira client for %s: %w", cfg.BaseURL, err)
	}
	return &Filer{cfg: cfg, client: client, logger: logger}, nil
}

// File implements incident.TicketFiler. It returns the created issue key,
// e.g. "ITSM-123".
func (f *Filer) File(ctx context.Context, rec *incident.Record) (string, error) {
	issue := &gojira.Issue{
		Fields: &gojira.IssueFields{
			Project:     gojira.Project{Key: f.cfg.ProjectKey},
			Type:        gojira.IssueType{Name: f.cfg.IssueType},
			Summary:     ticketSummary(rec),
			Description: f.ticketDescription(rec),
		},
	}

	created, resp, err := f.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		// The response body carries the field-level validation errors.
		if resp != nil {
			err = gojira.NewJiraError(resp, err)
		}
		return "", &CreationError{IncidentID: rec.ID, Err: err}
	}

	f.logger.Info(ctx, "jira ticket created",
		"incident_id", rec.ID,
		"ticket", created.Key,
		"project", f.cfg.ProjectKey,
	)
	return created.Key, nil
}

func ticketSummary(rec *incident.Record) string {
	summary := fmt.Sprintf("%s Incident: %s", rec.Priority, rec.Subject)
	if len(summary) > maxSummaryLen {
		// Back off to a rune boundary so the cut never splits a multi-byte
		// character.
		cut := maxSummaryLen - 3
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + "..."
	}
	return summary
}

func (f *Filer) ticketDescription(rec *incident.Record) string {
	body := rec.Body
	if body == "" {
		body = "(No body content provided)"
	}
	team := rec.AssignedTeam
	if team == "" {
		team = "N/A"
	}
	divider := strings.Repeat("-", 20)

	var b strings.Builder
	fmt.Fprintf(&b, "Automated %s incident report from: %s\n", rec.Priority, f.cfg.AgentName)
	fmt.Fprintf(&b, "Source Incident ID: %s\n", rec.ID)
	fmt.Fprintf(&b, "Detected Priority: %s\n", rec.Priority)
	fmt.Fprintf(&b, "Auto-Assigned Team: %s\n", team)
	fmt.Fprintf(&b, "Reported By: %s\n", rec.Sender)
	fmt.Fprintf(&b, "\nOriginal Subject:\n%s\n", rec.Subject)
	fmt.Fprintf(&b, "\nOriginal Body:\n%s\n%s\n%s", divider, body, divider)
	return b.String()
}
