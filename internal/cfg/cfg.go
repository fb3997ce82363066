package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds agent-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	AgentName             string
	PollIntervalSeconds   int
	RulesPath             string
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	IMAPAddr              string
	IMAPUsername          string
	IMAPPassword          string
	IMAPMailbox           string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	SenderEmail           string
	JiraURL               string
	JiraUsername          string
	JiraAPIToken          string
	JiraProjectKey        string
	JiraIssueType         string
	DatabaseURL           string
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.AgentName, "agent-name", "IncidentAgent", "name used in acknowledgements and ticket descriptions")
	fs.IntVar(&c.PollIntervalSeconds, "poll-interval-seconds", 60, "seconds between mailbox poll cycles (1..3600)")
	fs.StringVar(&c.RulesPath, "rules-path", "rules.json", "path to the classification rules file")
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for the HTTP API (empty = no auth)")
	fs.StringVar(&c.IMAPAddr, "imap-addr", "", "IMAP server host:port, TLS")
	fs.StringVar(&c.IMAPUsername, "imap-username", "", "IMAP account username")
	fs.StringVar(&c.IMAPPassword, "imap-password", "", "IMAP account password")
	fs.StringVar(&c.IMAPMailbox, "imap-mailbox", "INBOX", "mailbox to poll for incident reports")
	fs.StringVar(&c.SMTPHost, "smtp-host", "", "SMTP server host for acknowledgements")
	fs.IntVar(&c.SMTPPort, "smtp-port", 587, "SMTP submission port (1..65535)")
	fs.StringVar(&c.SMTPUsername, "smtp-username", "", "SMTP account username")
	fs.StringVar(&c.SMTPPassword, "smtp-password", "", "SMTP account password")
	fs.StringVar(&c.SenderEmail, "sender-email", "", "From address for acknowledgements, also filters self-sent mail")
	fs.StringVar(&c.JiraURL, "jira-url", "", "Jira base URL (empty = ticket filing disabled)")
	fs.StringVar(&c.JiraUsername, "jira-username", "", "Jira account username")
	fs.StringVar(&c.JiraAPIToken, "jira-api-token", "", "Jira API token")
	fs.StringVar(&c.JiraProjectKey, "jira-project-key", "ITSM", "Jira project key for filed tickets")
	fs.StringVar(&c.JiraIssueType, "jira-issue-type", "Incident", "Jira issue type for filed tickets")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory ledger)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for P1 notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	if c.PollIntervalSeconds <= 0 || c.PollIntervalSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid POLL_INTERVAL_SECONDS %d (must be 1..3600)", c.PollIntervalSeconds))
	}
	if c.RulesPath == "" {
		errs = append(errs, errors.New("RULES_PATH is required"))
	}

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// The inbound mailbox is the whole point of the agent
	if c.IMAPAddr == "" {
		errs = append(errs, errors.New("IMAP_ADDR is required"))
	}
	if c.IMAPUsername == "" {
		errs = append(errs, errors.New("IMAP_USERNAME is required"))
	}
	if c.IMAPPassword == "" {
		errs = append(errs, errors.New("IMAP_PASSWORD is required"))
	}
	if c.IMAPMailbox == "" {
		errs = append(errs, errors.New("IMAP_MAILBOX is required"))
	}

	if c.SMTPHost == "" {
		errs = append(errs, errors.New("SMTP_HOST is required"))
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid SMTP_PORT %d (must be 1..65535)", c.SMTPPort))
	}
	if c.SenderEmail == "" {
		errs = append(errs, errors.New("SENDER_EMAIL is required"))
	}

	// Jira is optional, but when enabled it needs full credentials
	if c.JiraURL != "" {
		if c.JiraUsername == "" {
			errs = append(errs, errors.New("JIRA_USERNAME is required when JIRA_URL is set"))
		}
		if c.JiraAPIToken == "" {
			errs = append(errs, errors.New("JIRA_API_TOKEN is required when JIRA_URL is set"))
		}
		if c.JiraProjectKey == "" {
			errs = append(errs, errors.New("JIRA_PROJECT_KEY is required when JIRA_URL is set"))
		}
		if c.JiraIssueType == "" {
			errs = append(errs, errors.New("JIRA_ISSUE_TYPE is required when JIRA_URL is set"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
