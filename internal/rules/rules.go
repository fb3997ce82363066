// Package rules holds the keyword rule table that drives incident
// classification. The table is loaded once at startup, validated, and never
// mutated afterwards.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Known priority levels, highest severity first.
var knownLevels = []string{"P1", "P2", "P3", "P4"}

// ConfigError reports an invalid rule table. It is fatal: the agent must not
// start with ambiguous or incomplete rules.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "rules config: " + e.Reason
}

// PriorityRule maps a priority level to its trigger keywords.
type PriorityRule struct {
	Level    string   `json:"level"`
	Keywords []string `json:"keywords"`
}

// TeamRule maps a team to its trigger keywords.
type TeamRule struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Table is the validated, immutable rule set. Priorities are evaluated in
// order (highest severity first); Teams are evaluated in order (first match
// wins). Contact lookup is case-insensitive on team name.
type Table struct {
	Priorities  []PriorityRule
	Teams       []TeamRule
	DefaultTeam string

	contacts map[string]string // lowercased team name -> notification address
}

// Contact returns the notification address for a team.
func (t *Table) Contact(team string) (string, bool) {
	addr, ok := t.contacts[strings.ToLower(team)]
	return addr, ok
}

// rawFile mirrors the on-disk JSON layout.
type rawFile struct {
	Priorities  []PriorityRule    `json:"priorities"`
	Teams       []TeamRule        `json:"teams"`
	DefaultTeam string            `json:"default_team"`
	Contacts    map[string]string `json:"contacts"`
}

// Load reads and validates a rule table from a JSON file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse validates raw JSON rule data and builds a Table. Keywords are
// lowercased and trimmed so classification can match without re-normalizing.
func Parse(data []byte) (*Table, error) {
	var raw rawFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	t := &Table{
		DefaultTeam: strings.TrimSpace(raw.DefaultTeam),
		contacts:    make(map[string]string, len(raw.Contacts)),
	}
	for name, addr := range raw.Contacts {
		t.contacts[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(addr)
	}

	if err := buildPriorities(t, raw.Priorities); err != nil {
		return nil, err
	}
	if err := buildTeams(t, raw.Teams); err != nil {
		return nil, err
	}

	if t.DefaultTeam == "" {
		return nil, &ConfigError{Reason: "default_team is required"}
	}
	if _, ok := t.Contact(t.DefaultTeam); !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("default team %q has no contact entry", t.DefaultTeam)}
	}

	return t, nil
}

func buildPriorities(t *Table, in []PriorityRule) error {
	byLevel := make(map[string][]string, len(in))
	var withKeywords, withoutKeywords []string

	for _, pr := range in {
		level := strings.ToUpper(strings.TrimSpace(pr.Level))
		if !validLevel(level) {
			return &ConfigError{Reason: fmt.Sprintf("unknown priority level %q", pr.Level)}
		}
		if _, ok := byLevel[level]; ok {
			return &ConfigError{Reason: fmt.Sprintf("duplicate priority level %q", level)}
		}

		kws := normalizeKeywords(pr.Keywords)
		if len(kws) == 0 {
			withoutKeywords = append(withoutKeywords, level)
		} else {
			withKeywords = append(withKeywords, level)
		}
		byLevel[level] = kws
	}

	// Severity order is not trusted from the file: classification scans
	// highest severity first, so the table is always built P1..P4 no matter
	// how the operator ordered the entries.
	for _, level := range knownLevels {
		if kws, ok := byLevel[level]; ok {
			t.Priorities = append(t.Priorities, PriorityRule{Level: level, Keywords: kws})
		}
	}

	// A level with an empty keyword list next to populated levels is
	// ambiguous: the operator either forgot keywords or meant to drop the
	// level entirely.
	if len(withKeywords) > 0 && len(withoutKeywords) > 0 {
		return &ConfigError{Reason: fmt.Sprintf(
			"priority level(s) %s have no keywords while %s do",
			strings.Join(withoutKeywords, ", "), strings.Join(withKeywords, ", "),
		)}
	}
	return nil
}

func buildTeams(t *Table, in []TeamRule) error {
	seen := make(map[string]bool, len(in))
	for _, tr := range in {
		name := strings.TrimSpace(tr.Name)
		if name == "" {
			return &ConfigError{Reason: "team rule with empty name"}
		}
		key := strings.ToLower(name)
		if seen[key] {
			return &ConfigError{Reason: fmt.Sprintf("duplicate team %q", name)}
		}
		seen[key] = true

		if _, ok := t.Contact(name); !ok {
			return &ConfigError{Reason: fmt.Sprintf("team %q has no contact entry", name)}
		}
		t.Teams = append(t.Teams, TeamRule{Name: name, Keywords: normalizeKeywords(tr.Keywords)})
	}
	return nil
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func validLevel(level string) bool {
	for _, l := range knownLevels {
		if level == l {
			return true
		}
	}
	return false
}
