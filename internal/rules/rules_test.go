package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() string {
	return `{
		"priorities": [
			{"level": "P1", "keywords": ["critical", "outage", "system down"]},
			{"level": "P2", "keywords": ["degraded", "slow"]},
			{"level": "P3", "keywords": ["question"]},
			{"level": "P4", "keywords": ["cosmetic"]}
		],
		"teams": [
			{"name": "NetworkTeam", "keywords": ["network", "firewall", "vpn"]},
			{"name": "DatabaseTeam", "keywords": ["database", "sql"]},
			{"name": "FrontendTeam", "keywords": ["button", "login page"]}
		],
		"default_team": "ServiceDesk",
		"contacts": {
			"NetworkTeam": "network-team@example.com",
			"DatabaseTeam": "db-team@example.com",
			"FrontendTeam": "frontend-team@example.com",
			"ServiceDesk": "support@example.com"
		}
	}`
}

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	tbl, err := Parse([]byte(validConfig()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(tbl.Priorities) != 4 {
		t.Fatalf("len(Priorities) = %d, want 4", len(tbl.Priorities))
	}
	if tbl.Priorities[0].Level != "P1" {
		t.Errorf("first level = %q, want P1", tbl.Priorities[0].Level)
	}
	if len(tbl.Teams) != 3 {
		t.Fatalf("len(Teams) = %d, want 3", len(tbl.Teams))
	}
	if tbl.DefaultTeam != "ServiceDesk" {
		t.Errorf("DefaultTeam = %q, want ServiceDesk", tbl.DefaultTeam)
	}
}

func TestParse_PrioritiesCanonicalSeverityOrder(t *testing.T) {
	t.Parallel()

	tbl, err := Parse([]byte(`{
		"priorities": [
			{"level": "P4", "keywords": ["typo"]},
			{"level": "P2", "keywords": ["degraded"]},
			{"level": "P1", "keywords": ["outage"]}
		],
		"teams": [],
		"default_team": "ServiceDesk",
		"contacts": {"ServiceDesk": "support@example.com"}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got := make([]string, len(tbl.Priorities))
	for i, pr := range tbl.Priorities {
		got[i] = pr.Level
	}
	want := []string{"P1", "P2", "P4"}
	if len(got) != len(want) {
		t.Fatalf("levels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("levels = %v, want %v", got, want)
		}
	}
}

func TestParse_KeywordsNormalized(t *testing.T) {
	t.Parallel()

	tbl, err := Parse([]byte(`{
		"priorities": [{"level": "p1", "keywords": [" CRITICAL ", "", "Outage"]}],
		"teams": [],
		"default_team": "ServiceDesk",
		"contacts": {"ServiceDesk": "support@example.com"}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	pr := tbl.Priorities[0]
	if pr.Level != "P1" {
		t.Errorf("Level = %q, want P1", pr.Level)
	}
	want := []string{"critical", "outage"}
	if len(pr.Keywords) != len(want) {
		t.Fatalf("Keywords = %v, want %v", pr.Keywords, want)
	}
	for i, kw := range want {
		if pr.Keywords[i] != kw {
			t.Errorf("Keywords[%d] = %q, want %q", i, pr.Keywords[i], kw)
		}
	}
}

func TestParse_ContactLookupCaseInsensitive(t *testing.T) {
	t.Parallel()

	tbl, err := Parse([]byte(validConfig()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	addr, ok := tbl.Contact("networkteam")
	if !ok {
		t.Fatal("expected contact for networkteam")
	}
	if addr != "network-team@example.com" {
		t.Errorf("Contact = %q, want network-team@example.com", addr)
	}
	if _, ok := tbl.Contact("NETWORKTEAM"); !ok {
		t.Error("expected contact lookup to ignore case")
	}
}

func TestParse_TeamWithoutContact(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{
		"priorities": [{"level": "P1", "keywords": ["critical"]}],
		"teams": [{"name": "Billing", "keywords": ["invoice"]}],
		"default_team": "ServiceDesk",
		"contacts": {"ServiceDesk": "support@example.com"}
	}`))

	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if !strings.Contains(ce.Reason, "Billing") {
		t.Errorf("Reason = %q, want mention of Billing", ce.Reason)
	}
}

func TestParse_DefaultTeamWithoutContact(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{
		"priorities": [],
		"teams": [],
		"default_team": "ServiceDesk",
		"contacts": {}
	}`))

	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
}

func TestParse_MissingDefaultTeam(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"priorities": [], "teams": [], "contacts": {}}`))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
}

func TestParse_EmptyLevelBesidePopulated(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{
		"priorities": [
			{"level": "P1", "keywords": ["critical"]},
			{"level": "P2", "keywords": []}
		],
		"teams": [],
		"default_team": "ServiceDesk",
		"contacts": {"ServiceDesk": "support@example.com"}
	}`))

	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if !strings.Contains(ce.Reason, "P2") {
		t.Errorf("Reason = %q, want mention of P2", ce.Reason)
	}
}

func TestParse_UnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{
		"priorities": [{"level": "P5", "keywords": ["whatever"]}],
		"teams": [],
		"default_team": "ServiceDesk",
		"contacts": {"ServiceDesk": "support@example.com"}
	}`))

	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
}

func TestParse_DuplicateLevel(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{
		"priorities": [
			{"level": "P1", "keywords": ["a"]},
			{"level": "P1", "keywords": ["b"]}
		],
		"teams": [],
		"default_team": "ServiceDesk",
		"contacts": {"ServiceDesk": "support@example.com"}
	}`))

	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
}

func TestParse_DuplicateTeam(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{
		"priorities": [],
		"teams": [
			{"name": "NetworkTeam", "keywords": ["network"]},
			{"name": "networkteam", "keywords": ["vpn"]}
		],
		"default_team": "ServiceDesk",
		"contacts": {
			"NetworkTeam": "network-team@example.com",
			"ServiceDesk": "support@example.com"
		}
	}`))

	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		t.Error("syntax errors should not be ConfigError")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(validConfig()), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.DefaultTeam != "ServiceDesk" {
		t.Errorf("DefaultTeam = %q, want ServiceDesk", tbl.DefaultTeam)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
