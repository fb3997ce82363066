package incident

import (
	"strings"

	"github.com/linnemanlabs/mailroom/internal/rules"
)

// Classification is the outcome of rule evaluation for one incident. The
// keyword fields record which keyword decided each dimension; empty means the
// default applied.
type Classification struct {
	Priority        Priority
	Team            string
	PriorityKeyword string
	TeamKeyword     string
}

// Classify maps free-text incident content to a priority level and a
// responsible team. Pure and deterministic: identical text and table always
// yield identical output, so re-evaluation on retry is safe.
//
// Priority rules are evaluated in table order (highest severity first); the
// first level with any keyword occurring as a substring of the case-folded
// text wins. No match falls back to DefaultPriority. Team rules likewise:
// first match wins, otherwise the table's default team.
func Classify(text string, tbl *rules.Table) Classification {
	folded := strings.ToLower(text)

	c := Classification{
		Priority: DefaultPriority,
		Team:     tbl.DefaultTeam,
	}

	for _, pr := range tbl.Priorities {
		if kw, ok := anyKeyword(folded, pr.Keywords); ok {
			c.Priority = Priority(pr.Level)
			c.PriorityKeyword = kw
			break
		}
	}

	for _, tr := range tbl.Teams {
		if kw, ok := anyKeyword(folded, tr.Keywords); ok {
			c.Team = tr.Name
			c.TeamKeyword = kw
			break
		}
	}

	return c
}

// anyKeyword reports the first keyword contained in text. Keywords are
// already lowercased by rules.Parse.
func anyKeyword(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
