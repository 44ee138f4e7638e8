package enrichment

import (
	"strings"
	"time"

	"leannotes/internal/model"
)

// DefaultContextWords caps the context handed to LU.
const DefaultContextWords = 120

// ContextSource supplies pattern correlations relevant to the text.
type ContextSource interface {
	RelevantContext(text string, at time.Time) []string
}

// BuildContext joins the entry's time slot, active facts and pattern lines,
// in that priority, stopping before the word budget is exceeded.
func BuildContext(at time.Time, facts []*model.UserFact, correlations []string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultContextWords
	}

	lines := []string{"Time: " + at.Weekday().String() + " " + model.TimeBlockOf(at)}
	for _, f := range facts {
		if f.Active {
			lines = append(lines, "Fact: "+f.Fact)
		}
	}
	for _, c := range correlations {
		lines = append(lines, "Pattern: "+c)
	}

	var (
		out   []string
		words int
	)
	for _, line := range lines {
		n := len(strings.Fields(line))
		if words+n > maxWords {
			break
		}
		out = append(out, line)
		words += n
	}
	return strings.Join(out, "\n")
}
