package lu

import (
	"fmt"
	"strings"

	"leannotes/contracts/lu"
	"leannotes/internal/model"
)

var analyzePrompt = fmt.Sprintf(`You analyze short personal journal entries.
Reply with a single JSON object and nothing else, using exactly these keys:
  "emotion": one of [%s]
  "themes": up to %d of [%s], most relevant first
  "people": [{"name", "context", "sentiment": one of [%s]}]
  "urgency": one of [%s]
  "actions", "questions", "decisions": arrays of short strings
  "candidate_events": [{"type": one of [%s], "subtype", "phrase", "metrics": {name: number}, "text_metrics": {name: string}, "confidence": 0..1}]
  "confidence": {"emotion", "themes", "people", "urgency", "actions", "questions", "decisions": 0..1}
Only report events the text states; "phrase" is the exact words they come from.`,
	join(model.Emotions), model.MaxThemes, join(model.Themes), join(model.Sentiments),
	join(model.Urgencies), join(model.EventCategories),
)

const summarizePrompt = `Summarize these journal entries concisely. Focus on key themes, topics and insights.
Two or three short paragraphs at most. Plain text, no headings.`

func analyzeInput(req lu.AnalyzeRequest) string {
	if strings.TrimSpace(req.Context) == "" {
		return "Entry:\n" + req.Text
	}
	return "Context about the writer:\n" + req.Context + "\n\nEntry:\n" + req.Text
}

func join[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
