package enrichment

import (
	"strings"

	"leannotes/contracts/lu"
	"leannotes/internal/model"
)

// Validate checks an LU response against the closed vocabularies. A field
// that is missing or outside its vocabulary takes the fallback value and
// its fallback confidence; any such replacement makes the method mixed.
func Validate(resp *lu.AnalyzeResponse, fb Analysis) Analysis {
	a := Analysis{
		Confidence: make(map[string]float64),
		Method:     model.MethodLLM,
	}
	replaced := false
	keep := func(field string) {
		a.Confidence[field] = clamp(confidenceOr(resp.Confidence, field, llmDefault))
	}
	replace := func(field string) {
		a.Confidence[field] = fb.Confidence[field]
		replaced = true
	}

	if e := model.Emotion(normalizeLabel(resp.Emotion)); e.Valid() {
		a.Emotion = e
		keep(model.FieldEmotion)
	} else {
		a.Emotion = fb.Emotion
		replace(model.FieldEmotion)
	}

	themes, ok := validThemes(resp.Themes)
	if ok {
		a.Themes = themes
		keep(model.FieldThemes)
	} else {
		a.Themes = fb.Themes
		replace(model.FieldThemes)
	}

	if resp.People != nil {
		a.People = validPeople(resp.People)
		keep(model.FieldPeople)
	} else {
		a.People = fb.People
		replace(model.FieldPeople)
	}

	if u := model.Urgency(normalizeLabel(resp.Urgency)); u.Valid() {
		a.Urgency = u
		keep(model.FieldUrgency)
	} else {
		a.Urgency = fb.Urgency
		replace(model.FieldUrgency)
	}

	for _, field := range []struct {
		name     string
		got      []string
		fallback []string
		out      *[]string
	}{
		{model.FieldActions, resp.Actions, fb.Actions, &a.Actions},
		{model.FieldQuestions, resp.Questions, fb.Questions, &a.Questions},
		{model.FieldDecisions, resp.Decisions, fb.Decisions, &a.Decisions},
	} {
		if field.got == nil {
			*field.out = field.fallback
			replace(field.name)
			continue
		}
		*field.out = cleanStrings(field.got)
		keep(field.name)
	}

	a.Events = validEvents(resp.CandidateEvents)
	if replaced {
		a.Method = model.MethodMixed
	}
	return a
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validThemes keeps known themes in order, deduplicated and capped. A non-empty
// list with no known theme is rejected.
func validThemes(raw []string) ([]model.Theme, bool) {
	if raw == nil {
		return nil, false
	}
	out := []model.Theme{}
	seen := map[model.Theme]bool{}
	for _, r := range raw {
		t := model.Theme(normalizeLabel(r))
		if !t.Valid() || seen[t] {
			continue
		}
		seen[t] = true
		if len(out) < model.MaxThemes {
			out = append(out, t)
		}
	}
	if len(raw) > 0 && len(out) == 0 {
		return nil, false
	}
	return out, true
}

func validPeople(raw []lu.Person) []model.Person {
	out := []model.Person{}
	seen := map[string]bool{}
	for _, p := range raw {
		name := strings.TrimSpace(p.Name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		sentiment := model.Sentiment(normalizeLabel(p.Sentiment))
		if !sentiment.Valid() {
			sentiment = model.SentimentNeutral
		}
		out = append(out, model.Person{Name: name, Context: strings.TrimSpace(p.Context), Sentiment: sentiment})
	}
	return out
}

// validEvents drops candidates outside the category set.
func validEvents(raw []lu.CandidateEvent) []model.CandidateEvent {
	var out []model.CandidateEvent
	for _, c := range raw {
		category := model.EventCategory(normalizeLabel(c.Type))
		if !category.Valid() {
			continue
		}
		out = append(out, model.CandidateEvent{
			Category:    category,
			Subtype:     normalizeLabel(c.Subtype),
			Phrase:      strings.TrimSpace(c.Phrase),
			Metrics:     c.Metrics,
			TextMetrics: c.TextMetrics,
			Confidence:  clamp(c.Confidence),
			Method:      model.MethodLLM,
		})
	}
	return out
}

func cleanStrings(raw []string) []string {
	out := []string{}
	for _, s := range raw {
		out = appendUnique(out, s)
	}
	return out
}

func confidenceOr(m map[string]float64, field string, def float64) float64 {
	if v, ok := m[field]; ok {
		return v
	}
	return def
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
