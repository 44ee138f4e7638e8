package enrichment

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"leannotes/internal/model"
)

var (
	actionPattern   = regexp.MustCompile(`(?i)\b(?:need to|needs to|have to|has to|must|should|gotta)\s+([^.!?\n]+)`)
	todoPattern     = regexp.MustCompile(`(?i)\b(?:todo|to-do)\s*:\s*([^.!?\n]+)`)
	listSeparator   = regexp.MustCompile(`(?i)\s*,\s*|\s+and\s+`)
	wonderPattern   = regexp.MustCompile(`(?i)\b(?:i\s+)?wonder(?:ing)?\s+(?:if|whether|why|how)\s+[^.!?\n]+`)
	decisionPattern = regexp.MustCompile(`(?i)\b(?:decided\s+(?:to|that)|chose\s+to|going\s+with|settled\s+on|committed\s+to)\s+[^.!?\n]+`)
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)

	sleepPattern      = regexp.MustCompile(`(?i)\b(?:slept|sleep|got)\s+(?:for\s+)?(\d+(?:\.\d+)?)\s*(?:h|hrs?|hours?)\b`)
	sleepAfterPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:h|hrs?|hours?)\s+(?:of\s+)?sleep\b`)
	distancePattern   = regexp.MustCompile(`(?i)\b(ran|run|jogged|walked|hiked|cycled|biked|rode|swam)\s+(?:for\s+)?(\d+(?:\.\d+)?)\s*(km|k|kilometers?|kilometres?|mi|miles?)\b`)
	workoutPattern    = regexp.MustCompile(`(?i)\b(gym|workout|yoga|lifting|lifted weights)\b(?:[^.!?\n]*?\b(\d+)\s*(?:min|mins|minutes)\b)?`)
	spendPattern      = regexp.MustCompile(`(?i)\b(?:spent|paid)\s+\$\s?(\d+(?:\.\d{1,2})?)(?:\s+(?:on|for)\s+([a-z]+))?`)
	boughtPattern     = regexp.MustCompile(`(?i)\bbought\s+(?:a\s+|an\s+|some\s+)?([a-z]+)\s+for\s+\$\s?(\d+(?:\.\d{1,2})?)`)
	mealPattern       = regexp.MustCompile(`(?i)\b(breakfast|brunch|lunch|dinner)\b`)
)

var activitySubtype = map[string]string{
	"ran": "run", "run": "run", "jogged": "run",
	"walked": "walk", "hiked": "hike",
	"cycled": "cycle", "biked": "cycle", "rode": "cycle",
	"swam": "swim",
}

var positiveEmotions = map[string]bool{"happy": true, "excited": true, "grateful": true, "calm": true, "focused": true}

// Fallback is the deterministic keyword and rule extractor used when LU is
// unavailable and for per-field repair of LU output.
type Fallback struct {
	emotions *keywordMatcher
	themes   *keywordMatcher
	urgency  *keywordMatcher
}

func NewFallback() *Fallback {
	return &Fallback{
		emotions: newKeywordMatcher(emotionKeywords),
		themes:   newKeywordMatcher(themeKeywords),
		urgency:  newKeywordMatcher(urgencyKeywords),
	}
}

// Analyze always yields a complete, valid analysis.
func (f *Fallback) Analyze(text string, knownNames []string) Analysis {
	a := Analysis{
		Emotion:    model.EmotionNeutral,
		Themes:     []model.Theme{},
		Urgency:    model.UrgencyNone,
		Confidence: make(map[string]float64),
		Method:     model.MethodFallback,
	}

	a.Confidence[model.FieldEmotion] = fallbackDefault
	if ranked := rank(f.emotions.Match(text)); len(ranked) > 0 {
		a.Emotion = model.Emotion(ranked[0])
		a.Confidence[model.FieldEmotion] = fallbackMatched
	}

	for _, label := range rank(f.themes.Match(text)) {
		if len(a.Themes) == model.MaxThemes {
			break
		}
		a.Themes = append(a.Themes, model.Theme(label))
	}
	a.Confidence[model.FieldThemes] = baseline(len(a.Themes) > 0)

	a.People = f.people(text, knownNames)
	a.Actions = extractActions(text)
	a.Questions = extractQuestions(text)
	a.Decisions = extractDecisions(text)
	a.Events = extractEvents(text)

	a.Urgency = f.classifyUrgency(text, len(a.Actions) > 0)
	a.Confidence[model.FieldUrgency] = baseline(a.Urgency != model.UrgencyNone)
	a.Confidence[model.FieldPeople] = baseline(len(a.People) > 0)
	a.Confidence[model.FieldActions] = baseline(len(a.Actions) > 0)
	a.Confidence[model.FieldQuestions] = baseline(len(a.Questions) > 0)
	a.Confidence[model.FieldDecisions] = baseline(len(a.Decisions) > 0)
	return a
}

func baseline(matched bool) float64 {
	if matched {
		return fallbackMatched
	}
	return fallbackDefault
}

// classifyUrgency picks the most severe level mentioned. An entry with
// actions but no urgency words is low.
func (f *Fallback) classifyUrgency(text string, hasActions bool) model.Urgency {
	seen := map[string]bool{}
	for _, h := range f.urgency.Match(text) {
		seen[h.Label] = true
	}
	switch {
	case seen["high"]:
		return model.UrgencyHigh
	case seen["medium"]:
		return model.UrgencyMedium
	case seen["low"], hasActions:
		return model.UrgencyLow
	}
	return model.UrgencyNone
}

// sentiment reads the emotion words of a single sentence.
func (f *Fallback) sentiment(sentence string) model.Sentiment {
	ranked := rank(f.emotions.Match(sentence))
	if len(ranked) == 0 {
		return model.SentimentNeutral
	}
	if positiveEmotions[ranked[0]] {
		return model.SentimentPositive
	}
	return model.SentimentNegative
}

func extractActions(text string) []string {
	var out []string
	for _, m := range todoPattern.FindAllStringSubmatch(text, -1) {
		for _, item := range listSeparator.Split(m[1], -1) {
			out = appendUnique(out, item)
		}
	}
	for _, m := range actionPattern.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, m[1])
	}
	return nonNil(out)
}

func extractQuestions(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if strings.HasSuffix(s, "?") {
			out = appendUnique(out, s)
		}
	}
	for _, m := range wonderPattern.FindAllString(text, -1) {
		out = appendUnique(out, m)
	}
	return nonNil(out)
}

func extractDecisions(text string) []string {
	var out []string
	for _, m := range decisionPattern.FindAllString(text, -1) {
		out = appendUnique(out, m)
	}
	return nonNil(out)
}

func extractEvents(text string) []model.CandidateEvent {
	var out []model.CandidateEvent
	add := func(c model.CandidateEvent) {
		for _, existing := range out {
			if existing.Category == c.Category && existing.Subtype == c.Subtype {
				return
			}
		}
		c.Phrase = strings.TrimSpace(c.Phrase)
		c.Method = model.MethodFallback
		out = append(out, c)
	}

	for _, p := range []*regexp.Regexp{sleepPattern, sleepAfterPattern} {
		if m := p.FindStringSubmatch(text); m != nil {
			add(model.CandidateEvent{
				Category:   model.EventSleep,
				Subtype:    "duration",
				Phrase:     m[0],
				Metrics:    map[string]float64{"hours": parseFloat(m[1])},
				Confidence: metricEventConfidence,
			})
		}
	}

	for _, m := range distancePattern.FindAllStringSubmatch(text, -1) {
		km := parseFloat(m[2])
		if unit := strings.ToLower(m[3]); unit == "mi" || strings.HasPrefix(unit, "mile") {
			km = math.Round(km*1.609344*100) / 100
		}
		add(model.CandidateEvent{
			Category:   model.EventExercise,
			Subtype:    activitySubtype[strings.ToLower(m[1])],
			Phrase:     m[0],
			Metrics:    map[string]float64{"distance_km": km},
			Confidence: metricEventConfidence,
		})
	}

	for _, m := range workoutPattern.FindAllStringSubmatch(text, -1) {
		c := model.CandidateEvent{
			Category:   model.EventExercise,
			Subtype:    workoutSubtype(m[1]),
			Phrase:     m[1],
			Confidence: keywordEventConfidence,
		}
		if m[2] != "" {
			c.Metrics = map[string]float64{"minutes": parseFloat(m[2])}
			c.Phrase = m[0]
			c.Confidence = metricEventConfidence
		}
		add(c)
	}

	for _, m := range spendPattern.FindAllStringSubmatch(text, -1) {
		c := model.CandidateEvent{
			Category:   model.EventSpending,
			Subtype:    "purchase",
			Phrase:     m[0],
			Metrics:    map[string]float64{"amount": parseFloat(m[1])},
			Confidence: metricEventConfidence,
		}
		if m[2] != "" {
			c.TextMetrics = map[string]string{"item": strings.ToLower(m[2])}
		}
		add(c)
	}
	for _, m := range boughtPattern.FindAllStringSubmatch(text, -1) {
		add(model.CandidateEvent{
			Category:    model.EventSpending,
			Subtype:     "purchase",
			Phrase:      m[0],
			Metrics:     map[string]float64{"amount": parseFloat(m[2])},
			TextMetrics: map[string]string{"item": strings.ToLower(m[1])},
			Confidence:  metricEventConfidence,
		})
	}

	for _, m := range mealPattern.FindAllStringSubmatch(text, -1) {
		add(model.CandidateEvent{
			Category:   model.EventMeal,
			Subtype:    strings.ToLower(m[1]),
			Phrase:     m[0],
			Confidence: keywordEventConfidence,
		})
	}
	return out
}

func workoutSubtype(keyword string) string {
	switch k := strings.ToLower(keyword); {
	case k == "yoga":
		return "yoga"
	case strings.HasPrefix(k, "lift"):
		return "strength"
	default:
		return "gym"
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func appendUnique(list []string, item string) []string {
	item = strings.TrimSpace(item)
	if item == "" {
		return list
	}
	for _, existing := range list {
		if strings.EqualFold(existing, item) {
			return list
		}
	}
	return append(list, item)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
