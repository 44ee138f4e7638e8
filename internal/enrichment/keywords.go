package enrichment

import (
	"sort"
	"strings"

	"github.com/coregx/ahocorasick"
)

var emotionKeywords = map[string][]string{
	"happy":      {"happy", "glad", "joy", "joyful", "delighted", "cheerful", "great day", "good day", "wonderful", "awesome"},
	"excited":    {"excited", "thrilled", "can't wait", "cant wait", "pumped", "stoked"},
	"grateful":   {"grateful", "thankful", "blessed", "appreciate"},
	"calm":       {"calm", "relaxed", "peaceful", "chill", "serene"},
	"focused":    {"focused", "productive", "in the zone", "deep work", "concentrated"},
	"tired":      {"tired", "exhausted", "sleepy", "drained", "worn out", "fatigued"},
	"anxious":    {"anxious", "worried", "nervous", "uneasy", "dread"},
	"stressed":   {"stressed", "stress", "overwhelmed", "pressure", "swamped", "hectic", "deadline"},
	"frustrated": {"frustrated", "annoyed", "irritated", "fed up"},
	"sad":        {"sad", "lonely", "upset", "depressed", "heartbroken"},
	"angry":      {"angry", "furious", "pissed", "livid"},
}

var themeKeywords = map[string][]string{
	"work":          {"work", "meeting", "deadline", "project", "boss", "manager", "client", "office", "q1", "q2", "q3", "q4", "quarter", "presentation", "colleague", "coworker", "standup", "sprint", "review"},
	"health":        {"doctor", "sick", "headache", "medicine", "health", "dentist", "therapy", "pain", "flu"},
	"fitness":       {"gym", "run", "ran", "running", "workout", "exercise", "yoga", "km", "miles", "lifted", "swim", "swam", "cycling", "hike", "steps"},
	"family":        {"mom", "dad", "mother", "father", "sister", "brother", "daughter", "son", "kids", "family", "wife", "husband", "parents"},
	"relationships": {"girlfriend", "boyfriend", "partner", "relationship", "date night"},
	"finance":       {"money", "spent", "paid", "budget", "bill", "rent", "salary", "invest", "bank"},
	"learning":      {"learn", "learned", "learning", "course", "study", "book", "reading", "class", "tutorial"},
	"creativity":    {"writing", "draw", "drawing", "paint", "music", "guitar", "design", "idea"},
	"travel":        {"trip", "flight", "travel", "airport", "hotel", "vacation"},
	"home":          {"home", "house", "cleaning", "laundry", "cooking", "groceries", "garden"},
	"social":        {"friends", "party", "drinks", "hang out", "coffee with", "birthday"},
	"personal":      {"journal", "myself", "goal", "habit", "meditate", "reflect"},
}

var urgencyKeywords = map[string][]string{
	"high":   {"urgent", "asap", "immediately", "emergency", "right now", "critical"},
	"medium": {"tomorrow", "deadline", "soon", "this week", "by friday", "by monday"},
	"low":    {"someday", "eventually", "next month", "sometime", "when i can"},
}

type keywordHit struct {
	Label string
	Start int
}

// keywordMatcher finds whole-word dictionary keywords in a single pass.
type keywordMatcher struct {
	ac     *ahocorasick.Automaton
	labels []string
}

func newKeywordMatcher(dict map[string][]string) *keywordMatcher {
	names := make([]string, 0, len(dict))
	for label := range dict {
		names = append(names, label)
	}
	sort.Strings(names)

	var patterns, labels []string
	for _, label := range names {
		for _, kw := range dict[label] {
			patterns = append(patterns, kw)
			labels = append(labels, label)
		}
	}

	ac, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		panic("enrichment: invalid keyword dictionary: " + err.Error())
	}
	return &keywordMatcher{ac: ac, labels: labels}
}

// Match returns hits in text order. Matching is case-insensitive.
func (m *keywordMatcher) Match(text string) []keywordHit {
	lower := strings.ToLower(text)
	matches := m.ac.FindAllOverlapping([]byte(lower))

	hits := make([]keywordHit, 0, len(matches))
	for _, match := range matches {
		if !wordBoundary(lower, match.Start, match.End) {
			continue
		}
		hits = append(hits, keywordHit{Label: m.labels[match.PatternID], Start: match.Start})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Start < hits[j].Start })
	return hits
}

// rank orders labels by hit count, ties broken by first appearance.
func rank(hits []keywordHit) []string {
	counts := map[string]int{}
	first := map[string]int{}
	var labels []string
	for _, h := range hits {
		if _, ok := counts[h.Label]; !ok {
			first[h.Label] = h.Start
			labels = append(labels, h.Label)
		}
		counts[h.Label]++
	}
	sort.SliceStable(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return first[labels[i]] < first[labels[j]]
	})
	return labels
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
