package enrichment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/orsinium-labs/stopwords"

	"leannotes/internal/model"
)

// FuzzyNameRatio is the minimum similarity for a token to match a known name.
const FuzzyNameRatio = 0.8

var (
	english      = stopwords.MustGet("en")
	tokenPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9'-]*`)
)

var notNames = map[string]bool{
	"i": true, "im": true, "ive": true, "ok": true, "okay": true, "todo": true, "god": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true, "january": true, "february": true, "march": true,
	"april": true, "may": true, "june": true, "july": true, "august": true, "september": true,
	"october": true, "november": true, "december": true, "today": true, "tomorrow": true,
	"yesterday": true, "tonight": true,
}

func init() {
	for _, dict := range []map[string][]string{emotionKeywords, themeKeywords, urgencyKeywords} {
		for _, words := range dict {
			for _, w := range words {
				if !strings.Contains(w, " ") {
					notNames[w] = true
				}
			}
		}
	}
}

// people extracts names: known names (exact or fuzzy, any case) and
// capitalized words that do not start a sentence.
func (f *Fallback) people(text string, knownNames []string) []model.Person {
	out := []model.Person{}
	seen := map[string]bool{}

	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		token := strings.TrimSuffix(text[loc[0]:loc[1]], "'s")
		token = strings.Trim(token, "'-")
		lower := strings.ToLower(token)
		if len(token) < 2 || seen[lower] {
			continue
		}

		name, ok := matchKnown(token, knownNames)
		if !ok {
			if !looksLikeName(token) || sentenceStart(text, loc[0]) {
				continue
			}
			name = token
		}
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[lower] = true
		seen[strings.ToLower(name)] = true

		sentence := sentenceAround(text, loc[0])
		out = append(out, model.Person{
			Name:      name,
			Context:   sentence,
			Sentiment: f.sentiment(sentence),
		})
	}
	return out
}

func matchKnown(token string, knownNames []string) (string, bool) {
	lower := strings.ToLower(token)
	if english.Contains(lower) {
		return "", false
	}
	for _, name := range knownNames {
		if strings.EqualFold(name, token) {
			return name, true
		}
	}
	if len(token) < 3 {
		return "", false
	}
	for _, name := range knownNames {
		if similarity(lower, strings.ToLower(name)) >= FuzzyNameRatio {
			return name, true
		}
	}
	return "", false
}

// similarity is 1 - distance/max(len), in [0,1].
func similarity(a, b string) float64 {
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func looksLikeName(token string) bool {
	lower := strings.ToLower(token)
	if notNames[lower] || english.Contains(lower) {
		return false
	}
	runes := []rune(token)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsDigit(r) {
			return false
		}
		if unicode.IsUpper(r) {
			upper++
		}
	}
	// acronyms
	return upper < len(runes)
}

func sentenceStart(text string, start int) bool {
	for i := start - 1; i >= 0; i-- {
		switch c := text[i]; {
		case c == ' ' || c == '\t' || c == '"' || c == '(' || c == '-' || c == '*':
			continue
		case c == '.' || c == '!' || c == '?' || c == '\n' || c == ':':
			return true
		default:
			return false
		}
	}
	return true
}

func sentenceAround(text string, pos int) string {
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		if pos >= loc[0] && pos < loc[1] {
			return strings.TrimSpace(text[loc[0]:loc[1]])
		}
	}
	return strings.TrimSpace(text)
}
