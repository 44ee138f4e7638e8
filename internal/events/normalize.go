package events

import (
	"regexp"
	"strings"

	"github.com/orsinium-labs/stopwords"
)

var (
	tokenPattern = regexp.MustCompile(`[\p{L}']+|\d+(?:[.,]\d+)?`)
	english      = stopwords.MustGet("en")
)

// Normalize reduces a source phrase to the key phrase usage is counted under:
// lowercase, numbers folded to "#", stopwords dropped. "Slept 7 hours" and
// "slept 8 hours" share a key.
func Normalize(phrase string) string {
	tokens := tokenPattern.FindAllString(strings.ToLower(phrase), -1)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		switch {
		case tok[0] >= '0' && tok[0] <= '9':
			kept = append(kept, "#")
		case english.Contains(tok):
		default:
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		return strings.Join(tokens, " ")
	}
	return strings.Join(kept, " ")
}
