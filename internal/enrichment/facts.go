package enrichment

import (
	"regexp"
	"strings"

	"leannotes/internal/model"
)

var factRules = []struct {
	category model.FactCategory
	pattern  *regexp.Regexp
}{
	{model.FactFamily, regexp.MustCompile(`(?i)\bmy\s+(?:daughter|son|wife|husband|mom|mother|dad|father|sister|brother|kids?|children|parents|family)\b`)},
	{model.FactPeople, regexp.MustCompile(`(?i)\b(?:my\s+(?:manager|boss|friend|best friend|coworker|colleague|mentor|partner|girlfriend|boyfriend)|name\s+is)\b`)},
	{model.FactWork, regexp.MustCompile(`(?i)\b(?:i\s+work|work\s+(?:at|for|as)|my\s+(?:job|company|team|role)|employer)\b`)},
	{model.FactLocation, regexp.MustCompile(`(?i)\b(?:i\s+live|live\s+in|moved\s+to|based\s+in|my\s+(?:home|city|town))\b`)},
	{model.FactHealth, regexp.MustCompile(`(?i)\b(?:allergic|allergy|diabetes|diabetic|asthma|medication|diagnosed|injury|blood pressure)\b`)},
	{model.FactPreference, regexp.MustCompile(`(?i)\b(?:i\s+(?:like|love|prefer|enjoy|hate|dislike)|favou?rite|vegetarian|vegan)\b`)},
}

// CategorizeFact assigns a category from the wording of the fact.
func CategorizeFact(fact string) model.FactCategory {
	for _, rule := range factRules {
		if rule.pattern.MatchString(fact) {
			return rule.category
		}
	}
	return model.FactGeneral
}

var namedPattern = regexp.MustCompile(`(?i)\b(?:name\s+is|named|called|(?:manager|boss|friend|coworker|colleague|mentor|partner|wife|husband|brother|sister|son|daughter|mom|dad)\s+is)\s+([A-Za-z][A-Za-z'-]+)`)

// KnownNames collects the names mentioned in active facts.
func KnownNames(facts []*model.UserFact) []string {
	var names []string
	for _, f := range facts {
		if !f.Active {
			continue
		}
		for _, m := range namedPattern.FindAllStringSubmatch(f.Fact, -1) {
			name := capitalize(strings.TrimSuffix(m[1], "'s"))
			names = appendUnique(names, name)
		}
	}
	return names
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
