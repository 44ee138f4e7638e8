package patterns

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"leannotes/internal/model"
)

type tally struct {
	counts map[string]int
	total  int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(key string) {
	if key == "" {
		return
	}
	t.counts[key]++
	t.total++
}

// dominant returns the most frequent key and its share. Ties go to the
// alphabetically first key.
func (t *tally) dominant() (string, float64) {
	best, bestN := "", 0
	for k, n := range t.counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	if t.total == 0 {
		return "", 0
	}
	return best, float64(bestN) / float64(t.total)
}

func (t *tally) percentages(prefix string, into map[string]float64) {
	for k, n := range t.counts {
		into[prefix+k] = percent(n, t.total)
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

// group accumulates the enriched entries behind one pattern.
type group struct {
	label       string
	occurrences int
	first, last time.Time
	emotions    *tally
	themes      *tally
	urgency     *tally
	hours       *tally
	weekdays    *tally
}

func newGroup(label string) *group {
	return &group{
		label:    label,
		emotions: newTally(),
		themes:   newTally(),
		urgency:  newTally(),
		hours:    newTally(),
		weekdays: newTally(),
	}
}

func (g *group) add(item model.Enriched) {
	at := item.Entry.CreatedAt
	if g.occurrences == 0 || at.Before(g.first) {
		g.first = at
	}
	if at.After(g.last) {
		g.last = at
	}
	g.occurrences++

	g.emotions.add(string(item.Record.Emotion))
	for _, th := range item.Record.Themes {
		g.themes.add(string(th))
	}
	g.urgency.add(string(item.Record.Urgency))
	g.hours.add(fmt.Sprintf("%02d", at.Hour()))
	g.weekdays.add(at.Weekday().String())
}

func (g *group) outcome() map[string]string {
	out := map[string]string{}
	if emotion, _ := g.emotions.dominant(); emotion != "" {
		out["emotion"] = emotion
	}
	if theme, _ := g.themes.dominant(); theme != "" {
		out["theme"] = theme
	}
	return out
}

func (g *group) pattern(signature string, typ model.PatternType, trigger map[string]string, scope model.PatternScope, scorer Scorer, now time.Time) *model.IntelligencePattern {
	return &model.IntelligencePattern{
		Signature: signature,
		Type:      typ,
		Trigger:   trigger,
		Outcome:   g.outcome(),
		Scope:     scope,
		Metrics: model.ConfidenceMetrics{
			Occurrences: g.occurrences,
			Confidence:  scorer.Score(g.occurrences, g.last, now),
			FirstSeen:   g.first,
			LastSeen:    g.last,
		},
		Stats:     map[string]float64{},
		UpdatedAt: now,
	}
}

// entityPatterns build one correlation pattern per mentioned person.
func entityPatterns(items []model.Enriched, scorer Scorer, now time.Time) []*model.IntelligencePattern {
	groups := map[string]*group{}
	for _, item := range items {
		seen := map[string]bool{}
		for _, p := range item.Record.People {
			key := strings.ToLower(strings.TrimSpace(p.Name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			g, ok := groups[key]
			if !ok {
				g = newGroup(strings.TrimSpace(p.Name))
				groups[key] = g
			}
			g.add(item)
		}
	}

	out := make([]*model.IntelligencePattern, 0, len(groups))
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		p := g.pattern("entity:person:"+key, model.PatternCorrelation,
			map[string]string{"person": g.label},
			model.PatternScope{Entity: g.label}, scorer, now)
		g.emotions.percentages("emotion:", p.Stats)
		g.themes.percentages("theme:", p.Stats)
		g.urgency.percentages("urgency:", p.Stats)
		g.hours.percentages("hour:", p.Stats)
		g.weekdays.percentages("weekday:", p.Stats)
		out = append(out, p)
	}
	return out
}

const allScope = "all"

// temporalPatterns build block x weekday patterns plus the block x all and
// weekday/weekend x all aggregates.
func temporalPatterns(items []model.Enriched, scorer Scorer, now time.Time) []*model.IntelligencePattern {
	type key struct{ block, weekday string }
	groups := map[key]*group{}
	at := func(k key) *group {
		g, ok := groups[k]
		if !ok {
			g = newGroup(k.block + ":" + k.weekday)
			groups[k] = g
		}
		return g
	}

	for _, item := range items {
		created := item.Entry.CreatedAt
		block := model.TimeBlockOf(created)
		at(key{block, created.Weekday().String()}).add(item)
		at(key{block, allScope}).add(item)
		at(key{allScope, dayKind(created)}).add(item)
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].block != keys[j].block {
			return keys[i].block < keys[j].block
		}
		return keys[i].weekday < keys[j].weekday
	})

	out := make([]*model.IntelligencePattern, 0, len(groups))
	for _, k := range keys {
		g := groups[k]
		scope := model.PatternScope{}
		if k.block != allScope {
			scope.TimeBlock = k.block
		}
		if k.weekday != allScope {
			scope.Weekday = k.weekday
		}
		p := g.pattern("temporal:"+k.block+":"+k.weekday, model.PatternTemporal,
			map[string]string{"time_block": k.block, "weekday": k.weekday}, scope, scorer, now)
		g.emotions.percentages("emotion:", p.Stats)
		g.themes.percentages("theme:", p.Stats)
		out = append(out, p)
	}
	return out
}

func dayKind(t time.Time) string {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "weekend"
	}
	return "weekday"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
