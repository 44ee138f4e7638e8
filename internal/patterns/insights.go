package patterns

import (
	"fmt"
	"strings"
	"time"

	"leannotes/internal/model"
)

const (
	InsightWeekdayWeekend = "weekday_weekend"
	InsightDayEmotion     = "day_emotion"
	InsightPersonEmotion  = "person_emotion"

	DefaultInsightMinSamples  = 10
	DefaultInsightMinFraction = 0.7

	dayInsightMinSamples  = 3
	dayInsightMinFraction = 0.5
	minActivityRatio      = 1.5
)

type Insight struct {
	Kind     string  `json:"kind"`
	Subject  string  `json:"subject,omitempty"`
	Text     string  `json:"text"`
	Samples  int     `json:"samples"`
	Fraction float64 `json:"fraction,omitempty"`
}

type insightRules struct {
	minSamples  int
	minFraction float64
}

func (r insightRules) compute(entries []*model.Entry, items []model.Enriched, windowStart, now time.Time) []Insight {
	var out []Insight
	if in, ok := weekdayWeekend(entries, windowStart, now, r.minSamples); ok {
		out = append(out, in)
	}
	out = append(out, dayEmotions(items)...)
	out = append(out, personEmotions(items, r.minSamples, r.minFraction)...)
	return out
}

// weekdayWeekend compares entries per calendar day of each kind.
func weekdayWeekend(entries []*model.Entry, windowStart, now time.Time, minSamples int) (Insight, bool) {
	var weekdayDays, weekendDays, weekdayN, weekendN int
	for d := dayOf(windowStart); !d.After(now); d = d.AddDate(0, 0, 1) {
		if dayKind(d) == "weekend" {
			weekendDays++
		} else {
			weekdayDays++
		}
	}
	for _, e := range entries {
		if e.CreatedAt.Before(windowStart) {
			continue
		}
		if dayKind(e.CreatedAt) == "weekend" {
			weekendN++
		} else {
			weekdayN++
		}
	}
	total := weekdayN + weekendN
	if total < minSamples || weekdayDays == 0 || weekendDays == 0 {
		return Insight{}, false
	}

	perWeekday := float64(weekdayN) / float64(weekdayDays)
	perWeekend := float64(weekendN) / float64(weekendDays)
	more, less, hi, lo := "weekdays", "weekends", perWeekday, perWeekend
	if perWeekend > perWeekday {
		more, less, hi, lo = "weekends", "weekdays", perWeekend, perWeekday
	}

	in := Insight{Kind: InsightWeekdayWeekend, Subject: more, Samples: total}
	switch {
	case lo == 0:
		in.Text = fmt.Sprintf("You only write on %s", more)
	case hi/lo >= minActivityRatio:
		in.Text = fmt.Sprintf("You write %.1fx more on %s than on %s", hi/lo, more, less)
	default:
		return Insight{}, false
	}
	return in, true
}

func dayEmotions(items []model.Enriched) []Insight {
	byDay := map[time.Weekday]*tally{}
	for _, item := range items {
		wd := item.Entry.CreatedAt.Weekday()
		if byDay[wd] == nil {
			byDay[wd] = newTally()
		}
		byDay[wd].add(string(item.Record.Emotion))
	}

	var out []Insight
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		t := byDay[wd]
		if t == nil || t.total < dayInsightMinSamples {
			continue
		}
		emotion, share := t.dominant()
		if emotion == string(model.EmotionNeutral) || share < dayInsightMinFraction {
			continue
		}
		out = append(out, Insight{
			Kind:     InsightDayEmotion,
			Subject:  wd.String(),
			Text:     fmt.Sprintf("%ss tend to be %s (%.0f%%)", wd, emotion, share*100),
			Samples:  t.total,
			Fraction: share,
		})
	}
	return out
}

func personEmotions(items []model.Enriched, minSamples int, minFraction float64) []Insight {
	byPerson := map[string]*tally{}
	names := map[string]string{}
	for _, item := range items {
		seen := map[string]bool{}
		for _, p := range item.Record.People {
			key := strings.ToLower(strings.TrimSpace(p.Name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if byPerson[key] == nil {
				byPerson[key] = newTally()
				names[key] = strings.TrimSpace(p.Name)
			}
			byPerson[key].add(string(item.Record.Emotion))
		}
	}

	var out []Insight
	for _, key := range sortedKeys(byPerson) {
		t := byPerson[key]
		if t.total < minSamples {
			continue
		}
		emotion, share := t.dominant()
		if share < minFraction {
			continue
		}
		out = append(out, Insight{
			Kind:     InsightPersonEmotion,
			Subject:  names[key],
			Text:     fmt.Sprintf("Entries mentioning %s are mostly %s (%.0f%%)", names[key], emotion, share*100),
			Samples:  t.total,
			Fraction: share,
		})
	}
	return out
}
