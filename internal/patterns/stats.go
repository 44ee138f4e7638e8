package patterns

import (
	"sort"
	"time"

	"leannotes/internal/model"
)

type DayCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats are writing statistics over live entries.
type Stats struct {
	TotalEntries        int        `json:"total_entries"`
	Today               int        `json:"today"`
	ThisWeek            int        `json:"this_week"`
	Activity            []DayCount `json:"activity"`
	TopTags             []TagCount `json:"top_tags"`
	CurrentStreak       int        `json:"current_streak"`
	LongestStreak       int        `json:"longest_streak"`
	TrendPercent        float64    `json:"trend_percent"`
	BestDay             string     `json:"best_day,omitempty"`
	AveragePerActiveDay float64    `json:"average_per_active_day"`
}

const topTagCount = 5

// computeStats uses entries for day counts and windowStart for the
// distribution figures (tags, best day, average).
func computeStats(total int, entries []*model.Entry, writing *model.Streak, windowStart, now time.Time) Stats {
	today := dayOf(now)
	weekStart := today.AddDate(0, 0, -6)
	prevWeekStart := today.AddDate(0, 0, -13)

	s := Stats{TotalEntries: total, Activity: make([]DayCount, 7), TopTags: []TagCount{}}
	for i := range s.Activity {
		s.Activity[i].Day = weekStart.AddDate(0, 0, i)
	}

	var (
		thisWeek, prevWeek int
		tags               = map[string]int{}
		weekdays           = map[time.Weekday]int{}
		activeDays         = map[time.Time]bool{}
		inWindow           int
	)
	for _, e := range entries {
		d := dayOf(e.CreatedAt)
		switch {
		case !d.Before(weekStart) && !d.After(today):
			thisWeek++
			s.Activity[int(d.Sub(weekStart).Hours()/24+0.5)].Count++
		case !d.Before(prevWeekStart) && d.Before(weekStart):
			prevWeek++
		}
		if d.Equal(today) {
			s.Today++
		}
		if e.CreatedAt.Before(windowStart) {
			continue
		}
		inWindow++
		activeDays[d] = true
		weekdays[d.Weekday()]++
		for _, t := range e.Tags {
			tags[t]++
		}
	}
	s.ThisWeek = thisWeek

	switch {
	case prevWeek > 0:
		s.TrendPercent = float64(thisWeek-prevWeek) * 100 / float64(prevWeek)
	case thisWeek > 0:
		s.TrendPercent = 100
	}

	if len(activeDays) > 0 {
		s.AveragePerActiveDay = float64(inWindow) / float64(len(activeDays))
	}

	bestN := 0
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if weekdays[wd] > bestN {
			bestN = weekdays[wd]
			s.BestDay = wd.String()
		}
	}

	for tag, n := range tags {
		s.TopTags = append(s.TopTags, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(s.TopTags, func(i, j int) bool {
		if s.TopTags[i].Count != s.TopTags[j].Count {
			return s.TopTags[i].Count > s.TopTags[j].Count
		}
		return s.TopTags[i].Tag < s.TopTags[j].Tag
	})
	if len(s.TopTags) > topTagCount {
		s.TopTags = s.TopTags[:topTagCount]
	}

	if writing != nil {
		s.LongestStreak = writing.Best
		if Active(writing, now) {
			s.CurrentStreak = writing.Current
		}
	}
	return s
}
