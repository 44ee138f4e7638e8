package patterns

import (
	"sort"
	"time"

	"leannotes/internal/model"
)

const StreakWriting = "writing"

func eventStreakType(c model.EventCategory) string {
	return "event:" + string(c)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// computeStreak walks the qualifying days in order: a consecutive day
// extends the run, a gap restarts it at 1. Current is the run ending on the
// last qualifying day.
func computeStreak(kind string, times []time.Time, now time.Time) *model.Streak {
	if len(times) == 0 {
		return nil
	}
	set := map[time.Time]bool{}
	for _, t := range times {
		set[dayOf(t)] = true
	}
	days := make([]time.Time, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	s := &model.Streak{Type: kind, UpdatedAt: now}
	for i, d := range days {
		if i > 0 && days[i-1].AddDate(0, 0, 1).Equal(d) {
			s.Current++
		} else {
			s.Current = 1
		}
		if s.Current > s.Best {
			s.Best = s.Current
		}
		s.LastDay = d
	}
	return s
}

// Active reports whether the streak still counts today: its last day is
// today or yesterday.
func Active(s *model.Streak, now time.Time) bool {
	if s == nil {
		return false
	}
	return !s.LastDay.Before(dayOf(now).AddDate(0, 0, -1))
}

func streaksFor(entries []*model.Entry, committed []*model.Event, now time.Time) []*model.Streak {
	var out []*model.Streak

	writing := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		writing = append(writing, e.CreatedAt)
	}
	if s := computeStreak(StreakWriting, writing, now); s != nil {
		out = append(out, s)
	}

	byCategory := map[string][]time.Time{}
	for _, ev := range committed {
		byCategory[string(ev.Category)] = append(byCategory[string(ev.Category)], ev.OccurredAt)
	}
	for _, category := range sortedKeys(byCategory) {
		if s := computeStreak(eventStreakType(model.EventCategory(category)), byCategory[category], now); s != nil {
			out = append(out, s)
		}
	}
	return out
}
