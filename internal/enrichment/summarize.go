package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	lucontracts "leannotes/contracts/lu"
	"leannotes/internal/lu"
	"leannotes/internal/model"
)

// ErrNothingToSummarize is returned for an empty entry list.
var ErrNothingToSummarize = errors.New("no entries to summarize")

type Summarizer struct {
	client lu.Client
	logger *zap.Logger
}

func NewSummarizer(client lu.Client, logger *zap.Logger) *Summarizer {
	return &Summarizer{client: client, logger: logger}
}

// Summarize asks LU for a summary of the entries and falls back to a
// deterministic digest.
func (s *Summarizer) Summarize(ctx context.Context, entries []*model.Entry) (string, model.EnrichmentMethod, error) {
	if len(entries) == 0 {
		return "", "", ErrNothingToSummarize
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s", e.CreatedAt.Format("2006-01-02 15:04"), e.Content))
	}
	resp, err := s.client.Summarize(ctx, lucontracts.SummarizeRequest{Entries: lines})
	if err == nil && strings.TrimSpace(resp.Summary) != "" {
		return strings.TrimSpace(resp.Summary), model.MethodLLM, nil
	}
	if err != nil && !errors.Is(err, lu.ErrUnavailable) {
		s.logger.Warn("LU summarize failed, using digest", zap.Error(err))
	}
	return Digest(entries), model.MethodFallback, nil
}

// Digest describes the entries by count, date span, top tags and top words.
func Digest(entries []*model.Entry) string {
	first, last := entries[0].CreatedAt, entries[0].CreatedAt
	tags := map[string]int{}
	words := map[string]int{}
	for _, e := range entries {
		if e.CreatedAt.Before(first) {
			first = e.CreatedAt
		}
		if e.CreatedAt.After(last) {
			last = e.CreatedAt
		}
		for _, t := range e.Tags {
			tags[t]++
		}
		for _, w := range tokenPattern.FindAllString(strings.ToLower(e.Content), -1) {
			w = strings.Trim(w, "'-")
			if len(w) < 3 || english.Contains(w) || strings.ContainsAny(w, "0123456789") {
				continue
			}
			words[w]++
		}
	}

	var b strings.Builder
	noun := "entries"
	if len(entries) == 1 {
		noun = "entry"
	}
	fmt.Fprintf(&b, "%d %s from %s to %s.", len(entries), noun, first.Format("Jan 2"), last.Format("Jan 2"))
	if top := topKeys(tags, 3); len(top) > 0 {
		fmt.Fprintf(&b, " Top tags: #%s.", strings.Join(top, ", #"))
	}
	if top := topKeys(words, 5); len(top) > 0 {
		fmt.Fprintf(&b, " Recurring words: %s.", strings.Join(top, ", "))
	}
	return b.String()
}

func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
