// Package discovery turns a keyword query into an ordered, deduplicated
// stream of candidates, paginating through the automation session on demand.
package discovery

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/jumperz11/Linkdinscrap/internal/automation"
	"github.com/jumperz11/Linkdinscrap/internal/models"
)

const (
	termWeight   = 10
	phraseWeight = 20
)

type Stream struct {
	session  automation.Session
	keywords string
	terms    []string
	log      *slog.Logger

	queue     []models.Candidate
	seen      map[string]bool
	started   bool
	exhausted bool
}

func New(session automation.Session, keywords string, log *slog.Logger) *Stream {
	return &Stream{
		session:  session,
		keywords: strings.TrimSpace(keywords),
		terms:    strings.Fields(strings.ToLower(keywords)),
		seen:     map[string]bool{},
		log:      log.With("module", "discovery"),
	}
}

// Next returns the next candidate, fetching further result pages as the
// current one drains. ok=false signals exhaustion: no more pages exist.
func (s *Stream) Next(ctx context.Context) (models.Candidate, bool, error) {
	for len(s.queue) == 0 {
		if s.exhausted {
			return models.Candidate{}, false, nil
		}
		var results []models.SearchResult
		var err error
		if !s.started {
			s.started = true
			results, err = s.session.Search(ctx, s.keywords)
		} else {
			results, err = s.session.NextPage(ctx)
		}
		if err != nil {
			return models.Candidate{}, false, err
		}
		if len(results) == 0 {
			s.exhausted = true
			return models.Candidate{}, false, nil
		}
		s.queue = s.rank(results)
		if len(s.queue) == 0 {
			s.log.Debug("page had no usable candidates, advancing")
		}
	}
	c := s.queue[0]
	s.queue = s.queue[1:]
	return c, true, nil
}

// rank weights, filters and orders one page of raw results. Weighting:
// +10 per distinct query term in the display text, +20 when the full phrase
// appears verbatim. Zero-weight entries are dropped only for multi-term
// queries; single-term relevance is too unreliable to filter on. Sorting is
// stable so source order breaks ties.
func (s *Stream) rank(results []models.SearchResult) []models.Candidate {
	var out []models.Candidate
	for _, res := range results {
		if res.ExternalID == "" || s.seen[res.ExternalID] {
			continue
		}
		s.seen[res.ExternalID] = true
		w := s.weight(res)
		if w == 0 && len(s.terms) > 1 {
			continue
		}
		out = append(out, models.Candidate{
			Locator:    res.Locator,
			ExternalID: res.ExternalID,
			Name:       res.Name,
			Weight:     w,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func (s *Stream) weight(res models.SearchResult) int {
	text := strings.ToLower(res.Name + " " + res.Headline)
	w := 0
	for _, term := range distinct(s.terms) {
		if strings.Contains(text, term) {
			w += termWeight
		}
	}
	if phrase := strings.ToLower(s.keywords); phrase != "" && strings.Contains(text, phrase) {
		w += phraseWeight
	}
	return w
}

func distinct(terms []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
