package orchestrator

import (
	"sort"
	"time"

	"city-pulse/internal/domain"
)

// Rules is one source's scoring rule set. Scores land in [0, 100]:
// recency contributes up to 40, field completeness up to 40, signal
// strength up to 20.
type Rules struct {
	// MinScore excludes items scoring below it from selection. Excluded
	// items stay counted in ItemsEvaluated so the yield ratio is visible.
	MinScore float64
	// FreshWindow is the age within which an item earns full recency
	// credit; credit decays linearly to zero at twice the window.
	FreshWindow time.Duration
	RequireBody bool
	RequireURL  bool
}

func defaultRules() Rules {
	return Rules{MinScore: 35, FreshWindow: 24 * time.Hour, RequireBody: true, RequireURL: true}
}

// DefaultRuleSets returns the per-source rule sets. Alert-style sources
// weigh recency harder and don't demand long bodies.
func DefaultRuleSets() map[string]Rules {
	return map[string]Rules{
		"transit-alerts":     {MinScore: 30, FreshWindow: 6 * time.Hour, RequireBody: false, RequireURL: false},
		"weather-advisories": {MinScore: 30, FreshWindow: 3 * time.Hour, RequireBody: false, RequireURL: false},
		"city-news":          {MinScore: 40, FreshWindow: 24 * time.Hour, RequireBody: true, RequireURL: true},
		"community-events":   {MinScore: 35, FreshWindow: 48 * time.Hour, RequireBody: false, RequireURL: true},
		"housing-listings":   {MinScore: 40, FreshWindow: 48 * time.Hour, RequireBody: true, RequireURL: true},
	}
}

const (
	IssueNoItems         = "no-items"
	IssueNoItemsSelected = "no-items-selected"
)

// Scorer deduplicates and scores ingested items per source.
type Scorer struct {
	rules map[string]Rules
	now   func() time.Time
}

func NewScorer(rules map[string]Rules) *Scorer {
	return &Scorer{rules: rules, now: time.Now}
}

// Score evaluates every source's items and returns one report per source,
// ordered by source id. Duplicates share a source-scoped external id; the
// most recently seen version wins.
func (s *Scorer) Score(itemsBySource map[string][]domain.ContentItem) []domain.QualityReport {
	out := make([]domain.QualityReport, 0, len(itemsBySource))
	for sourceID, items := range itemsBySource {
		out = append(out, s.scoreSource(sourceID, items))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

func (s *Scorer) scoreSource(sourceID string, items []domain.ContentItem) domain.QualityReport {
	report := domain.QualityReport{
		SourceID:       sourceID,
		ItemsEvaluated: len(items),
		Issues:         []string{},
	}
	if len(items) == 0 {
		report.Issues = append(report.Issues, IssueNoItems)
		return report
	}

	rules, ok := s.rules[sourceID]
	if !ok {
		rules = defaultRules()
	}

	// Last-write-wins dedup by external id, preserving first-seen order.
	unique := make([]domain.ContentItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if pos, seen := index[it.ExternalID]; seen {
			unique[pos] = it
			continue
		}
		index[it.ExternalID] = len(unique)
		unique = append(unique, it)
	}
	report.DuplicatesRemoved = len(items) - len(unique)

	now := s.now().UTC()
	var sum float64
	for _, it := range unique {
		score := s.scoreItem(it, rules, now)
		if score < rules.MinScore {
			continue
		}
		report.ItemsSelected++
		sum += score
	}

	if report.ItemsSelected == 0 {
		report.AverageScore = 0
		report.Issues = append(report.Issues, IssueNoItemsSelected)
		return report
	}
	report.AverageScore = sum / float64(report.ItemsSelected)
	return report
}

func (s *Scorer) scoreItem(it domain.ContentItem, rules Rules, now time.Time) float64 {
	var score float64

	// Recency: full credit inside the window, linear decay to zero at 2x.
	at := it.IngestedAt
	if it.PublishedAt != nil {
		at = *it.PublishedAt
	}
	age := now.Sub(at.UTC())
	window := rules.FreshWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	switch {
	case age <= window:
		score += 40
	case age < 2*window:
		score += 40 * (1 - float64(age-window)/float64(window))
	}

	// Completeness of required fields.
	var have, want float64 = 0, 1
	if it.Title != "" {
		have++
	}
	if rules.RequireBody {
		want++
		if it.Body != "" {
			have++
		}
	}
	if rules.RequireURL {
		want++
		if it.URL != "" {
			have++
		}
	}
	score += 40 * (have / want)

	// Signal strength, clamped to [0, 1].
	sig := it.Signal
	if sig < 0 {
		sig = 0
	}
	if sig > 1 {
		sig = 1
	}
	score += 20 * sig

	return score
}
