package source

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"city-pulse/internal/domain"
)

var ErrNotFound = errors.New("source not found")

// Registry is the static catalog of ingestable sources. It is built once at
// process start and read-only afterward.
type Registry struct {
	byID  map[string]domain.Source
	order []string
}

// Defaults is the built-in catalog. Thresholds reflect each upstream's
// publishing cadence, not a uniform freshness policy.
func Defaults() []domain.Source {
	return []domain.Source{
		{ID: "transit-alerts", DisplayName: "Transit Alerts", Threshold: 6 * time.Hour, IngestRef: "ingest.transit-alerts"},
		{ID: "city-news", DisplayName: "City News", Threshold: 12 * time.Hour, IngestRef: "ingest.city-news"},
		{ID: "community-events", DisplayName: "Community Events", Threshold: 24 * time.Hour, IngestRef: "ingest.community-events"},
		{ID: "housing-listings", DisplayName: "Housing Listings", Threshold: 24 * time.Hour, IngestRef: "ingest.housing-listings"},
		{ID: "weather-advisories", DisplayName: "Weather Advisories", Threshold: 3 * time.Hour, IngestRef: "ingest.weather-advisories"},
	}
}

// NewRegistry builds a registry from the given sources, applying per-source
// threshold overrides by id. Unknown override ids are ignored.
func NewRegistry(sources []domain.Source, overrides map[string]time.Duration) *Registry {
	r := &Registry{byID: make(map[string]domain.Source, len(sources))}
	for _, s := range sources {
		if s.ID == "" {
			continue
		}
		if _, dup := r.byID[s.ID]; dup {
			continue
		}
		if t, ok := overrides[s.ID]; ok && t > 0 {
			s.Threshold = t
		}
		r.byID[s.ID] = s
		r.order = append(r.order, s.ID)
	}
	sort.Strings(r.order)
	return r
}

func (r *Registry) List() []domain.Source {
	if r == nil {
		return nil
	}
	out := make([]domain.Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) Get(id string) (domain.Source, error) {
	if r == nil {
		return domain.Source{}, ErrNotFound
	}
	s, ok := r.byID[id]
	if !ok {
		return domain.Source{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}
