package domain

import "time"

// Source is a catalog entry for one external upstream feed. Entries are
// built at process start and never mutated at runtime.
type Source struct {
	ID          string
	DisplayName string
	Threshold   time.Duration
	IngestRef   string
}

// ContentItem is one ingested unit of content, keyed per source by the
// upstream's external identifier.
type ContentItem struct {
	SourceID    string
	ExternalID  string
	Title       string
	Body        string
	URL         string
	Signal      float64
	PublishedAt *time.Time
	IngestedAt  time.Time
}
