package model

import "time"

// FilterStatus records the verdict of the last pipeline stage that
// touched an event. Events are never deleted; the status trail is the
// audit record of why an item did or did not reach analysis.
type FilterStatus string

const (
	StatusUnfiltered        FilterStatus = "unfiltered"
	StatusFilteredLowScore  FilterStatus = "filtered_low_relevance"
	StatusFilteredDuplicate FilterStatus = "filtered_duplicate"
	StatusCached            FilterStatus = "cached"
	StatusAnalyzed          FilterStatus = "analyzed"
)

// FeedItem is one normalized entry parsed out of a syndication feed,
// before any filtering or storage.
type FeedItem struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
	Source    string    `json:"source"`   // source name, for credibility lookup
	Category  string    `json:"category"` // source category tag
}

// ExternalEvent is a stored ingested item. (OrganizationID, URL) is
// unique: re-fetching the same link never creates a second event.
type ExternalEvent struct {
	ID               string       `json:"id"`
	OrganizationID   string       `json:"organization_id"`
	Title            string       `json:"title"`
	Summary          string       `json:"summary"`
	URL              string       `json:"url"`
	SourceName       string       `json:"source_name"`
	Category         string       `json:"category"`
	PublishedAt      time.Time    `json:"published_at"`
	FetchedAt        time.Time    `json:"fetched_at"`
	FilterStatus     FilterStatus `json:"filter_status"`
	RelevanceChecked bool         `json:"relevance_checked"`
	RetryCount       int          `json:"retry_count"`
	FailureReason    string       `json:"failure_reason,omitempty"`
}

// DedupEntry is a stored title fingerprint, scoped per organization so
// one tenant's sightings never suppress another's (the shared analysis
// cache handles cross-tenant reuse). One entry per distinct title hash
// per organization; entries past ExpiresAt are ignored by lookups.
type DedupEntry struct {
	OrganizationID string    `json:"organization_id"`
	TitleHash      string    `json:"title_hash"`
	Tokens         []string  `json:"tokens"`
	SourceDomain   string    `json:"source_domain"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
