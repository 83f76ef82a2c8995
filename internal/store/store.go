// Package store persists pipeline state: organizations, risks, feed
// sources, ingested events, the dedup index, both classification cache
// layers, and advisory alerts.
//
// Two implementations exist: Postgres (production) and an in-memory
// store used for local runs and tests. All stores use upsert /
// conflict-ignore semantics as their concurrency control; two writers
// racing on the same key is tolerated, last writer wins.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/oseghale/riskradar/internal/model"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("store: not found")

// Store bundles all aggregate stores behind one handle.
type Store interface {
	Orgs() OrgStore
	Risks() RiskStore
	Sources() SourceStore
	Events() EventStore
	Dedup() DedupStore
	IndustryCache() IndustryCacheStore
	OrgCache() OrgCacheStore
	Alerts() AlertStore
	Close() error
}

// OrgStore resolves organizations for a scan run.
type OrgStore interface {
	Get(ctx context.Context, id string) (*model.Organization, error)
	GetByToken(ctx context.Context, token string) (*model.Organization, error)
	// First returns the first known organization, used for unattended
	// cron runs that carry no identity.
	First(ctx context.Context) (*model.Organization, error)
}

// RiskStore reads the external risk register.
type RiskStore interface {
	// Active returns risks in an "active" status (open, monitoring)
	// for one organization.
	Active(ctx context.Context, orgID string) ([]model.Risk, error)
}

// SourceStore holds configured content feeds.
type SourceStore interface {
	ListEnabled(ctx context.Context, orgID string) ([]model.Source, error)
	// RecordScanStats appends the latest scan outcome for a source.
	RecordScanStats(ctx context.Context, stats model.SourceScanStats) error
}

// EventStore persists ExternalEvents. (organization, url) is unique.
type EventStore interface {
	// ExistingURLs reports which of the given URLs are already stored
	// for the organization, in one batch query.
	ExistingURLs(ctx context.Context, orgID string, urls []string) (map[string]struct{}, error)
	// InsertBatch stores new events with conflict-ignore on
	// (organization, url) and returns the events actually stored,
	// with identities assigned.
	InsertBatch(ctx context.Context, events []model.ExternalEvent) ([]model.ExternalEvent, error)
	// SetFilterStatus records a stage verdict for one event.
	SetFilterStatus(ctx context.Context, eventID string, status model.FilterStatus, checked bool) error
	// IncrementRetry bumps the retry counter and returns the new value.
	IncrementRetry(ctx context.Context, eventID string) (int, error)
	// MarkFailed permanently excludes an event from future attempts.
	MarkFailed(ctx context.Context, eventID, reason string) error
	// Unchecked returns events awaiting classification: not yet
	// relevance-checked and under the retry ceiling.
	Unchecked(ctx context.Context, orgID string, maxRetries, limit int) ([]model.ExternalEvent, error)
	Get(ctx context.Context, eventID string) (*model.ExternalEvent, error)
}

// DedupStore is the expiring title-fingerprint index, scoped per
// organization.
type DedupStore interface {
	// GetByHash returns the organization's non-expired entry for a
	// title hash, or ErrNotFound.
	GetByHash(ctx context.Context, orgID, hash string, now time.Time) (*model.DedupEntry, error)
	// Recent returns up to limit of the organization's non-expired
	// entries, newest first, for fuzzy comparison.
	Recent(ctx context.Context, orgID string, limit int, now time.Time) ([]model.DedupEntry, error)
	// Insert stores a fingerprint, ignoring a conflicting hash.
	Insert(ctx context.Context, entry model.DedupEntry) error
}

// IndustryCacheStore is the shared classification cache layer.
type IndustryCacheStore interface {
	Get(ctx context.Context, contentHash, institutionType string, now time.Time) (*model.IndustryCacheEntry, error)
	// Put upserts an entry; analysis content is derived, so a racing
	// writer overwriting it is acceptable.
	Put(ctx context.Context, entry model.IndustryCacheEntry) error
	// RecordHit increments hit/reuse metering without touching the
	// analysis content.
	RecordHit(ctx context.Context, contentHash, institutionType string) error
}

// OrgCacheStore is the private, risk-specific cache layer.
type OrgCacheStore interface {
	Get(ctx context.Context, eventID, orgID, riskCode string, now time.Time) (*model.OrgCacheEntry, error)
	Put(ctx context.Context, entry model.OrgCacheEntry) error
}

// AlertStore persists advisory alerts.
type AlertStore interface {
	// Upsert inserts or overwrites the alert for (event, risk code)
	// and reports whether a new row was created.
	Upsert(ctx context.Context, alert model.RiskIntelligenceAlert) (bool, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.RiskIntelligenceAlert, error)
}

// Open selects a store implementation: Postgres when a database URL is
// configured, the in-memory store otherwise.
func Open(databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewMemory(), nil
	}
	return OpenPostgres(databaseURL)
}
