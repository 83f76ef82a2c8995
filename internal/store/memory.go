package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oseghale/riskradar/internal/model"
)

// Memory is an in-memory Store. It backs local runs without a database
// URL and the test suite. All methods are safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	orgs    map[string]model.Organization
	tokens  map[string]string // token -> org id
	risks   map[string][]model.Risk
	sources map[string][]model.Source
	stats   []model.SourceScanStats

	events   map[string]model.ExternalEvent // id -> event
	eventURL map[string]string              // orgID|url -> id

	dedup      []model.DedupEntry
	dedupByKey map[string]int // orgID|hash -> index

	industry map[string]model.IndustryCacheEntry // hash|type -> entry
	orgCache map[string]model.OrgCacheEntry      // event|org|risk -> entry

	alerts map[string]model.RiskIntelligenceAlert // event|risk -> alert
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		orgs:       make(map[string]model.Organization),
		tokens:     make(map[string]string),
		risks:      make(map[string][]model.Risk),
		sources:    make(map[string][]model.Source),
		events:     make(map[string]model.ExternalEvent),
		eventURL:   make(map[string]string),
		dedupByKey: make(map[string]int),
		industry:   make(map[string]model.IndustryCacheEntry),
		orgCache:   make(map[string]model.OrgCacheEntry),
		alerts:     make(map[string]model.RiskIntelligenceAlert),
	}
}

func (m *Memory) Orgs() OrgStore                    { return (*memOrgs)(m) }
func (m *Memory) Risks() RiskStore                  { return (*memRisks)(m) }
func (m *Memory) Sources() SourceStore              { return (*memSources)(m) }
func (m *Memory) Events() EventStore                { return (*memEvents)(m) }
func (m *Memory) Dedup() DedupStore                 { return (*memDedup)(m) }
func (m *Memory) IndustryCache() IndustryCacheStore { return (*memIndustry)(m) }
func (m *Memory) OrgCache() OrgCacheStore           { return (*memOrgCache)(m) }
func (m *Memory) Alerts() AlertStore                { return (*memAlerts)(m) }
func (m *Memory) Close() error                      { return nil }

// Seed helpers for tests and local fixtures.

// AddOrganization registers an organization, optionally bound to an
// auth token.
func (m *Memory) AddOrganization(org model.Organization, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.ID] = org
	if token != "" {
		m.tokens[token] = org.ID
	}
}

// AddRisk appends a risk register entry.
func (m *Memory) AddRisk(r model.Risk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.risks[r.OrganizationID] = append(m.risks[r.OrganizationID], r)
}

// AddSource registers a content feed.
func (m *Memory) AddSource(s model.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[s.OrganizationID] = append(m.sources[s.OrganizationID], s)
}

// ScanStats returns recorded source stats, newest last.
func (m *Memory) ScanStats() []model.SourceScanStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.SourceScanStats, len(m.stats))
	copy(out, m.stats)
	return out
}

type memOrgs Memory

func (m *memOrgs) Get(_ context.Context, id string) (*model.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &org, nil
}

func (m *memOrgs) GetByToken(_ context.Context, token string) (*model.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	org := m.orgs[id]
	return &org, nil
}

func (m *memOrgs) First(_ context.Context) (*model.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.orgs) == 0 {
		return nil, ErrNotFound
	}
	ids := make([]string, 0, len(m.orgs))
	for id := range m.orgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	org := m.orgs[ids[0]]
	return &org, nil
}

type memRisks Memory

func (m *memRisks) Active(_ context.Context, orgID string) ([]model.Risk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Risk
	for _, r := range m.risks[orgID] {
		switch r.Status {
		case "open", "monitoring":
			out = append(out, r)
		}
	}
	return out, nil
}

type memSources Memory

func (m *memSources) ListEnabled(_ context.Context, orgID string) ([]model.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Source
	for _, s := range m.sources[orgID] {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSources) RecordScanStats(_ context.Context, stats model.SourceScanStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, stats)
	return nil
}

type memEvents Memory

func eventKey(orgID, url string) string { return orgID + "|" + url }

func (m *memEvents) ExistingURLs(_ context.Context, orgID string, urls []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{})
	for _, u := range urls {
		if _, ok := m.eventURL[eventKey(orgID, u)]; ok {
			out[u] = struct{}{}
		}
	}
	return out, nil
}

func (m *memEvents) InsertBatch(_ context.Context, events []model.ExternalEvent) ([]model.ExternalEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored []model.ExternalEvent
	for _, ev := range events {
		key := eventKey(ev.OrganizationID, ev.URL)
		if _, ok := m.eventURL[key]; ok {
			continue // conflict-ignore on (organization, url)
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		m.events[ev.ID] = ev
		m.eventURL[key] = ev.ID
		stored = append(stored, ev)
	}
	return stored, nil
}

func (m *memEvents) SetFilterStatus(_ context.Context, eventID string, status model.FilterStatus, checked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return ErrNotFound
	}
	ev.FilterStatus = status
	ev.RelevanceChecked = checked
	m.events[eventID] = ev
	return nil
}

func (m *memEvents) IncrementRetry(_ context.Context, eventID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return 0, ErrNotFound
	}
	ev.RetryCount++
	m.events[eventID] = ev
	return ev.RetryCount, nil
}

func (m *memEvents) MarkFailed(_ context.Context, eventID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return ErrNotFound
	}
	ev.RelevanceChecked = true
	ev.FailureReason = reason
	m.events[eventID] = ev
	return nil
}

func (m *memEvents) Unchecked(_ context.Context, orgID string, maxRetries, limit int) ([]model.ExternalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ExternalEvent
	for _, ev := range m.events {
		if ev.OrganizationID != orgID || ev.RelevanceChecked || ev.RetryCount >= maxRetries {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FetchedAt.Before(out[j].FetchedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memEvents) Get(_ context.Context, eventID string) (*model.ExternalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	return &ev, nil
}

type memDedup Memory

func dedupKey(orgID, hash string) string { return orgID + "|" + hash }

func (m *memDedup) GetByHash(_ context.Context, orgID, hash string, now time.Time) (*model.DedupEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.dedupByKey[dedupKey(orgID, hash)]
	if !ok {
		return nil, ErrNotFound
	}
	entry := m.dedup[idx]
	if now.After(entry.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *memDedup) Recent(_ context.Context, orgID string, limit int, now time.Time) ([]model.DedupEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.DedupEntry
	for i := len(m.dedup) - 1; i >= 0 && len(out) < limit; i-- {
		if m.dedup[i].OrganizationID != orgID || now.After(m.dedup[i].ExpiresAt) {
			continue
		}
		out = append(out, m.dedup[i])
	}
	return out, nil
}

func (m *memDedup) Insert(_ context.Context, entry model.DedupEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dedupKey(entry.OrganizationID, entry.TitleHash)
	if _, ok := m.dedupByKey[key]; ok {
		return nil // one entry per distinct title hash per org
	}
	m.dedup = append(m.dedup, entry)
	m.dedupByKey[key] = len(m.dedup) - 1
	return nil
}

type memIndustry Memory

func industryKey(hash, institutionType string) string {
	return hash + "|" + strings.ToLower(institutionType)
}

func (m *memIndustry) Get(_ context.Context, contentHash, institutionType string, now time.Time) (*model.IndustryCacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.industry[industryKey(contentHash, institutionType)]
	if !ok || now.After(entry.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *memIndustry) Put(_ context.Context, entry model.IndustryCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.industry[industryKey(entry.ContentHash, entry.InstitutionType)] = entry
	return nil
}

func (m *memIndustry) RecordHit(_ context.Context, contentHash, institutionType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := industryKey(contentHash, institutionType)
	entry, ok := m.industry[key]
	if !ok {
		return ErrNotFound
	}
	entry.HitCount++
	entry.ReuseCount++
	m.industry[key] = entry
	return nil
}

type memOrgCache Memory

func orgCacheKey(eventID, orgID, riskCode string) string {
	return eventID + "|" + orgID + "|" + riskCode
}

func (m *memOrgCache) Get(_ context.Context, eventID, orgID, riskCode string, now time.Time) (*model.OrgCacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.orgCache[orgCacheKey(eventID, orgID, riskCode)]
	if !ok || now.After(entry.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *memOrgCache) Put(_ context.Context, entry model.OrgCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgCache[orgCacheKey(entry.EventID, entry.OrganizationID, entry.RiskCode)] = entry
	return nil
}

type memAlerts Memory

func alertKey(eventID, riskCode string) string { return eventID + "|" + riskCode }

func (m *memAlerts) Upsert(_ context.Context, alert model.RiskIntelligenceAlert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := alertKey(alert.EventID, alert.RiskCode)
	existing, ok := m.alerts[key]
	if ok {
		// Overwrite advisory fields; status and applied_to_risk are
		// human-owned and preserved.
		existing.Confidence = alert.Confidence
		existing.LikelihoodDelta = alert.LikelihoodDelta
		existing.ImpactDelta = alert.ImpactDelta
		existing.Reasoning = alert.Reasoning
		existing.Controls = alert.Controls
		existing.Model = alert.Model
		existing.UpdatedAt = alert.UpdatedAt
		m.alerts[key] = existing
		return false, nil
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	m.alerts[key] = alert
	return true, nil
}

func (m *memAlerts) ListByEvent(_ context.Context, eventID string) ([]model.RiskIntelligenceAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.RiskIntelligenceAlert
	for _, a := range m.alerts {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RiskCode < out[j].RiskCode })
	return out, nil
}
