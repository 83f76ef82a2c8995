package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/oseghale/riskradar/internal/model"
	"github.com/oseghale/riskradar/internal/store"
)

// CachedMatch is one organizational risk served from the industry
// layer, already mapped from the generic risk-domain scores.
type CachedMatch struct {
	RiskCode        string
	Category        string // matched cached key
	Score           int    // cached relevance 0..100
	Confidence      float64
	Reasoning       string
	LikelihoodDelta int
	ImpactDelta     int
}

// TwoLayer fronts both persistent cache layers with short-lived memory
// mirrors (promote-on-hit), so repeated lookups within one scan stay
// off the database.
type TwoLayer struct {
	industry store.IndustryCacheStore
	orgs     store.OrgCacheStore

	memIndustry *gocache.Cache
	memOrg      *gocache.Cache

	ttl              time.Duration
	minCategoryScore int
}

// NewTwoLayer creates the cache over the given persistent layers.
func NewTwoLayer(industry store.IndustryCacheStore, orgs store.OrgCacheStore, cfg model.CacheConfig) *TwoLayer {
	return &TwoLayer{
		industry:         industry,
		orgs:             orgs,
		memIndustry:      gocache.New(cfg.MemoryTTL, 10*time.Minute),
		memOrg:           gocache.New(cfg.MemoryTTL, 10*time.Minute),
		ttl:              cfg.TTL,
		minCategoryScore: cfg.MinCategoryScore,
	}
}

func industryMemKey(hash, institutionType string) string {
	return hash + "|" + strings.ToLower(institutionType)
}

// LookupIndustry returns the shared analysis for an event signature,
// if cached and fresh. A hit increments the entry's hit metering but
// never mutates the analysis. Infrastructure failures report a miss so
// the event proceeds to the next stage.
func (c *TwoLayer) LookupIndustry(ctx context.Context, contentHash, institutionType string, now time.Time) (*model.IndustryCacheEntry, bool) {
	memKey := industryMemKey(contentHash, institutionType)
	if v, found := c.memIndustry.Get(memKey); found {
		entry := v.(model.IndustryCacheEntry)
		c.recordHit(ctx, contentHash, institutionType)
		return &entry, true
	}

	entry, err := c.industry.Get(ctx, contentHash, institutionType, now)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("industry cache lookup failed, treating as miss", "error", err)
		}
		return nil, false
	}

	c.memIndustry.Set(memKey, *entry, gocache.DefaultExpiration)
	c.recordHit(ctx, contentHash, institutionType)
	return entry, true
}

func (c *TwoLayer) recordHit(ctx context.Context, contentHash, institutionType string) {
	if err := c.industry.RecordHit(ctx, contentHash, institutionType); err != nil {
		slog.Warn("industry cache hit metering failed", "error", err)
	}
}

// MapToRisks projects a generic cached analysis onto the
// organization's risk codes. A risk matches when its category
// fuzzy-matches a cached risk-domain key whose relevance score clears
// the minimum.
func (c *TwoLayer) MapToRisks(entry *model.IndustryCacheEntry, risks []model.Risk) []CachedMatch {
	var matches []CachedMatch
	for _, risk := range risks {
		key, ok := MatchCategory(risk.Category, entry.CategoryScores)
		if !ok {
			continue
		}
		relevance := entry.CategoryScores[key]
		if relevance < c.minCategoryScore {
			continue
		}

		likelihood := 0
		if relevance >= 75 {
			likelihood = 1
		}
		impact := 0
		if entry.SuggestedImpact == "high" {
			impact = 1
		}

		matches = append(matches, CachedMatch{
			RiskCode:        risk.Code,
			Category:        key,
			Score:           relevance,
			Confidence:      float64(relevance) / 100,
			Reasoning:       cachedReasoning(entry, key, relevance),
			LikelihoodDelta: likelihood,
			ImpactDelta:     impact,
		})
	}
	return matches
}

func cachedReasoning(entry *model.IndustryCacheEntry, key string, relevance int) string {
	if entry.Summary != "" {
		return fmt.Sprintf("%s (shared analysis, %s relevance %d/100)", entry.Summary, key, relevance)
	}
	return fmt.Sprintf("Shared industry analysis scored %s relevance %d/100 for this event.", key, relevance)
}

// LookupOrg returns the private risk-specific analysis if cached and
// fresh. Never reads across organizations: the key carries the org id.
func (c *TwoLayer) LookupOrg(ctx context.Context, eventID, orgID, riskCode string, now time.Time) (*model.OrgCacheEntry, bool) {
	memKey := eventID + "|" + orgID + "|" + riskCode
	if v, found := c.memOrg.Get(memKey); found {
		entry := v.(model.OrgCacheEntry)
		return &entry, true
	}

	entry, err := c.orgs.Get(ctx, eventID, orgID, riskCode, now)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("org cache lookup failed, treating as miss", "error", err)
		}
		return nil, false
	}

	c.memOrg.Set(memKey, *entry, gocache.DefaultExpiration)
	return entry, true
}

// StoreIndustry writes a fresh generalized analysis back to the shared
// layer, keyed so other organizations of the same institution type can
// reuse it before their own scan runs.
func (c *TwoLayer) StoreIndustry(ctx context.Context, entry model.IndustryCacheEntry, now time.Time) {
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.ttl)
	if err := c.industry.Put(ctx, entry); err != nil {
		slog.Warn("industry cache write failed", "error", err)
		return
	}
	c.memIndustry.Set(industryMemKey(entry.ContentHash, entry.InstitutionType), entry, gocache.DefaultExpiration)
}

// StoreOrg writes a risk-specific analysis to the private layer.
func (c *TwoLayer) StoreOrg(ctx context.Context, entry model.OrgCacheEntry, now time.Time) {
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.ttl)
	if err := c.orgs.Put(ctx, entry); err != nil {
		slog.Warn("org cache write failed", "error", err)
		return
	}
	c.memOrg.Set(entry.EventID+"|"+entry.OrganizationID+"|"+entry.RiskCode, entry, gocache.DefaultExpiration)
}
