// Package dedup flags near-duplicate titles within a trailing window.
// The common case is an O(1) exact hash lookup; only hash misses pay
// for Jaccard comparison against a bounded recent window.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/oseghale/riskradar/internal/model"
	"github.com/oseghale/riskradar/internal/store"
)

// stopWords are dropped during title normalization.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {},
	"this": {}, "are": {}, "was": {}, "were": {}, "has": {}, "have": {},
	"had": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"after": {}, "before": {}, "over": {}, "under": {}, "into": {},
	"about": {}, "amid": {}, "its": {}, "their": {}, "his": {}, "her": {},
	"says": {}, "said": {}, "new": {}, "not": {}, "but": {}, "out": {},
}

// Verdict is one title's duplicate check result.
type Verdict struct {
	Duplicate   bool
	Similarity  float64
	MatchedHash string
}

// Detector checks titles against the persistent dedup index, with an
// in-memory hot mirror so same-batch near-duplicates are caught
// without a round trip.
type Detector struct {
	index     store.DedupStore
	hot       *gocache.Cache
	ttl       time.Duration
	threshold float64
	window    int
}

// NewDetector creates a detector over the given index.
func NewDetector(index store.DedupStore, cfg model.DedupConfig) *Detector {
	return &Detector{
		index:     index,
		hot:       gocache.New(cfg.TTL, 10*time.Minute),
		ttl:       cfg.TTL,
		threshold: cfg.SimilarityThreshold,
		window:    cfg.RecentWindow,
	}
}

// Check decides whether a title duplicates one the organization saw in
// the trailing window, and on a miss records its fingerprint so a
// later near-duplicate in the same batch is still caught. Index
// failures fail open: the item proceeds rather than being silently
// dropped.
func (d *Detector) Check(ctx context.Context, orgID, title, sourceDomain string, now time.Time) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	tokens := NormalizeTitle(title)
	if len(tokens) == 0 {
		return Verdict{}, nil
	}
	hash := HashTokens(tokens)
	hotKey := orgID + "|" + hash

	// Exact path: hot mirror first, then the persistent index.
	if _, found := d.hot.Get(hotKey); found {
		return Verdict{Duplicate: true, Similarity: 1.0, MatchedHash: hash}, nil
	}
	entry, err := d.index.GetByHash(ctx, orgID, hash, now)
	if err == nil && entry != nil {
		d.hot.Set(hotKey, entry.Tokens, gocache.DefaultExpiration)
		return Verdict{Duplicate: true, Similarity: 1.0, MatchedHash: hash}, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("dedup index lookup failed, proceeding", "error", err)
		return Verdict{}, nil
	}

	// Fuzzy path: bounded comparison over the recent window.
	recent, err := d.index.Recent(ctx, orgID, d.window, now)
	if err != nil {
		slog.Warn("dedup recent window failed, proceeding", "error", err)
		recent = nil
	}
	for _, candidate := range recent {
		sim := Jaccard(tokens, candidate.Tokens)
		if sim >= d.threshold {
			return Verdict{Duplicate: true, Similarity: sim, MatchedHash: candidate.TitleHash}, nil
		}
	}

	newEntry := model.DedupEntry{
		OrganizationID: orgID,
		TitleHash:      hash,
		Tokens:         tokens,
		SourceDomain:   sourceDomain,
		CreatedAt:      now,
		ExpiresAt:      now.Add(d.ttl),
	}
	if err := d.index.Insert(ctx, newEntry); err != nil {
		slog.Warn("dedup index insert failed", "error", err)
	}
	d.hot.Set(hotKey, tokens, gocache.DefaultExpiration)

	return Verdict{}, nil
}

// NormalizeTitle lower-cases, strips punctuation, tokenizes on
// whitespace, and drops short tokens and stop words. The returned
// slice is sorted and deduplicated.
func NormalizeTitle(title string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, title)

	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		seen[tok] = struct{}{}
	}

	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// HashTokens computes the stable fingerprint of a normalized token
// list.
func HashTokens(tokens []string) string {
	h := sha256.Sum256([]byte(strings.Join(tokens, " ")))
	return hex.EncodeToString(h[:])
}

// Jaccard computes |intersection| / |union| of two token sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}

	intersection := 0
	union := len(setA)
	seenB := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seenB[t]; dup {
			continue
		}
		seenB[t] = struct{}{}
		if _, ok := setA[t]; ok {
			intersection++
		} else {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
