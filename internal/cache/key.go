// Package cache implements the two-layer classification cache: a
// shared industry layer keyed by event content hash and institution
// type, and a private organization layer keyed per (event, org, risk).
// Lookup order is strict: industry before org before the AI
// classifier. Analyses are immutable once written; staleness is
// handled purely by expiry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/oseghale/riskradar/internal/dedup"
)

// ContentHash derives the industry-cache key from an event's
// normalized title and source URL, so the same real-world story seen
// through different feeds of one outlet converges on one entry.
func ContentHash(title, sourceURL string) string {
	tokens := dedup.NormalizeTitle(title)
	h := sha256.Sum256([]byte(strings.Join(tokens, " ") + "|" + sourceURL))
	return hex.EncodeToString(h[:])
}

// categorySynonyms widens the fuzzy match between an organization's
// risk category names and the generic risk-domain keys of a cached
// analysis.
var categorySynonyms = map[string][]string{
	"cyber":       {"it", "infosec", "information security", "technology", "security", "data"},
	"compliance":  {"regulatory", "legal", "conduct", "aml"},
	"credit":      {"lending", "counterparty", "loan"},
	"market":      {"fx", "trading", "interest rate", "currency"},
	"operational": {"operations", "process", "ops", "business continuity"},
	"liquidity":   {"funding", "treasury", "cash"},
	"reputation":  {"reputational", "brand", "public relations"},
	"strategic":   {"strategy", "business model", "competition"},
}

// MatchCategory fuzzy-matches one risk category name against the
// cached risk-domain keys: substring match in either direction, then
// the synonym table.
func MatchCategory(riskCategory string, cachedKeys map[string]int) (string, bool) {
	cat := strings.ToLower(strings.TrimSpace(riskCategory))
	if cat == "" {
		return "", false
	}

	for key := range cachedKeys {
		if strings.Contains(cat, key) || strings.Contains(key, cat) {
			return key, true
		}
	}

	for key := range cachedKeys {
		for _, syn := range categorySynonyms[key] {
			if strings.Contains(cat, syn) {
				return key, true
			}
		}
	}

	return "", false
}
