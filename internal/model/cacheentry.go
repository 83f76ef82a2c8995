package model

import "time"

// IndustryCacheEntry is the shared classification cache record. It is
// keyed by an event content hash plus institution type, so every
// organization of the same type converges on one entry. The analysis
// fields are immutable once written; only the hit metering moves.
type IndustryCacheEntry struct {
	ContentHash     string         `json:"content_hash"`
	InstitutionType string         `json:"institution_type"`
	Summary         string         `json:"summary"`
	KeyThemes       []string       `json:"key_themes,omitempty"`
	CategoryScores  map[string]int `json:"category_scores"` // risk domain -> relevance 0..100
	SuggestedImpact string         `json:"suggested_impact,omitempty"`
	Confidence      float64        `json:"confidence"`
	HitCount        int            `json:"hit_count"`
	ReuseCount      int            `json:"reuse_count"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

// OrgCacheEntry is the private, risk-specific classification cache
// record. Never read across organizations.
type OrgCacheEntry struct {
	EventID         string    `json:"event_id"`
	OrganizationID  string    `json:"organization_id"`
	RiskCode        string    `json:"risk_code"`
	Reasoning       string    `json:"reasoning"`
	LikelihoodDelta int       `json:"likelihood_delta"`
	ImpactDelta     int       `json:"impact_delta"`
	Controls        []string  `json:"controls,omitempty"`
	Model           string    `json:"model,omitempty"`
	Confidence      float64   `json:"confidence"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}
