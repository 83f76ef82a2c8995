package model

import "time"

// Organization is the tenant the pipeline runs for. Only the fields the
// pipeline consumes are modeled here; administration lives elsewhere.
type Organization struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	InstitutionType string   `json:"institution_type"` // e.g. "commercial_bank", shared-cache scope
	Industry        string   `json:"industry"`
	Regulators      []string `json:"regulators,omitempty"`

	// Scan tuning, per organization.
	Keywords          []string `json:"keywords,omitempty"`            // custom relevance keywords
	PreFilterKeywords []string `json:"pre_filter_keywords,omitempty"` // cheap intake gate
	RiskCategories    []string `json:"risk_categories,omitempty"`
	PreFilterEnabled  bool     `json:"pre_filter_enabled"`
	ScoreThreshold    int      `json:"score_threshold"`
}

// Risk is one entry of the organization's risk register, as consumed by
// the classifier. The register itself is an external collaborator.
type Risk struct {
	OrganizationID string `json:"organization_id"`
	Code           string `json:"code"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Category       string `json:"category"`
	Likelihood     int    `json:"likelihood"`
	Impact         int    `json:"impact"`
	Status         string `json:"status"` // open | monitoring | ...
}

// Source is one configured content feed.
type Source struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	Category       string `json:"category"`
	Enabled        bool   `json:"enabled"`
	MaxItems       int    `json:"max_items"`
}

// SourceScanStats is the append-style stats record written after each
// scan of a source. One scan owns one source's stats row per run.
type SourceScanStats struct {
	SourceID      string    `json:"source_id"`
	ScannedAt     time.Time `json:"scanned_at"`
	LastStatus    int       `json:"last_status"`
	LastError     string    `json:"last_error,omitempty"`
	ItemsFound    int       `json:"items_found"`
	ItemsAccepted int       `json:"items_accepted"`
}
