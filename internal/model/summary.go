package model

// ScanStats is the per-stage breakdown of one pipeline invocation.
type ScanStats struct {
	FilteredLanguage int `json:"filtered_language"`
	FilteredAge      int `json:"filtered_age"`
	FilteredKeyword  int `json:"filtered_keyword"`
	Deduplicated     int `json:"deduplicated"`
	FilteredLowScore int `json:"filtered_low_relevance"`
	CacheHits        int `json:"cache_hits"`
	AIAnalyzed       int `json:"ai_analyzed"`
	Errors           int `json:"errors"`
}

// ScanSummary is the structured result of one scan invocation. It is
// always populated, even on partial failure; Success is false only for
// environment-level failures where no work was meaningful.
type ScanSummary struct {
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	OrganizationID  string    `json:"organization_id"`
	InstitutionType string    `json:"institution_type"`
	FeedsProcessed  int       `json:"feeds_processed"`
	FeedsConfigured int       `json:"feeds_configured"`
	ItemsFound      int       `json:"items_found"`
	EventsStored    int       `json:"events_stored"`
	AlertsCreated   int       `json:"alerts_created"`
	Stats           ScanStats `json:"stats"`
}
