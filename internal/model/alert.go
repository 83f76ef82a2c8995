package model

import "time"

// AlertStatus is the human-driven lifecycle of an advisory alert. The
// pipeline only ever writes StatusPending; transitions belong to the
// risk-management UI.
type AlertStatus string

const (
	AlertPending  AlertStatus = "pending"
	AlertAccepted AlertStatus = "accepted"
	AlertRejected AlertStatus = "rejected"
	AlertExpired  AlertStatus = "expired"
)

// RiskIntelligenceAlert links one external event to one organizational
// risk. Unique per (EventID, RiskCode): re-analysis overwrites the
// advisory fields rather than duplicating the row.
type RiskIntelligenceAlert struct {
	ID              string      `json:"id"`
	OrganizationID  string      `json:"organization_id"`
	EventID         string      `json:"event_id"`
	RiskCode        string      `json:"risk_code"`
	Confidence      float64     `json:"confidence"` // 0..1
	LikelihoodDelta int         `json:"likelihood_delta"`
	ImpactDelta     int         `json:"impact_delta"`
	Reasoning       string      `json:"reasoning"`
	Controls        []string    `json:"controls,omitempty"`
	Model           string      `json:"model,omitempty"`
	Status          AlertStatus `json:"status"`
	AppliedToRisk   bool        `json:"applied_to_risk"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
