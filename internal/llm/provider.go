// Package llm invokes an external language model to map external
// events onto an organization's risk register. Model responses are
// parsed at this boundary into a strict tagged result; unvalidated
// JSON never flows past this package.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/oseghale/riskradar/internal/model"
)

// ClassifyRequest is the classifier input: the event, the
// organization's institution context, and its active risks.
type ClassifyRequest struct {
	Event        model.ExternalEvent
	Organization model.Organization
	Risks        []model.Risk
}

// RiskMatch is one risk the model considers affected by the event.
type RiskMatch struct {
	RiskCode        string   `json:"risk_code"`
	Reasoning       string   `json:"reasoning"`
	LikelihoodDelta int      `json:"likelihood_delta"` // -2..+2
	ImpactDelta     int      `json:"impact_delta"`     // -2..+2
	Controls        []string `json:"controls"`         // 2..4 suggestions
	Confidence      int      `json:"confidence"`       // 0..100
}

// Classification is the tagged classifier result. Relevant=false means
// no risk matches; a malformed model response also lands here rather
// than as an error.
type Classification struct {
	Relevant bool
	Matches  []RiskMatch

	// Generalized analysis, reusable across organizations of the same
	// institution type via the industry cache.
	Summary         string
	KeyThemes       []string
	CategoryScores  map[string]int // risk domain -> relevance 0..100
	SuggestedImpact string
	Confidence      int
	Model           string
}

// Provider is an AI classifier backend.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Classify determines which organizational risks an event affects.
	Classify(ctx context.Context, req ClassifyRequest) (*Classification, error)

	// IsAvailable checks whether the provider is configured and
	// reachable.
	IsAvailable(ctx context.Context) bool
}

// NewProvider creates a classifier backend from configuration.
func NewProvider(cfg model.LLMConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai)", cfg.Provider)
	}
}

// BuildPrompt constructs the classification prompt. The model is asked
// for strict JSON matching the wire schema parsed in parse.go.
func BuildPrompt(req ClassifyRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Assess whether the news event below affects any of the organization's risks.

Organization: %s
Institution type: %s
Industry: %s
`, req.Organization.Name, req.Organization.InstitutionType, req.Organization.Industry)

	if len(req.Organization.Regulators) > 0 {
		fmt.Fprintf(&b, "Regulators: %s\n", strings.Join(req.Organization.Regulators, ", "))
	}

	b.WriteString("\nRisk register (only these codes are valid):\n")
	for _, r := range req.Risks {
		fmt.Fprintf(&b, "- %s: %s [%s]\n", r.Code, r.Title, r.Category)
	}

	fmt.Fprintf(&b, `
Event:
Title: %s
Summary: %s
Source: %s
Published: %s

Respond with JSON only, no prose, in this exact shape:
{
  "relevant": true|false,
  "summary": "one-sentence generalized summary of the event",
  "key_themes": ["..."],
  "category_scores": {"cyber": 0-100, "credit": 0-100, "operational": 0-100, "compliance": 0-100, "market": 0-100, "liquidity": 0-100, "reputation": 0-100, "strategic": 0-100},
  "suggested_impact": "low|medium|high",
  "confidence": 0-100,
  "matches": [
    {
      "risk_code": "one of the codes above",
      "reasoning": "why this event affects this risk",
      "likelihood_delta": -2 to 2,
      "impact_delta": -2 to 2,
      "controls": ["2 to 4 suggested controls"],
      "confidence": 0-100
    }
  ]
}

If the event affects none of the risks, return {"relevant": false} with the generalized fields filled in and an empty matches array.`,
		req.Event.Title, req.Event.Summary, req.Event.SourceName,
		req.Event.PublishedAt.Format("2006-01-02"))

	return b.String()
}
