package llm

import (
	"encoding/json"
	"strings"
)

// wireResponse is the duck-typed shape the model is asked to emit. It
// exists only inside this file; everything leaving Parse has been
// validated and clamped.
type wireResponse struct {
	Relevant        bool           `json:"relevant"`
	Summary         string         `json:"summary"`
	KeyThemes       []string       `json:"key_themes"`
	CategoryScores  map[string]int `json:"category_scores"`
	SuggestedImpact string         `json:"suggested_impact"`
	Confidence      int            `json:"confidence"`
	Matches         []struct {
		RiskCode        string   `json:"risk_code"`
		Reasoning       string   `json:"reasoning"`
		LikelihoodDelta int      `json:"likelihood_delta"`
		ImpactDelta     int      `json:"impact_delta"`
		Controls        []string `json:"controls"`
		Confidence      int      `json:"confidence"`
	} `json:"matches"`
}

// Parse converts raw model output into a Classification. Anything
// malformed or unparsable degrades to NotRelevant: a conservative
// false negative is safer than failing a batch over one bad response.
func Parse(raw string, validRiskCodes map[string]struct{}) *Classification {
	notRelevant := &Classification{Relevant: false}

	payload := extractJSON(raw)
	if payload == "" {
		return notRelevant
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return notRelevant
	}

	result := &Classification{
		Summary:         strings.TrimSpace(wire.Summary),
		KeyThemes:       wire.KeyThemes,
		CategoryScores:  clampScores(wire.CategoryScores),
		SuggestedImpact: normalizeImpact(wire.SuggestedImpact),
		Confidence:      clamp(wire.Confidence, 0, 100),
	}

	for _, m := range wire.Matches {
		if _, ok := validRiskCodes[m.RiskCode]; !ok {
			continue // the model invented a code; drop it
		}
		if strings.TrimSpace(m.Reasoning) == "" {
			continue
		}
		controls := m.Controls
		if len(controls) > 4 {
			controls = controls[:4]
		}
		result.Matches = append(result.Matches, RiskMatch{
			RiskCode:        m.RiskCode,
			Reasoning:       strings.TrimSpace(m.Reasoning),
			LikelihoodDelta: clamp(m.LikelihoodDelta, -2, 2),
			ImpactDelta:     clamp(m.ImpactDelta, -2, 2),
			Controls:        controls,
			Confidence:      clamp(m.Confidence, 0, 100),
		})
	}

	result.Relevant = wire.Relevant && len(result.Matches) > 0
	return result
}

// extractJSON pulls the outermost JSON object out of the response,
// tolerating code fences and surrounding prose.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if fenced := strings.Index(raw, "```"); fenced >= 0 {
		raw = raw[fenced+3:]
		raw = strings.TrimPrefix(raw, "json")
		if end := strings.Index(raw, "```"); end >= 0 {
			raw = raw[:end]
		}
		raw = strings.TrimSpace(raw)
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func clampScores(scores map[string]int) map[string]int {
	if len(scores) == 0 {
		return nil
	}
	out := make(map[string]int, len(scores))
	for k, v := range scores {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out[k] = clamp(v, 0, 100)
	}
	return out
}

func normalizeImpact(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "medium", "high":
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return ""
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
