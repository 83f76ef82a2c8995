// Package score computes the pre-AI relevance score that gates entry
// to the expensive classification stage.
package score

import (
	"fmt"
	"strings"
	"time"

	"github.com/oseghale/riskradar/internal/model"
)

// criticalTerms short-circuit scoring entirely: catastrophic events
// must never be filtered out by normal scoring.
var criticalTerms = []string{
	"ransomware",
	"bank failure",
	"bank run",
	"regulatory fine",
	"license revoked",
	"data breach",
	"systemic crisis",
}

// categoryFamilies maps a risk category to the keyword family that
// signals it in event text.
var categoryFamilies = map[string][]string{
	"cyber":       {"cyber", "hack", "breach", "malware", "phishing", "ransomware", "ddos"},
	"credit":      {"credit", "default", "loan", "npl", "borrower", "debt"},
	"operational": {"outage", "downtime", "fraud", "process failure", "system failure"},
	"compliance":  {"regulat", "sanction", "fine", "aml", "kyc", "penalty", "directive"},
	"market":      {"market", "interest rate", "exchange rate", "volatility", "devaluation"},
	"liquidity":   {"liquidity", "withdrawal", "funding", "cash crunch", "deposit flight"},
	"reputation":  {"reputation", "scandal", "lawsuit", "public outcry", "backlash"},
	"strategic":   {"merger", "acquisition", "competitor", "market entry", "disruption"},
}

// industryFamilies maps a declared industry to terms whose presence in
// event text earns the flat industry bonus.
var industryFamilies = map[string][]string{
	"banking":          {"bank", "lender", "central bank", "cbn", "deposit", "financial institution"},
	"fintech":          {"fintech", "payment", "wallet", "mobile money", "digital bank"},
	"insurance":        {"insur", "underwrit", "claim", "premium", "actuar"},
	"microfinance":     {"microfinance", "mfb", "small loan", "cooperative"},
	"asset_management": {"asset manage", "fund", "portfolio", "securities", "custod"},
}

// sourceTiers is the fixed credibility lookup by source name.
var sourceTiers = map[string]int{
	"reuters":         10,
	"bloomberg":       10,
	"financial times": 10,
	"central bank":    10,
	"bbc":             7,
	"cnbc":            7,
	"techcrunch":      7,
	"local news":      5,
	"industry blog":   5,
}

const defaultCredibility = 3

// Signal is one transparent scoring component.
type Signal struct {
	Type        string `json:"type"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// Result is the scoring outcome for one event.
type Result struct {
	Score   int      `json:"score"`
	Pass    bool     `json:"pass"`
	Bypass  bool     `json:"bypass"` // critical-keyword short circuit
	Signals []Signal `json:"signals,omitempty"`
}

// Scorer computes additive relevance scores. Thresholds come from the
// organization where set, falling back to the configured default, and
// pre-filtering may be disabled entirely.
type Scorer struct {
	defaultThreshold int
	enabled          bool
}

// NewScorer creates a scorer.
func NewScorer(cfg model.ScoreConfig) *Scorer {
	return &Scorer{
		defaultThreshold: cfg.Threshold,
		enabled:          cfg.Enabled,
	}
}

// Calculate scores one event for one organization.
func (s *Scorer) Calculate(ev model.ExternalEvent, org *model.Organization, now time.Time) Result {
	text := strings.ToLower(ev.Title + " " + ev.Summary)

	for _, term := range criticalTerms {
		if strings.Contains(text, term) {
			return Result{
				Score:  100,
				Pass:   true,
				Bypass: true,
				Signals: []Signal{{
					Type:        "critical_keyword",
					Points:      100,
					Description: fmt.Sprintf("critical term %q", term),
				}},
			}
		}
	}

	var signals []Signal
	total := 0

	if pts, matched := keywordPoints(text, org.Keywords); pts > 0 {
		total += pts
		signals = append(signals, Signal{
			Type:        "keywords",
			Points:      pts,
			Description: fmt.Sprintf("%d keyword match(es)", matched),
		})
	}

	if pts, matched := categoryPoints(text, org.RiskCategories); pts > 0 {
		total += pts
		signals = append(signals, Signal{
			Type:        "categories",
			Points:      pts,
			Description: fmt.Sprintf("%d category match(es)", matched),
		})
	}

	if industryMatches(text, org.Industry) {
		total += 25
		signals = append(signals, Signal{
			Type:        "industry",
			Points:      25,
			Description: fmt.Sprintf("industry %q terms present", org.Industry),
		})
	}

	if pts := recencyPoints(ev.PublishedAt, now); pts > 0 {
		total += pts
		signals = append(signals, Signal{Type: "recency", Points: pts,
			Description: fmt.Sprintf("published %s ago", now.Sub(ev.PublishedAt).Round(time.Hour))})
	}

	cred := credibilityPoints(ev.SourceName)
	total += cred
	signals = append(signals, Signal{Type: "credibility", Points: cred,
		Description: fmt.Sprintf("source %q", ev.SourceName)})

	threshold := org.ScoreThreshold
	if threshold <= 0 {
		threshold = s.defaultThreshold
	}

	gated := s.enabled && org.PreFilterEnabled
	return Result{
		Score:   total,
		Pass:    !gated || total >= threshold,
		Signals: signals,
	}
}

// keywordPoints scores 10 per distinct keyword match, capped at 50.
func keywordPoints(text string, keywords []string) (int, int) {
	matched := 0
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" && strings.Contains(text, kw) {
			matched++
		}
	}
	pts := matched * 10
	if pts > 50 {
		pts = 50
	}
	return pts, matched
}

// categoryPoints scores 15 per matched category, capped at 45. A
// category matches directly by name or through its keyword family.
func categoryPoints(text string, categories []string) (int, int) {
	matched := 0
	for _, cat := range categories {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat == "" {
			continue
		}
		if strings.Contains(text, cat) {
			matched++
			continue
		}
		for family, terms := range categoryFamilies {
			if !strings.Contains(cat, family) {
				continue
			}
			for _, term := range terms {
				if strings.Contains(text, term) {
					matched++
					break
				}
			}
			break
		}
	}
	pts := matched * 15
	if pts > 45 {
		pts = 45
	}
	return pts, matched
}

func industryMatches(text, industry string) bool {
	terms, ok := industryFamilies[strings.ToLower(strings.TrimSpace(industry))]
	if !ok {
		return false
	}
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func recencyPoints(published, now time.Time) int {
	age := now.Sub(published)
	switch {
	case age < 24*time.Hour:
		return 10
	case age < 72*time.Hour:
		return 5
	default:
		return 0
	}
}

func credibilityPoints(sourceName string) int {
	name := strings.ToLower(strings.TrimSpace(sourceName))
	if pts, ok := sourceTiers[name]; ok {
		return pts
	}
	for key, pts := range sourceTiers {
		if strings.Contains(name, key) {
			return pts
		}
	}
	return defaultCredibility
}
