package score

import (
	"testing"
	"time"

	"github.com/oseghale/riskradar/internal/model"
)

func testOrg() *model.Organization {
	return &model.Organization{
		ID:               "org-1",
		Industry:         "banking",
		Keywords:         []string{"fraud", "outage", "fine"},
		RiskCategories:   []string{"cyber", "compliance"},
		PreFilterEnabled: true,
	}
}

func testScorer() *Scorer {
	return NewScorer(model.ScoreConfig{Threshold: 30, Enabled: true})
}

func TestScorer_CriticalKeywordBypass(t *testing.T) {
	now := time.Now().UTC()
	s := testScorer()

	// Organization with nothing configured: the bypass must not depend
	// on keywords, categories, or thresholds.
	org := &model.Organization{ID: "org-1", PreFilterEnabled: true, ScoreThreshold: 90}

	for _, title := range []string{
		"Ransomware gang hits logistics firm",
		"Analysts warn of possible bank run at regional lender",
		"Authorities confirm major data breach at retailer",
	} {
		ev := model.ExternalEvent{Title: title, PublishedAt: now}
		got := s.Calculate(ev, org, now)
		if !got.Bypass {
			t.Errorf("%q: Bypass = false, want true", title)
		}
		if !got.Pass || got.Score != 100 {
			t.Errorf("%q: Pass=%v Score=%d, want Pass=true Score=100", title, got.Pass, got.Score)
		}
	}
}

func TestScorer_AdditiveSignals(t *testing.T) {
	now := time.Now().UTC()
	s := testScorer()
	org := testOrg()

	ev := model.ExternalEvent{
		Title:       "Regulator investigates payment fraud at commercial bank",
		Summary:     "A phishing campaign triggered the probe.",
		SourceName:  "Reuters",
		PublishedAt: now.Add(-2 * time.Hour),
	}

	got := s.Calculate(ev, org, now)
	// fraud keyword (10) + cyber via phishing + compliance via regulat
	// (30) + banking industry (25) + recency <24h (10) + reuters (10).
	want := 10 + 30 + 25 + 10 + 10
	if got.Score != want {
		t.Errorf("Score = %d, want %d (signals: %+v)", got.Score, want, got.Signals)
	}
	if !got.Pass {
		t.Error("expected pass above threshold")
	}
	if got.Bypass {
		t.Error("no critical term present, Bypass must be false")
	}
}

func TestScorer_KeywordCap(t *testing.T) {
	now := time.Now().UTC()
	s := testScorer()
	org := &model.Organization{
		ID:               "org-1",
		Keywords:         []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"},
		PreFilterEnabled: true,
	}

	ev := model.ExternalEvent{
		Title:       "alpha beta gamma delta epsilon zeta eta all present",
		SourceName:  "unknown outlet",
		PublishedAt: now.Add(-200 * time.Hour),
	}

	got := s.Calculate(ev, org, now)
	// 7 keyword matches cap at 50; plus default credibility 3.
	if want := 50 + 3; got.Score != want {
		t.Errorf("Score = %d, want %d", got.Score, want)
	}
}

func TestScorer_ThresholdFromOrganization(t *testing.T) {
	now := time.Now().UTC()
	s := testScorer()

	ev := model.ExternalEvent{
		Title:       "Minor fine issued to local firm",
		SourceName:  "local news",
		PublishedAt: now.Add(-1 * time.Hour),
	}

	// fine keyword (10) + recency (10) + local news (5) = 25.
	base := testOrg()
	base.Keywords = []string{"fine"}
	base.RiskCategories = nil
	base.Industry = ""

	strict := *base
	strict.ScoreThreshold = 26
	if got := s.Calculate(ev, &strict, now); got.Pass {
		t.Errorf("Score %d passed threshold 26", got.Score)
	}

	lenient := *base
	lenient.ScoreThreshold = 25
	if got := s.Calculate(ev, &lenient, now); !got.Pass {
		t.Errorf("Score %d failed threshold 25", got.Score)
	}
}

func TestScorer_DisabledPreFilterAlwaysPasses(t *testing.T) {
	now := time.Now().UTC()
	s := testScorer()
	org := testOrg()
	org.PreFilterEnabled = false

	ev := model.ExternalEvent{
		Title:       "Nothing relevant in this headline whatsoever",
		SourceName:  "obscure blog",
		PublishedAt: now.Add(-100 * time.Hour),
	}

	got := s.Calculate(ev, org, now)
	if !got.Pass {
		t.Errorf("scoring disabled for org but Pass = false (score %d)", got.Score)
	}
}

func TestScorer_GloballyDisabled(t *testing.T) {
	now := time.Now().UTC()
	s := NewScorer(model.ScoreConfig{Threshold: 30, Enabled: false})
	org := testOrg()

	ev := model.ExternalEvent{
		Title:       "Irrelevant headline",
		SourceName:  "obscure blog",
		PublishedAt: now,
	}
	if got := s.Calculate(ev, org, now); !got.Pass {
		t.Error("globally disabled scorer must pass everything")
	}
}

func TestScorer_RecencyTiers(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name string
		age  time.Duration
		want int
	}{
		{"under a day", 6 * time.Hour, 10},
		{"under three days", 48 * time.Hour, 5},
		{"older", 96 * time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recencyPoints(now.Add(-tt.age), now); got != tt.want {
				t.Errorf("recencyPoints(age %v) = %d, want %d", tt.age, got, tt.want)
			}
		})
	}
}

func TestScorer_SourceCredibility(t *testing.T) {
	tests := []struct {
		source string
		want   int
	}{
		{"Reuters", 10},
		{"Bloomberg Markets", 10},
		{"BBC", 7},
		{"Some Industry Blog", 5},
		{"Random Aggregator", 3},
	}

	for _, tt := range tests {
		if got := credibilityPoints(tt.source); got != tt.want {
			t.Errorf("credibilityPoints(%q) = %d, want %d", tt.source, got, tt.want)
		}
	}
}
