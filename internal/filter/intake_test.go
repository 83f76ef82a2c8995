package filter

import (
	"testing"
	"time"

	"github.com/oseghale/riskradar/internal/model"
)

func testConfig() model.FilterConfig {
	return model.FilterConfig{
		MaxAge:            7 * 24 * time.Hour,
		NonLatinThreshold: 0.4,
	}
}

func TestIntake_Check(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	org := &model.Organization{
		ID:                "org-1",
		PreFilterKeywords: []string{"bank", "fintech"},
	}

	tests := []struct {
		name       string
		item       model.FeedItem
		wantPass   bool
		wantReason RejectReason
	}{
		{
			name: "passes all checks",
			item: model.FeedItem{
				Title:     "Central bank raises benchmark rate amid inflation concerns",
				Summary:   "The monetary policy committee voted to raise rates.",
				Published: now.Add(-2 * time.Hour),
			},
			wantPass: true,
		},
		{
			name: "rejects mostly non-Latin text",
			item: model.FeedItem{
				Title:     "المصرف المركزي يرفع أسعار الفائدة بشكل مفاجئ هذا الأسبوع بقرار جديد",
				Summary:   "قرار جديد من اللجنة النقدية في اجتماعها الأخير",
				Published: now.Add(-2 * time.Hour),
			},
			wantPass:   false,
			wantReason: RejectLanguage,
		},
		{
			name: "short text too small to judge passes language",
			item: model.FeedItem{
				Title:     "快讯 bank",
				Summary:   "",
				Published: now.Add(-2 * time.Hour),
			},
			wantPass: true,
		},
		{
			name: "rejects items older than the window",
			item: model.FeedItem{
				Title:     "Regional bank announces quarterly results for last year",
				Summary:   "Archived coverage of earlier results.",
				Published: now.Add(-8 * 24 * time.Hour),
			},
			wantPass:   false,
			wantReason: RejectAge,
		},
		{
			name: "rejects items matching no pre-filter keyword",
			item: model.FeedItem{
				Title:     "Local football club wins championship final",
				Summary:   "Sports coverage with nothing financial.",
				Published: now.Add(-2 * time.Hour),
			},
			wantPass:   false,
			wantReason: RejectKeyword,
		},
		{
			name: "keyword match is case-insensitive",
			item: model.FeedItem{
				Title:     "FINTECH startup secures new payments license",
				Summary:   "Another funding round closes.",
				Published: now.Add(-2 * time.Hour),
			},
			wantPass: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewIntake(testConfig())
			got := f.Check(tt.item, org, now)
			if got.Pass != tt.wantPass {
				t.Errorf("Pass = %v, want %v", got.Pass, tt.wantPass)
			}
			if !tt.wantPass && got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestIntake_EmptyKeywordSetDoesNotGate(t *testing.T) {
	now := time.Now().UTC()
	f := NewIntake(testConfig())
	org := &model.Organization{ID: "org-1"} // no pre-filter keywords

	item := model.FeedItem{
		Title:     "Completely unrelated gardening story about tomato seedlings",
		Summary:   "No financial content whatsoever in this article.",
		Published: now.Add(-1 * time.Hour),
	}
	if got := f.Check(item, org, now); !got.Pass {
		t.Errorf("expected pass with empty keyword set, rejected with %q", got.Reason)
	}
}

func TestIntake_ChecksShortCircuitInOrder(t *testing.T) {
	// Old AND keyword-free: language passes, age must fire first.
	now := time.Now().UTC()
	f := NewIntake(testConfig())
	org := &model.Organization{ID: "org-1", PreFilterKeywords: []string{"bank"}}

	item := model.FeedItem{
		Title:     "Championship final ends in dramatic penalty shootout",
		Summary:   "Sports coverage from last month with no keywords.",
		Published: now.Add(-30 * 24 * time.Hour),
	}
	got := f.Check(item, org, now)
	if got.Pass {
		t.Fatal("expected rejection")
	}
	if got.Reason != RejectAge {
		t.Errorf("Reason = %q, want %q (age runs before keyword)", got.Reason, RejectAge)
	}
}

func TestIntake_CountersTrackRejections(t *testing.T) {
	now := time.Now().UTC()
	f := NewIntake(testConfig())
	org := &model.Organization{ID: "org-1", PreFilterKeywords: []string{"bank"}}

	items := []model.FeedItem{
		{Title: "Unrelated sports final result announced today for fans", Published: now},
		{Title: "Another celebrity gossip headline with no relevance here", Published: now},
		{Title: "Major bank reports outage", Published: now.Add(-10 * 24 * time.Hour)},
	}
	for _, item := range items {
		f.Check(item, org, now)
	}

	c := f.Counters()
	if got := c.Keyword.Load(); got != 2 {
		t.Errorf("Keyword counter = %d, want 2", got)
	}
	if got := c.Age.Load(); got != 1 {
		t.Errorf("Age counter = %d, want 1", got)
	}
	if got := c.Language.Load(); got != 0 {
		t.Errorf("Language counter = %d, want 0", got)
	}
}

func TestIntake_ZeroMaxAgeDisablesAgeCheck(t *testing.T) {
	now := time.Now().UTC()
	f := NewIntake(model.FilterConfig{MaxAge: 0, NonLatinThreshold: 0.4})
	org := &model.Organization{ID: "org-1", PreFilterKeywords: []string{"bank"}}

	item := model.FeedItem{
		Title:     "Bank archives from years ago resurface in new report",
		Published: now.Add(-365 * 24 * time.Hour),
	}
	if got := f.Check(item, org, now); !got.Pass {
		t.Errorf("expected pass with age check disabled, rejected with %q", got.Reason)
	}
}
