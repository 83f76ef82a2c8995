// Package filter implements the cheap intake checks that run before an
// item is stored: language, age, and pre-filter keywords. These are
// pre-filtering only and must never be treated as risk classification.
package filter

import (
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/oseghale/riskradar/internal/model"
)

// RejectReason identifies which intake check rejected an item.
type RejectReason string

const (
	RejectLanguage RejectReason = "language"
	RejectAge      RejectReason = "age"
	RejectKeyword  RejectReason = "keyword"
)

// Result is one item's intake verdict.
type Result struct {
	Pass   bool
	Reason RejectReason
}

// Counters tracks per-check rejection counts for one scan. Safe for
// concurrent use.
type Counters struct {
	Language atomic.Int64
	Age      atomic.Int64
	Keyword  atomic.Int64
}

// Intake applies the three short-circuiting checks in order: language,
// age, keyword.
type Intake struct {
	maxAge            time.Duration
	nonLatinThreshold float64
	counters          *Counters
}

// NewIntake creates an intake filter.
func NewIntake(cfg model.FilterConfig) *Intake {
	return &Intake{
		maxAge:            cfg.MaxAge,
		nonLatinThreshold: cfg.NonLatinThreshold,
		counters:          &Counters{},
	}
}

// Counters exposes the per-check rejection counters.
func (f *Intake) Counters() *Counters { return f.counters }

// Check runs the intake checks for one item against one organization.
func (f *Intake) Check(item model.FeedItem, org *model.Organization, now time.Time) Result {
	text := item.Title + " " + item.Summary

	if !f.isTargetLanguage(text) {
		f.counters.Language.Add(1)
		return Result{Reason: RejectLanguage}
	}

	if f.maxAge > 0 && item.Published.Before(now.Add(-f.maxAge)) {
		f.counters.Age.Add(1)
		return Result{Reason: RejectAge}
	}

	if !matchesAnyKeyword(text, org.PreFilterKeywords) {
		f.counters.Keyword.Add(1)
		return Result{Reason: RejectKeyword}
	}

	return Result{Pass: true}
}

// isTargetLanguage is a heuristic: an item whose cleaned text is more
// than the configured ratio non-Latin letters is rejected. Text too
// short to judge always passes.
func (f *Intake) isTargetLanguage(text string) bool {
	var letters, nonLatin int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if !unicode.Is(unicode.Latin, r) {
			nonLatin++
		}
	}

	if letters < 20 {
		return true
	}
	return float64(nonLatin)/float64(letters) <= f.nonLatinThreshold
}

// matchesAnyKeyword reports whether text contains at least one keyword,
// case-insensitive substring match. An empty keyword set does not gate.
func matchesAnyKeyword(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
