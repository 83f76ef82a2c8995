// Package feed retrieves and normalizes syndication feeds. A broken
// source never aborts a scan: fetch and parse failures surface as
// *FetchError values that the pipeline records against the source.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/oseghale/riskradar/internal/model"
)

// FetchError is a typed source-level failure. StatusCode is zero when
// the failure happened before or after the HTTP exchange.
type FetchError struct {
	SourceID   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch source %s: status %d: %v", e.SourceID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch source %s: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result is one source's fetch outcome.
type Result struct {
	Items      []model.FeedItem
	StatusCode int
}

// Fetcher retrieves one feed into normalized items.
type Fetcher struct {
	httpClient    *http.Client
	parser        *gofeed.Parser
	robots        *RobotsChecker
	userAgent     string
	maxBytes      int64
	maxItems      int
	maxSummaryLen int
}

// NewFetcher creates a Fetcher. robots may be nil to skip the
// politeness check.
func NewFetcher(cfg model.HTTPConfig, maxItems, maxSummaryLen int) *Fetcher {
	var robots *RobotsChecker
	if cfg.CheckRobots {
		robots = NewRobotsChecker(cfg.UserAgent, cfg.Timeout)
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		parser:        gofeed.NewParser(),
		robots:        robots,
		userAgent:     cfg.UserAgent,
		maxBytes:      cfg.MaxBodyBytes,
		maxItems:      maxItems,
		maxSummaryLen: maxSummaryLen,
	}
}

// Fetch retrieves and parses one source, returning up to the per-source
// item cap of most-recent normalized items.
func (f *Fetcher) Fetch(ctx context.Context, source model.Source) (*Result, error) {
	if f.robots != nil {
		allowed, _, err := f.robots.CanFetch(ctx, source.URL)
		if err == nil && !allowed {
			return nil, &FetchError{SourceID: source.ID, Err: fmt.Errorf("disallowed by robots.txt")}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, &FetchError{SourceID: source.ID, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{SourceID: source.ID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{SourceID: source.ID, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, &FetchError{SourceID: source.ID, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("read body: %w", err)}
	}

	// gofeed handles both RSS channel/item and Atom feed/entry shapes.
	parsed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, &FetchError{SourceID: source.ID, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("parse feed: %w", err)}
	}

	items := f.normalize(parsed, source)

	limit := source.MaxItems
	if limit <= 0 {
		limit = f.maxItems
	}
	if len(items) > limit {
		items = items[:limit]
	}

	return &Result{Items: items, StatusCode: resp.StatusCode}, nil
}

// normalize converts parsed entries into FeedItems, degrading missing
// fields to safe defaults, newest first.
func (f *Fetcher) normalize(parsed *gofeed.Feed, source model.Source) []model.FeedItem {
	now := time.Now().UTC()
	items := make([]model.FeedItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil || it.Link == "" {
			continue
		}

		published := now
		if it.PublishedParsed != nil {
			published = it.PublishedParsed.UTC()
		} else if it.UpdatedParsed != nil {
			published = it.UpdatedParsed.UTC()
		}

		summary := it.Description
		if summary == "" {
			summary = it.Content
		}
		summary = truncate(StripHTML(summary), f.maxSummaryLen)

		items = append(items, model.FeedItem{
			Title:     strings.TrimSpace(it.Title),
			Summary:   summary,
			Link:      canonicalURL(it.Link),
			Published: published,
			Source:    source.Name,
			Category:  source.Category,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})
	return items
}

// StripHTML reduces embedded markup in feed summaries to plain text.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.WriteString(tokenizer.Token().Data)
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// canonicalURL strips fragments and tracking noise so the (org, url)
// uniqueness check is stable across re-fetches.
func canonicalURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	parsed.Fragment = ""

	q := parsed.Query()
	for key := range q {
		if strings.HasPrefix(key, "utm_") {
			q.Del(key)
		}
	}
	parsed.RawQuery = q.Encode()

	return parsed.String()
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
