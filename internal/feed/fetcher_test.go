package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oseghale/riskradar/internal/model"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Business News</title>
    <item>
      <title>Central bank raises rates</title>
      <link>https://news.example.com/rates?utm_source=rss&amp;id=7#section</link>
      <description>&lt;p&gt;The committee voted &lt;b&gt;unanimously&lt;/b&gt; to raise rates.&lt;/p&gt;</description>
      <pubDate>Mon, 09 Mar 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Lender reports outage</title>
      <link>https://news.example.com/outage</link>
      <description>Systems were down for two hours.</description>
      <pubDate>Tue, 10 Mar 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>No link item</title>
      <description>This entry is dropped.</description>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom Feed</title>
  <entry>
    <title>Fintech licensing update</title>
    <link href="https://atom.example.com/licensing"/>
    <summary>New licensing requirements announced.</summary>
    <updated>2026-03-10T09:00:00Z</updated>
  </entry>
</feed>`

func testFetcher(maxItems int) *Fetcher {
	return NewFetcher(model.HTTPConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "test-agent",
		MaxBodyBytes: 1 << 20,
		CheckRobots:  false,
	}, maxItems, 500)
}

func TestFetcher_RSS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q, want test-agent", ua)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFixture)
	}))
	defer server.Close()

	f := testFetcher(10)
	result, err := f.Fetch(context.Background(), model.Source{
		ID: "src-1", Name: "Example Business News", URL: server.URL, Category: "business",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if len(result.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2 (link-less entry dropped)", len(result.Items))
	}

	// Newest first.
	if result.Items[0].Title != "Lender reports outage" {
		t.Errorf("Items[0].Title = %q, want newest item first", result.Items[0].Title)
	}

	rates := result.Items[1]
	if rates.Link != "https://news.example.com/rates?id=7" {
		t.Errorf("Link = %q, want fragment and utm params stripped", rates.Link)
	}
	if strings.Contains(rates.Summary, "<") {
		t.Errorf("Summary = %q, want HTML stripped", rates.Summary)
	}
	if !strings.Contains(rates.Summary, "unanimously") {
		t.Errorf("Summary = %q, want text content kept", rates.Summary)
	}
	if rates.Source != "Example Business News" || rates.Category != "business" {
		t.Errorf("source attribution lost: %+v", rates)
	}
}

func TestFetcher_Atom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomFixture)
	}))
	defer server.Close()

	f := testFetcher(10)
	result, err := f.Fetch(context.Background(), model.Source{ID: "src-1", URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(result.Items))
	}
	if result.Items[0].Title != "Fintech licensing update" {
		t.Errorf("Title = %q", result.Items[0].Title)
	}
	if result.Items[0].Published.IsZero() {
		t.Error("updated timestamp not used as published fallback")
	}
}

func TestFetcher_ItemCap(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Big</title>`)
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, `<item><title>Item %d</title><link>https://news.example.com/%d</link></item>`, i, i)
	}
	b.WriteString(`</channel></rss>`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, b.String())
	}))
	defer server.Close()

	f := testFetcher(10)

	result, err := f.Fetch(context.Background(), model.Source{ID: "src-1", URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(result.Items) != 10 {
		t.Errorf("len(Items) = %d, want default cap 10", len(result.Items))
	}

	// A per-source override wins over the default.
	result, err = f.Fetch(context.Background(), model.Source{ID: "src-1", URL: server.URL, MaxItems: 5})
	if err != nil {
		t.Fatalf("Fetch with override: %v", err)
	}
	if len(result.Items) != 5 {
		t.Errorf("len(Items) = %d, want per-source cap 5", len(result.Items))
	}
}

func TestFetcher_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := testFetcher(10)
	_, err := f.Fetch(context.Background(), model.Source{ID: "src-1", URL: server.URL})
	if err == nil {
		t.Fatal("expected error for 404")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", fe.StatusCode)
	}
	if fe.SourceID != "src-1" {
		t.Errorf("SourceID = %q, want src-1", fe.SourceID)
	}
}

func TestFetcher_UnparsableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed at all")
	}))
	defer server.Close()

	f := testFetcher(10)
	if _, err := f.Fetch(context.Background(), model.Source{ID: "src-1", URL: server.URL}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"  spaced   out  ", "spaced   out"},
		{"<div><script>alert(1)</script>text</div>", "alert(1) text"},
	}
	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x.com/a?utm_source=rss&utm_medium=feed", "https://x.com/a"},
		{"https://x.com/a?id=7&utm_source=rss", "https://x.com/a?id=7"},
		{"https://x.com/a#comments", "https://x.com/a"},
		{"https://x.com/a", "https://x.com/a"},
	}
	for _, tt := range tests {
		if got := canonicalURL(tt.in); got != tt.want {
			t.Errorf("canonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
