// Package pipeline orchestrates one scan invocation: feed fetching,
// intake filtering, duplicate detection, relevance scoring, cache
// lookup, AI classification, alert writing, and retry accounting.
//
// Events are processed independently; ordering between events is never
// required, and a failing event never aborts its batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/oseghale/riskradar/internal/cache"
	"github.com/oseghale/riskradar/internal/dedup"
	"github.com/oseghale/riskradar/internal/feed"
	"github.com/oseghale/riskradar/internal/filter"
	"github.com/oseghale/riskradar/internal/llm"
	"github.com/oseghale/riskradar/internal/model"
	"github.com/oseghale/riskradar/internal/score"
	"github.com/oseghale/riskradar/internal/store"
	"github.com/oseghale/riskradar/internal/worker"
)

// maxRetries bounds wasted work on a systematically failing event.
const maxRetries = 3

// uncheckedLimit caps how many backlog events one invocation picks up.
const uncheckedLimit = 200

// Pipeline wires the scan stages together.
type Pipeline struct {
	cfg        *model.Config
	store      store.Store
	fetcher    worker.FeedFetcher
	limiter    *worker.Limiter
	intake     *filter.Intake
	detector   *dedup.Detector
	scorer     *score.Scorer
	cache      *cache.TwoLayer
	classifier llm.Provider
	aiLimiter  *rate.Limiter
}

// New creates a pipeline. classifier may be nil when no provider is
// configured; cache misses then surface as event-level failures and
// feed the retry tracker.
func New(cfg *model.Config, st store.Store, classifier llm.Provider) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		fetcher:    feed.NewFetcher(cfg.HTTP, cfg.Concurrency.MaxItemsPerFeed, cfg.Filter.MaxSummaryLen),
		limiter:    worker.NewLimiter(cfg.Concurrency.RequestsPerSecond, 1),
		intake:     filter.NewIntake(cfg.Filter),
		detector:   dedup.NewDetector(st.Dedup(), cfg.Dedup),
		scorer:     score.NewScorer(cfg.Score),
		cache:      cache.NewTwoLayer(st.IndustryCache(), st.OrgCache(), cfg.Cache),
		classifier: classifier,
		aiLimiter:  rate.NewLimiter(rate.Limit(cfg.Concurrency.RequestsPerSecond), 1),
	}
}

// ResolveOrganization resolves the scan tenant: explicit id first, then
// auth token, then the first known organization for unattended runs.
func ResolveOrganization(ctx context.Context, st store.Store, orgID, token string) (*model.Organization, error) {
	if orgID != "" {
		return st.Orgs().Get(ctx, orgID)
	}
	if token != "" {
		if org, err := st.Orgs().GetByToken(ctx, token); err == nil {
			return org, nil
		}
	}
	org, err := st.Orgs().First(ctx)
	if err != nil {
		return nil, fmt.Errorf("no organizations found: %w", err)
	}
	return org, nil
}

// Run executes one scan for one organization. The summary is always
// populated; Success is false only when the environment made all work
// meaningless (e.g. the risk register is unreachable).
func (p *Pipeline) Run(ctx context.Context, org *model.Organization) *model.ScanSummary {
	summary := &model.ScanSummary{
		Success:         true,
		OrganizationID:  org.ID,
		InstitutionType: org.InstitutionType,
	}

	risks, err := p.store.Risks().Active(ctx, org.ID)
	if err != nil {
		summary.Success = false
		summary.Error = fmt.Sprintf("load risk register: %v", err)
		return summary
	}

	sources, err := p.store.Sources().ListEnabled(ctx, org.ID)
	if err != nil {
		summary.Success = false
		summary.Error = fmt.Sprintf("load sources: %v", err)
		return summary
	}
	summary.FeedsConfigured = len(sources)

	items := p.fetchSources(ctx, sources, summary)
	summary.ItemsFound = len(items)

	stored := p.storeCandidates(ctx, org, items, summary)
	summary.EventsStored = len(stored)

	// Pick up both the events just stored and any backlog from prior
	// runs that is still under the retry ceiling.
	pending, err := p.store.Events().Unchecked(ctx, org.ID, maxRetries, uncheckedLimit)
	if err != nil {
		slog.Warn("load unchecked events failed, classifying stored events only", "error", err)
		pending = stored
	}

	p.classifyAll(ctx, org, risks, pending, summary)

	counters := p.intake.Counters()
	summary.Stats.FilteredLanguage = int(counters.Language.Load())
	summary.Stats.FilteredAge = int(counters.Age.Load())
	summary.Stats.FilteredKeyword = int(counters.Keyword.Load())

	slog.Info("scan complete",
		"org", org.ID,
		"feeds", summary.FeedsProcessed,
		"items", summary.ItemsFound,
		"events", summary.EventsStored,
		"alerts", summary.AlertsCreated,
		"errors", summary.Stats.Errors)

	return summary
}

// fetchSources polls every enabled source with bounded concurrency and
// records per-source stats. A broken source never aborts the batch.
func (p *Pipeline) fetchSources(ctx context.Context, sources []model.Source, summary *model.ScanSummary) []model.FeedItem {
	results := worker.FetchAll(ctx, p.fetcher, p.limiter, sources, p.cfg.Concurrency.FeedWorkers)

	var items []model.FeedItem
	now := time.Now().UTC()
	for _, res := range results {
		stats := model.SourceScanStats{
			SourceID:   res.Source.ID,
			ScannedAt:  now,
			LastStatus: res.StatusCode,
			ItemsFound: len(res.Items),
		}
		if res.Error != nil {
			stats.LastError = res.Error.Error()
			slog.Warn("source fetch failed", "source", res.Source.Name, "error", res.Error)
		} else {
			summary.FeedsProcessed++
			items = append(items, res.Items...)
		}
		if err := p.store.Sources().RecordScanStats(ctx, stats); err != nil {
			slog.Warn("record scan stats failed", "source", res.Source.ID, "error", err)
		}
	}
	return items
}

// storeCandidates runs intake filtering, bulk-deduplicates by URL
// against already-stored events, and bulk-inserts the survivors.
func (p *Pipeline) storeCandidates(ctx context.Context, org *model.Organization, items []model.FeedItem, summary *model.ScanSummary) []model.ExternalEvent {
	now := time.Now().UTC()

	var candidates []model.ExternalEvent
	seenURL := make(map[string]struct{})
	for _, item := range items {
		verdict := p.intake.Check(item, org, now)
		if !verdict.Pass {
			continue
		}
		if _, dup := seenURL[item.Link]; dup {
			continue
		}
		seenURL[item.Link] = struct{}{}
		candidates = append(candidates, model.ExternalEvent{
			OrganizationID: org.ID,
			Title:          item.Title,
			Summary:        item.Summary,
			URL:            item.Link,
			SourceName:     item.Source,
			Category:       item.Category,
			PublishedAt:    item.Published,
			FetchedAt:      now,
			FilterStatus:   model.StatusUnfiltered,
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.URL
	}
	existing, err := p.store.Events().ExistingURLs(ctx, org.ID, urls)
	if err != nil {
		// Storing without the check would store guaranteed duplicates,
		// so the whole batch is skipped; items return on the next run.
		slog.Error("bulk URL check failed, skipping storage for batch", "error", err)
		summary.Stats.Errors++
		return nil
	}

	fresh := candidates[:0]
	for _, c := range candidates {
		if _, ok := existing[c.URL]; ok {
			continue
		}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return nil
	}

	stored, err := p.store.Events().InsertBatch(ctx, fresh)
	if err != nil {
		slog.Error("event insert failed", "error", err)
		summary.Stats.Errors++
		return nil
	}
	return stored
}

// classifyAll walks pending events in small fixed-size batches with an
// explicit delay between batches. The batch size and delay bound
// concurrent outbound AI calls and database connections; this is
// deliberate backpressure, not an incidental sleep.
func (p *Pipeline) classifyAll(ctx context.Context, org *model.Organization, risks []model.Risk, events []model.ExternalEvent, summary *model.ScanSummary) {
	batchSize := p.cfg.Concurrency.ClassifyBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}

		p.classifyBatch(ctx, org, risks, events[start:end], summary)

		if end < len(events) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.Concurrency.BatchDelay):
			}
		}
	}
}

type eventOutcome struct {
	alerts int
	cached bool
	scored bool // rejected by the relevance threshold
	dedup  bool
	ai     bool
	err    error
}

// classifyBatch settles every event in the batch; individual failures
// feed the retry tracker and never abort the batch.
func (p *Pipeline) classifyBatch(ctx context.Context, org *model.Organization, risks []model.Risk, events []model.ExternalEvent, summary *model.ScanSummary) {
	outcomes := make([]eventOutcome, len(events))
	done := make(chan int, len(events))

	for i := range events {
		go func(i int) {
			outcomes[i] = p.processEvent(ctx, org, risks, events[i])
			done <- i
		}(i)
	}
	for range events {
		<-done
	}

	for i, out := range outcomes {
		switch {
		case out.err != nil:
			summary.Stats.Errors++
			p.trackFailure(ctx, events[i], out.err)
		case out.dedup:
			summary.Stats.Deduplicated++
		case out.scored:
			summary.Stats.FilteredLowScore++
		case out.cached:
			summary.Stats.CacheHits++
		case out.ai:
			summary.Stats.AIAnalyzed++
		}
		summary.AlertsCreated += out.alerts
	}
}

// processEvent runs one event through dedup, scoring, the two cache
// layers, and (on full miss) the AI classifier.
func (p *Pipeline) processEvent(ctx context.Context, org *model.Organization, risks []model.Risk, ev model.ExternalEvent) eventOutcome {
	now := time.Now().UTC()

	// A retried event already holds its own fingerprint in the index
	// from the first attempt; re-checking would flag it against itself.
	if ev.RetryCount == 0 {
		verdict, err := p.detector.Check(ctx, ev.OrganizationID, ev.Title, hostOf(ev.URL), now)
		if err != nil {
			return eventOutcome{err: fmt.Errorf("dedup check: %w", err)}
		}
		if verdict.Duplicate {
			if err := p.store.Events().SetFilterStatus(ctx, ev.ID, model.StatusFilteredDuplicate, true); err != nil {
				return eventOutcome{err: fmt.Errorf("mark duplicate: %w", err)}
			}
			slog.Debug("event deduplicated", "event", ev.ID, "similarity", verdict.Similarity)
			return eventOutcome{dedup: true}
		}
	}

	if result := p.scorer.Calculate(ev, org, now); !result.Pass {
		if err := p.store.Events().SetFilterStatus(ctx, ev.ID, model.StatusFilteredLowScore, true); err != nil {
			return eventOutcome{err: fmt.Errorf("mark low relevance: %w", err)}
		}
		return eventOutcome{scored: true}
	}

	// Industry layer: cheapest and most reusable first.
	contentHash := cache.ContentHash(ev.Title, ev.URL)
	if entry, hit := p.cache.LookupIndustry(ctx, contentHash, org.InstitutionType, now); hit {
		alerts, err := p.alertsFromIndustry(ctx, org, risks, ev, entry, now)
		if err != nil {
			return eventOutcome{err: err}
		}
		if err := p.store.Events().SetFilterStatus(ctx, ev.ID, model.StatusCached, true); err != nil {
			return eventOutcome{err: fmt.Errorf("mark cached: %w", err)}
		}
		return eventOutcome{cached: true, alerts: alerts}
	}

	// Org layer: private, risk-specific analyses from a prior run.
	if alerts, served, err := p.alertsFromOrgCache(ctx, org, risks, ev, now); err != nil {
		return eventOutcome{err: err}
	} else if served {
		if err := p.store.Events().SetFilterStatus(ctx, ev.ID, model.StatusCached, true); err != nil {
			return eventOutcome{err: fmt.Errorf("mark cached: %w", err)}
		}
		return eventOutcome{cached: true, alerts: alerts}
	}

	alerts, err := p.classify(ctx, org, risks, ev, contentHash, now)
	if err != nil {
		return eventOutcome{err: err}
	}
	if err := p.store.Events().SetFilterStatus(ctx, ev.ID, model.StatusAnalyzed, true); err != nil {
		return eventOutcome{err: fmt.Errorf("mark analyzed: %w", err)}
	}
	return eventOutcome{ai: true, alerts: alerts}
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
