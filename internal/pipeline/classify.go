package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oseghale/riskradar/internal/llm"
	"github.com/oseghale/riskradar/internal/model"
)

// alertsFromIndustry maps a shared cached analysis onto the
// organization's risks and upserts one alert per matched risk.
func (p *Pipeline) alertsFromIndustry(ctx context.Context, org *model.Organization, risks []model.Risk, ev model.ExternalEvent, entry *model.IndustryCacheEntry, now time.Time) (int, error) {
	created := 0
	for _, match := range p.cache.MapToRisks(entry, risks) {
		alert := model.RiskIntelligenceAlert{
			OrganizationID:  org.ID,
			EventID:         ev.ID,
			RiskCode:        match.RiskCode,
			Confidence:      match.Confidence,
			LikelihoodDelta: match.LikelihoodDelta,
			ImpactDelta:     match.ImpactDelta,
			Reasoning:       match.Reasoning,
			Status:          model.AlertPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		isNew, err := p.store.Alerts().Upsert(ctx, alert)
		if err != nil {
			return created, fmt.Errorf("upsert alert %s/%s: %w", ev.ID, match.RiskCode, err)
		}
		if isNew {
			created++
		}
	}
	return created, nil
}

// alertsFromOrgCache serves an event from the private layer. served is
// true when at least one risk had a fresh cached analysis.
func (p *Pipeline) alertsFromOrgCache(ctx context.Context, org *model.Organization, risks []model.Risk, ev model.ExternalEvent, now time.Time) (int, bool, error) {
	created := 0
	served := false
	for _, risk := range risks {
		entry, hit := p.cache.LookupOrg(ctx, ev.ID, org.ID, risk.Code, now)
		if !hit {
			continue
		}
		served = true

		if int(entry.Confidence*100) < p.cfg.LLM.MinConfidence {
			continue
		}
		alert := model.RiskIntelligenceAlert{
			OrganizationID:  org.ID,
			EventID:         ev.ID,
			RiskCode:        risk.Code,
			Confidence:      entry.Confidence,
			LikelihoodDelta: entry.LikelihoodDelta,
			ImpactDelta:     entry.ImpactDelta,
			Reasoning:       entry.Reasoning,
			Controls:        entry.Controls,
			Model:           entry.Model,
			Status:          model.AlertPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		isNew, err := p.store.Alerts().Upsert(ctx, alert)
		if err != nil {
			return created, served, fmt.Errorf("upsert alert %s/%s: %w", ev.ID, risk.Code, err)
		}
		if isNew {
			created++
		}
	}
	return created, served, nil
}

// classify invokes the AI classifier on a full cache miss, writes the
// generalized analysis back to the industry layer and each risk match
// to the org layer, and materializes alerts for matches clearing the
// confidence gate.
func (p *Pipeline) classify(ctx context.Context, org *model.Organization, risks []model.Risk, ev model.ExternalEvent, contentHash string, now time.Time) (int, error) {
	if p.classifier == nil {
		return 0, fmt.Errorf("no AI classifier configured")
	}
	if len(risks) == 0 {
		return 0, nil
	}

	if err := p.aiLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("ai rate limit: %w", err)
	}

	result, err := p.classifier.Classify(ctx, llm.ClassifyRequest{
		Event:        ev,
		Organization: *org,
		Risks:        risks,
	})
	if err != nil {
		return 0, fmt.Errorf("classify event: %w", err)
	}

	// Write back to the shared layer even when not relevant: other
	// organizations of the same institution type skip the AI call.
	p.cache.StoreIndustry(ctx, model.IndustryCacheEntry{
		ContentHash:     contentHash,
		InstitutionType: org.InstitutionType,
		Summary:         result.Summary,
		KeyThemes:       result.KeyThemes,
		CategoryScores:  result.CategoryScores,
		SuggestedImpact: result.SuggestedImpact,
		Confidence:      float64(result.Confidence) / 100,
	}, now)

	created := 0
	for _, match := range result.Matches {
		confidence := float64(match.Confidence) / 100

		p.cache.StoreOrg(ctx, model.OrgCacheEntry{
			EventID:         ev.ID,
			OrganizationID:  org.ID,
			RiskCode:        match.RiskCode,
			Reasoning:       match.Reasoning,
			LikelihoodDelta: match.LikelihoodDelta,
			ImpactDelta:     match.ImpactDelta,
			Controls:        match.Controls,
			Model:           result.Model,
			Confidence:      confidence,
		}, now)

		// The single quality gate between noisy suggestion and a
		// human-surfaced alert.
		if match.Confidence < p.cfg.LLM.MinConfidence {
			continue
		}

		alert := model.RiskIntelligenceAlert{
			OrganizationID:  org.ID,
			EventID:         ev.ID,
			RiskCode:        match.RiskCode,
			Confidence:      confidence,
			LikelihoodDelta: match.LikelihoodDelta,
			ImpactDelta:     match.ImpactDelta,
			Reasoning:       match.Reasoning,
			Controls:        match.Controls,
			Model:           result.Model,
			Status:          model.AlertPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		isNew, err := p.store.Alerts().Upsert(ctx, alert)
		if err != nil {
			return created, fmt.Errorf("upsert alert %s/%s: %w", ev.ID, match.RiskCode, err)
		}
		if isNew {
			created++
		}
	}
	return created, nil
}

// trackFailure implements retry accounting: bump the counter, and at
// the ceiling mark the event permanently checked with a reason so it
// is excluded from all future attempts.
func (p *Pipeline) trackFailure(ctx context.Context, ev model.ExternalEvent, cause error) {
	slog.Warn("event processing failed", "event", ev.ID, "error", cause)

	count, err := p.store.Events().IncrementRetry(ctx, ev.ID)
	if err != nil {
		slog.Error("retry increment failed", "event", ev.ID, "error", err)
		return
	}
	if count >= maxRetries {
		reason := fmt.Sprintf("gave up after %d attempts: %v", count, cause)
		if err := p.store.Events().MarkFailed(ctx, ev.ID, reason); err != nil {
			slog.Error("mark failed failed", "event", ev.ID, "error", err)
		}
	}
}
