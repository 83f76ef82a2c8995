package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/oseghale/riskradar/internal/model"
)

// Postgres implements Store on PostgreSQL. Uniqueness and concurrency
// control live in the schema: ON CONFLICT DO NOTHING for the event and
// dedup tables, ON CONFLICT DO UPDATE for caches and alerts.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects and verifies the database.
func OpenPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Orgs() OrgStore                    { return (*pgOrgs)(p) }
func (p *Postgres) Risks() RiskStore                  { return (*pgRisks)(p) }
func (p *Postgres) Sources() SourceStore              { return (*pgSources)(p) }
func (p *Postgres) Events() EventStore                { return (*pgEvents)(p) }
func (p *Postgres) Dedup() DedupStore                 { return (*pgDedup)(p) }
func (p *Postgres) IndustryCache() IndustryCacheStore { return (*pgIndustry)(p) }
func (p *Postgres) OrgCache() OrgCacheStore           { return (*pgOrgCache)(p) }
func (p *Postgres) Alerts() AlertStore                { return (*pgAlerts)(p) }
func (p *Postgres) Close() error                      { return p.db.Close() }

type pgOrgs Postgres

const orgColumns = `id, name, institution_type, industry, regulators,
	keywords, pre_filter_keywords, risk_categories, pre_filter_enabled, score_threshold`

func scanOrg(row *sql.Row) (*model.Organization, error) {
	var org model.Organization
	err := row.Scan(&org.ID, &org.Name, &org.InstitutionType, &org.Industry,
		pq.Array(&org.Regulators), pq.Array(&org.Keywords),
		pq.Array(&org.PreFilterKeywords), pq.Array(&org.RiskCategories),
		&org.PreFilterEnabled, &org.ScoreThreshold)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	return &org, nil
}

func (p *pgOrgs) Get(ctx context.Context, id string) (*model.Organization, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	return scanOrg(row)
}

func (p *pgOrgs) GetByToken(ctx context.Context, token string) (*model.Organization, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+orgColumns+` FROM organizations
		WHERE id = (SELECT organization_id FROM api_tokens WHERE token = $1)`, token)
	return scanOrg(row)
}

func (p *pgOrgs) First(ctx context.Context) (*model.Organization, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations ORDER BY created_at LIMIT 1`)
	return scanOrg(row)
}

type pgRisks Postgres

func (p *pgRisks) Active(ctx context.Context, orgID string) ([]model.Risk, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT organization_id, code, title, COALESCE(description, ''), category,
		       likelihood, impact, status
		FROM risks
		WHERE organization_id = $1 AND status IN ('open', 'monitoring')
		ORDER BY code`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query risks: %w", err)
	}
	defer rows.Close()

	var risks []model.Risk
	for rows.Next() {
		var r model.Risk
		if err := rows.Scan(&r.OrganizationID, &r.Code, &r.Title, &r.Description,
			&r.Category, &r.Likelihood, &r.Impact, &r.Status); err != nil {
			return nil, fmt.Errorf("scan risk: %w", err)
		}
		risks = append(risks, r)
	}
	return risks, rows.Err()
}

type pgSources Postgres

func (p *pgSources) ListEnabled(ctx context.Context, orgID string) ([]model.Source, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, organization_id, name, url, category, enabled, max_items
		FROM sources
		WHERE organization_id = $1 AND enabled = true
		ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var s model.Source
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.URL,
			&s.Category, &s.Enabled, &s.MaxItems); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (p *pgSources) RecordScanStats(ctx context.Context, stats model.SourceScanStats) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned_at = $2, last_status = $3, last_error = $4,
		    last_items_found = $5, last_items_accepted = $6
		WHERE id = $1`,
		stats.SourceID, stats.ScannedAt, stats.LastStatus,
		stats.LastError, stats.ItemsFound, stats.ItemsAccepted)
	if err != nil {
		return fmt.Errorf("record scan stats: %w", err)
	}
	return nil
}

type pgEvents Postgres

func (p *pgEvents) ExistingURLs(ctx context.Context, orgID string, urls []string) (map[string]struct{}, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT url FROM external_events
		WHERE organization_id = $1 AND url = ANY($2)`,
		orgID, pq.Array(urls))
	if err != nil {
		return nil, fmt.Errorf("query existing urls: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		existing[u] = struct{}{}
	}
	return existing, rows.Err()
}

func (p *pgEvents) InsertBatch(ctx context.Context, events []model.ExternalEvent) ([]model.ExternalEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert batch: %w", err)
	}
	defer tx.Rollback()

	var stored []model.ExternalEvent
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO external_events
				(id, organization_id, title, summary, url, source_name, category,
				 published_at, fetched_at, filter_status, relevance_checked, retry_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, 0)
			ON CONFLICT (organization_id, url) DO NOTHING`,
			ev.ID, ev.OrganizationID, ev.Title, ev.Summary, ev.URL,
			ev.SourceName, ev.Category, ev.PublishedAt, ev.FetchedAt, ev.FilterStatus)
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stored = append(stored, ev)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert batch: %w", err)
	}
	return stored, nil
}

func (p *pgEvents) SetFilterStatus(ctx context.Context, eventID string, status model.FilterStatus, checked bool) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE external_events SET filter_status = $2, relevance_checked = $3
		WHERE id = $1`, eventID, status, checked)
	if err != nil {
		return fmt.Errorf("set filter status: %w", err)
	}
	return nil
}

func (p *pgEvents) IncrementRetry(ctx context.Context, eventID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		UPDATE external_events SET retry_count = retry_count + 1
		WHERE id = $1
		RETURNING retry_count`, eventID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	return count, nil
}

func (p *pgEvents) MarkFailed(ctx context.Context, eventID, reason string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE external_events SET relevance_checked = true, failure_reason = $2
		WHERE id = $1`, eventID, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (p *pgEvents) Unchecked(ctx context.Context, orgID string, maxRetries, limit int) ([]model.ExternalEvent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, organization_id, title, summary, url, source_name, category,
		       published_at, fetched_at, filter_status, relevance_checked, retry_count
		FROM external_events
		WHERE organization_id = $1 AND relevance_checked = false AND retry_count < $2
		ORDER BY fetched_at
		LIMIT $3`, orgID, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("query unchecked events: %w", err)
	}
	defer rows.Close()

	var events []model.ExternalEvent
	for rows.Next() {
		var ev model.ExternalEvent
		if err := rows.Scan(&ev.ID, &ev.OrganizationID, &ev.Title, &ev.Summary,
			&ev.URL, &ev.SourceName, &ev.Category, &ev.PublishedAt, &ev.FetchedAt,
			&ev.FilterStatus, &ev.RelevanceChecked, &ev.RetryCount); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (p *pgEvents) Get(ctx context.Context, eventID string) (*model.ExternalEvent, error) {
	var ev model.ExternalEvent
	var failureReason sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, organization_id, title, summary, url, source_name, category,
		       published_at, fetched_at, filter_status, relevance_checked,
		       retry_count, failure_reason
		FROM external_events WHERE id = $1`, eventID).Scan(
		&ev.ID, &ev.OrganizationID, &ev.Title, &ev.Summary, &ev.URL,
		&ev.SourceName, &ev.Category, &ev.PublishedAt, &ev.FetchedAt,
		&ev.FilterStatus, &ev.RelevanceChecked, &ev.RetryCount, &failureReason)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	ev.FailureReason = failureReason.String
	return &ev, nil
}

type pgDedup Postgres

func (p *pgDedup) GetByHash(ctx context.Context, orgID, hash string, now time.Time) (*model.DedupEntry, error) {
	var entry model.DedupEntry
	err := p.db.QueryRowContext(ctx, `
		SELECT organization_id, title_hash, tokens, source_domain, created_at, expires_at
		FROM dedup_index
		WHERE organization_id = $1 AND title_hash = $2 AND expires_at > $3`,
		orgID, hash, now).Scan(
		&entry.OrganizationID, &entry.TitleHash, pq.Array(&entry.Tokens),
		&entry.SourceDomain, &entry.CreatedAt, &entry.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dedup entry: %w", err)
	}
	return &entry, nil
}

func (p *pgDedup) Recent(ctx context.Context, orgID string, limit int, now time.Time) ([]model.DedupEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT organization_id, title_hash, tokens, source_domain, created_at, expires_at
		FROM dedup_index
		WHERE organization_id = $1 AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT $2`, orgID, limit, now)
	if err != nil {
		return nil, fmt.Errorf("query recent dedup entries: %w", err)
	}
	defer rows.Close()

	var entries []model.DedupEntry
	for rows.Next() {
		var e model.DedupEntry
		if err := rows.Scan(&e.OrganizationID, &e.TitleHash, pq.Array(&e.Tokens),
			&e.SourceDomain, &e.CreatedAt, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan dedup entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *pgDedup) Insert(ctx context.Context, entry model.DedupEntry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO dedup_index
			(organization_id, title_hash, tokens, source_domain, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id, title_hash) DO NOTHING`,
		entry.OrganizationID, entry.TitleHash, pq.Array(entry.Tokens),
		entry.SourceDomain, entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert dedup entry: %w", err)
	}
	return nil
}

type pgIndustry Postgres

func (p *pgIndustry) Get(ctx context.Context, contentHash, institutionType string, now time.Time) (*model.IndustryCacheEntry, error) {
	var entry model.IndustryCacheEntry
	var scores []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT content_hash, institution_type, summary, key_themes, category_scores,
		       suggested_impact, confidence, hit_count, reuse_count, created_at, expires_at
		FROM industry_cache
		WHERE content_hash = $1 AND institution_type = $2 AND expires_at > $3`,
		contentHash, institutionType, now).Scan(
		&entry.ContentHash, &entry.InstitutionType, &entry.Summary,
		pq.Array(&entry.KeyThemes), &scores, &entry.SuggestedImpact,
		&entry.Confidence, &entry.HitCount, &entry.ReuseCount,
		&entry.CreatedAt, &entry.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get industry cache entry: %w", err)
	}
	if err := json.Unmarshal(scores, &entry.CategoryScores); err != nil {
		return nil, fmt.Errorf("decode category scores: %w", err)
	}
	return &entry, nil
}

func (p *pgIndustry) Put(ctx context.Context, entry model.IndustryCacheEntry) error {
	scores, err := json.Marshal(entry.CategoryScores)
	if err != nil {
		return fmt.Errorf("encode category scores: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO industry_cache
			(content_hash, institution_type, summary, key_themes, category_scores,
			 suggested_impact, confidence, hit_count, reuse_count, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9)
		ON CONFLICT (content_hash, institution_type) DO UPDATE SET
			summary = EXCLUDED.summary,
			key_themes = EXCLUDED.key_themes,
			category_scores = EXCLUDED.category_scores,
			suggested_impact = EXCLUDED.suggested_impact,
			confidence = EXCLUDED.confidence,
			expires_at = EXCLUDED.expires_at`,
		entry.ContentHash, entry.InstitutionType, entry.Summary,
		pq.Array(entry.KeyThemes), scores, entry.SuggestedImpact,
		entry.Confidence, entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put industry cache entry: %w", err)
	}
	return nil
}

func (p *pgIndustry) RecordHit(ctx context.Context, contentHash, institutionType string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE industry_cache
		SET hit_count = hit_count + 1, reuse_count = reuse_count + 1
		WHERE content_hash = $1 AND institution_type = $2`,
		contentHash, institutionType)
	if err != nil {
		return fmt.Errorf("record cache hit: %w", err)
	}
	return nil
}

type pgOrgCache Postgres

func (p *pgOrgCache) Get(ctx context.Context, eventID, orgID, riskCode string, now time.Time) (*model.OrgCacheEntry, error) {
	var entry model.OrgCacheEntry
	err := p.db.QueryRowContext(ctx, `
		SELECT event_id, organization_id, risk_code, reasoning, likelihood_delta,
		       impact_delta, controls, model, confidence, created_at, expires_at
		FROM org_cache
		WHERE event_id = $1 AND organization_id = $2 AND risk_code = $3 AND expires_at > $4`,
		eventID, orgID, riskCode, now).Scan(
		&entry.EventID, &entry.OrganizationID, &entry.RiskCode, &entry.Reasoning,
		&entry.LikelihoodDelta, &entry.ImpactDelta, pq.Array(&entry.Controls),
		&entry.Model, &entry.Confidence, &entry.CreatedAt, &entry.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get org cache entry: %w", err)
	}
	return &entry, nil
}

func (p *pgOrgCache) Put(ctx context.Context, entry model.OrgCacheEntry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO org_cache
			(event_id, organization_id, risk_code, reasoning, likelihood_delta,
			 impact_delta, controls, model, confidence, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id, organization_id, risk_code) DO UPDATE SET
			reasoning = EXCLUDED.reasoning,
			likelihood_delta = EXCLUDED.likelihood_delta,
			impact_delta = EXCLUDED.impact_delta,
			controls = EXCLUDED.controls,
			model = EXCLUDED.model,
			confidence = EXCLUDED.confidence,
			expires_at = EXCLUDED.expires_at`,
		entry.EventID, entry.OrganizationID, entry.RiskCode, entry.Reasoning,
		entry.LikelihoodDelta, entry.ImpactDelta, pq.Array(entry.Controls),
		entry.Model, entry.Confidence, entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put org cache entry: %w", err)
	}
	return nil
}

type pgAlerts Postgres

func (p *pgAlerts) Upsert(ctx context.Context, alert model.RiskIntelligenceAlert) (bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	var inserted bool
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO risk_intelligence_alerts
			(id, organization_id, event_id, risk_code, confidence, likelihood_delta,
			 impact_delta, reasoning, controls, model, status, applied_to_risk,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12, $13)
		ON CONFLICT (event_id, risk_code) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			likelihood_delta = EXCLUDED.likelihood_delta,
			impact_delta = EXCLUDED.impact_delta,
			reasoning = EXCLUDED.reasoning,
			controls = EXCLUDED.controls,
			model = EXCLUDED.model,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)`,
		alert.ID, alert.OrganizationID, alert.EventID, alert.RiskCode,
		alert.Confidence, alert.LikelihoodDelta, alert.ImpactDelta,
		alert.Reasoning, pq.Array(alert.Controls), alert.Model,
		alert.Status, alert.CreatedAt, alert.UpdatedAt).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert alert: %w", err)
	}
	return inserted, nil
}

func (p *pgAlerts) ListByEvent(ctx context.Context, eventID string) ([]model.RiskIntelligenceAlert, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, organization_id, event_id, risk_code, confidence, likelihood_delta,
		       impact_delta, reasoning, controls, COALESCE(model, ''), status,
		       applied_to_risk, created_at, updated_at
		FROM risk_intelligence_alerts
		WHERE event_id = $1
		ORDER BY risk_code`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.RiskIntelligenceAlert
	for rows.Next() {
		var a model.RiskIntelligenceAlert
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.EventID, &a.RiskCode,
			&a.Confidence, &a.LikelihoodDelta, &a.ImpactDelta, &a.Reasoning,
			pq.Array(&a.Controls), &a.Model, &a.Status, &a.AppliedToRisk,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
