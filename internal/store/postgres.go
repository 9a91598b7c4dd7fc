package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL DEFAULT '',
	business_type     TEXT NOT NULL,
	city              TEXT NOT NULL,
	required_services JSONB NOT NULL DEFAULT '[]',
	source            TEXT NOT NULL DEFAULT 'maps',
	status            TEXT NOT NULL DEFAULT 'pending',
	total_results     INTEGER NOT NULL DEFAULT 0,
	matching_results  INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS businesses (
	id              TEXT PRIMARY KEY,
	search_id       TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
	external_id     TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL,
	address         TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	rating          DOUBLE PRECISION NOT NULL DEFAULT 0,
	reviews         INTEGER NOT NULL DEFAULT 0,
	description     TEXT NOT NULL DEFAULT '',
	decision_makers JSONB,
	contact_actions JSONB NOT NULL DEFAULT '[]',
	contact_status  TEXT NOT NULL DEFAULT '',
	lead_status     TEXT NOT NULL DEFAULT 'no_contact',
	sales_stage     TEXT NOT NULL DEFAULT '',
	contacted_at    TIMESTAMPTZ,
	contacted_by    TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS service_analyses (
	id                  TEXT PRIMARY KEY,
	business_id         TEXT NOT NULL UNIQUE REFERENCES businesses(id) ON DELETE CASCADE,
	search_id           TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
	detected_services   JSONB NOT NULL DEFAULT '[]',
	confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
	evidence            TEXT NOT NULL DEFAULT '',
	matches_requirement BOOLEAN NOT NULL DEFAULT false,
	match_percentage    DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contact_history (
	id          TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_searches_status ON searches(status);
CREATE INDEX IF NOT EXISTS idx_businesses_search_id ON businesses(search_id);
CREATE INDEX IF NOT EXISTS idx_businesses_external_id ON businesses(search_id, external_id);
CREATE INDEX IF NOT EXISTS idx_businesses_lead_status ON businesses(lead_status);
CREATE INDEX IF NOT EXISTS idx_contact_history_business_id ON contact_history(business_id);
CREATE INDEX IF NOT EXISTS idx_service_analyses_search_id ON service_analyses(search_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- searches ---

func (s *PostgresStore) CreateSearch(ctx context.Context, search *model.Search) error {
	if search.ID == "" {
		search.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	search.CreatedAt = now
	search.UpdatedAt = now
	if search.Status == "" {
		search.Status = model.SearchPending
	}
	if search.Source == "" {
		search.Source = model.SourceMaps
	}

	servicesJSON, err := json.Marshal(emptyIfNil(search.RequiredServices))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal required services")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO searches (id, user_id, business_type, city, required_services, source, status, total_results, matching_results, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		search.ID, search.UserID, search.BusinessType, search.City, servicesJSON,
		string(search.Source), string(search.Status), search.TotalResults, search.MatchingResults,
		search.CreatedAt, search.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert search")
}

const searchColumns = `id, user_id, business_type, city, required_services, source, status, total_results, matching_results, created_at, updated_at`

func scanSearch(row pgx.Row) (*model.Search, error) {
	var sr model.Search
	var servicesJSON []byte
	err := row.Scan(&sr.ID, &sr.UserID, &sr.BusinessType, &sr.City, &servicesJSON,
		&sr.Source, &sr.Status, &sr.TotalResults, &sr.MatchingResults, &sr.CreatedAt, &sr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(servicesJSON) > 0 {
		if err := json.Unmarshal(servicesJSON, &sr.RequiredServices); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal required services")
		}
	}
	return &sr, nil
}

func (s *PostgresStore) GetSearch(ctx context.Context, id string) (*model.Search, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+searchColumns+` FROM searches WHERE id = $1`, id)
	sr, err := scanSearch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get search %s", id)
	}
	return sr, nil
}

func (s *PostgresStore) ListSearches(ctx context.Context, filter SearchFilter) ([]model.Search, error) {
	query := `SELECT ` + searchColumns + ` FROM searches WHERE true`
	args := []any{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list searches")
	}
	defer rows.Close()

	var searches []model.Search
	for rows.Next() {
		sr, err := scanSearch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan search")
		}
		searches = append(searches, *sr)
	}
	return searches, eris.Wrap(rows.Err(), "postgres: list searches rows")
}

func (s *PostgresStore) UpdateSearchStatus(ctx context.Context, id string, status model.SearchStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE searches SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update search status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateSearchTotals(ctx context.Context, id string, total, matching int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE searches SET total_results = $1, matching_results = $2, updated_at = $3 WHERE id = $4`,
		total, matching, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update search totals %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteSearch(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM searches WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete search %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SweepStaleSearches(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`UPDATE searches SET status = $1, updated_at = $2 WHERE status = $3 AND updated_at < $4`,
		string(model.SearchFailed), time.Now().UTC(), string(model.SearchProcessing), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: sweep stale searches")
	}
	return int(tag.RowsAffected()), nil
}

// --- businesses ---

const businessColumns = `id, search_id, external_id, name, address, phone, website, rating, reviews, description,
	decision_makers, contact_actions, contact_status, lead_status, sales_stage, contacted_at, contacted_by, created_at, updated_at`

func (s *PostgresStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.LeadStatus == "" {
		b.LeadStatus = model.LeadNoContact
	}

	var dmJSON []byte
	if b.DecisionMakers != nil {
		var err error
		dmJSON, err = json.Marshal(b.DecisionMakers)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal decision makers")
		}
	}
	actionsJSON, err := json.Marshal(emptyIfNil(b.ContactActions))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal contact actions")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO businesses (id, search_id, external_id, name, address, phone, website, rating, reviews, description,
		 decision_makers, contact_actions, lead_status, sales_stage, contacted_at, contacted_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		b.ID, b.SearchID, b.ExternalID, b.Name, b.Address, b.Phone, b.Website, b.Rating, b.Reviews, b.Description,
		dmJSON, actionsJSON, string(b.LeadStatus), string(b.SalesStage), b.ContactedAt, b.ContactedBy,
		b.CreatedAt, b.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert business")
}

func scanBusiness(row pgx.Row) (*model.Business, error) {
	var b model.Business
	var dmJSON, actionsJSON []byte
	var legacyContactStatus string

	err := row.Scan(&b.ID, &b.SearchID, &b.ExternalID, &b.Name, &b.Address, &b.Phone, &b.Website,
		&b.Rating, &b.Reviews, &b.Description, &dmJSON, &actionsJSON, &legacyContactStatus,
		&b.LeadStatus, &b.SalesStage, &b.ContactedAt, &b.ContactedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(dmJSON) > 0 {
		if err := json.Unmarshal(dmJSON, &b.DecisionMakers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision makers")
		}
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &b.ContactActions); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal contact actions")
		}
	}

	// Legacy generations are normalized here, at the storage boundary, so
	// no consumer ever sees them.
	b.Normalize(legacyContactStatus)
	return &b, nil
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id)
	b, err := scanBusiness(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get business %s", id)
	}
	return b, nil
}

func (s *PostgresStore) ListBusinesses(ctx context.Context, filter BusinessFilter) ([]*model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SearchID != "" {
		query += fmt.Sprintf(` AND search_id = $%d`, argIdx)
		args = append(args, filter.SearchID)
		argIdx++
	}
	if filter.LeadStatus != "" {
		query += fmt.Sprintf(` AND lead_status = $%d`, argIdx)
		args = append(args, string(filter.LeadStatus))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list businesses")
	}
	defer rows.Close()

	var businesses []*model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		businesses = append(businesses, b)
	}
	return businesses, eris.Wrap(rows.Err(), "postgres: list businesses rows")
}

func (s *PostgresStore) UpdateSalesStage(ctx context.Context, id string, stage model.SalesStage) error {
	if !model.ValidStage(stage) {
		return eris.Errorf("postgres: invalid sales stage %q", stage)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE businesses SET sales_stage = $1, updated_at = $2 WHERE id = $3`,
		string(stage), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update sales stage %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE businesses SET lead_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ExternalIDs(ctx context.Context, searchID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT external_id FROM businesses WHERE search_id = $1 AND external_id <> ''`, searchID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list external ids")
	}
	defer rows.Close()

	ids := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan external id")
		}
		ids[id] = true
	}
	return ids, eris.Wrap(rows.Err(), "postgres: external ids rows")
}

// --- service analyses ---

func (s *PostgresStore) CreateAnalysis(ctx context.Context, a *model.ServiceAnalysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()

	servicesJSON, err := json.Marshal(emptyIfNil(a.DetectedServices))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal detected services")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO service_analyses (id, business_id, search_id, detected_services, confidence, evidence, matches_requirement, match_percentage, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.BusinessID, a.SearchID, servicesJSON, a.Confidence, a.Evidence,
		a.MatchesRequirement, a.MatchPercentage, a.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert analysis")
}

func (s *PostgresStore) GetAnalysisForBusiness(ctx context.Context, businessID string) (*model.ServiceAnalysis, error) {
	var a model.ServiceAnalysis
	var servicesJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, business_id, search_id, detected_services, confidence, evidence, matches_requirement, match_percentage, created_at
		 FROM service_analyses WHERE business_id = $1`, businessID,
	).Scan(&a.ID, &a.BusinessID, &a.SearchID, &servicesJSON, &a.Confidence, &a.Evidence,
		&a.MatchesRequirement, &a.MatchPercentage, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis for business %s", businessID)
	}

	if len(servicesJSON) > 0 {
		if err := json.Unmarshal(servicesJSON, &a.DetectedServices); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal detected services")
		}
	}
	return &a, nil
}

// --- contact history ---

func (s *PostgresStore) AddContactHistory(ctx context.Context, entry *model.ContactHistoryEntry) (*model.Business, error) {
	if !model.ValidAction(entry.Action) {
		return nil, eris.Errorf("postgres: invalid contact action %q", entry.Action)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin contact history tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO contact_history (id, business_id, user_id, action, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.BusinessID, entry.UserID, string(entry.Action), entry.Notes, entry.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert contact history")
	}

	row := tx.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1 FOR UPDATE`, entry.BusinessID)
	b, err := scanBusiness(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get business %s", entry.BusinessID)
	}

	b.RecordAction(entry.Action, entry.UserID, now)
	b.UpdatedAt = now

	actionsJSON, err := json.Marshal(b.ContactActions)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal contact actions")
	}

	_, err = tx.Exec(ctx,
		`UPDATE businesses SET contact_actions = $1, contacted_at = $2, contacted_by = $3, updated_at = $4 WHERE id = $5`,
		actionsJSON, b.ContactedAt, b.ContactedBy, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: update business contact set")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit contact history tx")
	}
	return b, nil
}

func (s *PostgresStore) ListContactHistory(ctx context.Context, businessID string) ([]model.ContactHistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, business_id, user_id, action, notes, created_at FROM contact_history
		 WHERE business_id = $1 ORDER BY created_at DESC`, businessID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contact history")
	}
	defer rows.Close()

	var entries []model.ContactHistoryEntry
	for rows.Next() {
		var e model.ContactHistoryEntry
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.UserID, &e.Action, &e.Notes, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact history")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: contact history rows")
}

// emptyIfNil keeps JSON columns as [] instead of null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
