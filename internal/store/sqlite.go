package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
)

// SQLiteStore implements Store using an embedded SQLite database. Suitable
// for single-operator CLI runs where no Postgres is available.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path. Use ":memory:" for an
// ephemeral database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// modernc sqlite serializes writes; one writer connection avoids
	// SQLITE_BUSY under concurrent ingestion.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA synchronous = NORMAL`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: %s", p)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL DEFAULT '',
	business_type     TEXT NOT NULL,
	city              TEXT NOT NULL,
	required_services TEXT NOT NULL DEFAULT '[]',
	source            TEXT NOT NULL DEFAULT 'maps',
	status            TEXT NOT NULL DEFAULT 'pending',
	total_results     INTEGER NOT NULL DEFAULT 0,
	matching_results  INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS businesses (
	id              TEXT PRIMARY KEY,
	search_id       TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
	external_id     TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL,
	address         TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	rating          REAL NOT NULL DEFAULT 0,
	reviews         INTEGER NOT NULL DEFAULT 0,
	description     TEXT NOT NULL DEFAULT '',
	decision_makers TEXT,
	contact_actions TEXT NOT NULL DEFAULT '[]',
	contact_status  TEXT NOT NULL DEFAULT '',
	lead_status     TEXT NOT NULL DEFAULT 'no_contact',
	sales_stage     TEXT NOT NULL DEFAULT '',
	contacted_at    TIMESTAMP,
	contacted_by    TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS service_analyses (
	id                  TEXT PRIMARY KEY,
	business_id         TEXT NOT NULL UNIQUE REFERENCES businesses(id) ON DELETE CASCADE,
	search_id           TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
	detected_services   TEXT NOT NULL DEFAULT '[]',
	confidence          REAL NOT NULL DEFAULT 0,
	evidence            TEXT NOT NULL DEFAULT '',
	matches_requirement INTEGER NOT NULL DEFAULT 0,
	match_percentage    REAL NOT NULL DEFAULT 0,
	created_at          TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS contact_history (
	id          TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_searches_status ON searches(status);
CREATE INDEX IF NOT EXISTS idx_businesses_search_id ON businesses(search_id);
CREATE INDEX IF NOT EXISTS idx_businesses_external_id ON businesses(search_id, external_id);
CREATE INDEX IF NOT EXISTS idx_businesses_lead_status ON businesses(lead_status);
CREATE INDEX IF NOT EXISTS idx_contact_history_business_id ON contact_history(business_id);
CREATE INDEX IF NOT EXISTS idx_service_analyses_search_id ON service_analyses(search_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- searches ---

func (s *SQLiteStore) CreateSearch(ctx context.Context, search *model.Search) error {
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
		return eris.Wrap(err, "sqlite: marshal required services")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO searches (id, user_id, business_type, city, required_services, source, status, total_results, matching_results, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		search.ID, search.UserID, search.BusinessType, search.City, string(servicesJSON),
		string(search.Source), string(search.Status), search.TotalResults, search.MatchingResults,
		search.CreatedAt, search.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert search")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSearchSQLite(row rowScanner) (*model.Search, error) {
	var sr model.Search
	var servicesJSON string
	err := row.Scan(&sr.ID, &sr.UserID, &sr.BusinessType, &sr.City, &servicesJSON,
		&sr.Source, &sr.Status, &sr.TotalResults, &sr.MatchingResults, &sr.CreatedAt, &sr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if servicesJSON != "" {
		if err := json.Unmarshal([]byte(servicesJSON), &sr.RequiredServices); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal required services")
		}
	}
	return &sr, nil
}

func (s *SQLiteStore) GetSearch(ctx context.Context, id string) (*model.Search, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+searchColumns+` FROM searches WHERE id = ?`, id)
	sr, err := scanSearchSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get search %s", id)
	}
	return sr, nil
}

func (s *SQLiteStore) ListSearches(ctx context.Context, filter SearchFilter) ([]model.Search, error) {
	query := `SELECT ` + searchColumns + ` FROM searches WHERE 1=1`
	args := []any{}

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list searches")
	}
	defer rows.Close()

	var searches []model.Search
	for rows.Next() {
		sr, err := scanSearchSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search")
		}
		searches = append(searches, *sr)
	}
	return searches, eris.Wrap(rows.Err(), "sqlite: list searches rows")
}

func (s *SQLiteStore) UpdateSearchStatus(ctx context.Context, id string, status model.SearchStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update search status %s", id)
	}
	return noneUpdated(res)
}

func (s *SQLiteStore) UpdateSearchTotals(ctx context.Context, id string, total, matching int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET total_results = ?, matching_results = ?, updated_at = ? WHERE id = ?`,
		total, matching, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update search totals %s", id)
	}
	return noneUpdated(res)
}

func (s *SQLiteStore) DeleteSearch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete search %s", id)
	}
	return noneUpdated(res)
}

func (s *SQLiteStore) SweepStaleSearches(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		string(model.SearchFailed), time.Now().UTC(), string(model.SearchProcessing), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: sweep stale searches")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: sweep rows affected")
	}
	return int(n), nil
}

// --- businesses ---

func (s *SQLiteStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.LeadStatus == "" {
		b.LeadStatus = model.LeadNoContact
	}

	var dmJSON any
	if b.DecisionMakers != nil {
		raw, err := json.Marshal(b.DecisionMakers)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal decision makers")
		}
		dmJSON = string(raw)
	}
	actionsJSON, err := json.Marshal(emptyIfNil(b.ContactActions))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contact actions")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO businesses (id, search_id, external_id, name, address, phone, website, rating, reviews, description,
		 decision_makers, contact_actions, lead_status, sales_stage, contacted_at, contacted_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SearchID, b.ExternalID, b.Name, b.Address, b.Phone, b.Website, b.Rating, b.Reviews, b.Description,
		dmJSON, string(actionsJSON), string(b.LeadStatus), string(b.SalesStage), b.ContactedAt, b.ContactedBy,
		b.CreatedAt, b.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert business")
}

func scanBusinessSQLite(row rowScanner) (*model.Business, error) {
	var b model.Business
	var dmJSON sql.NullString
	var actionsJSON, legacyContactStatus string
	var contactedAt sql.NullTime

	err := row.Scan(&b.ID, &b.SearchID, &b.ExternalID, &b.Name, &b.Address, &b.Phone, &b.Website,
		&b.Rating, &b.Reviews, &b.Description, &dmJSON, &actionsJSON, &legacyContactStatus,
		&b.LeadStatus, &b.SalesStage, &contactedAt, &b.ContactedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if dmJSON.Valid && dmJSON.String != "" {
		if err := json.Unmarshal([]byte(dmJSON.String), &b.DecisionMakers); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal decision makers")
		}
	}
	if actionsJSON != "" {
		if err := json.Unmarshal([]byte(actionsJSON), &b.ContactActions); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal contact actions")
		}
	}
	if contactedAt.Valid {
		t := contactedAt.Time.UTC()
		b.ContactedAt = &t
	}

	b.Normalize(legacyContactStatus)
	return &b, nil
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id)
	b, err := scanBusinessSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get business %s", id)
	}
	return b, nil
}

func (s *SQLiteStore) ListBusinesses(ctx context.Context, filter BusinessFilter) ([]*model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE 1=1`
	args := []any{}

	if filter.SearchID != "" {
		query += ` AND search_id = ?`
		args = append(args, filter.SearchID)
	}
	if filter.LeadStatus != "" {
		query += ` AND lead_status = ?`
		args = append(args, string(filter.LeadStatus))
	}
	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += ` LIMIT -1`
		}
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list businesses")
	}
	defer rows.Close()

	var businesses []*model.Business
	for rows.Next() {
		b, err := scanBusinessSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business")
		}
		businesses = append(businesses, b)
	}
	return businesses, eris.Wrap(rows.Err(), "sqlite: list businesses rows")
}

func (s *SQLiteStore) UpdateSalesStage(ctx context.Context, id string, stage model.SalesStage) error {
	if !model.ValidStage(stage) {
		return eris.Errorf("sqlite: invalid sales stage %q", stage)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET sales_stage = ?, updated_at = ? WHERE id = ?`,
		string(stage), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update sales stage %s", id)
	}
	return noneUpdated(res)
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET lead_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", id)
	}
	return noneUpdated(res)
}

func (s *SQLiteStore) ExternalIDs(ctx context.Context, searchID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id FROM businesses WHERE search_id = ? AND external_id <> ''`, searchID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list external ids")
	}
	defer rows.Close()

	ids := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan external id")
		}
		ids[id] = true
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: external ids rows")
}

// --- service analyses ---

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, a *model.ServiceAnalysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()

	servicesJSON, err := json.Marshal(emptyIfNil(a.DetectedServices))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal detected services")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO service_analyses (id, business_id, search_id, detected_services, confidence, evidence, matches_requirement, match_percentage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.BusinessID, a.SearchID, string(servicesJSON), a.Confidence, a.Evidence,
		a.MatchesRequirement, a.MatchPercentage, a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert analysis")
}

func (s *SQLiteStore) GetAnalysisForBusiness(ctx context.Context, businessID string) (*model.ServiceAnalysis, error) {
	var a model.ServiceAnalysis
	var servicesJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, search_id, detected_services, confidence, evidence, matches_requirement, match_percentage, created_at
		 FROM service_analyses WHERE business_id = ?`, businessID,
	).Scan(&a.ID, &a.BusinessID, &a.SearchID, &servicesJSON, &a.Confidence, &a.Evidence,
		&a.MatchesRequirement, &a.MatchPercentage, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis for business %s", businessID)
	}

	if servicesJSON != "" {
		if err := json.Unmarshal([]byte(servicesJSON), &a.DetectedServices); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal detected services")
		}
	}
	return &a, nil
}

// --- contact history ---

func (s *SQLiteStore) AddContactHistory(ctx context.Context, entry *model.ContactHistoryEntry) (*model.Business, error) {
	if !model.ValidAction(entry.Action) {
		return nil, eris.Errorf("sqlite: invalid contact action %q", entry.Action)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin contact history tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contact_history (id, business_id, user_id, action, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.BusinessID, entry.UserID, string(entry.Action), entry.Notes, entry.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert contact history")
	}

	row := tx.QueryRowContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = ?`, entry.BusinessID)
	b, err := scanBusinessSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get business %s", entry.BusinessID)
	}

	b.RecordAction(entry.Action, entry.UserID, now)
	b.UpdatedAt = now

	actionsJSON, err := json.Marshal(b.ContactActions)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal contact actions")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE businesses SET contact_actions = ?, contacted_at = ?, contacted_by = ?, updated_at = ? WHERE id = ?`,
		string(actionsJSON), b.ContactedAt, b.ContactedBy, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: update business contact set")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit contact history tx")
	}
	return b, nil
}

func (s *SQLiteStore) ListContactHistory(ctx context.Context, businessID string) ([]model.ContactHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, business_id, user_id, action, notes, created_at FROM contact_history
		 WHERE business_id = ? ORDER BY created_at DESC`, businessID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contact history")
	}
	defer rows.Close()

	var entries []model.ContactHistoryEntry
	for rows.Next() {
		var e model.ContactHistoryEntry
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.UserID, &e.Action, &e.Notes, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact history")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: contact history rows")
}

func noneUpdated(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
