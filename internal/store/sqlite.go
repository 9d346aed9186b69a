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

	"github.com/sells-group/realty-ai/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tenant_settings (
	tenant_id  TEXT PRIMARY KEY,
	provider   TEXT NOT NULL,
	api_key    TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	endpoint   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS valuations (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	request    TEXT NOT NULL,
	result     TEXT NOT NULL,
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lead_scores (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	lead_id    TEXT NOT NULL DEFAULT '',
	request    TEXT NOT NULL,
	result     TEXT NOT NULL,
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_valuations_tenant ON valuations(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_lead_scores_tenant_lead ON lead_scores(tenant_id, lead_id, created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetTenantSettings(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	var ts model.TenantSettings
	var provider string
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, provider, api_key, model, endpoint, updated_at FROM tenant_settings WHERE tenant_id = ?`,
		tenantID,
	).Scan(&ts.TenantID, &provider, &ts.APIKey, &ts.Model, &ts.Endpoint, &ts.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get tenant settings %s", tenantID)
	}
	ts.Provider = model.ProviderKind(provider)
	return &ts, nil
}

func (s *SQLiteStore) UpsertTenantSettings(ctx context.Context, settings *model.TenantSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_settings (tenant_id, provider, api_key, model, endpoint, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET
			provider = excluded.provider,
			api_key = excluded.api_key,
			model = excluded.model,
			endpoint = excluded.endpoint,
			updated_at = excluded.updated_at`,
		settings.TenantID, string(settings.Provider), settings.APIKey, settings.Model, settings.Endpoint, settings.UpdatedAt,
	)
	return eris.Wrapf(retryable(err), "sqlite: upsert tenant settings %s", settings.TenantID)
}

func (s *SQLiteStore) SaveValuation(ctx context.Context, rec *model.ValuationRecord) error {
	stampValuation(rec)
	reqJSON, resJSON, err := marshalPair(rec.Request, rec.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal valuation")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO valuations (id, tenant_id, request, result, provider, model, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, string(reqJSON), string(resJSON), string(rec.Provider), rec.Model, rec.CreatedAt,
	)
	return eris.Wrap(retryable(err), "sqlite: insert valuation")
}

func (s *SQLiteStore) ListValuations(ctx context.Context, tenantID string, limit int) ([]model.ValuationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, request, result, provider, model, created_at FROM valuations
		 WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ?`,
		tenantID, clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list valuations")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.ValuationRecord{}
	for rows.Next() {
		var r model.ValuationRecord
		var reqJSON, resJSON, provider string
		if err := rows.Scan(&r.ID, &r.TenantID, &reqJSON, &resJSON, &provider, &r.Model, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan valuation")
		}
		if err := unmarshalPair([]byte(reqJSON), &r.Request, []byte(resJSON), &r.Result); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode valuation %s", r.ID)
		}
		r.Provider = model.ProviderKind(provider)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list valuations iterate")
}

func (s *SQLiteStore) SaveLeadScore(ctx context.Context, rec *model.LeadScoreRecord) error {
	return s.insertLeadScore(ctx, s.db, rec)
}

// SaveLeadScores inserts recs in one transaction.
func (s *SQLiteStore) SaveLeadScores(ctx context.Context, recs []model.LeadScoreRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(retryable(err), "sqlite: begin lead scores")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range recs {
		if err := s.insertLeadScore(ctx, tx, &recs[i]); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(retryable(err), "sqlite: commit lead scores")
	}
	return int64(len(recs)), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insertLeadScore(ctx context.Context, ex execer, rec *model.LeadScoreRecord) error {
	stampLeadScore(rec)
	reqJSON, resJSON, err := marshalPair(rec.Request, rec.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lead score")
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO lead_scores (id, tenant_id, lead_id, request, result, provider, model, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.LeadID, string(reqJSON), string(resJSON), string(rec.Provider), rec.Model, rec.CreatedAt,
	)
	return eris.Wrap(retryable(err), "sqlite: insert lead score")
}

func (s *SQLiteStore) ListLeadScores(ctx context.Context, tenantID, leadID string, limit int) ([]model.LeadScoreRecord, error) {
	query := `SELECT id, tenant_id, lead_id, request, result, provider, model, created_at FROM lead_scores WHERE tenant_id = ?`
	args := []any{tenantID}
	if leadID != "" {
		query += ` AND lead_id = ?`
		args = append(args, leadID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, clampLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lead scores")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.LeadScoreRecord{}
	for rows.Next() {
		var r model.LeadScoreRecord
		var reqJSON, resJSON, provider string
		if err := rows.Scan(&r.ID, &r.TenantID, &r.LeadID, &reqJSON, &resJSON, &provider, &r.Model, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead score")
		}
		if err := unmarshalPair([]byte(reqJSON), &r.Request, []byte(resJSON), &r.Result); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode lead score %s", r.ID)
		}
		r.Provider = model.ProviderKind(provider)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list lead scores iterate")
}

// helpers shared by both backends

func stampValuation(rec *model.ValuationRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

func stampLeadScore(rec *model.LeadScoreRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

func marshalPair(req, res any) ([]byte, []byte, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		return nil, nil, err
	}
	return reqJSON, resJSON, nil
}

func unmarshalPair(reqJSON []byte, req any, resJSON []byte, res any) error {
	if err := json.Unmarshal(reqJSON, req); err != nil {
		return err
	}
	return json.Unmarshal(resJSON, res)
}
