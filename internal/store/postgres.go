package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/realty-ai/internal/db"
	"github.com/sells-group/realty-ai/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tenant_settings (
	tenant_id  TEXT PRIMARY KEY,
	provider   TEXT NOT NULL,
	api_key    TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	endpoint   TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS valuations (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id  TEXT NOT NULL,
	request    JSONB NOT NULL,
	result     JSONB NOT NULL,
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lead_scores (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id  TEXT NOT NULL,
	lead_id    TEXT NOT NULL DEFAULT '',
	request    JSONB NOT NULL,
	result     JSONB NOT NULL,
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_valuations_tenant ON valuations(tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_lead_scores_tenant_lead ON lead_scores(tenant_id, lead_id, created_at DESC);
`

var leadScoreColumns = []string{"id", "tenant_id", "lead_id", "request", "result", "provider", "model", "created_at"}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetTenantSettings(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	var ts model.TenantSettings
	var provider string
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, provider, api_key, model, endpoint, updated_at FROM tenant_settings WHERE tenant_id = $1`,
		tenantID,
	).Scan(&ts.TenantID, &provider, &ts.APIKey, &ts.Model, &ts.Endpoint, &ts.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get tenant settings %s", tenantID)
	}
	ts.Provider = model.ProviderKind(provider)
	return &ts, nil
}

func (s *PostgresStore) UpsertTenantSettings(ctx context.Context, settings *model.TenantSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenant_settings (tenant_id, provider, api_key, model, endpoint, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			api_key = EXCLUDED.api_key,
			model = EXCLUDED.model,
			endpoint = EXCLUDED.endpoint,
			updated_at = EXCLUDED.updated_at`,
		settings.TenantID, string(settings.Provider), settings.APIKey, settings.Model, settings.Endpoint, settings.UpdatedAt,
	)
	return eris.Wrapf(retryable(err), "postgres: upsert tenant settings %s", settings.TenantID)
}

func (s *PostgresStore) SaveValuation(ctx context.Context, rec *model.ValuationRecord) error {
	stampValuation(rec)
	reqJSON, resJSON, err := marshalPair(rec.Request, rec.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal valuation")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO valuations (id, tenant_id, request, result, provider, model, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.TenantID, reqJSON, resJSON, string(rec.Provider), rec.Model, rec.CreatedAt,
	)
	return eris.Wrap(retryable(err), "postgres: insert valuation")
}

func (s *PostgresStore) ListValuations(ctx context.Context, tenantID string, limit int) ([]model.ValuationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, request, result, provider, model, created_at FROM valuations
		 WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`,
		tenantID, clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list valuations")
	}
	defer rows.Close()

	out := []model.ValuationRecord{}
	for rows.Next() {
		var r model.ValuationRecord
		var reqJSON, resJSON []byte
		var provider string
		if err := rows.Scan(&r.ID, &r.TenantID, &reqJSON, &resJSON, &provider, &r.Model, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan valuation")
		}
		if err := unmarshalPair(reqJSON, &r.Request, resJSON, &r.Result); err != nil {
			return nil, eris.Wrapf(err, "postgres: decode valuation %s", r.ID)
		}
		r.Provider = model.ProviderKind(provider)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list valuations iterate")
}

func (s *PostgresStore) SaveLeadScore(ctx context.Context, rec *model.LeadScoreRecord) error {
	stampLeadScore(rec)
	reqJSON, resJSON, err := marshalPair(rec.Request, rec.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead score")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lead_scores (id, tenant_id, lead_id, request, result, provider, model, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.TenantID, rec.LeadID, reqJSON, resJSON, string(rec.Provider), rec.Model, rec.CreatedAt,
	)
	return eris.Wrap(retryable(err), "postgres: insert lead score")
}

// SaveLeadScores bulk-inserts recs with COPY.
func (s *PostgresStore) SaveLeadScores(ctx context.Context, recs []model.LeadScoreRecord) (int64, error) {
	for i := range recs {
		stampLeadScore(&recs[i])
	}
	n, err := db.CopyFrom(ctx, s.pool, "lead_scores", leadScoreColumns, recs, func(r model.LeadScoreRecord) ([]any, error) {
		reqJSON, resJSON, err := marshalPair(r.Request, r.Result)
		if err != nil {
			return nil, err
		}
		return []any{r.ID, r.TenantID, r.LeadID, reqJSON, resJSON, string(r.Provider), r.Model, r.CreatedAt}, nil
	})
	return n, eris.Wrap(retryable(err), "postgres: save lead scores")
}

func (s *PostgresStore) ListLeadScores(ctx context.Context, tenantID, leadID string, limit int) ([]model.LeadScoreRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, lead_id, request, result, provider, model, created_at FROM lead_scores
		 WHERE tenant_id = $1 AND ($2 = '' OR lead_id = $2) ORDER BY created_at DESC LIMIT $3`,
		tenantID, leadID, clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lead scores")
	}
	defer rows.Close()

	out := []model.LeadScoreRecord{}
	for rows.Next() {
		var r model.LeadScoreRecord
		var reqJSON, resJSON []byte
		var provider string
		if err := rows.Scan(&r.ID, &r.TenantID, &r.LeadID, &reqJSON, &resJSON, &provider, &r.Model, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead score")
		}
		if err := unmarshalPair(reqJSON, &r.Request, resJSON, &r.Result); err != nil {
			return nil, eris.Wrapf(err, "postgres: decode lead score %s", r.ID)
		}
		r.Provider = model.ProviderKind(provider)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list lead scores iterate")
}
