// Package store persists tenant provider settings and the history of
// valuations and lead scores.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/realty-ai/internal/db"
	"github.com/sells-group/realty-ai/internal/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store defines the persistence interface for tenants and their results.
type Store interface {
	// Tenant settings. GetTenantSettings returns nil, nil when the tenant
	// has never saved settings.
	GetTenantSettings(ctx context.Context, tenantID string) (*model.TenantSettings, error)
	UpsertTenantSettings(ctx context.Context, settings *model.TenantSettings) error

	// Valuations
	SaveValuation(ctx context.Context, rec *model.ValuationRecord) error
	ListValuations(ctx context.Context, tenantID string, limit int) ([]model.ValuationRecord, error)

	// Lead scores. An empty leadID lists every score for the tenant.
	SaveLeadScore(ctx context.Context, rec *model.LeadScoreRecord) error
	SaveLeadScores(ctx context.Context, recs []model.LeadScoreRecord) (int64, error)
	ListLeadScores(ctx context.Context, tenantID, leadID string, limit int) ([]model.LeadScoreRecord, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the Store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string, poolCfg db.PoolConfig) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
