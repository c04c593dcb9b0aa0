package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/love-auditor/internal/config"
	"github.com/wolfman30/love-auditor/internal/entitlements"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

// BuildPostgresPool connects when DATABASE_URL is set; nil otherwise.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres connected")
	return pool, nil
}

// BuildDirectory selects the identity provider holding the premium flag.
// A nil directory leaves the webhook answering 500.
func BuildDirectory(cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (entitlements.Directory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.IdentityProvider {
	case "clerk", "":
		if strings.TrimSpace(cfg.ClerkSecretKey) == "" {
			logger.Warn("clerk secret key missing; premium upgrades are disabled")
			return nil, nil
		}
		return entitlements.NewClerkDirectory(cfg.ClerkSecretKey, cfg.ClerkAPIURL), nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("bootstrap: postgres identity provider requires DATABASE_URL")
		}
		return entitlements.NewPostgresDirectory(pool), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown identity provider %q", cfg.IdentityProvider)
	}
}

// BuildProcessedStore returns the webhook idempotency ledger, or nil without
// a database. Without it a replayed delivery is still harmless because the
// upgrade is idempotent, but the notify email may repeat.
func BuildProcessedStore(pool *pgxpool.Pool) *entitlements.ProcessedStore {
	if pool == nil {
		return nil
	}
	return entitlements.NewProcessedStore(pool)
}
