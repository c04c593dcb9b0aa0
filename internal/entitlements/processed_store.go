package entitlements

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedStore is the idempotency ledger for payment events. A row is
// written only after the entitlement was applied, so a failed delivery is
// retried in full by the provider.
type ProcessedStore struct {
	db rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("entitlements: pgx pool required")
	}
	return &ProcessedStore{db: pool}
}

func newProcessedStoreWithExec(db rowQuerier) *ProcessedStore {
	if db == nil {
		panic("entitlements: exec required")
	}
	return &ProcessedStore{db: db}
}

func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2)`
	var exists bool
	if err := s.db.QueryRow(ctx, query, provider, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("entitlements: check processed event: %w", err)
	}
	return exists, nil
}

// MarkProcessed records the event and the identity it was applied to. It
// reports false when another delivery recorded the event first.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID, identityID string) (bool, error) {
	query := `
		INSERT INTO processed_events (provider, event_id, identity_id)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (provider, event_id) DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, provider, eventID, identityID)
	if err != nil {
		return false, fmt.Errorf("entitlements: mark processed event: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
