package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory keeps identities and entitlements in the users table.
type PostgresDirectory struct {
	db rowQuerier
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("entitlements: pgx pool required")
	}
	return &PostgresDirectory{db: pool}
}

func newPostgresDirectoryWithExec(db rowQuerier) *PostgresDirectory {
	if db == nil {
		panic("entitlements: exec required")
	}
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) FindByEmail(ctx context.Context, email string) (Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Identity{}, ErrIdentityNotFound
	}
	query := `
		SELECT id::text, email, is_premium, COALESCE(plan, '')
		FROM users
		WHERE lower(email) = lower($1)
		LIMIT 1
	`
	var identity Identity
	err := d.db.QueryRow(ctx, query, email).Scan(&identity.ID, &identity.Email, &identity.IsPremium, &identity.Plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrIdentityNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("entitlements: find user by email: %w", err)
	}
	return identity, nil
}

// SetPremium flips is_premium on. premium_since keeps the first grant time.
func (d *PostgresDirectory) SetPremium(ctx context.Context, identityID, plan string) error {
	query := `
		UPDATE users
		SET is_premium = TRUE,
			plan = $2,
			premium_since = COALESCE(premium_since, now()),
			updated_at = now()
		WHERE id = $1
	`
	ct, err := d.db.Exec(ctx, query, identityID, plan)
	if err != nil {
		return fmt.Errorf("entitlements: set premium: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}
