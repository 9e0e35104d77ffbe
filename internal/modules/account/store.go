// README: Account store backed by PostgreSQL.
package account

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spotledger/internal/infra"
	"spotledger/internal/types"
)

type Store struct {
	db       *pgxpool.Pool
	currency string
}

func NewStore(db *pgxpool.Pool, currency string) *Store {
	return &Store{db: db, currency: currency}
}

// Ensure inserts the account row if it does not exist yet; an existing row is left untouched.
func (s *Store) Ensure(ctx context.Context, cmd EnsureCommand) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO accounts (id, name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		string(cmd.ID), cmd.Name, string(cmd.Role),
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Account, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT id, name, role, total_earnings, total_bookings, pending_payout, completed_payout, created_at
		FROM accounts
		WHERE id = $1`, string(id),
	)

	var a Account
	var total, pending, completed int64
	err := row.Scan(&a.ID, &a.Name, &a.Role, &total, &a.TotalBookings, &pending, &completed, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.TotalEarnings = types.Money{Amount: total, Currency: s.currency}
	a.PendingPayout = types.Money{Amount: pending, Currency: s.currency}
	a.CompletedPayout = types.Money{Amount: completed, Currency: s.currency}
	return &a, nil
}
