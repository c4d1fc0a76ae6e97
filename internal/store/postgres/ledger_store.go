package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// GetBalance returns the wallet's current balance. Unknown wallets have a
// zero balance.
func (s *LedgerStore) GetBalance(ctx context.Context, wallet string) (int64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM wallets WHERE wallet = $1`, wallet,
	).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: get balance %s: %w", wallet, err)
	}
	return balance, nil
}

// Credit adds amount to the wallet, creating the row if needed.
func (s *LedgerStore) Credit(ctx context.Context, wallet string, amount int64) error {
	if amount <= 0 {
		return domain.ErrAmountNotPositive
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO wallets (wallet, balance) VALUES ($1, $2)
		 ON CONFLICT (wallet) DO UPDATE
		 SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()`,
		wallet, amount); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", wallet, err)
	}
	return nil
}
