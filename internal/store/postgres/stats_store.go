package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// StatsStore implements domain.StatsStore using PostgreSQL. Rows are
// written by the market resolution transaction; this store only reads.
type StatsStore struct {
	pool *pgxpool.Pool
}

// NewStatsStore creates a new StatsStore backed by the given connection pool.
func NewStatsStore(pool *pgxpool.Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

const statsCols = `wallet, total_bets, total_wagered, total_won, net_profit,
	wins, current_streak, best_streak, worst_loss`

func scanStats(row pgx.Row) (domain.BettorStats, error) {
	var st domain.BettorStats
	err := row.Scan(
		&st.Wallet, &st.TotalBets, &st.TotalWagered, &st.TotalWon,
		&st.NetProfit, &st.Wins, &st.CurrentStreak, &st.BestStreak, &st.WorstLoss,
	)
	return st, err
}

// Get returns the wallet's aggregate stats. A wallet with no settled bets
// gets a zero-valued record rather than an error.
func (s *StatsStore) Get(ctx context.Context, wallet string) (domain.BettorStats, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+statsCols+` FROM bettor_stats WHERE wallet = $1`, wallet)
	st, err := scanStats(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.BettorStats{Wallet: wallet}, nil
		}
		return domain.BettorStats{}, fmt.Errorf("postgres: get stats %s: %w", wallet, err)
	}
	return st, nil
}

// Leaderboard returns the top wallets by lifetime net profit.
func (s *StatsStore) Leaderboard(ctx context.Context, limit int) ([]domain.BettorStats, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+statsCols+` FROM bettor_stats
		 ORDER BY net_profit DESC, wallet LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	defer rows.Close()

	var board []domain.BettorStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard row: %w", err)
		}
		board = append(board, st)
	}
	return board, rows.Err()
}
