package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Every
// financial mutation (bet placement, resolution, cancellation) runs inside
// a single transaction so wallet movements and market/bet rows commit or
// abort together.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, match_key, option_a_actor, option_a_label,
	option_b_actor, option_b_label, pool_a, pool_b, rake_percent,
	status, outcome, resolved_at, created_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status, outcome string
	err := row.Scan(
		&m.ID, &m.MatchKey,
		&m.OptionA.ActorID, &m.OptionA.Label,
		&m.OptionB.ActorID, &m.OptionB.Label,
		&m.PoolA, &m.PoolB, &m.RakePercent,
		&status, &outcome, &m.ResolvedAt, &m.CreatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	m.Outcome = domain.Side(outcome)
	return m, nil
}

// Create inserts a new market. If a market already exists for the match
// key, the existing market is returned unchanged (idempotent creation).
func (s *MarketStore) Create(ctx context.Context, m domain.Market) (domain.Market, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (
			id, match_key, option_a_actor, option_a_label,
			option_b_actor, option_b_label, pool_a, pool_b,
			rake_percent, status, outcome, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $8, '', $9)`,
		m.ID, m.MatchKey,
		m.OptionA.ActorID, m.OptionA.Label,
		m.OptionB.ActorID, m.OptionB.Label,
		m.RakePercent, string(domain.MarketStatusOpen), m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return s.GetByMatchKey(ctx, m.MatchKey)
		}
		return domain.Market{}, fmt.Errorf("postgres: create market: %w", err)
	}

	m.Status = domain.MarketStatusOpen
	m.PoolA, m.PoolB = 0, 0
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByMatchKey retrieves the market linked to a match key.
func (s *MarketStore) GetByMatchKey(ctx context.Context, matchKey string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE match_key = $1`, matchKey)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by match key %s: %w", matchKey, err)
	}
	return m, nil
}

// ListActive returns OPEN markets only.
func (s *MarketStore) ListActive(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE status = $1 ORDER BY created_at DESC`,
		string(domain.MarketStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan active market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

const betCols = `id, market_id, wallet, side, amount, payout, created_at`

func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var side string
	err := row.Scan(&b.ID, &b.MarketID, &b.Wallet, &side, &b.Amount, &b.Payout, &b.CreatedAt)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Side = domain.Side(side)
	return b, nil
}

// ListBets returns all bets on a market, oldest first.
func (s *MarketStore) ListBets(ctx context.Context, marketID string) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 ORDER BY created_at`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for %s: %w", marketID, err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// GetBet returns the wallet's most recent bet on the market.
func (s *MarketStore) GetBet(ctx context.Context, marketID, wallet string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets
		 WHERE market_id = $1 AND wallet = $2
		 ORDER BY created_at DESC LIMIT 1`, marketID, wallet)
	b, err := scanBet(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s/%s: %w", marketID, wallet, err)
	}
	return b, nil
}

// Lock transitions the market OPEN -> LOCKED. Already locked or terminal
// markets are left untouched.
func (s *MarketStore) Lock(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = $2 WHERE id = $1 AND status = $3`,
		id, string(domain.MarketStatusLocked), string(domain.MarketStatusOpen))
	if err != nil {
		return fmt.Errorf("postgres: lock market %s: %w", id, err)
	}
	return nil
}

// PlaceBet atomically debits the wallet, bumps the chosen pool, and inserts
// the bet row. The market row is locked FOR UPDATE so the open check, the
// pool increment, and the insert see a consistent state.
func (s *MarketStore) PlaceBet(ctx context.Context, bet domain.Bet) (domain.Bet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM markets WHERE id = $1 FOR UPDATE`, bet.MarketID,
	).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: place bet lock market: %w", err)
	}
	if domain.MarketStatus(status) != domain.MarketStatusOpen {
		return domain.Bet{}, domain.ErrMarketNotOpen
	}

	// Conditional debit: fails when the balance would go negative.
	tag, err := tx.Exec(ctx,
		`UPDATE wallets SET balance = balance - $2, updated_at = NOW()
		 WHERE wallet = $1 AND balance >= $2`,
		bet.Wallet, bet.Amount)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Bet{}, domain.ErrInsufficientBalance
	}

	poolCol := "pool_a"
	if bet.Side == domain.SideB {
		poolCol = "pool_b"
	}
	if _, err := tx.Exec(ctx,
		`UPDATE markets SET `+poolCol+` = `+poolCol+` + $2 WHERE id = $1`,
		bet.MarketID, bet.Amount); err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet pool: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO bets (id, market_id, wallet, side, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		bet.ID, bet.MarketID, bet.Wallet, string(bet.Side), bet.Amount, bet.CreatedAt,
	); err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet commit: %w", err)
	}
	return bet, nil
}

// Resolve settles the market for the winning side: every winning bet gets
// its floor-rounded share of the rake-adjusted pool credited to its wallet,
// losing bets get payout 0, and bettor stats are updated — all in one
// transaction. Resolving a terminal market is a no-op.
func (s *MarketStore) Resolve(ctx context.Context, id string, winner domain.Side) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: resolve begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1 FOR UPDATE`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: resolve lock market: %w", err)
	}
	if m.Status.Terminal() {
		// Second resolve call: nothing to do.
		return tx.Commit(ctx)
	}

	bets, err := listBetsTx(ctx, tx, id)
	if err != nil {
		return err
	}

	settlement := domain.ComputeSettlement(m, bets, winner)

	for _, p := range settlement.Payouts {
		if _, err := tx.Exec(ctx,
			`UPDATE bets SET payout = $2 WHERE id = $1`, p.BetID, p.Payout); err != nil {
			return fmt.Errorf("postgres: resolve write payout: %w", err)
		}
		if p.Won && p.Payout > 0 {
			if err := creditTx(ctx, tx, p.Wallet, p.Payout); err != nil {
				return err
			}
		}
		if err := applyStatsTx(ctx, tx, p); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE markets SET status = $2, outcome = $3, resolved_at = $4 WHERE id = $1`,
		id, string(domain.MarketStatusResolved), string(winner), now); err != nil {
		return fmt.Errorf("postgres: resolve mark market: %w", err)
	}

	return tx.Commit(ctx)
}

// Cancel refunds every bet in full and marks the market CANCELLED in one
// transaction. Cancelling a terminal market is a no-op.
func (s *MarketStore) Cancel(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: cancel begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM markets WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: cancel lock market: %w", err)
	}
	if domain.MarketStatus(status).Terminal() {
		return tx.Commit(ctx)
	}

	bets, err := listBetsTx(ctx, tx, id)
	if err != nil {
		return err
	}

	for _, b := range bets {
		if err := creditTx(ctx, tx, b.Wallet, b.Amount); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE bets SET payout = amount WHERE id = $1`, b.ID); err != nil {
			return fmt.Errorf("postgres: cancel write payout: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE markets SET status = $2, resolved_at = $3 WHERE id = $1`,
		id, string(domain.MarketStatusCancelled), time.Now().UTC()); err != nil {
		return fmt.Errorf("postgres: cancel mark market: %w", err)
	}

	return tx.Commit(ctx)
}

// ListResolvedBefore returns terminal markets resolved strictly before the
// cutoff, for archival.
func (s *MarketStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE status IN ($1, $2) AND resolved_at < $3
		 ORDER BY resolved_at`,
		string(domain.MarketStatusResolved), string(domain.MarketStatusCancelled), before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan resolved market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func listBetsTx(ctx context.Context, tx pgx.Tx, marketID string) ([]domain.Bet, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 ORDER BY created_at`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets in tx: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet in tx: %w", err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func creditTx(ctx context.Context, tx pgx.Tx, wallet string, amount int64) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO wallets (wallet, balance) VALUES ($1, $2)
		 ON CONFLICT (wallet) DO UPDATE
		 SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()`,
		wallet, amount); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", wallet, err)
	}
	return nil
}

// applyStatsTx folds one settled bet into the wallet's aggregate stats.
// Runs inside the resolution transaction.
func applyStatsTx(ctx context.Context, tx pgx.Tx, p domain.BetPayout) error {
	var st domain.BettorStats
	err := tx.QueryRow(ctx,
		`SELECT wallet, total_bets, total_wagered, total_won, net_profit,
		        wins, current_streak, best_streak, worst_loss
		 FROM bettor_stats WHERE wallet = $1 FOR UPDATE`, p.Wallet,
	).Scan(&st.Wallet, &st.TotalBets, &st.TotalWagered, &st.TotalWon,
		&st.NetProfit, &st.Wins, &st.CurrentStreak, &st.BestStreak, &st.WorstLoss)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("postgres: stats read %s: %w", p.Wallet, err)
	}

	st.Wallet = p.Wallet
	st.TotalBets++
	st.TotalWagered += p.Amount
	st.TotalWon += p.Payout
	st.NetProfit += p.Payout - p.Amount
	if p.Won {
		st.Wins++
		if st.CurrentStreak < 0 {
			st.CurrentStreak = 0
		}
		st.CurrentStreak++
		if st.CurrentStreak > st.BestStreak {
			st.BestStreak = st.CurrentStreak
		}
	} else {
		if st.CurrentStreak > 0 {
			st.CurrentStreak = 0
		}
		st.CurrentStreak--
		if p.Amount > st.WorstLoss {
			st.WorstLoss = p.Amount
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO bettor_stats (
			wallet, total_bets, total_wagered, total_won, net_profit,
			wins, current_streak, best_streak, worst_loss, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (wallet) DO UPDATE SET
			total_bets     = EXCLUDED.total_bets,
			total_wagered  = EXCLUDED.total_wagered,
			total_won      = EXCLUDED.total_won,
			net_profit     = EXCLUDED.net_profit,
			wins           = EXCLUDED.wins,
			current_streak = EXCLUDED.current_streak,
			best_streak    = EXCLUDED.best_streak,
			worst_loss     = EXCLUDED.worst_loss,
			updated_at     = NOW()`,
		st.Wallet, st.TotalBets, st.TotalWagered, st.TotalWon, st.NetProfit,
		st.Wins, st.CurrentStreak, st.BestStreak, st.WorstLoss,
	); err != nil {
		return fmt.Errorf("postgres: stats write %s: %w", p.Wallet, err)
	}
	return nil
}
