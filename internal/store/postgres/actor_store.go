package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// ActorStore implements domain.ActorStore using PostgreSQL.
type ActorStore struct {
	pool      *pgxpool.Pool
	maxHealth int
}

// NewActorStore creates a new ActorStore backed by the given connection
// pool. maxHealth is the upper clamp for health adjustments.
func NewActorStore(pool *pgxpool.Pool, maxHealth int) *ActorStore {
	if maxHealth <= 0 {
		maxHealth = 100
	}
	return &ActorStore{pool: pool, maxHealth: maxHealth}
}

const actorCols = `id, name, archetype, elo, bankroll, health, active, in_match, created_at, updated_at`

func scanActor(row pgx.Row) (domain.Actor, error) {
	var a domain.Actor
	err := row.Scan(
		&a.ID, &a.Name, &a.Archetype, &a.Elo, &a.Bankroll,
		&a.Health, &a.Active, &a.InMatch, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// GetByID retrieves an actor with its rivalry list.
func (s *ActorStore) GetByID(ctx context.Context, id string) (domain.Actor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+actorCols+` FROM actors WHERE id = $1`, id)
	a, err := scanActor(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Actor{}, domain.ErrNotFound
		}
		return domain.Actor{}, fmt.Errorf("postgres: get actor %s: %w", id, err)
	}

	rivals, err := s.listRivals(ctx, id)
	if err != nil {
		return domain.Actor{}, err
	}
	a.Rivals = rivals
	return a, nil
}

// ListEligible returns actors that can be pulled into a match: active, not
// already fighting, alive, and holding at least minBankroll.
func (s *ActorStore) ListEligible(ctx context.Context, minBankroll int64) ([]domain.Actor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+actorCols+` FROM actors
		 WHERE active AND NOT in_match AND health > 0 AND bankroll >= $1
		 ORDER BY id`, minBankroll)
	if err != nil {
		return nil, fmt.Errorf("postgres: list eligible actors: %w", err)
	}
	defer rows.Close()

	var actors []domain.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan eligible actor: %w", err)
		}
		actors = append(actors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list eligible actors rows: %w", err)
	}

	for i := range actors {
		rivals, err := s.listRivals(ctx, actors[i].ID)
		if err != nil {
			return nil, err
		}
		actors[i].Rivals = rivals
	}
	return actors, nil
}

func (s *ActorStore) listRivals(ctx context.Context, actorID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT rival_id FROM actor_rivals WHERE actor_id = $1 ORDER BY rival_id`, actorID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rivals for %s: %w", actorID, err)
	}
	defer rows.Close()

	var rivals []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan rival: %w", err)
		}
		rivals = append(rivals, id)
	}
	return rivals, rows.Err()
}

// ListProperties returns the actor's built lots.
func (s *ActorStore) ListProperties(ctx context.Context, actorID string) ([]domain.Property, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, actor_id, zone, name FROM properties WHERE actor_id = $1 ORDER BY id`, actorID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list properties for %s: %w", actorID, err)
	}
	defer rows.Close()

	var props []domain.Property
	for rows.Next() {
		var p domain.Property
		var zone string
		if err := rows.Scan(&p.ID, &p.ActorID, &zone, &p.Name); err != nil {
			return nil, fmt.Errorf("postgres: scan property: %w", err)
		}
		p.Zone = domain.Zone(zone)
		props = append(props, p)
	}
	return props, rows.Err()
}

// AdjustBankroll applies delta to the actor's bankroll.
func (s *ActorStore) AdjustBankroll(ctx context.Context, actorID string, delta int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE actors SET bankroll = bankroll + $2, updated_at = NOW() WHERE id = $1`,
		actorID, delta)
	if err != nil {
		return fmt.Errorf("postgres: adjust bankroll %s: %w", actorID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AdjustHealth applies delta and clamps the result to [0, maxHealth]. The
// clamp lives in SQL so concurrent writers cannot push health out of range.
func (s *ActorStore) AdjustHealth(ctx context.Context, actorID string, delta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE actors
		 SET health = LEAST($3, GREATEST(0, health + $2)), updated_at = NOW()
		 WHERE id = $1`,
		actorID, delta, s.maxHealth)
	if err != nil {
		return fmt.Errorf("postgres: adjust health %s: %w", actorID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendMemory appends one entry to the actor's memory log and trims the
// log to maxEntries, oldest first.
func (s *ActorStore) AppendMemory(ctx context.Context, actorID, text string, maxEntries int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: append memory begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO actor_memories (actor_id, entry) VALUES ($1, $2)`,
		actorID, text); err != nil {
		return fmt.Errorf("postgres: append memory %s: %w", actorID, err)
	}

	if maxEntries > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM actor_memories
			 WHERE actor_id = $1 AND id NOT IN (
				SELECT id FROM actor_memories
				WHERE actor_id = $1 ORDER BY id DESC LIMIT $2
			 )`,
			actorID, maxEntries); err != nil {
			return fmt.Errorf("postgres: trim memory %s: %w", actorID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: append memory commit: %w", err)
	}
	return nil
}

// SetInMatch flips the actor's in-match flag.
func (s *ActorStore) SetInMatch(ctx context.Context, actorID string, inMatch bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE actors SET in_match = $2, updated_at = NOW() WHERE id = $1`,
		actorID, inMatch)
	if err != nil {
		return fmt.Errorf("postgres: set in_match %s: %w", actorID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
