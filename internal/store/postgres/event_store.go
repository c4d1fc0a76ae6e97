package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL. The town event
// log is append-only; rows are only removed by the archiver after upload.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append writes one event to the log.
func (s *EventStore) Append(ctx context.Context, kind string, detail map[string]any) error {
	if detail == nil {
		detail = map[string]any{}
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal event detail: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO town_events (kind, detail) VALUES ($1, $2)`,
		kind, payload); err != nil {
		return fmt.Errorf("postgres: append event %s: %w", kind, err)
	}
	return nil
}

// ListRecent returns the newest events first.
func (s *EventStore) ListRecent(ctx context.Context, limit int) ([]domain.TownEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, detail, created_at FROM town_events
		 ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListBefore returns events created strictly before the cutoff, oldest
// first, for archival.
func (s *EventStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TownEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, detail, created_at FROM town_events
		 WHERE created_at < $1 ORDER BY id`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events before: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]domain.TownEvent, error) {
	var events []domain.TownEvent
	for rows.Next() {
		var e domain.TownEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Kind, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: decode event detail: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
