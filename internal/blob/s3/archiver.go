package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// BlobWriter is the upload surface the archiver needs. The package Writer
// satisfies it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// MarketArchiveStore provides read access to settled markets and their bets
// for archival purposes.
type MarketArchiveStore interface {
	ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Market, error)
	ListBets(ctx context.Context, marketID string) ([]domain.Bet, error)
}

// EventArchiveStore provides read access to the town event log for archival
// purposes.
type EventArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.TownEvent, error)
}

// archivedMarket is one JSONL record: a settled market with its bets.
type archivedMarket struct {
	Market domain.Market `json:"market"`
	Bets   []domain.Bet  `json:"bets"`
}

// Archiver uploads settled markets and town events to cold storage as
// JSONL, partitioned by year-month.
//
// Deletion of archived rows from the primary store is intentionally NOT
// performed here; that is a separate, explicit step after the archive has
// been verified.
type Archiver struct {
	writer  BlobWriter
	markets MarketArchiveStore
	events  EventArchiveStore
	logger  *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer BlobWriter, markets MarketArchiveStore, events EventArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:  writer,
		markets: markets,
		events:  events,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveMarkets uploads all markets settled before the cutoff, with their
// bets, to wheel/archive/markets/YYYY-MM.jsonl. Returns the record count.
func (a *Archiver) ArchiveMarkets(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	records := make([]archivedMarket, 0, len(markets))
	for _, m := range markets {
		bets, err := a.markets.ListBets(ctx, m.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive markets bets for %s: %w", m.ID, err)
		}
		records = append(records, archivedMarket{Market: m, Bets: bets})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets marshal: %w", err)
	}

	path := archivePath("markets", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive markets upload: %w", err)
	}

	count := int64(len(records))
	a.logger.InfoContext(ctx, "markets archived",
		slog.String("path", path),
		slog.Int64("count", count),
	)
	return count, nil
}

// ArchiveEvents uploads all town events logged before the cutoff to
// wheel/archive/events/YYYY-MM.jsonl. Returns the record count.
func (a *Archiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := archivePath("events", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	count := int64(len(events))
	a.logger.InfoContext(ctx, "events archived",
		slog.String("path", path),
		slog.Int64("count", count),
	)
	return count, nil
}

// Run archives on the given interval until the context is cancelled.
// retention controls how far behind "now" the cutoff trails.
func (a *Archiver) Run(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			before := time.Now().UTC().Add(-retention)
			if _, err := a.ArchiveMarkets(ctx, before); err != nil {
				a.logger.ErrorContext(ctx, "market archive failed",
					slog.String("error", err.Error()),
				)
			}
			if _, err := a.ArchiveEvents(ctx, before); err != nil {
				a.logger.ErrorContext(ctx, "event archive failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// upload picks a single-shot or multipart upload based on payload size.
func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) >= minPartSize {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	wheel/archive/markets/2026-09.jsonl
//	wheel/archive/events/2026-09.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("wheel/archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
