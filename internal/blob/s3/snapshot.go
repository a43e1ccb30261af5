package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/outcomelab/marketd/internal/domain"
	"github.com/outcomelab/marketd/internal/metrics"
)

// Snapshotter periodically copies the registry to object storage: the index
// under {prefix}/registry.json plus a timestamped copy, and every market
// record as one JSONL bundle.
type Snapshotter struct {
	writer  *Writer
	records domain.RecordStore
	index   domain.RegistryStore
	prefix  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewSnapshotter creates a Snapshotter uploading under the given key prefix.
func NewSnapshotter(writer *Writer, records domain.RecordStore, index domain.RegistryStore, prefix string, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{
		writer:  writer,
		records: records,
		index:   index,
		prefix:  prefix,
		logger:  logger.With(slog.String("component", "snapshot")),
		now:     time.Now,
	}
}

// Snapshot uploads one full backup of the registry.
func (s *Snapshotter) Snapshot(ctx context.Context) error {
	if err := s.snapshot(ctx); err != nil {
		metrics.SnapshotBackups.WithLabelValues("error").Inc()
		return err
	}
	metrics.SnapshotBackups.WithLabelValues("ok").Inc()
	return nil
}

func (s *Snapshotter) snapshot(ctx context.Context) error {
	started := s.now()

	ix, err := s.index.Load(ctx)
	if err != nil {
		return fmt.Errorf("s3blob: snapshot: %w", err)
	}
	indexJSON, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: snapshot: marshal index: %w", err)
	}

	latestKey := s.prefix + "/registry.json"
	if err := s.writer.Put(ctx, latestKey, bytes.NewReader(indexJSON), "application/json"); err != nil {
		return err
	}
	historyKey := fmt.Sprintf("%s/history/%s.json", s.prefix, started.UTC().Format("2006-01-02T15-04-05"))
	if err := s.writer.Put(ctx, historyKey, bytes.NewReader(indexJSON), "application/json"); err != nil {
		return err
	}

	bundle, count, err := s.recordBundle(ctx)
	if err != nil {
		return err
	}
	bundleKey := s.prefix + "/records.jsonl"
	if err := s.writer.PutMultipart(ctx, bundleKey, bytes.NewReader(bundle), minPartSize); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "registry snapshot uploaded",
		slog.String("index_key", latestKey),
		slog.Int("records", count),
		slog.Duration("took", time.Since(started)),
	)
	return nil
}

// recordBundle serialises every market record as newline-delimited JSON.
func (s *Snapshotter) recordBundle(ctx context.Context) ([]byte, int, error) {
	ids, err := s.records.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("s3blob: snapshot: list records: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, id := range ids {
		record, err := s.records.Read(ctx, id)
		if err != nil {
			return nil, 0, fmt.Errorf("s3blob: snapshot: read record %s: %w", id, err)
		}
		if err := enc.Encode(record); err != nil {
			return nil, 0, fmt.Errorf("s3blob: snapshot: encode record %s: %w", id, err)
		}
	}
	return buf.Bytes(), len(ids), nil
}

// Run uploads a snapshot on a fixed interval until ctx is cancelled. The
// first upload happens after one full interval; a fresh start has nothing
// worth copying.
func (s *Snapshotter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Snapshot(ctx); err != nil {
				s.logger.ErrorContext(ctx, "snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}
