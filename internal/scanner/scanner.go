// Package scanner finds markets whose trading window has closed without
// settlement and drives each through resolution exactly once. It also
// repairs the two recoverable inconsistencies a crash can leave behind: a
// record file missing its index row, and an index row lagging a record that
// already settled.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/outcomelab/marketd/internal/domain"
	"github.com/outcomelab/marketd/internal/metrics"
)

// Scanner drives due markets through settlement.
type Scanner struct {
	records domain.RecordStore
	index   domain.RegistryStore
	chain   domain.ChainClient
	resolve domain.ResolveFunc
	audit   domain.AuditStore
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock overrides the scanner's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithAudit attaches an audit store; scan and settlement events are logged
// to it on a best-effort basis.
func WithAudit(audit domain.AuditStore) Option {
	return func(s *Scanner) { s.audit = audit }
}

// New creates a Scanner. The resolve function is the injected judgment that
// decides a due market's outcome; the scanner only supplies the scaffolding
// around it.
func New(records domain.RecordStore, index domain.RegistryStore, chain domain.ChainClient, resolve domain.ResolveFunc, logger *slog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		records: records,
		index:   index,
		chain:   chain,
		resolve: resolve,
		logger:  logger.With(slog.String("component", "scanner")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindDue yields the entries whose trading window closed at or before now
// and which are not settled, in index (insertion) order. The sequence is
// lazy and restartable: it ranges over the given snapshot each time.
func FindDue(ix domain.Index, now time.Time) iter.Seq[domain.RegistryEntry] {
	return func(yield func(domain.RegistryEntry) bool) {
		for _, e := range ix.Markets {
			if !e.Due(now) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// ResolveOne settles a single due market: judgment, on-chain settlement,
// record update, index update, in that order. The record is persisted
// before the index so a crash between the two leaves a state the repair
// pass can finish without another chain call.
//
// Guards: ErrNotDue when the entry's window has not closed, ErrAlreadySettled
// when the record already shows resolved (a stale index row — the index is
// repaired before returning, and the chain is not called again).
func (s *Scanner) ResolveOne(ctx context.Context, entry domain.RegistryEntry) error {
	now := s.now()
	if entry.EndTimeUnix > now.Unix() {
		return fmt.Errorf("scanner: %s ends at %d, now %d: %w",
			entry.ConditionID, entry.EndTimeUnix, now.Unix(), domain.ErrNotDue)
	}

	record, err := s.records.Read(ctx, entry.ConditionID)
	if err != nil {
		return fmt.Errorf("scanner: resolve %s: %w", entry.ConditionID, err)
	}

	if record.Settlement.IsSettled {
		// On-chain and record state already agree; only the index is stale.
		if err := s.repairIndexRow(ctx, record); err != nil {
			return err
		}
		return fmt.Errorf("scanner: resolve %s: %w", entry.ConditionID, domain.ErrAlreadySettled)
	}

	outcome, err := s.resolve(ctx, record)
	if err != nil {
		return fmt.Errorf("scanner: judge %s: %w", entry.ConditionID, err)
	}
	if !outcome.Valid() {
		return domain.Invalid("winner", "resolver returned %q", outcome)
	}

	tokenID, err := s.chain.GetTokenID(ctx, record.ConditionID, outcome)
	if err != nil {
		return fmt.Errorf("scanner: token id for %s: %w", record.ConditionID, err)
	}
	res, err := s.chain.SettleMarket(ctx, record.ConditionID, tokenID)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("settleMarket", "error").Inc()
		return fmt.Errorf("scanner: settle %s on chain: %w", record.ConditionID, err)
	}
	metrics.GatewayCalls.WithLabelValues("settleMarket", "ok").Inc()

	settled := record.MarkSettled(outcome, res.TxHash, now.UTC())
	if err := s.records.Write(ctx, settled); err != nil {
		return fmt.Errorf("scanner: persist settled record %s: %w", record.ConditionID, err)
	}
	if err := s.index.MarkSettled(ctx, record.ConditionID, outcome); err != nil {
		// The record already holds the truth; the next repair pass fixes the
		// index without touching the chain. Still surfaced to the caller.
		return fmt.Errorf("scanner: update index for %s: %w", record.ConditionID, err)
	}

	metrics.MarketsSettled.WithLabelValues(string(outcome)).Inc()
	s.logger.InfoContext(ctx, "market settled",
		slog.String("condition_id", record.ConditionID),
		slog.String("winner", string(outcome)),
		slog.String("tx_hash", res.TxHash),
	)
	s.auditLog(ctx, "market_settled", map[string]any{
		"condition_id": record.ConditionID,
		"winner":       string(outcome),
		"tx_hash":      res.TxHash,
	})
	return nil
}

// repairIndexRow marks a single index row settled from its record, without
// any chain call. ErrAlreadySettled from the index means a concurrent run
// got there first, which is fine.
func (s *Scanner) repairIndexRow(ctx context.Context, record domain.MarketRecord) error {
	if record.Settlement.Winner == nil {
		return fmt.Errorf("scanner: record %s settled without winner", record.ConditionID)
	}
	err := s.index.MarkSettled(ctx, record.ConditionID, *record.Settlement.Winner)
	if err != nil && !errors.Is(err, domain.ErrAlreadySettled) {
		return fmt.Errorf("scanner: repair index row %s: %w", record.ConditionID, err)
	}
	if err == nil {
		metrics.IndexRepairs.WithLabelValues("resettle").Inc()
		s.logger.InfoContext(ctx, "repaired stale index row",
			slog.String("condition_id", record.ConditionID),
		)
	}
	return nil
}

// Repair reconciles the index with the record files: records missing from
// the index are re-appended (a crash between record write and index append
// during creation), and unsettled index rows whose record already shows
// settled are re-marked (a crash between the two settlement persists).
func (s *Scanner) Repair(ctx context.Context) (int, error) {
	repaired := 0

	ids, err := s.records.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("scanner: repair: %w", err)
	}
	ix, err := s.index.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("scanner: repair: %w", err)
	}

	indexed := make(map[string]bool, len(ix.Markets))
	for _, e := range ix.Markets {
		indexed[e.ConditionID] = true
	}

	for _, id := range ids {
		if indexed[id] {
			continue
		}
		record, err := s.records.Read(ctx, id)
		if err != nil {
			return repaired, fmt.Errorf("scanner: repair read %s: %w", id, err)
		}
		if err := s.index.Append(ctx, record.Entry()); err != nil {
			if errors.Is(err, domain.ErrDuplicateConditionID) {
				continue // concurrent repair won the race
			}
			return repaired, fmt.Errorf("scanner: repair append %s: %w", id, err)
		}
		repaired++
		metrics.IndexRepairs.WithLabelValues("reappend").Inc()
		s.logger.InfoContext(ctx, "re-appended record missing from index",
			slog.String("condition_id", id),
		)
	}

	for _, e := range ix.Markets {
		if e.IsSettled {
			continue
		}
		record, err := s.records.Read(ctx, e.ConditionID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Index row without a record breaks the registry invariant and
				// is not repairable locally; surface it loudly but keep going.
				s.logger.ErrorContext(ctx, "index row has no record file",
					slog.String("condition_id", e.ConditionID),
				)
				continue
			}
			return repaired, fmt.Errorf("scanner: repair read %s: %w", e.ConditionID, err)
		}
		if !record.Settlement.IsSettled {
			continue
		}
		if err := s.repairIndexRow(ctx, record); err != nil {
			return repaired, err
		}
		repaired++
	}

	return repaired, nil
}

// Report summarises one scan pass.
type Report struct {
	Due      int `json:"due"`
	Settled  int `json:"settled"`
	Repaired int `json:"repaired"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Scan runs one full pass: repair, then resolve every due market. A
// failure on one market is logged and counted, not fatal to the pass; the
// registry layer failing is.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	started := s.now()
	var report Report

	repaired, err := s.Repair(ctx)
	if err != nil {
		metrics.ScanRuns.WithLabelValues("error").Inc()
		return report, err
	}
	report.Repaired = repaired

	ix, err := s.index.Load(ctx)
	if err != nil {
		metrics.ScanRuns.WithLabelValues("error").Inc()
		return report, fmt.Errorf("scanner: scan: %w", err)
	}
	metrics.RegisteredMarkets.Set(float64(len(ix.Markets)))

	for entry := range FindDue(ix, s.now()) {
		report.Due++
		err := s.ResolveOne(ctx, entry)
		switch {
		case err == nil:
			report.Settled++
		case errors.Is(err, domain.ErrAlreadySettled):
			report.Repaired++
		case errors.Is(err, domain.ErrNoDecision):
			report.Skipped++
			s.logger.InfoContext(ctx, "market due, awaiting resolution decision",
				slog.String("condition_id", entry.ConditionID),
				slog.String("question", entry.Question),
			)
		default:
			report.Failed++
			s.logger.ErrorContext(ctx, "settlement failed",
				slog.String("condition_id", entry.ConditionID),
				slog.String("error", err.Error()),
			)
		}
	}

	metrics.DueMarkets.Set(float64(report.Due))
	metrics.ScanDuration.Observe(time.Since(started).Seconds())
	metrics.ScanRuns.WithLabelValues("ok").Inc()

	s.logger.InfoContext(ctx, "scan complete",
		slog.Int("due", report.Due),
		slog.Int("settled", report.Settled),
		slog.Int("repaired", report.Repaired),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	s.auditLog(ctx, "scan_completed", map[string]any{
		"due":      report.Due,
		"settled":  report.Settled,
		"repaired": report.Repaired,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	})
	return report, nil
}

// Run scans on a fixed interval until ctx is cancelled. The first pass runs
// immediately.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) error {
	if _, err := s.Scan(ctx); err != nil {
		s.logger.ErrorContext(ctx, "startup scan failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil {
				s.logger.ErrorContext(ctx, "scan failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Scanner) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
