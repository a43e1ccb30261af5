package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/outcomelab/marketd/internal/domain"
	"github.com/outcomelab/marketd/internal/registry"
)

// fakeChain is a ChainClient that records settle calls and fails anything
// the scanner should never touch.
type fakeChain struct {
	settleCalls  int
	settledIDs   []string
	settleErr    error
	tokenByID    map[string]string
	resolvedByID map[string]bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		tokenByID:    map[string]string{},
		resolvedByID: map[string]bool{},
	}
}

func (f *fakeChain) CreateMarket(ctx context.Context, p domain.CreateMarketParams) (domain.CreateMarketResult, error) {
	return domain.CreateMarketResult{}, errors.New("unexpected CreateMarket")
}

func (f *fakeChain) GetMarketInfo(ctx context.Context, conditionID string) (domain.MarketInfo, error) {
	return domain.MarketInfo{}, errors.New("unexpected GetMarketInfo")
}

func (f *fakeChain) GetMarketPrices(ctx context.Context, conditionID string) (domain.MarketPrices, error) {
	return domain.MarketPrices{}, errors.New("unexpected GetMarketPrices")
}

func (f *fakeChain) Buy(ctx context.Context, conditionID string, amount decimal.Decimal, outcome domain.Outcome, minOut decimal.Decimal) (domain.TradeResult, error) {
	return domain.TradeResult{}, errors.New("unexpected Buy")
}

func (f *fakeChain) Sell(ctx context.Context, conditionID string, amount decimal.Decimal, outcome domain.Outcome, minOut decimal.Decimal) (domain.TradeResult, error) {
	return domain.TradeResult{}, errors.New("unexpected Sell")
}

func (f *fakeChain) IsResolved(ctx context.Context, conditionID string) (bool, error) {
	return f.resolvedByID[conditionID], nil
}

func (f *fakeChain) GetWinningToken(ctx context.Context, conditionID string) (string, error) {
	return f.tokenByID[conditionID], nil
}

func (f *fakeChain) GetTokenID(ctx context.Context, conditionID string, outcome domain.Outcome) (string, error) {
	return conditionID + "-" + string(outcome), nil
}

func (f *fakeChain) SettleMarket(ctx context.Context, conditionID, winningTokenID string) (domain.TradeResult, error) {
	f.settleCalls++
	f.settledIDs = append(f.settledIDs, conditionID)
	if f.settleErr != nil {
		return domain.TradeResult{}, f.settleErr
	}
	f.resolvedByID[conditionID] = true
	return domain.TradeResult{TxHash: "0xsettle-" + conditionID}, nil
}

func (f *fakeChain) Redeem(ctx context.Context, conditionID string) (domain.TradeResult, error) {
	return domain.TradeResult{}, errors.New("unexpected Redeem")
}

var _ domain.ChainClient = (*fakeChain)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func alwaysYes(ctx context.Context, r domain.MarketRecord) (domain.Outcome, error) {
	return domain.OutcomeYes, nil
}

// testEnv wires a scanner onto real file stores in a temp dir.
type testEnv struct {
	records *registry.RecordStore
	index   *registry.Index
	chain   *fakeChain
}

func newEnv(t *testing.T, resolve domain.ResolveFunc, now time.Time) (*Scanner, *testEnv) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "markets")
	env := &testEnv{
		records: registry.NewRecordStore(dir),
		index:   registry.NewIndex(dir, registry.NewLocalLocker(), 5*time.Second),
		chain:   newFakeChain(),
	}
	s := New(env.records, env.index, env.chain, resolve, discardLogger(),
		WithClock(func() time.Time { return now }))
	return s, env
}

// addMarket writes a record and appends its index row.
func addMarket(t *testing.T, env *testEnv, conditionID string, endTime time.Time) domain.MarketRecord {
	t.Helper()
	record := domain.MarketRecord{
		ConditionID:      conditionID,
		Question:         "Q-" + conditionID,
		CreatedAt:        endTime.Add(-24 * time.Hour),
		EndTime:          endTime,
		Collateral:       domain.Collateral{Symbol: "USDC", Address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Decimals: 6},
		InitialLiquidity: "100",
	}
	ctx := context.Background()
	if err := env.records.Write(ctx, record); err != nil {
		t.Fatalf("write record %s: %v", conditionID, err)
	}
	if err := env.index.Append(ctx, record.Entry()); err != nil {
		t.Fatalf("append entry %s: %v", conditionID, err)
	}
	return record
}

func TestFindDueFilters(t *testing.T) {
	now := time.Unix(2000, 0)
	winner := domain.OutcomeYes
	ix := domain.Index{Markets: []domain.RegistryEntry{
		{ConditionID: "0xdue", EndTimeUnix: 1000},
		{ConditionID: "0xsettled", EndTimeUnix: 1000, IsSettled: true, Winner: &winner},
		{ConditionID: "0xfuture", EndTimeUnix: 3000},
		{ConditionID: "0xboundary", EndTimeUnix: 2000},
	}}

	var got []string
	for e := range FindDue(ix, now) {
		if e.IsSettled {
			t.Errorf("FindDue yielded settled entry %s", e.ConditionID)
		}
		if e.EndTimeUnix > now.Unix() {
			t.Errorf("FindDue yielded future entry %s", e.ConditionID)
		}
		got = append(got, e.ConditionID)
	}

	want := []string{"0xdue", "0xboundary"}
	if !slices.Equal(got, want) {
		t.Errorf("FindDue order = %v, want %v", got, want)
	}
}

func TestFindDueIsRestartable(t *testing.T) {
	ix := domain.Index{Markets: []domain.RegistryEntry{
		{ConditionID: "0xa", EndTimeUnix: 10},
		{ConditionID: "0xb", EndTimeUnix: 20},
	}}
	seq := FindDue(ix, time.Unix(100, 0))

	first := 0
	for range seq {
		first++
		break // abandon mid-way
	}
	second := 0
	for range seq {
		second++
	}
	if second != 2 {
		t.Errorf("restarted sequence yielded %d entries, want 2", second)
	}
}

func TestResolveOneNotDue(t *testing.T) {
	s, env := newEnv(t, alwaysYes, time.Unix(2000, 0))

	err := s.ResolveOne(context.Background(), domain.RegistryEntry{
		ConditionID: "0xabc",
		EndTimeUnix: 3000,
	})
	if !errors.Is(err, domain.ErrNotDue) {
		t.Fatalf("ResolveOne = %v, want ErrNotDue", err)
	}
	if env.chain.settleCalls != 0 {
		t.Errorf("settle calls = %d, want 0", env.chain.settleCalls)
	}
}

func TestResolveOneSettles(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s, env := newEnv(t, alwaysYes, now)
	ctx := context.Background()

	record := addMarket(t, env, "0xabc", now.Add(-time.Hour))

	if err := s.ResolveOne(ctx, record.Entry()); err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if env.chain.settleCalls != 1 {
		t.Fatalf("settle calls = %d, want 1", env.chain.settleCalls)
	}

	got, err := env.records.Read(ctx, "0xabc")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Settlement.IsSettled {
		t.Error("record not settled")
	}
	if got.Settlement.Winner == nil || *got.Settlement.Winner != domain.OutcomeYes {
		t.Errorf("record winner = %v, want YES", got.Settlement.Winner)
	}
	if got.Settlement.SettleTxHash == nil || *got.Settlement.SettleTxHash == "" {
		t.Error("record missing settle tx hash")
	}
	if got.Settlement.SettledAt == nil {
		t.Error("record missing settledAt")
	}

	ix, _ := env.index.Load(ctx)
	pos, ok := ix.Find("0xabc")
	if !ok || !ix.Markets[pos].IsSettled {
		t.Error("index row not settled")
	}
}

func TestResolveOneStaleIndexRepairsWithoutChainCall(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s, env := newEnv(t, alwaysYes, now)
	ctx := context.Background()

	record := addMarket(t, env, "0xabc", now.Add(-time.Hour))
	staleEntry := record.Entry()

	// Simulate a crash after the record persisted but before the index
	// update: the record shows settled, the index row does not.
	settled := record.MarkSettled(domain.OutcomeNo, "0xearlier", now.Add(-30*time.Minute))
	if err := env.records.Write(ctx, settled); err != nil {
		t.Fatalf("write settled record: %v", err)
	}

	err := s.ResolveOne(ctx, staleEntry)
	if !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("ResolveOne = %v, want ErrAlreadySettled", err)
	}
	if env.chain.settleCalls != 0 {
		t.Fatalf("settle calls = %d, want 0 (no double settlement)", env.chain.settleCalls)
	}

	ix, _ := env.index.Load(ctx)
	pos, _ := ix.Find("0xabc")
	if !ix.Markets[pos].IsSettled {
		t.Error("index row not repaired")
	}
	if ix.Markets[pos].Winner == nil || *ix.Markets[pos].Winner != domain.OutcomeNo {
		t.Errorf("repaired winner = %v, want NO (from record, not resolver)", ix.Markets[pos].Winner)
	}
}

func TestRepairReappendsMissingIndexRow(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s, env := newEnv(t, alwaysYes, now)
	ctx := context.Background()

	// Record written, index append lost (crash mid-creation).
	record := domain.MarketRecord{
		ConditionID: "0xorphan",
		Question:    "orphan",
		EndTime:     now.Add(time.Hour),
	}
	if err := env.records.Write(ctx, record); err != nil {
		t.Fatalf("write record: %v", err)
	}

	repaired, err := s.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if repaired != 1 {
		t.Errorf("repaired = %d, want 1", repaired)
	}

	ix, _ := env.index.Load(ctx)
	if _, ok := ix.Find("0xorphan"); !ok {
		t.Error("orphan record not re-appended to index")
	}
}

func TestScanSettlesAtMostOnce(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s, env := newEnv(t, alwaysYes, now)
	ctx := context.Background()

	addMarket(t, env, "0xabc", now.Add(-time.Hour))
	addMarket(t, env, "0xfuture", now.Add(time.Hour))

	report, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	if report.Due != 1 || report.Settled != 1 {
		t.Errorf("first scan report = %+v, want due=1 settled=1", report)
	}

	report, err = s.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if report.Due != 0 || report.Settled != 0 {
		t.Errorf("second scan report = %+v, want nothing due", report)
	}
	if env.chain.settleCalls != 1 {
		t.Errorf("settle calls across two scans = %d, want 1", env.chain.settleCalls)
	}
}

func TestScanSkipsWhenResolverDeclines(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	declined := func(ctx context.Context, r domain.MarketRecord) (domain.Outcome, error) {
		return "", domain.ErrNoDecision
	}
	s, env := newEnv(t, declined, now)

	addMarket(t, env, "0xabc", now.Add(-time.Hour))

	report, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Skipped != 1 || report.Settled != 0 || report.Failed != 0 {
		t.Errorf("report = %+v, want skipped=1", report)
	}
	if env.chain.settleCalls != 0 {
		t.Errorf("settle calls = %d, want 0", env.chain.settleCalls)
	}

	// The market stays due for the next pass.
	ix, _ := env.index.Load(context.Background())
	pos, _ := ix.Find("0xabc")
	if ix.Markets[pos].IsSettled {
		t.Error("declined market was marked settled")
	}
}

func TestScanContinuesPastFailingMarket(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s, env := newEnv(t, alwaysYes, now)
	ctx := context.Background()

	addMarket(t, env, "0xfail", now.Add(-2*time.Hour))
	addMarket(t, env, "0xok", now.Add(-time.Hour))

	env.chain.settleErr = errors.New("rpc: insufficient allowance")
	report, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Failed != 2 {
		t.Errorf("report.Failed = %d, want 2 (gateway down)", report.Failed)
	}

	env.chain.settleErr = nil
	report, err = s.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if report.Settled != 2 {
		t.Errorf("report.Settled = %d, want 2 after gateway recovers", report.Settled)
	}
}
