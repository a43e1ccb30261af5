// Package lifecycle coordinates the full market lifecycle against the chain
// gateway: creation, trading, settlement and redemption. Every operation
// validates locally first, so bad input never reaches the gateway, and every
// state change lands in the record file before the registry index.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/outcomelab/marketd/internal/domain"
	"github.com/outcomelab/marketd/internal/metrics"
	"github.com/outcomelab/marketd/internal/scanner"
)

// CollateralLookup resolves a configured collateral symbol. The second
// return is false for unknown symbols.
type CollateralLookup func(symbol string) (domain.Collateral, bool)

// Coordinator drives market lifecycle operations. The scanner, price cache
// and audit store are optional collaborators.
type Coordinator struct {
	records domain.RecordStore
	index   domain.RegistryStore
	chain   domain.ChainClient
	lookup  CollateralLookup
	scanner *scanner.Scanner
	prices  domain.PriceCache
	audit   domain.AuditStore
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithScanner attaches a settlement scanner; a scan pass then runs before
// every creation so overdue markets settle first.
func WithScanner(s *scanner.Scanner) Option {
	return func(c *Coordinator) { c.scanner = s }
}

// WithPriceCache attaches a cache for gateway price reads.
func WithPriceCache(p domain.PriceCache) Option {
	return func(c *Coordinator) { c.prices = p }
}

// WithAudit attaches an audit store; lifecycle events are logged to it on a
// best-effort basis.
func WithAudit(a domain.AuditStore) Option {
	return func(c *Coordinator) { c.audit = a }
}

// WithClock overrides the coordinator's clock.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator.
func New(records domain.RecordStore, index domain.RegistryStore, chain domain.ChainClient, lookup CollateralLookup, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		records: records,
		index:   index,
		chain:   chain,
		lookup:  lookup,
		logger:  logger.With(slog.String("component", "lifecycle")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateInput are the operator-facing inputs to market creation.
type CreateInput struct {
	Question string
	EndTime  time.Time
	// InitialLiquidity is a positive decimal string in collateral units.
	InitialLiquidity string
	// Collateral is a symbol from the configured token table, or a raw
	// 0x token address.
	Collateral string
	// CollateralDecimals applies only when Collateral is a raw address;
	// zero means 18.
	CollateralDecimals int
	TradingRules       domain.TradingRules
}

func (c *Coordinator) resolveCollateral(in CreateInput) (domain.Collateral, error) {
	if token, ok := c.lookup(in.Collateral); ok {
		return token, nil
	}
	if domain.ValidAddress(in.Collateral) {
		decimals := in.CollateralDecimals
		if decimals == 0 {
			decimals = 18
		}
		return domain.Collateral{Symbol: in.Collateral, Address: in.Collateral, Decimals: decimals}, nil
	}
	return domain.Collateral{}, domain.Invalid("collateral", "unknown symbol %q and not a hex address", in.Collateral)
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, domain.Invalid(field, "%q is not a decimal number", s)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, domain.Invalid(field, "must be positive, got %s", amount)
	}
	return amount, nil
}

// CreateMarket creates a market on chain and registers it locally: gateway
// call, record write, index append, in that order. A scan pass runs first
// when a scanner is attached, so markets already due settle before anything
// new is created.
//
// A failed index append is logged, not returned: the record file already
// holds the market and the next scan's repair pass re-appends the row.
// Returning an error here would invite a retry and a duplicate creation.
func (c *Coordinator) CreateMarket(ctx context.Context, in CreateInput) (domain.MarketRecord, error) {
	if c.scanner != nil {
		if _, err := c.scanner.Scan(ctx); err != nil {
			c.logger.WarnContext(ctx, "pre-creation scan failed", slog.String("error", err.Error()))
		}
	}

	collateral, err := c.resolveCollateral(in)
	if err != nil {
		return domain.MarketRecord{}, err
	}
	liquidity, err := parseAmount("initialLiquidity", in.InitialLiquidity)
	if err != nil {
		return domain.MarketRecord{}, err
	}

	now := c.now()
	params := domain.CreateMarketParams{
		Question:         in.Question,
		EndTime:          in.EndTime,
		InitialLiquidity: liquidity,
		Collateral:       collateral,
		TradingRules:     in.TradingRules,
	}
	if err := params.Validate(); err != nil {
		return domain.MarketRecord{}, err
	}
	if !in.EndTime.After(now) {
		return domain.MarketRecord{}, domain.Invalid("endTime", "%s is not in the future", in.EndTime.Format(time.RFC3339))
	}

	res, err := c.chain.CreateMarket(ctx, params)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("createMarket", "error").Inc()
		return domain.MarketRecord{}, fmt.Errorf("lifecycle: create market: %w", err)
	}
	metrics.GatewayCalls.WithLabelValues("createMarket", "ok").Inc()

	record := domain.MarketRecord{
		ConditionID:      res.ConditionID,
		Question:         in.Question,
		CreatedAt:        now.UTC(),
		EndTime:          in.EndTime.UTC(),
		Collateral:       collateral,
		InitialLiquidity: liquidity.String(),
		CreateTxHash:     res.TxHash,
		TradingRules:     in.TradingRules,
	}
	if err := c.records.Write(ctx, record); err != nil {
		return domain.MarketRecord{}, fmt.Errorf("lifecycle: persist record %s: %w", res.ConditionID, err)
	}
	if err := c.index.Append(ctx, record.Entry()); err != nil && !errors.Is(err, domain.ErrDuplicateConditionID) {
		c.logger.WarnContext(ctx, "index append failed, next scan will repair",
			slog.String("condition_id", res.ConditionID),
			slog.String("error", err.Error()),
		)
	}

	metrics.MarketsCreated.Inc()
	c.logger.InfoContext(ctx, "market created",
		slog.String("condition_id", res.ConditionID),
		slog.String("question", in.Question),
		slog.Time("end_time", record.EndTime),
		slog.String("tx_hash", res.TxHash),
	)
	c.auditLog(ctx, "market_created", map[string]any{
		"condition_id": res.ConditionID,
		"question":     in.Question,
		"collateral":   collateral.Symbol,
		"liquidity":    liquidity.String(),
		"tx_hash":      res.TxHash,
	})
	return record, nil
}

// Settle settles a market with an operator-supplied winner: eligibility
// guards, gateway call, record write, index update, in that order.
//
// Guards: ErrAlreadySettled when the local record shows settled,
// ErrNotYetSettleable before the trading window closes, and
// ErrAlreadySettledOnChain when the gateway already reports the market
// resolved by someone else.
func (c *Coordinator) Settle(ctx context.Context, conditionID string, winner domain.Outcome) (domain.MarketRecord, error) {
	if !winner.Valid() {
		return domain.MarketRecord{}, domain.Invalid("winner", "%q is not YES or NO", winner)
	}

	record, err := c.records.Read(ctx, conditionID)
	if err != nil {
		return domain.MarketRecord{}, fmt.Errorf("lifecycle: settle %s: %w", conditionID, err)
	}
	if record.Settlement.IsSettled {
		return record, fmt.Errorf("lifecycle: settle %s: %w", conditionID, domain.ErrAlreadySettled)
	}

	now := c.now()
	if now.Before(record.EndTime) {
		return record, fmt.Errorf("lifecycle: settle %s: window closes %s: %w",
			conditionID, record.EndTime.Format(time.RFC3339), domain.ErrNotYetSettleable)
	}

	resolved, err := c.chain.IsResolved(ctx, conditionID)
	if err != nil {
		return record, fmt.Errorf("lifecycle: settle %s: %w", conditionID, err)
	}
	if resolved {
		return record, fmt.Errorf("lifecycle: settle %s: %w", conditionID, domain.ErrAlreadySettledOnChain)
	}

	tokenID, err := c.chain.GetTokenID(ctx, conditionID, winner)
	if err != nil {
		return record, fmt.Errorf("lifecycle: settle %s: %w", conditionID, err)
	}
	res, err := c.chain.SettleMarket(ctx, conditionID, tokenID)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("settleMarket", "error").Inc()
		return record, fmt.Errorf("lifecycle: settle %s on chain: %w", conditionID, err)
	}
	metrics.GatewayCalls.WithLabelValues("settleMarket", "ok").Inc()

	settled := record.MarkSettled(winner, res.TxHash, now.UTC())
	if err := c.records.Write(ctx, settled); err != nil {
		return settled, fmt.Errorf("lifecycle: persist settled record %s: %w", conditionID, err)
	}
	if err := c.index.MarkSettled(ctx, conditionID, winner); err != nil && !errors.Is(err, domain.ErrAlreadySettled) {
		c.logger.WarnContext(ctx, "index update failed, next scan will repair",
			slog.String("condition_id", conditionID),
			slog.String("error", err.Error()),
		)
	}

	metrics.MarketsSettled.WithLabelValues(string(winner)).Inc()
	c.logger.InfoContext(ctx, "market settled",
		slog.String("condition_id", conditionID),
		slog.String("winner", string(winner)),
		slog.String("tx_hash", res.TxHash),
	)
	c.auditLog(ctx, "market_settled", map[string]any{
		"condition_id": conditionID,
		"winner":       string(winner),
		"tx_hash":      res.TxHash,
	})
	return settled, nil
}

// Buy buys outcome tokens. Fails with ErrMarketClosed once the trading
// window has passed or the market is settled.
func (c *Coordinator) Buy(ctx context.Context, conditionID string, amount string, outcome domain.Outcome, minOut string) (domain.TradeResult, error) {
	return c.trade(ctx, "buy", conditionID, amount, outcome, minOut, c.chain.Buy)
}

// Sell sells outcome tokens under the same window guard as Buy.
func (c *Coordinator) Sell(ctx context.Context, conditionID string, amount string, outcome domain.Outcome, minOut string) (domain.TradeResult, error) {
	return c.trade(ctx, "sell", conditionID, amount, outcome, minOut, c.chain.Sell)
}

type tradeFunc func(ctx context.Context, conditionID string, amount decimal.Decimal, outcome domain.Outcome, minOut decimal.Decimal) (domain.TradeResult, error)

func (c *Coordinator) trade(ctx context.Context, op, conditionID, amount string, outcome domain.Outcome, minOut string, call tradeFunc) (domain.TradeResult, error) {
	if !outcome.Valid() {
		return domain.TradeResult{}, domain.Invalid("outcome", "%q is not YES or NO", outcome)
	}
	qty, err := parseAmount("amount", amount)
	if err != nil {
		return domain.TradeResult{}, err
	}
	var floor decimal.Decimal
	if minOut != "" {
		floor, err = decimal.NewFromString(minOut)
		if err != nil || floor.IsNegative() {
			return domain.TradeResult{}, domain.Invalid("minOut", "%q is not a non-negative decimal", minOut)
		}
	}

	record, err := c.records.Read(ctx, conditionID)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("lifecycle: %s %s: %w", op, conditionID, err)
	}
	if record.Settlement.IsSettled || !c.now().Before(record.EndTime) {
		return domain.TradeResult{}, fmt.Errorf("lifecycle: %s %s: %w", op, conditionID, domain.ErrMarketClosed)
	}

	res, err := call(ctx, conditionID, qty, outcome, floor)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues(op, "error").Inc()
		return domain.TradeResult{}, fmt.Errorf("lifecycle: %s %s: %w", op, conditionID, err)
	}
	metrics.GatewayCalls.WithLabelValues(op, "ok").Inc()

	c.logger.InfoContext(ctx, "trade executed",
		slog.String("op", op),
		slog.String("condition_id", conditionID),
		slog.String("outcome", string(outcome)),
		slog.String("amount", qty.String()),
		slog.String("tx_hash", res.TxHash),
	)
	c.auditLog(ctx, "trade_executed", map[string]any{
		"op":           op,
		"condition_id": conditionID,
		"outcome":      string(outcome),
		"amount":       qty.String(),
		"tx_hash":      res.TxHash,
	})
	return res, nil
}

// Redeem redeems winning tokens. The market must be settled locally first.
func (c *Coordinator) Redeem(ctx context.Context, conditionID string) (domain.TradeResult, error) {
	record, err := c.records.Read(ctx, conditionID)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("lifecycle: redeem %s: %w", conditionID, err)
	}
	if !record.Settlement.IsSettled {
		return domain.TradeResult{}, fmt.Errorf("lifecycle: redeem %s: market not settled: %w", conditionID, domain.ErrNotYetSettleable)
	}

	res, err := c.chain.Redeem(ctx, conditionID)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("redeem", "error").Inc()
		return domain.TradeResult{}, fmt.Errorf("lifecycle: redeem %s: %w", conditionID, err)
	}
	metrics.GatewayCalls.WithLabelValues("redeem", "ok").Inc()

	c.logger.InfoContext(ctx, "position redeemed",
		slog.String("condition_id", conditionID),
		slog.String("tx_hash", res.TxHash),
	)
	c.auditLog(ctx, "position_redeemed", map[string]any{
		"condition_id": conditionID,
		"tx_hash":      res.TxHash,
	})
	return res, nil
}

// Info reads the gateway's current view of a market.
func (c *Coordinator) Info(ctx context.Context, conditionID string) (domain.MarketInfo, error) {
	info, err := c.chain.GetMarketInfo(ctx, conditionID)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("getMarketInfo", "error").Inc()
		return domain.MarketInfo{}, fmt.Errorf("lifecycle: info %s: %w", conditionID, err)
	}
	metrics.GatewayCalls.WithLabelValues("getMarketInfo", "ok").Inc()
	return info, nil
}

// Prices reads current market prices, serving from the cache when one is
// attached. Cache failures fall through to the gateway.
func (c *Coordinator) Prices(ctx context.Context, conditionID string) (domain.MarketPrices, error) {
	if c.prices != nil {
		if cached, err := c.prices.GetPrices(ctx, conditionID); err == nil {
			return cached, nil
		}
	}

	prices, err := c.chain.GetMarketPrices(ctx, conditionID)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("getMarketPrices", "error").Inc()
		return domain.MarketPrices{}, fmt.Errorf("lifecycle: prices %s: %w", conditionID, err)
	}
	metrics.GatewayCalls.WithLabelValues("getMarketPrices", "ok").Inc()

	if c.prices != nil {
		if err := c.prices.SetPrices(ctx, conditionID, prices); err != nil {
			c.logger.WarnContext(ctx, "price cache write failed",
				slog.String("condition_id", conditionID),
				slog.String("error", err.Error()),
			)
		}
	}
	return prices, nil
}

// Record returns the locally stored record for a market.
func (c *Coordinator) Record(ctx context.Context, conditionID string) (domain.MarketRecord, error) {
	return c.records.Read(ctx, conditionID)
}

func (c *Coordinator) auditLog(ctx context.Context, event string, detail map[string]any) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Log(ctx, event, detail); err != nil {
		c.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
