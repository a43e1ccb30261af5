package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CreateMarketParams are the inputs to market creation, validated locally
// before the gateway is called.
type CreateMarketParams struct {
	Question         string
	EndTime          time.Time
	InitialLiquidity decimal.Decimal
	Collateral       Collateral
	TradingRules     TradingRules
}

// CreateMarketResult is what the gateway reports after a successful
// on-chain creation.
type CreateMarketResult struct {
	ConditionID string
	TxHash      string
}

// MarketInfo is the gateway's view of a market.
type MarketInfo struct {
	Question   string
	EndTime    time.Time
	IsSettled  bool
	Collateral Collateral
	Reserve    decimal.Decimal
}

// MarketPrices are the current AMM prices as percentages summing to ~100.
type MarketPrices struct {
	YesPricePercent float64
	NoPricePercent  float64
}

// TradeResult carries the transaction hash of a chain operation.
type TradeResult struct {
	TxHash string
}

// ChainClient is the external chain collaborator. Every method is a
// blocking, fallible remote call; failures are surfaced unmodified and no
// retry policy is applied here.
type ChainClient interface {
	CreateMarket(ctx context.Context, p CreateMarketParams) (CreateMarketResult, error)
	GetMarketInfo(ctx context.Context, conditionID string) (MarketInfo, error)
	GetMarketPrices(ctx context.Context, conditionID string) (MarketPrices, error)
	Buy(ctx context.Context, conditionID string, amount decimal.Decimal, outcome Outcome, minOut decimal.Decimal) (TradeResult, error)
	Sell(ctx context.Context, conditionID string, amount decimal.Decimal, outcome Outcome, minOut decimal.Decimal) (TradeResult, error)
	IsResolved(ctx context.Context, conditionID string) (bool, error)
	GetWinningToken(ctx context.Context, conditionID string) (string, error)
	GetTokenID(ctx context.Context, conditionID string, outcome Outcome) (string, error)
	SettleMarket(ctx context.Context, conditionID, winningTokenID string) (TradeResult, error)
	Redeem(ctx context.Context, conditionID string) (TradeResult, error)
}

// ResolveFunc is the injected judgment that decides a due market's winning
// outcome from its trading rules. The registry never decides outcomes
// itself; callers supply this, typically an operator or an external agent.
type ResolveFunc func(ctx context.Context, record MarketRecord) (Outcome, error)
