package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/outcomelab/marketd/internal/domain"
)

// oracleChain fakes just the resolution surface of the chain client.
type oracleChain struct {
	resolved bool
	winning  string
}

func (o *oracleChain) CreateMarket(ctx context.Context, p domain.CreateMarketParams) (domain.CreateMarketResult, error) {
	return domain.CreateMarketResult{}, errors.New("not implemented")
}

func (o *oracleChain) GetMarketInfo(ctx context.Context, conditionID string) (domain.MarketInfo, error) {
	return domain.MarketInfo{}, errors.New("not implemented")
}

func (o *oracleChain) GetMarketPrices(ctx context.Context, conditionID string) (domain.MarketPrices, error) {
	return domain.MarketPrices{}, errors.New("not implemented")
}

func (o *oracleChain) Buy(ctx context.Context, conditionID string, amount decimal.Decimal, outcome domain.Outcome, minOut decimal.Decimal) (domain.TradeResult, error) {
	return domain.TradeResult{}, errors.New("not implemented")
}

func (o *oracleChain) Sell(ctx context.Context, conditionID string, amount decimal.Decimal, outcome domain.Outcome, minOut decimal.Decimal) (domain.TradeResult, error) {
	return domain.TradeResult{}, errors.New("not implemented")
}

func (o *oracleChain) IsResolved(ctx context.Context, conditionID string) (bool, error) {
	return o.resolved, nil
}

func (o *oracleChain) GetWinningToken(ctx context.Context, conditionID string) (string, error) {
	return o.winning, nil
}

func (o *oracleChain) GetTokenID(ctx context.Context, conditionID string, outcome domain.Outcome) (string, error) {
	return conditionID + "-" + string(outcome), nil
}

func (o *oracleChain) SettleMarket(ctx context.Context, conditionID, winningTokenID string) (domain.TradeResult, error) {
	return domain.TradeResult{}, errors.New("not implemented")
}

func (o *oracleChain) Redeem(ctx context.Context, conditionID string) (domain.TradeResult, error) {
	return domain.TradeResult{}, errors.New("not implemented")
}

var _ domain.ChainClient = (*oracleChain)(nil)

func TestManualAlwaysDeclines(t *testing.T) {
	resolve := Manual()

	_, err := resolve(context.Background(), domain.MarketRecord{ConditionID: "0xabc"})
	if !errors.Is(err, domain.ErrNoDecision) {
		t.Fatalf("Manual = %v, want ErrNoDecision", err)
	}
}

func TestChainOracleDeclinesWhileUnresolved(t *testing.T) {
	resolve := ChainOracle(&oracleChain{resolved: false})

	_, err := resolve(context.Background(), domain.MarketRecord{ConditionID: "0xabc"})
	if !errors.Is(err, domain.ErrNoDecision) {
		t.Fatalf("unresolved oracle = %v, want ErrNoDecision", err)
	}
}

func TestChainOracleMapsWinningToken(t *testing.T) {
	cases := map[string]domain.Outcome{
		"0xabc-YES": domain.OutcomeYes,
		"0xabc-NO":  domain.OutcomeNo,
	}
	for winning, want := range cases {
		resolve := ChainOracle(&oracleChain{resolved: true, winning: winning})

		got, err := resolve(context.Background(), domain.MarketRecord{ConditionID: "0xabc"})
		if err != nil {
			t.Fatalf("winning %s: %v", winning, err)
		}
		if got != want {
			t.Errorf("winning %s → %s, want %s", winning, got, want)
		}
	}
}

func TestChainOracleRejectsUnknownToken(t *testing.T) {
	resolve := ChainOracle(&oracleChain{resolved: true, winning: "0xother-token"})

	_, err := resolve(context.Background(), domain.MarketRecord{ConditionID: "0xabc"})
	if err == nil || errors.Is(err, domain.ErrNoDecision) {
		t.Fatalf("unknown winning token = %v, want hard error", err)
	}
}
