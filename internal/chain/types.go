package chain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/outcomelab/marketd/internal/domain"
)

// createMarketRequest is the gateway payload for market creation.
type createMarketRequest struct {
	Question           string `json:"question"`
	EndTimeUnix        int64  `json:"endTimeUnix"`
	InitialLiquidity   string `json:"initialLiquidity"`
	CollateralAddress  string `json:"collateralAddress"`
	CollateralDecimals int    `json:"collateralDecimals"`
	ResolutionSource   string `json:"resolutionSource"`
	ResolutionCriteria string `json:"resolutionCriteria"`
}

// createMarketResponse is the gateway's creation receipt.
type createMarketResponse struct {
	ConditionID string `json:"conditionId"`
	TxHash      string `json:"txHash"`
}

func (r createMarketResponse) toDomain() domain.CreateMarketResult {
	return domain.CreateMarketResult{ConditionID: r.ConditionID, TxHash: r.TxHash}
}

// apiCollateral mirrors the gateway's collateral object.
type apiCollateral struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// marketInfoResponse is the gateway's view of a market.
type marketInfoResponse struct {
	Question    string        `json:"question"`
	EndTimeUnix int64         `json:"endTimeUnix"`
	IsSettled   bool          `json:"isSettled"`
	Collateral  apiCollateral `json:"collateral"`
	Reserve     string        `json:"reserve"`
}

func (r marketInfoResponse) toDomain() (domain.MarketInfo, error) {
	reserve, err := decimal.NewFromString(r.Reserve)
	if err != nil {
		return domain.MarketInfo{}, err
	}
	return domain.MarketInfo{
		Question:  r.Question,
		EndTime:   time.Unix(r.EndTimeUnix, 0).UTC(),
		IsSettled: r.IsSettled,
		Collateral: domain.Collateral{
			Symbol:   r.Collateral.Symbol,
			Address:  r.Collateral.Address,
			Decimals: r.Collateral.Decimals,
		},
		Reserve: reserve,
	}, nil
}

// pricesResponse carries AMM prices as percentages.
type pricesResponse struct {
	YesPricePercent float64 `json:"yesPricePercent"`
	NoPricePercent  float64 `json:"noPricePercent"`
}

func (r pricesResponse) toDomain() domain.MarketPrices {
	return domain.MarketPrices{YesPricePercent: r.YesPricePercent, NoPricePercent: r.NoPricePercent}
}

// tradeRequest is the gateway payload for buy/sell.
type tradeRequest struct {
	Outcome string `json:"outcome"`
	Amount  string `json:"amount"`
	MinOut  string `json:"minOut"`
}

// settleRequest is the gateway payload for settlement.
type settleRequest struct {
	WinningTokenID string `json:"winningTokenId"`
}

// txResponse is the generic transaction receipt.
type txResponse struct {
	TxHash string `json:"txHash"`
}

func (r txResponse) toDomain() domain.TradeResult {
	return domain.TradeResult{TxHash: r.TxHash}
}

// resolvedResponse reports on-chain resolution state.
type resolvedResponse struct {
	Resolved bool `json:"resolved"`
}

// tokenResponse carries an outcome token ID.
type tokenResponse struct {
	TokenID string `json:"tokenId"`
}

// Event is a message from the gateway event stream.
type Event struct {
	Type        string `json:"type"`
	ConditionID string `json:"conditionId"`
	TxHash      string `json:"txHash"`
	Outcome     string `json:"outcome"`
	TimeUnix    int64  `json:"timeUnix"`
}
