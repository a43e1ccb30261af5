// Package chain talks to the market SDK gateway daemon, the process that
// holds the wallet and performs the actual chain transactions. Every call
// is blocking and fallible; no retry policy is applied here.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/outcomelab/marketd/internal/domain"
)

// Client is the REST client for the gateway daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ domain.ChainClient = (*Client)(nil)

// NewClient creates a gateway client.
//
// baseURL is the gateway REST root, e.g. "http://localhost:8811".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateMarket deploys a new binary market and returns its condition ID and
// creation transaction hash.
func (c *Client) CreateMarket(ctx context.Context, p domain.CreateMarketParams) (domain.CreateMarketResult, error) {
	body := createMarketRequest{
		Question:           p.Question,
		EndTimeUnix:        p.EndTime.Unix(),
		InitialLiquidity:   p.InitialLiquidity.String(),
		CollateralAddress:  p.Collateral.Address,
		CollateralDecimals: p.Collateral.Decimals,
		ResolutionSource:   p.TradingRules.ResolutionSource,
		ResolutionCriteria: p.TradingRules.ResolutionCriteria,
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/markets", body)
	if err != nil {
		return domain.CreateMarketResult{}, fmt.Errorf("chain: create market: %w", err)
	}

	var resp createMarketResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.CreateMarketResult{}, fmt.Errorf("chain: decode create response: %w", err)
	}
	if resp.ConditionID == "" {
		return domain.CreateMarketResult{}, fmt.Errorf("chain: gateway returned no condition id")
	}
	return resp.toDomain(), nil
}

// GetMarketInfo reads the gateway's current view of a market.
func (c *Client) GetMarketInfo(ctx context.Context, conditionID string) (domain.MarketInfo, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/markets/"+url.PathEscape(conditionID), nil)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("chain: market info %s: %w", conditionID, err)
	}

	var resp marketInfoResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("chain: decode market info: %w", err)
	}
	info, err := resp.toDomain()
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("chain: market info %s: bad reserve %q: %w", conditionID, resp.Reserve, err)
	}
	return info, nil
}

// GetMarketPrices reads the current AMM prices.
func (c *Client) GetMarketPrices(ctx context.Context, conditionID string) (domain.MarketPrices, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/markets/"+url.PathEscape(conditionID)+"/prices", nil)
	if err != nil {
		return domain.MarketPrices{}, fmt.Errorf("chain: prices %s: %w", conditionID, err)
	}

	var resp pricesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.MarketPrices{}, fmt.Errorf("chain: decode prices: %w", err)
	}
	return resp.toDomain(), nil
}

// Buy swaps collateral for outcome tokens.
func (c *Client) Buy(ctx context.Context, conditionID string, amount decimal.Decimal, outcome domain.Outcome, minOut decimal.Decimal) (domain.TradeResult, error) {
	return c.trade(ctx, conditionID, "buy", amount, outcome, minOut)
}

// Sell swaps outcome tokens back to collateral.
func (c *Client) Sell(ctx context.Context, conditionID string, amount decimal.Decimal, outcome domain.Outcome, minOut decimal.Decimal) (domain.TradeResult, error) {
	return c.trade(ctx, conditionID, "sell", amount, outcome, minOut)
}

func (c *Client) trade(ctx context.Context, conditionID, op string, amount decimal.Decimal, outcome domain.Outcome, minOut decimal.Decimal) (domain.TradeResult, error) {
	body := tradeRequest{
		Outcome: string(outcome),
		Amount:  amount.String(),
		MinOut:  minOut.String(),
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/markets/"+url.PathEscape(conditionID)+"/"+op, body)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("chain: %s %s: %w", op, conditionID, err)
	}

	var resp txResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.TradeResult{}, fmt.Errorf("chain: decode %s response: %w", op, err)
	}
	return resp.toDomain(), nil
}

// IsResolved reports whether the market's oracle condition has been resolved
// on chain.
func (c *Client) IsResolved(ctx context.Context, conditionID string) (bool, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/markets/"+url.PathEscape(conditionID)+"/resolved", nil)
	if err != nil {
		return false, fmt.Errorf("chain: resolved %s: %w", conditionID, err)
	}

	var resp resolvedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return false, fmt.Errorf("chain: decode resolved response: %w", err)
	}
	return resp.Resolved, nil
}

// GetWinningToken returns the token ID the oracle reported as winning.
func (c *Client) GetWinningToken(ctx context.Context, conditionID string) (string, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/markets/"+url.PathEscape(conditionID)+"/winning-token", nil)
	if err != nil {
		return "", fmt.Errorf("chain: winning token %s: %w", conditionID, err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("chain: decode winning token: %w", err)
	}
	return resp.TokenID, nil
}

// GetTokenID returns the outcome token ID for one side of a market.
func (c *Client) GetTokenID(ctx context.Context, conditionID string, outcome domain.Outcome) (string, error) {
	path := "/markets/" + url.PathEscape(conditionID) + "/tokens/" + url.PathEscape(string(outcome))
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("chain: token id %s/%s: %w", conditionID, outcome, err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("chain: decode token id: %w", err)
	}
	return resp.TokenID, nil
}

// SettleMarket reports the winning token to the market contract.
func (c *Client) SettleMarket(ctx context.Context, conditionID, winningTokenID string) (domain.TradeResult, error) {
	body := settleRequest{WinningTokenID: winningTokenID}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/markets/"+url.PathEscape(conditionID)+"/settle", body)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("chain: settle %s: %w", conditionID, err)
	}

	var resp txResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.TradeResult{}, fmt.Errorf("chain: decode settle response: %w", err)
	}
	return resp.toDomain(), nil
}

// Redeem redeems the wallet's winning tokens for collateral.
func (c *Client) Redeem(ctx context.Context, conditionID string) (domain.TradeResult, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/markets/"+url.PathEscape(conditionID)+"/redeem", nil)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("chain: redeem %s: %w", conditionID, err)
	}

	var resp txResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.TradeResult{}, fmt.Errorf("chain: decode redeem response: %w", err)
	}
	return resp.toDomain(), nil
}

// doRequest builds, sends and reads an HTTP request against the gateway,
// returning the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors where one
// applies.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrAlreadySettledOnChain, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
