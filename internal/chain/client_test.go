package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/outcomelab/marketd/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestCreateMarket(t *testing.T) {
	var gotPath string
	var gotBody createMarketRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(createMarketResponse{ConditionID: "0xcond", TxHash: "0xtx"})
	})

	end := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	res, err := c.CreateMarket(context.Background(), domain.CreateMarketParams{
		Question:         "Will X happen?",
		EndTime:          end,
		InitialLiquidity: decimal.RequireFromString("100.5"),
		Collateral:       domain.Collateral{Symbol: "USDC", Address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Decimals: 6},
		TradingRules:     domain.TradingRules{ResolutionSource: "src", ResolutionCriteria: "crit"},
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if res.ConditionID != "0xcond" || res.TxHash != "0xtx" {
		t.Errorf("result = %+v", res)
	}
	if gotPath != "POST /markets" {
		t.Errorf("request = %q, want POST /markets", gotPath)
	}
	if gotBody.EndTimeUnix != end.Unix() {
		t.Errorf("endTimeUnix = %d, want %d", gotBody.EndTimeUnix, end.Unix())
	}
	if gotBody.InitialLiquidity != "100.5" || gotBody.CollateralDecimals != 6 {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestCreateMarketEmptyConditionID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(createMarketResponse{TxHash: "0xtx"})
	})

	_, err := c.CreateMarket(context.Background(), domain.CreateMarketParams{})
	if err == nil {
		t.Fatal("CreateMarket accepted a receipt without a condition id")
	}
}

func TestGetMarketInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/0xcond" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(marketInfoResponse{
			Question:    "Will X happen?",
			EndTimeUnix: 1790000000,
			IsSettled:   true,
			Collateral:  apiCollateral{Symbol: "USDC", Address: "0xabc", Decimals: 6},
			Reserve:     "1234.56",
		})
	})

	info, err := c.GetMarketInfo(context.Background(), "0xcond")
	if err != nil {
		t.Fatalf("GetMarketInfo: %v", err)
	}
	if !info.IsSettled || info.Collateral.Symbol != "USDC" {
		t.Errorf("info = %+v", info)
	}
	if info.EndTime.Unix() != 1790000000 {
		t.Errorf("end time = %v", info.EndTime)
	}
	if info.Reserve.String() != "1234.56" {
		t.Errorf("reserve = %s, want 1234.56", info.Reserve)
	}
}

func TestGetMarketInfoNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such market", http.StatusNotFound)
	})

	_, err := c.GetMarketInfo(context.Background(), "0xmissing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBuySendsDecimalStrings(t *testing.T) {
	var gotPath string
	var gotBody tradeRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(txResponse{TxHash: "0xbuy"})
	})

	res, err := c.Buy(context.Background(), "0xcond",
		decimal.RequireFromString("12.5"), domain.OutcomeYes, decimal.RequireFromString("11"))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if res.TxHash != "0xbuy" {
		t.Errorf("tx = %s", res.TxHash)
	}
	if gotPath != "POST /markets/0xcond/buy" {
		t.Errorf("request = %q", gotPath)
	}
	if gotBody.Outcome != "YES" || gotBody.Amount != "12.5" || gotBody.MinOut != "11" {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestSettleMarket(t *testing.T) {
	var gotBody settleRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/0xcond/settle" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(txResponse{TxHash: "0xsettle"})
	})

	res, err := c.SettleMarket(context.Background(), "0xcond", "token-yes")
	if err != nil {
		t.Fatalf("SettleMarket: %v", err)
	}
	if res.TxHash != "0xsettle" || gotBody.WinningTokenID != "token-yes" {
		t.Errorf("res = %+v, body = %+v", res, gotBody)
	}
}

func TestSettleMarketConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "condition already resolved", http.StatusConflict)
	})

	_, err := c.SettleMarket(context.Background(), "0xcond", "token-yes")
	if !errors.Is(err, domain.ErrAlreadySettledOnChain) {
		t.Fatalf("err = %v, want ErrAlreadySettledOnChain", err)
	}
}

func TestIsResolvedAndTokens(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets/0xcond/resolved":
			json.NewEncoder(w).Encode(resolvedResponse{Resolved: true})
		case "/markets/0xcond/winning-token":
			json.NewEncoder(w).Encode(tokenResponse{TokenID: "token-win"})
		case "/markets/0xcond/tokens/NO":
			json.NewEncoder(w).Encode(tokenResponse{TokenID: "token-no"})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	resolved, err := c.IsResolved(ctx, "0xcond")
	if err != nil || !resolved {
		t.Errorf("IsResolved = %v, %v", resolved, err)
	}
	win, err := c.GetWinningToken(ctx, "0xcond")
	if err != nil || win != "token-win" {
		t.Errorf("GetWinningToken = %q, %v", win, err)
	}
	token, err := c.GetTokenID(ctx, "0xcond", domain.OutcomeNo)
	if err != nil || token != "token-no" {
		t.Errorf("GetTokenID = %q, %v", token, err)
	}
}
