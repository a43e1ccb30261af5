package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/outcomelab/marketd/internal/domain"
	"github.com/outcomelab/marketd/internal/registry"
)

type fakePrices struct {
	prices domain.MarketPrices
	err    error
}

func (f *fakePrices) Prices(ctx context.Context, conditionID string) (domain.MarketPrices, error) {
	return f.prices, f.err
}

func newTestServer(t *testing.T) (*httptest.Server, *registry.RecordStore, *registry.Index) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "markets")
	records := registry.NewRecordStore(dir)
	index := registry.NewIndex(dir, registry.NewLocalLocker(), 5*time.Second)

	prices := &fakePrices{prices: domain.MarketPrices{YesPricePercent: 70, NoPricePercent: 30}}
	h := NewHandler(records, index, prices, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := httptest.NewServer(New(0, h, logger).httpServer.Handler)
	t.Cleanup(srv.Close)
	return srv, records, index
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestHealth(t *testing.T) {
	srv, _, index := newTestServer(t)

	if err := index.Append(context.Background(), domain.RegistryEntry{ConditionID: "0xabc", EndTimeUnix: 1000}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	resp, body := get(t, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var health struct {
		Status  string `json:"status"`
		Markets int    `json:"markets"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Markets != 1 {
		t.Errorf("health = %+v", health)
	}
}

func TestListMarkets(t *testing.T) {
	srv, _, index := newTestServer(t)
	ctx := context.Background()

	for _, id := range []string{"0xa", "0xb"} {
		if err := index.Append(ctx, domain.RegistryEntry{ConditionID: id, EndTimeUnix: 1000}); err != nil {
			t.Fatalf("Append %s: %v", id, err)
		}
	}

	resp, body := get(t, srv.URL+"/api/markets")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var ix domain.Index
	if err := json.Unmarshal(body, &ix); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ix.Markets) != 2 || ix.Markets[0].ConditionID != "0xa" {
		t.Errorf("index = %+v, want 0xa then 0xb", ix)
	}
}

func TestGetMarket(t *testing.T) {
	srv, records, _ := newTestServer(t)

	record := domain.MarketRecord{
		ConditionID: "0xabc",
		Question:    "Will it rain?",
		EndTime:     time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := records.Write(context.Background(), record); err != nil {
		t.Fatalf("Write: %v", err)
	}

	resp, body := get(t, srv.URL+"/api/markets/0xabc")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got domain.MarketRecord
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Question != "Will it rain?" {
		t.Errorf("question = %q", got.Question)
	}
}

func TestGetMarketNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := get(t, srv.URL+"/api/markets/0xmissing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetPrices(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/markets/0xabc/prices")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var prices map[string]float64
	if err := json.Unmarshal(body, &prices); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if prices["yesPricePercent"] != 70 || prices["noPricePercent"] != 30 {
		t.Errorf("prices = %v", prices)
	}
}

func TestAuditDisabled(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := get(t, srv.URL+"/api/audit")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when audit is disabled", resp.StatusCode)
	}
}
