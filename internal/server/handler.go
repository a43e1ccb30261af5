package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/outcomelab/marketd/internal/domain"
)

// PriceReader serves current market prices; the lifecycle coordinator
// satisfies it.
type PriceReader interface {
	Prices(ctx context.Context, conditionID string) (domain.MarketPrices, error)
}

// Handler holds the stores the status API reads from. Audit and prices are
// optional; their endpoints report 404 when unset.
type Handler struct {
	records domain.RecordStore
	index   domain.RegistryStore
	prices  PriceReader
	audit   domain.AuditStore
	started time.Time
}

// NewHandler creates a Handler. prices and audit may be nil.
func NewHandler(records domain.RecordStore, index domain.RegistryStore, prices PriceReader, audit domain.AuditStore) *Handler {
	return &Handler{
		records: records,
		index:   index,
		prices:  prices,
		audit:   audit,
		started: time.Now(),
	}
}

// Health responds with liveness and registry size.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ix, err := h.index.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registry unreadable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"markets":   len(ix.Markets),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListMarkets returns the registry index entries in insertion order.
// GET /api/markets
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	ix, err := h.index.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registry unreadable")
		return
	}
	writeJSON(w, http.StatusOK, ix)
}

// GetMarket returns the full record for one market.
// GET /api/markets/{conditionID}
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	conditionID := chi.URLParam(r, "conditionID")

	record, err := h.records.Read(r.Context(), conditionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "record unreadable")
	default:
		writeJSON(w, http.StatusOK, record)
	}
}

// GetPrices returns the current AMM prices for one market.
// GET /api/markets/{conditionID}/prices
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	if h.prices == nil {
		writeError(w, http.StatusNotFound, "price endpoint disabled")
		return
	}
	conditionID := chi.URLParam(r, "conditionID")

	prices, err := h.prices.Prices(r.Context(), conditionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	case err != nil:
		writeError(w, http.StatusBadGateway, "gateway unavailable")
	default:
		writeJSON(w, http.StatusOK, map[string]float64{
			"yesPricePercent": prices.YesPricePercent,
			"noPricePercent":  prices.NoPricePercent,
		})
	}
}

// ListAudit returns audit entries, newest first.
// GET /api/audit?limit=&offset=&event=
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, "audit trail disabled")
		return
	}

	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit trail unreadable")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts extracts pagination and filtering from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
		Event:  q.Get("event"),
	}
}
