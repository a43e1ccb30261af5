// Package domain defines the core types of the market registry: the
// per-market record, the registry index projection, and the interfaces that
// bind the file stores, the lock discipline, and the external chain gateway
// together.
package domain

import (
	"time"
)

// Outcome is one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Valid reports whether o is one of the two recognised outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Collateral identifies the ERC20 token a market is funded with. Immutable
// after creation.
type Collateral struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// TradingRules is the free-text resolution contract recorded at creation.
// The registry stores it verbatim; it is the input to the injected
// resolution judgment, never interpreted by this system.
type TradingRules struct {
	ResolutionSource   string `json:"resolutionSource"`
	ResolutionCriteria string `json:"resolutionCriteria"`
	Notes              string `json:"notes"`
}

// Settlement holds the terminal state of a market. It is mutated exactly
// once, by the settlement flow: IsSettled goes false to true and never
// back, and Winner is nil exactly while IsSettled is false.
type Settlement struct {
	IsSettled    bool       `json:"isSettled"`
	SettleTxHash *string    `json:"settleTxHash"`
	Winner       *Outcome   `json:"winner"`
	SettledAt    *time.Time `json:"settledAt"`
}

// MarketRecord is the full per-market document persisted as
// markets/<conditionId>.json. Field names are part of the on-disk contract;
// external tooling reads these files.
type MarketRecord struct {
	ConditionID      string       `json:"conditionId"`
	Question         string       `json:"question"`
	CreatedAt        time.Time    `json:"createdAt"`
	EndTime          time.Time    `json:"endTime"`
	Collateral       Collateral   `json:"collateral"`
	InitialLiquidity string       `json:"initialLiquidity"`
	CreateTxHash     string       `json:"createTxHash"`
	TradingRules     TradingRules `json:"tradingRules"`
	Settlement       Settlement   `json:"settlement"`
}

// MarkSettled returns a copy of the record with the settlement fields set.
// It does not check the at-most-once invariant; stores and the scanner
// enforce that before calling.
func (r MarketRecord) MarkSettled(winner Outcome, txHash string, at time.Time) MarketRecord {
	r.Settlement = Settlement{
		IsSettled:    true,
		SettleTxHash: &txHash,
		Winner:       &winner,
		SettledAt:    &at,
	}
	return r
}

// Entry projects the record into its registry index row.
func (r MarketRecord) Entry() RegistryEntry {
	return RegistryEntry{
		ConditionID: r.ConditionID,
		Question:    r.Question,
		EndTimeUnix: r.EndTime.Unix(),
		IsSettled:   r.Settlement.IsSettled,
		Winner:      r.Settlement.Winner,
	}
}

// RegistryEntry is the per-market row stored in markets/registry.json.
type RegistryEntry struct {
	ConditionID string   `json:"conditionId"`
	Question    string   `json:"question"`
	EndTimeUnix int64    `json:"endTimeUnix"`
	IsSettled   bool     `json:"isSettled"`
	Winner      *Outcome `json:"winner"`
}

// Due reports whether the entry's trading window has closed without the
// market having been settled.
func (e RegistryEntry) Due(now time.Time) bool {
	return !e.IsSettled && e.EndTimeUnix <= now.Unix()
}

// Index is the master registry of all known markets, in insertion order.
type Index struct {
	Markets []RegistryEntry `json:"markets"`
}

// Find returns the position of the entry with the given condition ID.
func (ix *Index) Find(conditionID string) (int, bool) {
	for i, e := range ix.Markets {
		if e.ConditionID == conditionID {
			return i, true
		}
	}
	return -1, false
}
