package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ValidConditionID reports whether s looks like a condition ID: a 0x-prefixed
// 32-byte hash as assigned by the conditional tokens contract.
func ValidConditionID(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

// ValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Validate checks the creation inputs that can be rejected before any
// gateway call. The unknown-collateral case is checked by the caller against
// its configured token table; here only the structural rules apply.
func (p CreateMarketParams) Validate() error {
	if p.Question == "" {
		return Invalid("question", "must not be empty")
	}
	if p.EndTime.IsZero() {
		return Invalid("endTime", "must be set")
	}
	if !p.InitialLiquidity.IsPositive() {
		return Invalid("initialLiquidity", "must be positive, got %s", p.InitialLiquidity)
	}
	if p.Collateral.Symbol == "" && p.Collateral.Address == "" {
		return Invalid("collateral", "symbol or address required")
	}
	if p.Collateral.Address != "" && !ValidAddress(p.Collateral.Address) {
		return Invalid("collateral.address", "not a hex address: %q", p.Collateral.Address)
	}
	return nil
}
