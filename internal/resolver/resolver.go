// Package resolver provides the judgment functions the settlement scanner
// runs due markets through. The registry never decides outcomes itself; a
// ResolveFunc does, and a resolver that declines keeps the market due.
package resolver

import (
	"context"
	"fmt"

	"github.com/outcomelab/marketd/internal/domain"
)

// Manual is a ResolveFunc that never decides. Every due market is left for
// an operator to settle explicitly through the settle command.
func Manual() domain.ResolveFunc {
	return func(ctx context.Context, record domain.MarketRecord) (domain.Outcome, error) {
		return "", domain.ErrNoDecision
	}
}

// ChainOracle is a ResolveFunc that adopts the on-chain oracle's verdict:
// when the market's condition is already resolved on chain it reports the
// matching outcome, otherwise it declines.
func ChainOracle(chain domain.ChainClient) domain.ResolveFunc {
	return func(ctx context.Context, record domain.MarketRecord) (domain.Outcome, error) {
		resolved, err := chain.IsResolved(ctx, record.ConditionID)
		if err != nil {
			return "", fmt.Errorf("resolver: check %s: %w", record.ConditionID, err)
		}
		if !resolved {
			return "", domain.ErrNoDecision
		}

		winning, err := chain.GetWinningToken(ctx, record.ConditionID)
		if err != nil {
			return "", fmt.Errorf("resolver: winning token %s: %w", record.ConditionID, err)
		}
		for _, outcome := range []domain.Outcome{domain.OutcomeYes, domain.OutcomeNo} {
			tokenID, err := chain.GetTokenID(ctx, record.ConditionID, outcome)
			if err != nil {
				return "", fmt.Errorf("resolver: token id %s/%s: %w", record.ConditionID, outcome, err)
			}
			if tokenID == winning {
				return outcome, nil
			}
		}
		return "", fmt.Errorf("resolver: %s: winning token %q matches neither outcome", record.ConditionID, winning)
	}
}
