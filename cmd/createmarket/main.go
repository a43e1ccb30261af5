// Command createmarket creates a binary market through the gateway and
// registers it in the local registry. Due markets settle first. Prints the
// new market record as JSON.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/outcomelab/marketd/internal/cli"
	"github.com/outcomelab/marketd/internal/domain"
	"github.com/outcomelab/marketd/internal/lifecycle"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	question := flag.String("question", "", "market question (required)")
	endTime := flag.String("end", "", "trading window close, RFC 3339 (required)")
	liquidity := flag.String("liquidity", "", "initial liquidity in collateral units (required)")
	collateral := flag.String("collateral", "USDC", "collateral symbol or token address")
	decimals := flag.Int("decimals", 0, "collateral decimals when -collateral is an address")
	source := flag.String("source", "", "resolution source")
	criteria := flag.String("criteria", "", "resolution criteria")
	notes := flag.String("notes", "", "free-form trading notes")
	flag.Parse()

	if *question == "" || *endTime == "" || *liquidity == "" {
		fmt.Fprintln(os.Stderr, "usage: createmarket -question <q> -end <rfc3339> -liquidity <amount> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	end, err := time.Parse(time.RFC3339, *endTime)
	if err != nil {
		cli.Fatal(fmt.Errorf("parse -end: %w", err))
	}

	ctx, env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fatal(err)
	}
	defer env.Close()

	record, err := env.Deps.Coordinator.CreateMarket(ctx, lifecycle.CreateInput{
		Question:           *question,
		EndTime:            end,
		InitialLiquidity:   *liquidity,
		Collateral:         *collateral,
		CollateralDecimals: *decimals,
		TradingRules: domain.TradingRules{
			ResolutionSource:   *source,
			ResolutionCriteria: *criteria,
			Notes:              *notes,
		},
	})
	if err != nil {
		cli.Fatal(err)
	}
	cli.PrintJSON(record)
}
