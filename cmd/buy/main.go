// Command buy buys outcome tokens in an open market and prints the
// transaction hash as JSON.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/outcomelab/marketd/internal/cli"
	"github.com/outcomelab/marketd/internal/domain"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	amount := flag.String("amount", "", "collateral amount to spend (required)")
	outcome := flag.String("outcome", "YES", "outcome side to buy (YES or NO)")
	minOut := flag.String("min-out", "", "minimum acceptable tokens out")
	flag.Parse()

	if flag.NArg() != 1 || *amount == "" {
		fmt.Fprintln(os.Stderr, "usage: buy -amount <amount> [flags] <conditionId>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fatal(err)
	}
	defer env.Close()

	res, err := env.Deps.Coordinator.Buy(ctx, flag.Arg(0), *amount,
		domain.Outcome(strings.ToUpper(*outcome)), *minOut)
	if err != nil {
		cli.Fatal(err)
	}
	cli.PrintJSON(map[string]string{"txHash": res.TxHash})
}
