// Command settlemarket settles a market with an operator-chosen winner and
// prints the updated record as JSON. The winner is always explicit; nothing
// here guesses an outcome.
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
	winner := flag.String("winner", "", "winning outcome, YES or NO (required)")
	flag.Parse()

	if flag.NArg() != 1 || *winner == "" {
		fmt.Fprintln(os.Stderr, "usage: settlemarket -winner YES|NO [flags] <conditionId>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fatal(err)
	}
	defer env.Close()

	record, err := env.Deps.Coordinator.Settle(ctx, flag.Arg(0),
		domain.Outcome(strings.ToUpper(*winner)))
	if err != nil {
		cli.Fatal(err)
	}
	cli.PrintJSON(record)
}
