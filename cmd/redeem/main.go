// Command redeem redeems winning tokens from a settled market and prints
// the transaction hash as JSON.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/outcomelab/marketd/internal/cli"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: redeem [flags] <conditionId>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fatal(err)
	}
	defer env.Close()

	res, err := env.Deps.Coordinator.Redeem(ctx, flag.Arg(0))
	if err != nil {
		cli.Fatal(err)
	}
	cli.PrintJSON(map[string]string{"txHash": res.TxHash})
}
