// Command getmarket prints a market as JSON: the local record, and with
// -live the gateway's current view and prices alongside it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/outcomelab/marketd/internal/cli"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	live := flag.Bool("live", false, "also query the gateway for current info and prices")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: getmarket [flags] <conditionId>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	conditionID := flag.Arg(0)

	ctx, env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fatal(err)
	}
	defer env.Close()

	record, err := env.Deps.Coordinator.Record(ctx, conditionID)
	if err != nil {
		cli.Fatal(err)
	}

	if !*live {
		cli.PrintJSON(record)
		return
	}

	info, err := env.Deps.Coordinator.Info(ctx, conditionID)
	if err != nil {
		cli.Fatal(err)
	}
	out := map[string]any{
		"record": record,
		"live": map[string]any{
			"question":  info.Question,
			"endTime":   info.EndTime,
			"isSettled": info.IsSettled,
			"reserve":   info.Reserve.String(),
		},
	}
	if prices, err := env.Deps.Coordinator.Prices(ctx, conditionID); err == nil {
		out["prices"] = map[string]float64{
			"yesPricePercent": prices.YesPricePercent,
			"noPricePercent":  prices.NoPricePercent,
		}
	}
	cli.PrintJSON(out)
}
