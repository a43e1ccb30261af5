// Command settlescan runs one repair-and-settle pass over the registry and
// prints the scan report as JSON.
package main

import (
	"flag"

	"github.com/outcomelab/marketd/internal/cli"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	ctx, env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fatal(err)
	}
	defer env.Close()

	report, err := env.Deps.Scanner.Scan(ctx)
	if err != nil {
		cli.Fatal(err)
	}
	cli.PrintJSON(report)
}
