package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"

	"github.com/aristath/tradesim/internal/catalog"
)

type listCmd struct {
	asJSON bool
	out    io.Writer
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list the tradable instruments and their GBM parameters" }
func (*listCmd) Usage() string {
	return `simpath list [-json]

  Prints every catalog instrument with its starting price, annual drift and
  annual volatility.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "print the catalog as JSON")
}

func (c *listCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	cat, err := catalog.Default()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cat.All()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "SYMBOL\tNAME\tSECTOR\tPRICE\tDRIFT\tVOLATILITY\t")
	for _, a := range cat.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\t%.1f%%\t\n",
			a.Symbol, a.Name, a.Sector, money.NewFromFloat(a.InitialPrice, money.USD).Display(),
			a.BaseDrift*100, a.BaseVolatility*100)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
