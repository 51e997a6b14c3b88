package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/market_regime"
	"github.com/aristath/tradesim/internal/modules/valuation"
	"github.com/aristath/tradesim/internal/simulation"
	"github.com/aristath/tradesim/pkg/formulas"
)

// stepsPerYear converts per-step statistics back to annual figures
const stepsPerYear = simulation.TradingSecondsPerYear

type simulateCmd struct {
	symbol string
	steps  int
	seed   uint64
	regime string
	csv    bool
	out    io.Writer
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "generate a GBM price path for one instrument" }
func (*simulateCmd) Usage() string {
	return `simpath simulate -symbol <SYMBOL> [-steps N] [-seed S] [-regime bull|bear|sideways] [-csv]

  Runs the geometric Brownian motion generator from the instrument's catalog
  price, using its drift and volatility scaled by the regime policy. The same
  non-zero seed always produces the same path.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "AAPL", "catalog symbol to simulate")
	f.IntVar(&c.steps, "steps", 390, "number of ticks to generate")
	f.Uint64Var(&c.seed, "seed", 0, "random seed (0 derives one from the clock)")
	f.StringVar(&c.regime, "regime", string(domain.RegimeSideways), "market regime applied to drift and volatility")
	f.BoolVar(&c.csv, "csv", false, "print every step as CSV instead of a summary")
}

func (c *simulateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	if err := c.run(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *simulateCmd) run(out io.Writer) error {
	if c.steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.steps)
	}
	regime, err := domain.ParseRegime(c.regime)
	if err != nil {
		return err
	}
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	asset, err := cat.Get(c.symbol)
	if err != nil {
		return err
	}

	seed := c.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	mu, sigma := market_regime.DefaultPolicy().ParametersFor(regime)(asset)
	gen := simulation.NewGenerator(mu, sigma, simulation.NewRandomSource(seed))
	path := gen.SimulatePath(asset.InitialPrice, c.steps, simulation.DefaultDT)

	if c.csv {
		return writePathCSV(out, path)
	}
	return writeSummary(out, asset, regime, seed, path)
}

func writePathCSV(out io.Writer, path []float64) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"step", "price"}); err != nil {
		return err
	}
	for i, p := range path {
		if err := w.Write([]string{strconv.Itoa(i), strconv.FormatFloat(p, 'f', 4, 64)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeSummary(out io.Writer, asset catalog.Asset, regime domain.Regime, seed uint64, path []float64) error {
	first, last := path[0], path[len(path)-1]
	_, err := fmt.Fprintf(out,
		"%s (%s) regime=%s seed=%d steps=%d\n"+
			"  start     %s\n"+
			"  end       %s (%s)\n"+
			"  high/low  %s / %s\n"+
			"  realized  drift %.2f%%  volatility %.2f%% (annualized)\n",
		asset.Symbol, asset.Name, regime, seed, len(path)-1,
		valuation.FormatUSD(decimal.NewFromFloat(first)),
		valuation.FormatUSD(decimal.NewFromFloat(last)), valuation.FormatPercent(formulas.ChangePercent(last, first)),
		valuation.FormatUSD(decimal.NewFromFloat(formulas.High(path))), valuation.FormatUSD(decimal.NewFromFloat(formulas.Low(path))),
		formulas.RealizedDrift(path, stepsPerYear)*100, formulas.AnnualizedVolatility(path, stepsPerYear)*100,
	)
	return err
}
