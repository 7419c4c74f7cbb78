// Command fetch downloads one OHLCV series and writes it to a file or stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"marketfeed/internal/app"
	"marketfeed/internal/logger"
	"marketfeed/internal/market"
	"marketfeed/internal/saver"
)

type options struct {
	config   string
	symbol   string
	interval string
	limit    int
	source   string
	format   string
	out      string
	raw      bool
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "fetch",
		Short:         "Fetch OHLCV bars with provider fallback",
		Example:       "fetch --symbol AAPL --interval 1d --limit 30 --format csv --out aapl.csv",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, sv, err := o.parse()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, o, req, sv, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.config, "config", "c", os.Getenv("MARKETFEED_CONFIG"), "settings file (yaml)")
	f.StringVarP(&o.symbol, "symbol", "s", "", "ticker, e.g. AAPL or BTC/USDT")
	f.StringVarP(&o.interval, "interval", "i", "1d", "bar interval (1m 5m 15m 30m 1h 4h 1d 1w 1M)")
	f.IntVarP(&o.limit, "limit", "n", 100, "number of bars")
	f.StringVar(&o.source, "source", "auto", "provider or auto")
	f.StringVarP(&o.format, "format", "f", "json", "output format (json csv yaml parquet)")
	f.StringVarP(&o.out, "out", "o", "", "output file; stdout when empty")
	f.BoolVar(&o.raw, "raw", false, "write the provider payload untouched (needs --source)")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func (o options) parse() (market.Request, saver.Saver, error) {
	iv, err := market.ParseInterval(o.interval)
	if err != nil {
		return market.Request{}, nil, err
	}
	src, err := market.ParseSource(o.source)
	if err != nil {
		return market.Request{}, nil, err
	}
	if o.raw && src == market.SourceAuto {
		return market.Request{}, nil, fmt.Errorf("--raw needs an explicit --source")
	}
	req := market.Request{Symbol: o.symbol, Interval: iv, Limit: o.limit, Source: src}
	if err := req.Validate(); err != nil {
		return market.Request{}, nil, err
	}
	sv, err := saver.New(o.format)
	if err != nil {
		return market.Request{}, nil, err
	}
	if sv.Extension() == "parquet" && o.out == "" {
		return market.Request{}, nil, fmt.Errorf("parquet output needs --out")
	}
	return req, sv, nil
}

func run(ctx context.Context, o options, req market.Request, sv saver.Saver, stdout io.Writer) error {
	f, cleanup, err := app.InitializeFetcher(app.ConfigPath(o.config))
	if err != nil {
		return err
	}
	defer cleanup()

	if o.raw {
		a, ok := f.Adapter(string(req.Source))
		if !ok {
			return fmt.Errorf("source %s is not configured", req.Source)
		}
		p, err := a.Fetch(ctx, req)
		if err != nil {
			return err
		}
		return withOutput(o.out, stdout, func(w io.Writer) error { return saver.WriteRaw(w, p) })
	}

	s, err := f.Orchestrator.Fetch(ctx, req)
	if err != nil {
		return err
	}
	logger.Infof("[fetch] %s: %d bars from %s", req.Symbol, s.Len(), s.Source)
	if o.out != "" {
		return saver.SaveFile(sv, o.out, s)
	}
	return sv.Save(stdout, s)
}

func withOutput(path string, stdout io.Writer, fn func(io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fetch:", err)
		os.Exit(1)
	}
}
