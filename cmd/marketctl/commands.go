package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"market-analytics/config"
	"market-analytics/internal/app"
	"market-analytics/internal/logging"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	mock       bool
	timeout    time.Duration
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "marketctl",
		Short: "Crypto market analytics from the command line",
		Long: `marketctl runs the ICT, sniper, arbitrage and liquidity engines once against
the configured exchanges and prints the result as JSON.

Examples:
  marketctl ict BTCUSDT
  marketctl ict ETHUSDT --timeframe 4h
  marketctl arbitrage scan BTCUSDT ETHUSDT --mock
  marketctl heatmap SOLUSDT --levels 10`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.json", "Path to the JSON config file")
	root.PersistentFlags().BoolVar(&opts.mock, "mock", false, "Use simulated exchanges")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Overall command timeout")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "WARN", "Log level written to stderr")

	root.AddCommand(
		newICTCmd(opts),
		newSniperCmd(opts),
		newArbitrageCmd(opts),
		newHeatmapCmd(opts),
		newConfigCmd(),
	)
	return root
}

func newICTCmd(opts *options) *cobra.Command {
	var timeframe string
	cmd := &cobra.Command{
		Use:   "ict SYMBOL",
		Short: "Multi-timeframe ICT analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (interface{}, error) {
				symbol := symbolArg(args[0])
				if timeframe != "" {
					return a.ICT.Signal(ctx, symbol, timeframe)
				}
				return a.ICT.Analyze(ctx, symbol)
			})
		},
	}
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "Analyze a single timeframe (15m, 1h, 4h, 1d)")
	return cmd
}

func newSniperCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sniper SYMBOL",
		Short: "Momentum and liquidation cascade detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Sniper.Analyze(ctx, symbolArg(args[0]))
			})
		},
	}
}

func newArbitrageCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arbitrage",
		Short: "Cross-exchange arbitrage",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "scan [SYMBOL...]",
		Short: "Scan the given symbols, or the default list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (interface{}, error) {
				symbols := make([]string, 0, len(args))
				for _, s := range args {
					symbols = append(symbols, symbolArg(s))
				}
				return a.Arbitrage.Scan(ctx, symbols)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "opportunity SYMBOL",
		Short: "Best fee-adjusted spread for one symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Arbitrage.Opportunity(ctx, symbolArg(args[0]))
			})
		},
	})
	return cmd
}

func newHeatmapCmd(opts *options) *cobra.Command {
	var levels int
	cmd := &cobra.Command{
		Use:   "heatmap SYMBOL",
		Short: "Aggregated order book liquidity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (interface{}, error) {
				symbol := symbolArg(args[0])
				if levels > 0 {
					return a.Liquidity.Levels(ctx, symbol, levels)
				}
				return a.Liquidity.Heatmap(ctx, symbol)
			})
		},
	}
	cmd.Flags().IntVar(&levels, "levels", 0, "Print N levels per side instead of the full heatmap")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sample FILE",
		Short: "Write a config file holding the defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateSampleConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample config written to %s\n", args[0])
			return nil
		},
	})
	return cmd
}

// withApp loads the config, builds the services, runs fn and prints its result.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app.App) (interface{}, error)) error {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return err
	}
	if opts.mock {
		cfg.ExchangesConfig.MockMode = true
	}
	// One-shot commands do not need the live liquidation feed.
	cfg.ExchangesConfig.LiquidationStream = false

	logger, closer := logging.New(&logging.Config{
		Level:     opts.logLevel,
		Output:    "stderr",
		Component: "marketctl",
	})
	defer closer.Close()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	result, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func symbolArg(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", ""))
}
