// Command barfeed is a thin demo CLI wiring one feed.Controller against
// either a live exchange adapter or the in-process mock exchange.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "github.com/sawpanic/barfeed/internal/adapters/binance"
	_ "github.com/sawpanic/barfeed/internal/adapters/coinbase"
	_ "github.com/sawpanic/barfeed/internal/adapters/kraken"
	_ "github.com/sawpanic/barfeed/internal/adapters/okx"
	"github.com/sawpanic/barfeed/internal/bar"
	"github.com/sawpanic/barfeed/internal/feed"
	"github.com/sawpanic/barfeed/internal/mockexchange"
	"github.com/sawpanic/barfeed/internal/mockexchange/plugins"
	"github.com/sawpanic/barfeed/internal/ohlcv"
)

var (
	flagExchange string
	flagPair     string
	flagInterval string
	flagLimit    int
	flagMock     bool
	flagStream   bool
)

var rootCmd = &cobra.Command{
	Use:   "barfeed",
	Short: "OHLCV bar feed demo CLI",
	Long: `barfeed fetches and streams OHLCV candles from a registered exchange
adapter (binance, okx, coinbase, kraken), or from the built-in mock
exchange when --mock is set.`,
	RunE: runFetch,
}

func init() {
	rootCmd.Flags().StringVar(&flagExchange, "exchange", "binance", "registered exchange id")
	rootCmd.Flags().StringVar(&flagPair, "pair", "BTC-USDT", "trading pair")
	rootCmd.Flags().StringVar(&flagInterval, "interval", "1m", "candle interval")
	rootCmd.Flags().IntVar(&flagLimit, "limit", 20, "bars to fetch")
	rootCmd.Flags().BoolVar(&flagMock, "mock", false, "run against an in-process mock exchange instead of a live host")
	rootCmd.Flags().BoolVar(&flagStream, "stream", false, "after the initial fetch, start streaming/polling and print new bars until interrupted")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	var ep ohlcv.Endpoints
	var cleanup func()

	if flagMock {
		mockSrv := mockexchange.NewServer(mockexchange.DefaultServerConfig(),
			plugins.Binance{}, plugins.OKX{}, plugins.Coinbase{}, plugins.Kraken{})
		mockSrv.RegisterPair(flagPair, 50000)
		if err := mockSrv.Start(); err != nil {
			return fmt.Errorf("start mock exchange: %w", err)
		}
		cleanup = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = mockSrv.Shutdown(ctx)
		}
		defer cleanup()

		patched, ok := mockexchange.Patch(flagExchange, mockSrv.Addr())
		if !ok {
			return fmt.Errorf("no mock plugin registered for exchange %q", flagExchange)
		}
		ep = patched
		log.Info().Str("addr", mockSrv.Addr()).Msg("mock exchange listening")
	}

	adapter, err := ohlcv.Global().New(flagExchange, ep)
	if err != nil {
		return fmt.Errorf("build adapter: %w", err)
	}

	c, err := feed.NewController(adapter, feed.ControllerConfig{
		Pair:     flagPair,
		Interval: flagInterval,
		Capacity: 500,
	})
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bars, err := c.FetchHistory(ctx, nil, nil, flagLimit)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	printBars(bars)

	if !flagStream {
		return nil
	}

	if err := c.Start(feed.Auto); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}
	defer c.Stop()

	kind, _ := c.Running()
	log.Info().Str("strategy", kind.String()).Msg("streaming started, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	seen := len(c.Bars())
	for {
		select {
		case <-sigCh:
			return nil
		case <-ticker.C:
			cur := c.Bars()
			if len(cur) > seen {
				printBars(cur[seen:])
				seen = len(cur)
			}
		}
	}
}

func printBars(bars []bar.Bar) {
	for _, b := range bars {
		out, _ := json.Marshal(b)
		fmt.Println(string(out))
	}
}
