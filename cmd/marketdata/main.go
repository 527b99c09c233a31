// Command marketdata is the market-data acquisition and serving
// service's entry point: serve (REST+WebSocket+scheduler), backfill,
// migrate, and healthcheck, grounded on the teacher's cobra/zerolog
// cmd/cryptorun bootstrap shape.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "marketdata"
	version = "v0.1.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	root := &cobra.Command{
		Use:     appName,
		Short:   "Market data acquisition and serving service",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional provider-override YAML file (env vars always take precedence)")

	root.AddCommand(serveCmd(), backfillCmd(), migrateCmd(), healthcheckCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
