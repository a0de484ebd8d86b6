// Package cli wires the pipeline components into the salespipe binary.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/z316data/salespipe/internal/config"
	"github.com/z316data/salespipe/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "salespipe",
	Short: "Sales transaction pipeline",
	Long: `salespipe moves ERP sales events through a three-stage pipeline:
ingest webhook payloads into a write-once landing store, enrich them
through ERP API lookups, and load the results into destination tables.

Every stage is idempotent, so redelivered or replayed events converge
to the same stored objects and rows.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./salespipe.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	log = logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)
}
