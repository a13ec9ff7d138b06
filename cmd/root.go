package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicefetcher/internal/config"
	"invoicefetcher/internal/logger"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "invoice-fetcher",
	Short: "Download and organize invoices from your business portal",
	Long: `invoice-fetcher keeps a local, date-partitioned archive of invoice
PDFs in sync with your business portal.

Invoices are stored as {download_dir}/{team}/{YYYY}/{MM}/ with one file
per invoice, named {date}--{amount}--{invoice_number}.pdf. Files already
present are never downloaded or overwritten again, so re-running fetch is
always safe and only retrieves what is missing.`,
	Version: version,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (default: ~/.invoice-fetcher/config.yaml)")
}

// loadConfig resolves the --config flag and loads the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
