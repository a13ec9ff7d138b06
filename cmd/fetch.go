package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"invoicefetcher/internal/auth"
	"invoicefetcher/internal/config"
	"invoicefetcher/internal/logger"
	"invoicefetcher/internal/portal"
	"invoicefetcher/internal/secrets"
	"invoicefetcher/internal/syncer"
	"invoicefetcher/pkg/models"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch missing invoices from the portal",
	Long: `Fetch lists the portal's invoices for the given team over the lookback
window, compares them against the local archive and downloads only the
ones not yet present.

Individual download failures are reported in the summary but never abort
the run; re-running fetch retries exactly the invoices still missing.
The exit code is non-zero only for fatal failures such as a failed
authentication.`,
	Example: `  # Fetch the last 90 days of invoices for the platform team
  invoice-fetcher fetch --team platform

  # See what would be downloaded without writing anything
  invoice-fetcher fetch --team platform --dry-run

  # Use a stored SSO session instead of a password login
  invoice-fetcher fetch --team platform --sso`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("team", "", "Team name for organizing invoices (required)")
	fetchCmd.Flags().String("output-dir", "", "Override the configured download directory")
	fetchCmd.Flags().Int("days", 0, "Days to look back (default: date_range_days from config)")
	fetchCmd.Flags().Bool("dry-run", false, "Report what would be downloaded without writing anything")
	fetchCmd.Flags().Bool("sso", false, "Authenticate with a stored SSO session instead of a password")
	_ = fetchCmd.MarkFlagRequired("team")
}

func runFetch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("fetch")

	team, _ := cmd.Flags().GetString("team")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	days, _ := cmd.Flags().GetInt("days")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	useSSO, _ := cmd.Flags().GetBool("sso")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if days <= 0 {
		days = cfg.DateRangeDays
	}
	root := outputDir
	if root == "" {
		root = cfg.DownloadDirFor(team)
	}

	log.Info().
		Str("team", team).
		Str("root", root).
		Int("days", days).
		Bool("dry_run", dryRun).
		Bool("sso", useSSO).
		Msg("Starting invoice fetch")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orchestrator := syncer.NewOrchestrator(
		newAuthenticator(cfg, useSSO),
		portal.NewClient(portal.Config{
			BaseURL: cfg.PortalBaseURL,
			Timeout: time.Duration(cfg.PortalTimeoutSeconds) * time.Second,
		}),
		root,
	)

	window := models.DefaultWindow(team, days, time.Now())
	summary, err := orchestrator.Run(ctx, syncer.RunOptions{Window: window, DryRun: dryRun})
	printSummary(summary, dryRun)
	return err
}

func newAuthenticator(cfg *config.Config, useSSO bool) auth.Authenticator {
	store := secrets.NewKeyring()
	client := &http.Client{Timeout: time.Duration(cfg.PortalTimeoutSeconds) * time.Second}
	if useSSO {
		return auth.NewSSOAuthenticator(cfg.PortalBaseURL, cfg.PortalEmail, store, client)
	}
	return auth.NewPasswordAuthenticator(cfg.PortalBaseURL, cfg.PortalEmail, store, client)
}

func printSummary(s *models.RunSummary, dryRun bool) {
	fmt.Printf("\nSync summary for team %q:\n", s.Team)
	fmt.Printf("  Listed:          %d\n", s.Listed)
	fmt.Printf("  Already present: %d\n", s.AlreadyPresent)
	if dryRun {
		fmt.Printf("  Would download:  %d\n", s.SkippedDryRun)
	} else {
		fmt.Printf("  Downloaded:      %d\n", s.Downloaded)
	}
	fmt.Printf("  Failed:          %d\n", s.Failed)
	if s.MalformedRemote > 0 {
		fmt.Printf("  Malformed remote records skipped: %d\n", s.MalformedRemote)
	}
	if s.ListingTruncated {
		fmt.Println("  Note: listing was cut short by a portal failure; results are partial")
	}
	for _, f := range s.Failures {
		fmt.Printf("  FAILED %s: %s\n", f.Key, f.Reason)
	}
	for _, inc := range s.Inconsistencies {
		fmt.Printf("  INCONSISTENT %s\n", inc)
	}
}
