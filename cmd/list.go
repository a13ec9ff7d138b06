package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"invoicefetcher/internal/archive"
	"invoicefetcher/internal/config"
	"invoicefetcher/internal/logger"
	"invoicefetcher/pkg/models"
)

var listCmd = &cobra.Command{
	Use:   "list-invoices",
	Short: "List invoices already present in the local archive",
	Long: `List-invoices scans the download directory and prints every invoice
file found, parsed from the canonical filenames. No portal access is
involved; this reflects purely what is on disk.`,
	Example: `  # All archived invoices across every team
  invoice-fetcher list-invoices

  # Only the platform team's 2025 invoices
  invoice-fetcher list-invoices --team platform --year 2025`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("team", "", "Team to list invoices for (default: all teams)")
	listCmd.Flags().Int("year", 0, "Year to filter invoices")
	listCmd.Flags().Bool("cleanup-empty-dirs", false, "Remove empty year/month directories left behind by manual moves")
}

func runList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("list-invoices")

	team, _ := cmd.Flags().GetString("team")
	year, _ := cmd.Flags().GetInt("year")
	cleanup, _ := cmd.Flags().GetBool("cleanup-empty-dirs")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	teams := []string{team}
	if team == "" {
		teams, err = allTeams(cfg)
		if err != nil {
			return err
		}
	}

	var entries []models.LocalInvoiceEntry
	var inconsistencies []archive.Inconsistency
	for _, t := range teams {
		root := cfg.DownloadDirFor(t)
		teamEntries, teamInc, err := archive.Scan(root, t, year)
		if err != nil {
			return fmt.Errorf("scanning archive for team %q: %w", t, err)
		}
		entries = append(entries, teamEntries...)
		inconsistencies = append(inconsistencies, teamInc...)
	}

	if cleanup {
		for _, t := range teams {
			removed, err := archive.CleanupEmptyDirs(cfg.DownloadDirFor(t), t)
			if err != nil {
				return fmt.Errorf("cleaning up archive for team %q: %w", t, err)
			}
			for _, p := range removed {
				log.Info().Str("path", p).Msg("Removed empty directory")
			}
		}
	}

	log.Debug().Int("count", len(entries)).Msg("Archive scan complete")

	if len(entries) == 0 {
		fmt.Println("No invoices found")
		return nil
	}

	fmt.Printf("%-16s %-12s %12s  %-24s %s\n", "TEAM", "DATE", "AMOUNT", "INVOICE", "FILE")
	for _, e := range entries {
		fmt.Printf("%-16s %04d-%02d-%02d %12s  %-24s %s\n",
			e.Team, e.Key.Year, e.Key.Month, e.Key.Day, e.Key.Amount, e.Key.InvoiceNumber, e.FilePath)
	}
	fmt.Printf("\n%d invoice(s)\n", len(entries))

	for _, inc := range inconsistencies {
		fmt.Printf("INCONSISTENT %s\n", inc)
	}

	return nil
}

// allTeams merges the team partitions found under the archive root with
// the teams configured with their own download_dir, which may live
// outside that root.
func allTeams(cfg *config.Config) ([]string, error) {
	seen := map[string]bool{}

	dirEntries, err := os.ReadDir(cfg.DownloadDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading archive root %s: %w", filepath.Clean(cfg.DownloadDir), err)
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			seen[de.Name()] = true
		}
	}
	for team := range cfg.TeamDirs {
		seen[team] = true
	}

	teams := make([]string, 0, len(seen))
	for t := range seen {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams, nil
}
