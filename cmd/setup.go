package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"invoicefetcher/internal/auth"
	"invoicefetcher/internal/config"
	"invoicefetcher/internal/logger"
	"invoicefetcher/internal/secrets"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the configuration file and store credentials",
	Long: `Setup writes a default configuration file if none exists and stores
the portal password in the system keyring. Credentials are never written
to the configuration file.

With --sso, setup instead stores a portal session token obtained by
completing the SSO sign-in in a browser; fetch --sso will reuse it.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().Bool("sso", false, "Store an SSO session token instead of a password")
}

func runSetup(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("setup")

	useSSO, _ := cmd.Flags().GetBool("sso")

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, config.DefaultConfigDir, config.DefaultConfigFile)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.WriteDefault(path); err != nil {
			return fmt.Errorf("failed to create configuration file: %w", err)
		}
		fmt.Printf("Created default configuration at %s\n", path)
		fmt.Println("Edit it to set your portal email and download directory.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	email := cfg.PortalEmail
	if email == "" {
		fmt.Print("Portal email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
		if email == "" {
			return fmt.Errorf("portal email is required")
		}
	}

	store := secrets.NewKeyring()

	if useSSO {
		fmt.Println("Complete the SSO sign-in in your browser, then paste the session token below.")
		fmt.Print("Session token: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token := strings.TrimSpace(line)
		if token == "" {
			return fmt.Errorf("session token is required")
		}
		if err := store.Set(auth.SSOTokenKey(email), token); err != nil {
			return fmt.Errorf("failed to store session token: %w", err)
		}
		log.Info().Str("email", email).Msg("SSO session token stored")
		fmt.Println("Session token stored securely in the system keyring")
		return nil
	}

	fmt.Print("Portal password: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimSpace(line)
	if password == "" {
		return fmt.Errorf("password is required")
	}

	if err := store.Set(auth.PasswordKey(email), password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}

	log.Info().Str("email", email).Msg("Password stored")
	fmt.Println("Credentials stored securely in the system keyring")
	fmt.Printf("Configuration file: %s\n", path)
	fmt.Printf("Download directory: %s\n", cfg.DownloadDir)
	return nil
}
