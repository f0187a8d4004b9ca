package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"hawk-go/internal/app"
	"hawk-go/internal/config"
	"hawk-go/internal/encryption"
	"hawk-go/internal/vault"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// withApp creates a HawkApp for cmd, runs fn and closes the app. A failing
// fn marks the operation as failed in the log.
func withApp(cmd *cobra.Command, args []string, fn func(a *app.HawkApp) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.NewHawkApp(cfg, cmd.CommandPath(), args)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer a.Close()

	if err := fn(a); err != nil {
		a.Operation().Fail()
		return err
	}
	return nil
}

// readPassphrase prompts on the terminal without echo. When stdin is not a
// terminal the first line of stdin is used.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "hawk",
	Short:        "Chat server storage administration",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		nodeID := uuid.New().String()
		cfg := config.NewConfig(nodeID, defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc.IsConfigured() {
			fmt.Println("Encryption keys already exist, keeping them")
		} else {
			passphrase, err := readPassphrase("Passphrase for the backup key: ")
			if err != nil {
				return err
			}
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if passphrase != confirm {
				return errors.New("passphrases do not match")
			}
			if err := enc.Setup(passphrase); err != nil {
				return fmt.Errorf("setting up encryption: %w", err)
			}
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Node ID:  %s\n", nodeID)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Node ID:   %s\n", cfg.NodeID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s (%s)\n", cfg.LogDir, cfg.LogLevel)
		fmt.Printf("Storage:   %s %s\n", cfg.Storage.Type, cfg.Storage.Path)
		if cfg.Cache.Enabled {
			fmt.Printf("Cache:     lifetime %s, sweep every %s\n", cfg.Cache.Lifetime, cfg.Cache.SweepInterval)
		} else {
			fmt.Println("Cache:     disabled")
		}
		fmt.Printf("Vault:     %s (%s)\n", cfg.Vault.Name, cfg.Vault.Type)
		fmt.Printf("Keys:      %s\n", cfg.Encryption.PublicKeyPath)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nConfiguration problems:\n%v\n", err)
		}
		return nil
	},
}

var configVaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vault",
}

var configVaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		v, err := vault.NewVaultFromConfig(cfg.Vault)
		if err != nil {
			return err
		}
		if err := v.ValidateSetup(); err != nil {
			return fmt.Errorf("vault %s: %w", cfg.Vault.Name, err)
		}
		version, err := v.GetSnapshotVersion(cfg.NodeID)
		if err != nil {
			return err
		}
		fmt.Printf("Vault %s is ready\n", cfg.Vault.Name)
		if version > 0 {
			fmt.Printf("Latest snapshot: version %d\n", version)
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload an encrypted storage snapshot to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			version, err := a.Backup()
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			fmt.Printf("Uploaded snapshot version %d\n", version)
			return nil
		})
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the storage with the latest snapshot from the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			passphrase, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			version, err := a.Restore(passphrase)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			fmt.Printf("Restored snapshot version %d\n", version)
			return nil
		})
	},
}

// cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			stats, ok := a.CacheStats()
			if !ok {
				fmt.Println("Cache is disabled.")
				return nil
			}
			fmt.Printf("users:         %d\n", stats.Users)
			fmt.Printf("groups:        %d\n", stats.Groups)
			fmt.Printf("contact lists: %d\n", stats.UserContacts)
			fmt.Printf("member lists:  %d\n", stats.GroupUsers)
			return nil
		})
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configVaultCmd)
	configVaultCmd.AddCommand(configVaultCheckCmd)

	cacheCmd.AddCommand(cacheStatsCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(cacheCmd)
}
