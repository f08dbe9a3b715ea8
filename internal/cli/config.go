package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wikiner configuration",
	Long: `Manage wikiner configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (WIKINER_*, e.g. WIKINER_DATABASE_HOST)
3. Config file (~/.wikiner/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, config file and environment are merged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		redacted := *cfg
		if redacted.Database.Password != "" {
			redacted.Database.Password = "********"
		}
		yamlData, err := yaml.Marshal(&redacted)
		if err != nil {
			return errors.Wrap(err, "marshal config")
		}
		_, err = cmd.OutOrStdout().Write(yamlData)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.wikiner/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		configPath := cfgFile
		if configPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return errors.Wrap(err, "find home directory")
			}
			configPath = filepath.Join(home, ".wikiner", "config.yaml")
		}

		if _, err := os.Stat(configPath); err == nil {
			return errors.WithHintf(
				errors.Newf("config file already exists: %s", configPath),
				"use 'wikiner config show' to view it, or delete it first to recreate")
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return errors.Wrap(err, "create config directory")
		}

		f, err := os.Create(configPath)
		if err != nil {
			return errors.Wrap(err, "create config file")
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = errors.Wrap(closeErr, "close config file")
			}
		}()

		// Helper for writing with error checking
		printf := func(format string, a ...interface{}) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(f, format, a...)
		}

		printf("# wikiner configuration file\n")
		printf("#\n")
		printf("# Configuration hierarchy (highest to lowest priority):\n")
		printf("#   1. CLI flags\n")
		printf("#   2. Environment variables (WIKINER_*)\n")
		printf("#   3. This config file\n")
		printf("#   4. Built-in defaults\n")
		printf("#\n")
		printf("# database.driver: sqlite uses source_db/dest_db as file paths,\n")
		printf("#   postgres uses them as database names on host:port.\n")
		printf("# edges.source: sparql queries the endpoint, corpus reads the\n")
		printf("#   subclass-of claims loaded with 'wikiner load'.\n")
		printf("# categories_file: optional YAML category table replacing the built-in one.\n\n")

		yamlData, mErr := yaml.Marshal(model.DefaultConfig())
		if mErr != nil {
			return errors.Wrap(mErr, "marshal config")
		}
		if err == nil {
			_, err = f.Write(yamlData)
		}
		if err != nil {
			return errors.Wrap(err, "write config")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  wikiner config show\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
