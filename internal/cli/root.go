package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/logger"
	"github.com/ppiankov/wikiner/internal/model"
)

// Version is set at build time with -ldflags "-X ...cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wikiner",
	Short: "wikiner - classify Wikidata items into named-entity categories",
	Long: `wikiner scans a Wikidata corpus and classifies items into ten named-entity
categories: PER, LOC, ORG, EVE, ANG, DUC, FAC, TIMEX, TTL and WOA.

Category membership is decided by the items' instance-of claims against the
transitive subclass closure of each category's seed classes. Every category
run replaces the previous records of that category in the output store.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := viper.GetString("log.level")
		if verbose {
			level = "debug"
		}
		return logger.Initialize(viper.GetBool("log.json"), level)
	},
}

// Execute runs the root command
func Execute() error {
	defer logger.Cleanup()
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wikiner v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.wikiner/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".wikiner"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// WIKINER_DATABASE_HOST overrides database.host
	viper.SetEnvPrefix("WIKINER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := setDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so that environment variables
// reach Unmarshal even when no config file sets the key
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal defaults")
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return errors.Wrap(err, "decode defaults")
	}
	flatten("", tree, v.SetDefault)

	// omitted from the YAML when empty
	for _, key := range []string{"edges.http_proxy", "edges.https_proxy", "metrics.pushgateway_url"} {
		v.SetDefault(key, "")
	}
	return nil
}

func flatten(prefix string, tree map[string]any, set func(string, any)) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(key, sub, set)
			continue
		}
		set(key, v)
	}
}

// loadConfig merges defaults, the config file and the environment
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode configuration"), errors.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
