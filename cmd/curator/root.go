package main

import (
	"fmt"

	"github.com/hyperengineering/curator"
	"github.com/hyperengineering/curator/internal/classifier"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	cfgDBPath    string
	cfgStore     string
	cfgSafetyURL string
	cfgBiasURL   string
	cfgAPIKey    string
	cfgLogLevel  string
	cfgDebug     bool
	outputJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Curator - knowledge lifecycle and governance CLI",
	Long: `Curator keeps a companion's response seeds healthy.

It scores seeds from usage and feedback, prunes the ones that keep failing,
repairs or retires responses bound to a time of day, mines the decision logs
for recurring patterns, and runs safety and bias checks on demand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if isTTY() && !outputJSON {
			fmt.Fprintln(cmd.OutOrStdout(), renderBannerWithTagline())
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return cmd.Help()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to YAML config file")
	flags.StringVar(&cfgDBPath, "db-path", "", "Path to SQLite database (default: derived from --store)")
	flags.StringVar(&cfgStore, "store", "", "Store ID (default: CURATOR_STORE or 'default')")
	flags.StringVar(&cfgSafetyURL, "safety-url", "", "Prompt safety classifier endpoint")
	flags.StringVar(&cfgBiasURL, "bias-url", "", "Bias classifier endpoint")
	flags.StringVar(&cfgAPIKey, "api-key", "", "API key for the classifier proxy")
	flags.StringVar(&cfgLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&cfgDebug, "debug", false, "Human-readable debug logging")
	flags.BoolVar(&outputJSON, "json", false, "Output as JSON")

	rootCmd.AddGroup(commandGroups...)
}

// loadConfig layers defaults < config file < environment < flags.
func loadConfig() (curator.Config, error) {
	cfg := curator.DefaultConfig()
	// DefaultConfig derives LocalPath from the default store; let the
	// resolved store decide unless a layer sets it explicitly.
	cfg.LocalPath = ""
	cfg.Store = ""

	if cfgFile != "" {
		fileCfg, err := curator.LoadConfigFile(cfgFile)
		if err != nil {
			return curator.Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}

	cfg = cfg.Merge(curator.ConfigFromEnv())
	cfg = cfg.Merge(curator.Config{
		LocalPath: cfgDBPath,
		Store:     cfgStore,
		SafetyURL: cfgSafetyURL,
		BiasURL:   cfgBiasURL,
		APIKey:    cfgAPIKey,
		Log:       curator.LogConfig{Level: cfgLogLevel, Debug: cfgDebug},
	})

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return curator.Config{}, err
	}
	return cfg, nil
}

// openEngine builds the logger and classifier clients from cfg and opens the
// engine over the configured store.
func openEngine() (*curator.Engine, curator.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}

	logger, err := curator.NewLogger(cfg.Log)
	if err != nil {
		return nil, cfg, fmt.Errorf("initialize logger: %w", err)
	}

	opts := []curator.Option{curator.WithLogger(logger)}
	if cfg.SafetyURL != "" {
		opts = append(opts, curator.WithSafetyClassifier(
			classifier.NewHTTPClient(cfg.SafetyURL, cfg.APIKey, cfg.SourceID, cfg.ClassifierTimeout)))
	}
	if cfg.BiasURL != "" {
		opts = append(opts, curator.WithBiasClassifier(
			classifier.NewHTTPClient(cfg.BiasURL, cfg.APIKey, cfg.SourceID, cfg.ClassifierTimeout)))
	}

	engine, err := curator.New(cfg, opts...)
	if err != nil {
		_ = logger.Sync()
		return nil, cfg, fmt.Errorf("open store: %w", err)
	}
	return engine, cfg, nil
}
