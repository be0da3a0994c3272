package curator

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/hyperengineering/curator/internal/store"
	"gopkg.in/yaml.v3"
)

// Config configures the curator engine and its collaborators.
type Config struct {
	// LocalPath is the path to the SQLite database.
	// If empty, it is derived from Store.
	LocalPath string `yaml:"db_path"`

	// Store is the store ID to operate against.
	// If empty, resolved using store resolution (explicit > CURATOR_STORE env > "default").
	Store string `yaml:"store"`

	// SafetyURL is the endpoint of the prompt safety classifier.
	// If empty, safety checks fail open with an error set.
	SafetyURL string `yaml:"safety_url"`

	// BiasURL is the endpoint of the bias classifier.
	// If empty, bias checks use the heuristic detector.
	BiasURL string `yaml:"bias_url"`

	// APIKey authenticates with the classifier proxy.
	APIKey string `yaml:"api_key"`

	// SourceID identifies this instance to the classifier proxy.
	// Defaults to hostname if not set.
	SourceID string `yaml:"source_id"`

	// ClassifierTimeout bounds each classifier call. Defaults to 15 seconds.
	ClassifierTimeout time.Duration `yaml:"classifier_timeout"`

	// PruneThreshold is the default score below which used seeds are pruned.
	// Nil means DefaultPruneThreshold; an explicit 0 disables pruning.
	PruneThreshold *float64 `yaml:"prune_threshold"`

	// SampleSize is the number of recent log rows read per log when mining.
	// Defaults to DefaultSampleSize.
	SampleSize int `yaml:"sample_size"`

	// Log configures the structured logger.
	Log LogConfig `yaml:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	return Config{
		Store:             "default",
		LocalPath:         store.StoreDBPath("default"),
		SourceID:          hostname,
		ClassifierTimeout: 15 * time.Second,
		PruneThreshold:    Float64(DefaultPruneThreshold),
		SampleSize:        DefaultSampleSize,
		Log:               LogConfig{Level: "info"},
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	CURATOR_DB_PATH        → LocalPath
//	CURATOR_STORE          → Store
//	CURATOR_SAFETY_URL     → SafetyURL
//	CURATOR_BIAS_URL       → BiasURL
//	CURATOR_API_KEY        → APIKey
//	CURATOR_SOURCE_ID      → SourceID
//	CURATOR_PRUNE_THRESHOLD → PruneThreshold
//	CURATOR_LOG_LEVEL      → Log.Level
//	CURATOR_DEBUG          → Log.Debug (any non-empty value enables)
//	CURATOR_LOG_PATH       → Log.Path
func ConfigFromEnv() Config {
	cfg := Config{
		LocalPath: os.Getenv("CURATOR_DB_PATH"),
		Store:     os.Getenv("CURATOR_STORE"),
		SafetyURL: os.Getenv("CURATOR_SAFETY_URL"),
		BiasURL:   os.Getenv("CURATOR_BIAS_URL"),
		APIKey:    os.Getenv("CURATOR_API_KEY"),
		SourceID:  os.Getenv("CURATOR_SOURCE_ID"),
		Log: LogConfig{
			Level: os.Getenv("CURATOR_LOG_LEVEL"),
			Debug: os.Getenv("CURATOR_DEBUG") != "",
			Path:  os.Getenv("CURATOR_LOG_PATH"),
		},
	}
	if v := os.Getenv("CURATOR_PRUNE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PruneThreshold = &f
		}
	}
	return cfg
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Threshold returns the configured prune threshold, or DefaultPruneThreshold
// when none is set.
func (c Config) Threshold() float64 {
	if c.PruneThreshold == nil {
		return DefaultPruneThreshold
	}
	return *c.PruneThreshold
}

// Float64 returns a pointer to v, for optional Config fields.
func Float64(v float64) *float64 { return &v }

// Merge returns c with every non-zero field of override applied on top.
func (c Config) Merge(override Config) Config {
	if override.LocalPath != "" {
		c.LocalPath = override.LocalPath
	}
	if override.Store != "" {
		c.Store = override.Store
	}
	if override.SafetyURL != "" {
		c.SafetyURL = override.SafetyURL
	}
	if override.BiasURL != "" {
		c.BiasURL = override.BiasURL
	}
	if override.APIKey != "" {
		c.APIKey = override.APIKey
	}
	if override.SourceID != "" {
		c.SourceID = override.SourceID
	}
	if override.ClassifierTimeout != 0 {
		c.ClassifierTimeout = override.ClassifierTimeout
	}
	if override.PruneThreshold != nil {
		c.PruneThreshold = Float64(*override.PruneThreshold)
	}
	if override.SampleSize != 0 {
		c.SampleSize = override.SampleSize
	}
	if override.Log.Level != "" {
		c.Log.Level = override.Log.Level
	}
	if override.Log.Debug {
		c.Log.Debug = true
	}
	if override.Log.Path != "" {
		c.Log.Path = override.Log.Path
	}
	return c
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to SQLite database"}
	}

	if c.Store != "" {
		if err := store.ValidateStoreID(c.Store); err != nil {
			return &ValidationError{Field: "Store", Message: err.Error()}
		}
	}

	if err := validateEndpoint("SafetyURL", c.SafetyURL); err != nil {
		return err
	}
	if err := validateEndpoint("BiasURL", c.BiasURL); err != nil {
		return err
	}

	if c.ClassifierTimeout < 0 {
		return &ValidationError{Field: "ClassifierTimeout", Message: "must be non-negative"}
	}
	if err := validateThreshold(c.Threshold()); err != nil {
		return err
	}
	if c.SampleSize < 0 {
		return &ValidationError{Field: "SampleSize", Message: "must be non-negative"}
	}
	if c.Log.Level != "" {
		if _, err := parseLevel(c.Log.Level); err != nil {
			return &ValidationError{Field: "Log.Level", Message: err.Error()}
		}
	}

	return nil
}

// WithDefaults fills in default values for unset fields.
// Store resolution: explicit Store field > CURATOR_STORE env > "default".
// LocalPath is derived from the resolved store if not explicitly set.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Store == "" {
		resolved, err := store.ResolveStore("")
		if err == nil {
			c.Store = resolved
		} else {
			c.Store = "default"
		}
	}

	if c.LocalPath == "" {
		c.LocalPath = store.StoreDBPath(c.Store)
	}
	if c.SourceID == "" {
		c.SourceID = defaults.SourceID
	}
	if c.ClassifierTimeout == 0 {
		c.ClassifierTimeout = defaults.ClassifierTimeout
	}
	if c.PruneThreshold == nil {
		c.PruneThreshold = defaults.PruneThreshold
	}
	if c.SampleSize == 0 {
		c.SampleSize = defaults.SampleSize
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}

	return c
}

func validateEndpoint(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an absolute http(s) URL"}
	}
	return nil
}
