// Package config manages lexmerge configuration and the .lexmerge directory.
// It handles loading, saving, and initializing the repository configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	LexmergeDir  = ".lexmerge"
	ConfigFile   = "config"
	DatabaseFile = "lexmerge.db"
	SQLiteFile   = "entries.sqlite"
	EnvFile      = ".env"
)

// Backends for the entry document store.
const (
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendWeaviate = "weaviate"
)

// ErrNotRepository is returned when no .lexmerge directory is found.
var ErrNotRepository = errors.New("not a lexmerge repository (or any parent up to root)")

// Config represents the lexmerge configuration
type Config struct {
	Backend          string   `toml:"backend" validate:"oneof=bolt sqlite weaviate"`
	WeaviateURL      string   `toml:"weaviate_url,omitempty" validate:"required_if=Backend weaviate"`
	WeaviateClass    string   `toml:"weaviate_class,omitempty"`
	SQLitePath       string   `toml:"sqlite_path,omitempty"`
	Actor            string   `toml:"actor,omitempty"`
	ConflictStrategy string   `toml:"conflict_strategy" validate:"oneof=rename skip overwrite"`
	MergeStrategy    string   `toml:"merge_strategy" validate:"oneof=combine_all keep_target keep_source"`
	PendingHorizon   string   `toml:"pending_horizon"` // Go duration, e.g. "15m"
	LogLevel         string   `toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat        string   `toml:"log_format" validate:"oneof=text json"`
	WebhookURLs      []string `toml:"webhook_urls,omitempty" validate:"dive,url"`
	path             string   // path to .lexmerge directory
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Backend:          BackendBolt,
		ConflictStrategy: "rename",
		MergeStrategy:    "combine_all",
		PendingHorizon:   "15m",
		LogLevel:         "warn",
		LogFormat:        "text",
	}
}

// FindRoot finds the .lexmerge directory by walking up from dir
func FindRoot(dir string) (string, error) {
	for {
		root := filepath.Join(dir, LexmergeDir)
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return root, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotRepository
		}
		dir = parent
	}
}

// Load finds the repository above dir and loads its configuration. A .env
// file next to the .lexmerge directory is loaded first; LEXMERGE_*
// environment variables override file values.
func Load(dir string) (*Config, error) {
	root, err := FindRoot(dir)
	if err != nil {
		return nil, err
	}

	envPath := filepath.Join(filepath.Dir(root), EnvFile)
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.path = root

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"LEXMERGE_BACKEND":           &c.Backend,
		"LEXMERGE_WEAVIATE_URL":      &c.WeaviateURL,
		"LEXMERGE_WEAVIATE_CLASS":    &c.WeaviateClass,
		"LEXMERGE_SQLITE_PATH":       &c.SQLitePath,
		"LEXMERGE_ACTOR":             &c.Actor,
		"LEXMERGE_CONFLICT_STRATEGY": &c.ConflictStrategy,
		"LEXMERGE_MERGE_STRATEGY":    &c.MergeStrategy,
		"LEXMERGE_PENDING_HORIZON":   &c.PendingHorizon,
		"LEXMERGE_LOG_LEVEL":         &c.LogLevel,
		"LEXMERGE_LOG_FORMAT":        &c.LogFormat,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
	if v := os.Getenv("LEXMERGE_WEBHOOK_URLS"); v != "" {
		c.WebhookURLs = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.WebhookURLs = append(c.WebhookURLs, u)
			}
		}
	}
}

// Validate checks every field against its allowed values
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, fmt.Sprintf("%s: %q is not allowed (%s)", fe.Field(), fe.Value(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Horizon(); err != nil {
		return err
	}
	return nil
}

// Horizon returns PendingHorizon as a duration
func (c *Config) Horizon() (time.Duration, error) {
	d, err := time.ParseDuration(c.PendingHorizon)
	if err != nil {
		return 0, fmt.Errorf("invalid config: pending_horizon %q: %w", c.PendingHorizon, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid config: pending_horizon must be positive")
	}
	return d, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Path returns the path to the .lexmerge directory
func (c *Config) Path() string {
	return c.path
}

// DatabasePath returns the path to the bbolt database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// EntriesSQLitePath returns the SQLite entry database path
func (c *Config) EntriesSQLitePath() string {
	if c.SQLitePath == "" {
		return filepath.Join(c.path, SQLiteFile)
	}
	if filepath.IsAbs(c.SQLitePath) {
		return c.SQLitePath
	}
	return filepath.Join(filepath.Dir(c.path), c.SQLitePath)
}

// Initialize creates a new .lexmerge directory in dir with cfg's settings.
// A nil cfg means Default().
func Initialize(dir string, cfg *Config) (*Config, error) {
	root := filepath.Join(dir, LexmergeDir)

	// Check if already initialized
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("lexmerge repository already exists")
	}

	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", LexmergeDir, err)
	}

	cfg.path = root
	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(root)
		return nil, err
	}

	return cfg, nil
}
