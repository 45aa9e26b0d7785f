package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Actor = "alice"
	_, err := Initialize(dir, cfg)
	require.NoError(t, err)

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	loaded, err := Load(nested)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Actor)
	assert.Equal(t, BackendBolt, loaded.Backend)
	assert.Equal(t, filepath.Join(dir, LexmergeDir), loaded.Path())
	assert.Equal(t, filepath.Join(dir, LexmergeDir, DatabaseFile), loaded.DatabasePath())

	_, err = Initialize(dir, nil)
	assert.Error(t, err)
}

func TestFindRoot_NotRepository(t *testing.T) {
	_, err := FindRoot(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(dir, nil)
	require.NoError(t, err)

	t.Setenv("LEXMERGE_CONFLICT_STRATEGY", "skip")
	t.Setenv("LEXMERGE_WEBHOOK_URLS", "http://a.example/hook, http://b.example/hook")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "skip", cfg.ConflictStrategy)
	assert.Equal(t, []string{"http://a.example/hook", "http://b.example/hook"}, cfg.WebhookURLs)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(dir, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFile), []byte("LEXMERGE_ACTOR=bob\n"), 0644))
	t.Setenv("LEXMERGE_ACTOR", "") // restored after the test
	require.NoError(t, os.Unsetenv("LEXMERGE_ACTOR"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Actor)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown backend", func(c *Config) { c.Backend = "mongo" }, false},
		{"weaviate without url", func(c *Config) { c.Backend = BackendWeaviate }, false},
		{"weaviate with url", func(c *Config) { c.Backend = BackendWeaviate; c.WeaviateURL = "http://localhost:8080" }, true},
		{"unknown conflict strategy", func(c *Config) { c.ConflictStrategy = "merge" }, false},
		{"unknown merge strategy", func(c *Config) { c.MergeStrategy = "all" }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, false},
		{"bad horizon", func(c *Config) { c.PendingHorizon = "soon" }, false},
		{"negative horizon", func(c *Config) { c.PendingHorizon = "-5m" }, false},
		{"bad webhook", func(c *Config) { c.WebhookURLs = []string{"not a url"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestHorizon(t *testing.T) {
	cfg := Default()
	d, err := cfg.Horizon()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)
}

func TestEntriesSQLitePath(t *testing.T) {
	cfg := &Config{path: "/repo/.lexmerge"}
	assert.Equal(t, "/repo/.lexmerge/entries.sqlite", cfg.EntriesSQLitePath())
	cfg.SQLitePath = "data/lex.sqlite"
	assert.Equal(t, "/repo/data/lex.sqlite", cfg.EntriesSQLitePath())
	cfg.SQLitePath = "/abs/lex.sqlite"
	assert.Equal(t, "/abs/lex.sqlite", cfg.EntriesSQLitePath())
}
