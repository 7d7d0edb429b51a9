package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "audit.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "France", cfg.Intake.DefaultCountry)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.FastModel)
	assert.Equal(t, "claude-opus-4-6", cfg.Anthropic.StrongModel)
	assert.Equal(t, 8192, cfg.Anthropic.MaxTokens)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "https://api.firecrawl.dev/v2", cfg.Firecrawl.BaseURL)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, 50, cfg.Enrich.MaxExecutives)
	assert.Equal(t, 10, cfg.Enrich.MaxPastExecutives)
	assert.Equal(t, 15, cfg.Enrich.PostsTopN)
	assert.Equal(t, 2, cfg.Enrich.PostsPages)
	assert.Equal(t, 100, cfg.Enrich.CacheFreshnessDays)
	assert.Equal(t, 30, cfg.Enrich.RetryDelaySecs)
	assert.Equal(t, 10, cfg.Batch.Size)
	assert.Equal(t, 250000, cfg.Batch.TokenBudget)
	assert.Equal(t, 4, cfg.Batch.CharsPerToken)
	assert.Equal(t, 4, cfg.Batch.StrongLots)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/audit
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  size: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/audit", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Batch.Size)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Enrich.MaxExecutives)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("AUDIT_STORE_DRIVER", "postgres")
	t.Setenv("AUDIT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("AUDIT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validAudit returns a Config that passes audit-mode validation.
func validAudit() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "audit.db"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Batch.Size = 10
	cfg.Agent.MaxIterations = 10
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateAudit_AllPresent(t *testing.T) {
	cfg := validAudit()
	assert.NoError(t, cfg.Validate("audit"))
}

func TestValidateAudit_MissingFields(t *testing.T) {
	cfg := validAudit()
	cfg.Anthropic.Key = ""
	cfg.Store.Path = ""

	err := cfg.Validate("audit")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "store.path is required")
}

func TestValidateAudit_PostgresNeedsURL(t *testing.T) {
	cfg := validAudit()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("audit")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/audit"
	assert.NoError(t, cfg.Validate("audit"))
}

func TestValidateAudit_UnsupportedDriver(t *testing.T) {
	cfg := validAudit()
	cfg.Store.Driver = "oracle"

	err := cfg.Validate("audit")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validAudit()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateStore_SkipsAPIKeys(t *testing.T) {
	cfg := validAudit()
	cfg.Anthropic.Key = ""

	assert.NoError(t, cfg.Validate("store"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validAudit()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateBounds(t *testing.T) {
	cfg := validAudit()
	cfg.Batch.Size = 0

	err := cfg.Validate("audit")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.size must be > 0")

	cfg.Batch.Size = 10
	cfg.Agent.MaxIterations = 0
	err = cfg.Validate("audit")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "agent.max_iterations must be > 0")
}
