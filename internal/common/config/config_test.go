package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TOPOLOGY_FILE", "data/metro.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "data/metro.json", cfg.Topology.File)
	assert.Equal(t, 30*time.Minute, cfg.Topology.CheckInterval)
	assert.Equal(t, 1, cfg.Topology.KeepInactiveVersions)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("TOPOLOGY_URL", "https://example.org/metro.json")
	t.Setenv("TOPOLOGY_CHECK_INTERVAL", "5m")
	t.Setenv("TOPOLOGY_KEEP_INACTIVE_VERSIONS", "3")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("HTTP_ROUTE_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Topology.CheckInterval)
	assert.Equal(t, 3, cfg.Topology.KeepInactiveVersions)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.HTTP.CacheTTL, "invalid values fall back to the default")
	assert.Equal(t,
		"host=db.internal port=5432 user=postgres password=secret dbname=metroroute sslmode=disable",
		cfg.Database.ConnectionString())
}

func TestLoad_RequiresASource(t *testing.T) {
	t.Setenv("TOPOLOGY_FILE", "")
	t.Setenv("TOPOLOGY_URL", "")
	t.Setenv("DB_ENABLED", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOPOLOGY_FILE")
}

func TestDatabaseValidate(t *testing.T) {
	c := DatabaseConfig{Enabled: true, Host: "h", Port: "5432", User: "u"}
	assert.Error(t, c.Validate())

	c.DBName = "metro"
	assert.NoError(t, c.Validate())

	assert.NoError(t, (&DatabaseConfig{}).Validate(), "disabled database needs nothing")
}
