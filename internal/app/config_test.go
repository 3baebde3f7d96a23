package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 6543, cfg.Database.Postgres.Port)
	require.Equal(t, "inkhouse", cfg.Database.Postgres.Database)
	require.Equal(t, "inkhouse", cfg.Database.Postgres.Username)
	require.Equal(t, "secret", cfg.Database.Postgres.Password)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "inkhouse-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, 30, cfg.Maintenance.AuditRetentionDays)
	require.Equal(t, "@every 30m", cfg.Maintenance.LabExpirySchedule)
	require.Equal(t, "@midnight", cfg.Maintenance.AuditSchedule)
	require.Equal(t, "@weekly", cfg.Maintenance.AutoAssignSchedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/inkhouse.sqlite", cfg.Database.Path)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.True(t, cfg.Monitoring.Health.Enabled)

	require.Equal(t, "inkhouse", cfg.Auth.JWT.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Empty(t, cfg.Auth.JWT.Secret)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, 90, cfg.Maintenance.AuditRetentionDays)
	require.Equal(t, "@hourly", cfg.Maintenance.LabExpirySchedule)
	require.Equal(t, "@daily", cfg.Maintenance.AuditSchedule)
	require.Equal(t, "@daily", cfg.Maintenance.AutoAssignSchedule)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("INKHOUSE_SERVER_PORT", "7070")
	t.Setenv("INKHOUSE_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
}
