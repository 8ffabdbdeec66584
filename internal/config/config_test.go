package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
database:
  mysql:
    dsn: "user:pass@tcp(db:3306)/catalog"
kafka:
  brokers: "kafka:9092"
category:
  cache_ttl: 30s
  seed_on_startup: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "user:pass@tcp(db:3306)/catalog", cfg.Database.MySQL.DSN)
	assert.Equal(t, "kafka:9092", cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 30*time.Second, cfg.Category.CacheTTL)
	assert.True(t, cfg.Category.SeedOnStartup)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  mode: release\n"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "category-events", cfg.Kafka.Topic)
	assert.Equal(t, "shop-catalog-consumer", cfg.Kafka.GroupID)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, 10*time.Minute, cfg.Category.CacheTTL)
	assert.Equal(t, "categories/forest.json", cfg.Category.SnapshotObject)
	assert.Equal(t, time.Hour, cfg.Category.SnapshotExpiry)
	assert.False(t, cfg.Category.SeedOnStartup)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestInit_Panics(t *testing.T) {
	assert.Panics(t, func() { Init(filepath.Join(t.TempDir(), "absent.yaml")) })
}
