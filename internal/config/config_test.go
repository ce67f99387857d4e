package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "store", cfg.Recipes.Backend)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 30, cfg.Engine.RetentionDays)
	assert.Equal(t, 3, cfg.Engine.ExpiringSummaryDays)
	assert.Equal(t, time.Hour, cfg.Scheduler.ExpiryInterval)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Empty(t, cfg.App.AdminKeys)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("STORE_DB_PASS", "p@ss")
	t.Setenv("ADMIN_API_KEYS", "k1,k2")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("SCHEDULER_EXPIRY_INTERVAL", "15m")
	t.Setenv("DELETE_DEPLETED_ITEMS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.Equal(t, []string{"k1", "k2"}, cfg.App.AdminKeys)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.ExpiryInterval)
	assert.True(t, cfg.Engine.DeleteDepleted)
	assert.Contains(t, cfg.Store.DSN(), "p%40ss")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"store type", "STORE_TYPE", "cassandra"},
		{"recipes backend", "RECIPES_BACKEND", "files"},
		{"cache type", "CACHE_TYPE", "memcached"},
		{"retention", "NOTIFICATION_RETENTION_DAYS", "0"},
		{"trend window", "TREND_DEFAULT_DAYS", "400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	store := StoreConfig{Type: "mysql", Host: "db", Port: 3306, Name: "inv", User: "u", Password: "p"}
	assert.Equal(t, "u:p@tcp(db:3306)/inv?parseTime=true&loc=UTC", store.DSN())

	store = StoreConfig{Type: "sqlite", Path: "/tmp/x.db"}
	assert.Equal(t, "/tmp/x.db", store.DSN())

	members := MembersConfig{Host: "h", Port: 3307, Name: "acct", User: "r", Password: "s"}
	assert.Equal(t, "r:s@tcp(h:3307)/acct?parseTime=true", members.DSN())

	server := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", server.Address())
}
