package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, 24*time.Hour, cfg.SessionAbandonAfter)
	assert.Equal(t, 48*time.Hour, cfg.PassedAbandonAfter)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.False(t, cfg.EventsEnabled())
	assert.False(t, cfg.AdminEnabled())
}

func Test_Load_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD_HASH", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
	t.Setenv("SWEEP_INTERVAL", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.True(t, cfg.UseMemoryStore())
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.EventsEnabled())
	assert.True(t, cfg.AdminEnabled())
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
}

func Test_Load_InvalidValues(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("SWEEP_INTERVAL", "soon")
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "sqlite")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STORAGE_DRIVER")
	})
	t.Run("non-positive threshold", func(t *testing.T) {
		t.Setenv("SESSION_ABANDON_AFTER", "0s")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestIsTest(t *testing.T) {
	assert.True(t, Config{AppEnv: "TEST"}.IsTest())
	assert.False(t, Config{AppEnv: "dev"}.IsTest())
}
