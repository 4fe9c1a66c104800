package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "America/Sao_Paulo", cfg.App.Timezone)
	assert.Equal(t, "access_token", cfg.Auth.CookieName)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CategoryCacheTTL)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "eventhub.participation.registered", cfg.Kafka.Topics.ParticipationRegistered)
	assert.Len(t, cfg.Kafka.Topics.All(), 5)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", ":9090")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadRequiresTokenVerifier(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("OIDC_ISSUER", "")

	_, _, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus_Mons")

	_, _, err := Load()
	assert.Error(t, err)
}
