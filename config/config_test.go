package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitConfigDefaults(t *testing.T) {
	cfg, err := InitConfig(false)
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8080/api/v1", cfg.API.BaseURL)
	require.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenLifetime)
	require.Equal(t, 24*time.Hour, cfg.Auth.BridgeTokenLifetime)
	require.Equal(t, 3*time.Second, cfg.Submissions.SettleDelay)
	require.Equal(t, 4, cfg.Invitations.EnhanceWorkers)
	require.Empty(t, cfg.Kafka.Brokers)
}

func TestInitConfigFromEnv(t *testing.T) {
	t.Setenv("CDEX_API_URL", "https://cdex.example.com/api/v1")
	t.Setenv("CDEX_BRIDGE_TOKEN_LIFETIME", "0s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := InitConfig(false)
	require.NoError(t, err)

	require.Equal(t, "https://cdex.example.com/api/v1", cfg.API.BaseURL)
	require.Equal(t, time.Duration(0), cfg.Auth.BridgeTokenLifetime)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "cache", cfg.Redis.Host)
	require.Equal(t, 6379, cfg.Redis.Port)
}

func TestInitConfigInvalidDuration(t *testing.T) {
	t.Setenv("CDEX_API_TIMEOUT", "soon")

	_, err := InitConfig(false)
	require.Error(t, err)
}
