package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Matching.Interval)
	assert.Equal(t, "gorm", cfg.Opportunity.Backend)
	assert.Equal(t, "gorm", cfg.Persistence.Backend)
	assert.Equal(t, 1, cfg.Opportunity.InitialBalance)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "https://codemeet.app/doc/%s", cfg.Resources.DocumentURLTemplate)
	assert.Equal(t, "codemeet.match.notifications", cfg.Notification.Kafka.Topic)
	assert.False(t, cfg.Notification.Kafka.Enabled)
	assert.True(t, cfg.Notification.WebSocket.Enabled)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
matching:
  interval: 2s
  random_seed: 42
opportunity:
  backend: redis
  initial_balance: 3
notification:
  kafka:
    enabled: true
    brokers: ["kafka-1:9092", "kafka-2:9092"]
`), 0o600))

	t.Setenv("CODEMEET_HTTP_ADDR", ":9999")
	t.Setenv("CODEMEET_OPPORTUNITY_INITIAL_BALANCE", "5")

	cfg, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Matching.Interval)
	assert.Equal(t, uint64(42), cfg.Matching.RandomSeed)
	assert.Equal(t, "redis", cfg.Opportunity.Backend)
	assert.Equal(t, 5, cfg.Opportunity.InitialBalance)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Notification.Kafka.Brokers)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"CODEMEET_MATCHING_INTERVAL":               "0s",
		"CODEMEET_OPPORTUNITY_BACKEND":             "ledger",
		"CODEMEET_PERSISTENCE_BACKEND":             "files",
		"CODEMEET_DATABASE_DRIVER":                 "oracle",
		"CODEMEET_RESOURCES_DOCUMENT_URL_TEMPLATE": "https://codemeet.app/doc",
		"CODEMEET_RESOURCES_VIDEO_URL_TEMPLATE":    "https://codemeet.app/video",
		"CODEMEET_OPPORTUNITY_INITIAL_BALANCE":     "-1",
	}
	for env, value := range tests {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, value)
			_, err := Load("", zap.NewNop())
			assert.Error(t, err)
		})
	}
}
