package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, DatabaseMemory, cfg.DatabaseType)
	assert.Equal(t, 60*time.Second, cfg.DefaultPollDuration)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, PublisherNone, cfg.ResultsPublisher)
	assert.True(t, cfg.MetricsEnabled)
}

func TestParseEnvAndFlags(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_TYPE", "Postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_USER", "poll")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "livepoll")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("RESULTS_PUBLISHER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Parse([]string{"-port", "9100", "-default-poll-seconds", "30"})
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "flags take precedence over env")
	assert.Equal(t, DatabasePostgres, cfg.DatabaseType)
	assert.Equal(t, "postgres://poll:secret@db:5433/livepoll?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.DefaultPollDuration)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestParseSQLiteDefaultPath(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "livepoll.db", cfg.DatabaseURL)
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "Bad port env", env: map[string]string{"PORT": "eighty"}},
		{name: "Unknown database", env: map[string]string{"DATABASE_TYPE": "mongo"}},
		{name: "Poll duration too short", args: []string{"-default-poll-seconds", "5"}},
		{name: "Poll duration too long", args: []string{"-default-poll-seconds", "301"}},
		{name: "Unknown publisher", env: map[string]string{"RESULTS_PUBLISHER": "nats"}},
		{name: "AMQP without URL", env: map[string]string{"RESULTS_PUBLISHER": "amqp"}},
		{name: "Kafka without brokers", env: map[string]string{"RESULTS_PUBLISHER": "kafka"}},
		{name: "Bad metrics flag", env: map[string]string{"METRICS_ENABLED": "maybe"}},
		{name: "Unknown flag", args: []string{"-nope"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Parse(tc.args)
			assert.Error(t, err)
		})
	}
}
