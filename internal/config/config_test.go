package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(f)
	require.NoError(t, f.Parse(args))
	return f
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper(newFlags(t, "--session-store=database")))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "evolvere_session", cfg.Session.CookieName)
	assert.Equal(t, int64(2<<20), cfg.Upload.MaxPhotoSize)
	assert.Equal(t, time.Duration(0), cfg.SubmissionGrace)
	assert.False(t, cfg.Casdoor.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EVOLVERE_PORT", "9090")
	t.Setenv("EVOLVERE_LOG_LEVEL", "debug")
	t.Setenv("EVOLVERE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("EVOLVERE_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("EVOLVERE_SUBMISSION_GRACE", "5s")

	cfg, err := Load(NewViper(newFlags(t)))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.SubmissionGrace)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "redis sessions without redis", args: []string{"--session-store=redis"}},
		{name: "unknown store", args: []string{"--session-store=memcached"}},
		{name: "negative grace", args: []string{"--session-store=database", "--submission-grace=-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(NewViper(newFlags(t, tt.args...)))
			assert.Error(t, err)
		})
	}
}
