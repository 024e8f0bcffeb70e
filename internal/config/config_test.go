package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "5175", cfg.Port)
	assert.Equal(t, ":5175", cfg.Addr())
	assert.Equal(t, "./data/yahtzee.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.OracleTimeout)
	assert.Equal(t, 14, cfg.JWTExpiresDays)
	assert.Empty(t, cfg.OutcomeOracleURL)
	assert.True(t, cfg.DevSecret())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("OUTCOME_ORACLE_URL", "http://oracle:8080")
	t.Setenv("ORACLE_TIMEOUT", "3s")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "http://oracle:8080", cfg.OutcomeOracleURL)
	assert.Equal(t, 3*time.Second, cfg.OracleTimeout)
	assert.True(t, cfg.SecureCookies)
	assert.False(t, cfg.DevSecret())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	for name, env := range map[string][2]string{
		"level":    {"LOG_LEVEL", "loud"},
		"days":     {"JWT_EXPIRES_DAYS", "0"},
		"timeout":  {"ORACLE_TIMEOUT", "-1s"},
		"duration": {"ADVICE_WAIT", "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
