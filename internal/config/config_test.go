package config_test

import (
	"testing"

	"rosterd/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("MissingPassword", func(t *testing.T) {
		cfg := &config.Config{}
		err := cfg.Validate()
		assert.ErrorIs(t, err, config.ErrMissingPassword)
	})

	t.Run("PasswordPresent", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Database.Password = "secret"
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "roster", cfg.Database.DBName)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "roster.events", cfg.NATS.Subject)
	assert.NoError(t, cfg.Validate())
}
