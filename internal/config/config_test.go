package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Env:                      "production",
		DBDriver:                 "postgres",
		DBSSLMode:                "require",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		Port:                     "8080",
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with empty SSL mode", "prod", "", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionStrictness(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"default secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }},
		{"weak db password", func(c *Config) { c.DBPassword = "password" }},
		{"sqlite driver", func(c *Config) { c.DBDriver = "sqlite" }},
		{"dev root bootstrap", func(c *Config) { c.DevBootstrapRoot = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_ValidateDriver(t *testing.T) {
	c := validConfig()
	c.Env = "development"
	c.DBDriver = "mysql"
	assert.ErrorContains(t, c.Validate(), "DB_DRIVER")

	c.DBDriver = "sqlite"
	assert.NoError(t, c.Validate())
}

func TestConfig_Durations(t *testing.T) {
	c := &Config{LeaderboardCacheTTLSeconds: 15, FlagSubmitWindowSeconds: 60}
	assert.Equal(t, 15*time.Second, c.LeaderboardCacheTTL())
	assert.Equal(t, time.Minute, c.FlagSubmitWindow())
}

func TestLoadConfig_Normalization(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", " SQLite ")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 20, c.ChallengesPerPage)
	assert.Equal(t, 15, c.PostsPerPage)
}
