package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                       "8080",
		Env:                        "development",
		DBDriver:                   "postgres",
		DBPassword:                 "secure-password",
		DBSSLMode:                  "require",
		JWTSecret:                  "secure-secret-at-least-32-chars-long",
		InspectionFeeWindowMinutes: 30,
		SlotCacheTTLSeconds:        60,
		TracingSamplerRatio:        1,
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

func TestConfig_ValidateDriver(t *testing.T) {
	c := validConfig()
	c.DBDriver = "mysql"
	assert.Error(t, c.Validate())

	c.DBDriver = "sqlite"
	assert.NoError(t, c.Validate())

	c.Env = "production"
	assert.Error(t, c.Validate(), "sqlite is not allowed in production")
}

func TestConfig_ValidateWindowsAndRatios(t *testing.T) {
	c := validConfig()
	c.InspectionFeeWindowMinutes = 0
	assert.Error(t, c.Validate())

	c = validConfig()
	c.SlotCacheTTLSeconds = -1
	assert.Error(t, c.Validate())

	c = validConfig()
	c.TracingSamplerRatio = 1.5
	assert.Error(t, c.Validate())
}

func TestConfig_ValidateProductionSecret(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())

	c.JWTSecret = "short"
	assert.Error(t, c.Validate())
}

func TestLoadConfig_EnvOverridesAndNormalization(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "  SQLite ")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("INSPECTION_FEE_WINDOW_MINUTES", "45")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 45, c.InspectionFeeWindowMinutes)
	assert.Equal(t, 60, c.SlotCacheTTLSeconds)
}
