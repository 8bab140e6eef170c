package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, ok := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if ok {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoad_DefaultsToDevelopment(t *testing.T) {
	clearEnv(t, "APP_ENV", "DATABASE_URL", "DB_HOST", "SECRET_KEY", "SECRET_KEY_HASH")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "Europe/Rome", cfg.App.Timezone)
}

func TestValidate_ProductionRequiresDatabaseAndSecret(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: EnvProduction}}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "SECRET_KEY")
	assert.Contains(t, err.Error(), "LOGGING_BOT_TOKEN")
}

func TestValidate_ProductionPassesWithRequiredFields(t *testing.T) {
	cfg := &Config{
		App: AppConfig{
			Environment:   EnvProduction,
			SecretKey:     "s3cr3t",
			SecretKeyHash: "$2a$10$hash",
		},
		Database: DatabaseConfig{URL: "postgres://localhost/db"},
		Telegram: TelegramConfig{LoggingBotToken: "123:abc"},
	}

	assert.NoError(t, cfg.Validate())
}

func TestLoadDatabaseConfig_BuildsURLFromParts(t *testing.T) {
	clearEnv(t, "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE")
	os.Setenv("DB_HOST", "db.internal")
	os.Setenv("DB_USER", "hub")
	os.Setenv("DB_PASSWORD", "pw")
	os.Setenv("DB_NAME", "campus")

	dbCfg, err := loadDatabaseConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://hub:pw@db.internal:5432/campus?sslmode=require", dbCfg.URL)
}
