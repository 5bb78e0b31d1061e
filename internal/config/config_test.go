package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load(viper.New(), "testdata/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, ImageHostCloudinary, cfg.ImageHost)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORAGE", "MEMORY")
	t.Setenv("CLIENT_URL", "https://blog.example.com/")
	t.Setenv("SITE_URL", "https://api.example.com/")
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")

	cfg, err := Load(viper.New(), "testdata/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "https://blog.example.com", cfg.ClientURL)
	assert.Equal(t, "https://api.example.com", cfg.SiteURL)
	assert.Equal(t, "Inkpress", cfg.SiteName)
	assert.Equal(t, "client-id", cfg.GoogleClientID)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	v := viper.New()
	v.Set("PORT", "7000")

	cfg, err := Load(v, "testdata/missing.env")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, cfg.Validate())

	cfg.AppEnv = "production"
	assert.ErrorContains(t, cfg.Validate(), "SESSION_SECRET")

	cfg.SessionSecret = "a-real-secret"
	cfg.Storage = "sqlite"
	assert.ErrorContains(t, cfg.Validate(), "unknown STORAGE")

	cfg.Storage = StoragePostgres
	cfg.DatabaseURL = ""
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
}
