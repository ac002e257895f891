package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/coreapi/framework/config"
)

// Note: t.Parallel() is intentionally omitted in this package.
// These tests share process-global environment variables.

// noEnvFile points Load at a .env that does not exist.
func noEnvFile(t *testing.T) config.Options {
	t.Helper()
	return config.Options{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(noEnvFile(t))
	require.NoError(t, err)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"App.Name", cfg.App.Name, "CoreApi"},
		{"App.Env", cfg.App.Env, "production"},
		{"App.Port", cfg.App.Port, "8000"},
		{"Logging.Level", cfg.Logging.Level, "info"},
		{"Swagger.Title", cfg.Swagger.Title, "My APIs"},
		{"Swagger.Version", cfg.Swagger.Version, "v1"},
		{"Swagger.Path", cfg.Swagger.Path, "/swagger"},
		{"Static.Root", cfg.Static.Root, "./public"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
	assert.False(t, cfg.Auth.Enabled)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("APP_NAME", "MyApp")
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("CONNECTIONSTRINGS_DEFAULTCONNECTION", "postgres://env/db")

	cfg, err := config.Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "MyApp", cfg.App.Name)
	assert.Equal(t, "9000", cfg.App.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.Auth.Enabled)

	cs, err := cfg.ConnectionString("DefaultConnection")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cs)
}

func TestLoad_SettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appsettings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "ConnectionStrings": {"DefaultConnection": "postgres://file/db"},
  "Logging": {"Level": "debug"},
  "Swagger": {"Title": "Other APIs"}
}`), 0o600))

	opts := noEnvFile(t)
	opts.File = path
	cfg, err := config.Load(opts)
	require.NoError(t, err)

	cs, err := cfg.ConnectionString("defaultconnection")
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/db", cs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "Other APIs", cfg.Swagger.Title)
	assert.Equal(t, "v1", cfg.Swagger.Version, "unset keys keep their defaults")
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=FromDotEnv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("APP_NAME") })

	cfg, err := config.Load(config.Options{EnvFiles: []string{path}})
	require.NoError(t, err)
	assert.Equal(t, "FromDotEnv", cfg.App.Name)
}

func TestLoad_InvalidFile(t *testing.T) {
	opts := noEnvFile(t)
	opts.File = "/nonexistent/path/appsettings.json"

	_, err := config.Load(opts)
	assert.Error(t, err)
}

func TestConnectionString_Missing(t *testing.T) {
	cfg, err := config.Load(noEnvFile(t))
	require.NoError(t, err)

	_, err = cfg.ConnectionString("DefaultConnection")
	assert.ErrorIs(t, err, config.ErrMissingConnectionString)
}

func TestEnvironmentHelpers(t *testing.T) {
	tests := []struct {
		env                    string
		dev, prod, testingMode bool
	}{
		{"development", true, false, false},
		{"Development", true, false, false},
		{"local", true, false, false},
		{"production", false, true, false},
		{"testing", false, false, true},
		{"staging", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &config.Config{App: config.AppConfig{Env: tt.env}}
			assert.Equal(t, tt.dev, cfg.IsDevelopment())
			assert.Equal(t, tt.prod, cfg.IsProduction())
			assert.Equal(t, tt.testingMode, cfg.IsTesting())
		})
	}
}
