package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingConnectionString is returned when a named connection string is
// absent or empty.
var ErrMissingConnectionString = errors.New("config: connection string not configured")

// Config is the central typed configuration. It is read once at startup
// and treated as immutable afterwards.
type Config struct {
	App               AppConfig         `mapstructure:"app"`
	Logging           LoggingConfig     `mapstructure:"logging"`
	Auth              AuthConfig        `mapstructure:"auth"`
	Swagger           SwaggerConfig     `mapstructure:"swagger"`
	Static            StaticConfig      `mapstructure:"static"`
	ConnectionStrings map[string]string `mapstructure:"connectionstrings"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"` // local | development | production | testing
	Debug bool   `mapstructure:"debug"`
	URL   string `mapstructure:"url"`
	Port  string `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
}

// AuthConfig configures the bearer authentication stage. It is off unless
// Enabled is set.
type AuthConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Audience   string `mapstructure:"audience"`
	Issuer     string `mapstructure:"issuer"`
	SigningKey string `mapstructure:"signing_key"`
}

type SwaggerConfig struct {
	Name    string `mapstructure:"name"`
	Title   string `mapstructure:"title"`
	Version string `mapstructure:"version"`
	Path    string `mapstructure:"path"`
}

type StaticConfig struct {
	Root string `mapstructure:"root"`
}

// Options selects where configuration is read from.
type Options struct {
	// File is an optional settings file (JSON, YAML or TOML). When empty,
	// appsettings.* in the working directory is used if present.
	File string
	// EnvFiles are loaded into the process environment first. Defaults to
	// ".env"; missing files are ignored.
	EnvFiles []string
}

// Load reads .env files, then the settings file, then overlays environment
// variables: APP_ENV, APP_PORT, LOGGING_LEVEL, AUTH_ENABLED,
// CONNECTIONSTRINGS_DEFAULTCONNECTION and so on.
//
//	cfg, err := config.Load(config.Options{})
func Load(opts Options) (*Config, error) {
	files := opts.EnvFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("appsettings")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading appsettings: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "CoreApi")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.url", "http://localhost")
	v.SetDefault("app.port", "8000")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.audience", "api1")
	v.SetDefault("auth.issuer", "http://localhost:5000")
	v.SetDefault("auth.signing_key", "")

	v.SetDefault("swagger.name", "v1")
	v.SetDefault("swagger.title", "My APIs")
	v.SetDefault("swagger.version", "v1")
	v.SetDefault("swagger.path", "/swagger")

	v.SetDefault("static.root", "./public")

	// Registered so the environment can supply it.
	v.SetDefault("connectionstrings.defaultconnection", "")
}

// ConnectionString returns the named connection string, e.g.
// "DefaultConnection". Names are case-insensitive.
func (c *Config) ConnectionString(name string) (string, error) {
	if cs := c.ConnectionStrings[strings.ToLower(name)]; cs != "" {
		return cs, nil
	}
	return "", fmt.Errorf("%w: %s", ErrMissingConnectionString, name)
}

// IsDevelopment reports whether diagnostic detail may be shown.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.App.Env) {
	case "development", "local":
		return true
	}
	return false
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return strings.EqualFold(c.App.Env, "production") }

// IsTesting reports whether APP_ENV is testing.
func (c *Config) IsTesting() bool { return strings.EqualFold(c.App.Env, "testing") }
