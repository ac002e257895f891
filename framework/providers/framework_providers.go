package providers

import (
	"context"
	"io/fs"
	"log/slog"
	"os"

	"github.com/km-arc/coreapi/framework/auth"
	"github.com/km-arc/coreapi/framework/config"
	"github.com/km-arc/coreapi/framework/container"
	"github.com/km-arc/coreapi/framework/database"
	"github.com/km-arc/coreapi/framework/docs"
	"github.com/km-arc/coreapi/framework/logging"
	"github.com/km-arc/coreapi/framework/resource"
	"github.com/km-arc/coreapi/framework/routing"
	"github.com/km-arc/coreapi/framework/service"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the configuration once, at Build.
//
// Bound capabilities:
//   - *config.Config (singleton)
type ConfigServiceProvider struct {
	container.BaseProvider
	Options config.Options
}

func (p *ConfigServiceProvider) Register(app *container.Container) {
	opts := p.Options
	container.Register(app, container.Singleton, func(container.Resolver) (*config.Config, error) {
		return config.Load(opts)
	})
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider builds the process logger from Logging.Level and
// Logging.Format and installs it as the slog default on Boot.
//
// Bound capabilities:
//   - *slog.Logger (singleton)
type LoggingServiceProvider struct{}

func (p *LoggingServiceProvider) Register(app *container.Container) {
	container.Register(app, container.Singleton, func(r container.Resolver) (*slog.Logger, error) {
		cfg, err := container.Resolve[*config.Config](r)
		if err != nil {
			return nil, err
		}
		return newLogger(cfg), nil
	}, container.DependsOn[*config.Config]())
}

func (p *LoggingServiceProvider) Boot(app *container.Container) error {
	logger, err := container.Resolve[*slog.Logger](app)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format).
		With("app", cfg.App.Name, "env", cfg.App.Env)
}

// ── ResourceServiceProvider ───────────────────────────────────────────────────

// ResourceServiceProvider composes the on-disk static root with an
// embedded fallback. The disk copy wins.
//
// Bound capabilities:
//   - resource.Provider → *resource.Resolver (singleton)
type ResourceServiceProvider struct {
	container.BaseProvider
	Embedded fs.FS  // optional
	Sub      string // directory inside Embedded, e.g. "public"
}

func (p *ResourceServiceProvider) Register(app *container.Container) {
	embedded, sub := p.Embedded, p.Sub
	container.Bind[resource.Provider](app, container.Singleton, func(r container.Resolver) (*resource.Resolver, error) {
		cfg, err := container.Resolve[*config.Config](r)
		if err != nil {
			return nil, err
		}
		backends := []resource.Backend{resource.Dir(cfg.Static.Root)}
		if embedded != nil {
			b, err := resource.Embedded(embedded, sub)
			if err != nil {
				return nil, err
			}
			backends = append(backends, b)
		}
		return resource.New(backends...), nil
	}, container.DependsOn[*config.Config]())
}

// ── DatabaseServiceProvider ───────────────────────────────────────────────────

// DatabaseServiceProvider binds the data-access context. The connection
// string ConnectionStrings.DefaultConnection is parsed at Build, so a
// missing or malformed value stops startup.
//
// Bound capabilities:
//   - *database.Pool (singleton)
//   - *database.DataContext (scoped)
//   - database.UnitOfWork, database.Store → the request's *database.DataContext
//   - service.Service[T] for every T (scoped)
type DatabaseServiceProvider struct {
	container.BaseProvider
	MaxConns int32
}

func (p *DatabaseServiceProvider) Register(app *container.Container) {
	maxConns := p.MaxConns
	container.Register(app, container.Singleton, func(r container.Resolver) (*database.Pool, error) {
		cfg, err := container.Resolve[*config.Config](r)
		if err != nil {
			return nil, err
		}
		cs, err := cfg.ConnectionString(database.ConnectionName)
		if err != nil {
			return nil, err
		}
		return database.Open(context.Background(), cs, maxConns)
	}, container.DependsOn[*config.Config]())

	container.Register(app, container.Scoped, func(r container.Resolver) (*database.DataContext, error) {
		pool, err := container.Resolve[*database.Pool](r)
		if err != nil {
			return nil, err
		}
		return database.NewDataContext(pool), nil
	}, container.DependsOn[*database.Pool]())

	container.Alias[database.UnitOfWork, *database.DataContext](app)
	container.Alias[database.Store, *database.DataContext](app)

	service.Register(app)
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the dispatch router.
//
// Bound capabilities:
//   - *routing.Router (singleton)
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) {
	container.Register(app, container.Singleton, func(container.Resolver) (*routing.Router, error) {
		return routing.New(), nil
	})
}

// ── DocsServiceProvider ───────────────────────────────────────────────────────

// DocsServiceProvider registers the API document and viewer.
//
// Bound capabilities:
//   - *docs.Handler (singleton)
type DocsServiceProvider struct {
	container.BaseProvider
}

func (p *DocsServiceProvider) Register(app *container.Container) {
	container.Register(app, container.Singleton, func(r container.Resolver) (*docs.Handler, error) {
		cfg, err := container.Resolve[*config.Config](r)
		if err != nil {
			return nil, err
		}
		router, err := container.Resolve[*routing.Router](r)
		if err != nil {
			return nil, err
		}
		return docs.NewHandler(docs.FromConfig(cfg.Swagger), cfg.Swagger.Path, router.Routes), nil
	}, container.DependsOn[*config.Config](), container.DependsOn[*routing.Router]())
}

// ── AuthServiceProvider ───────────────────────────────────────────────────────

// AuthServiceProvider registers the bearer token validator. With
// Auth.Enabled false the validator is nil and no authentication stage is
// added; with it true a signing key is required.
//
// Bound capabilities:
//   - *auth.Validator (singleton, may be nil)
type AuthServiceProvider struct {
	container.BaseProvider
}

func (p *AuthServiceProvider) Register(app *container.Container) {
	container.Register(app, container.Singleton, func(r container.Resolver) (*auth.Validator, error) {
		cfg, err := container.Resolve[*config.Config](r)
		if err != nil {
			return nil, err
		}
		if !cfg.Auth.Enabled {
			return nil, nil
		}
		return auth.NewValidator(cfg.Auth)
	}, container.DependsOn[*config.Config]())
}
