package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/km-arc/coreapi/framework/auth"
	"github.com/km-arc/coreapi/framework/config"
	"github.com/km-arc/coreapi/framework/container"
	"github.com/km-arc/coreapi/framework/docs"
	gohttp "github.com/km-arc/coreapi/framework/http"
	"github.com/km-arc/coreapi/framework/pipeline"
	"github.com/km-arc/coreapi/framework/providers"
	"github.com/km-arc/coreapi/framework/resource"
	"github.com/km-arc/coreapi/framework/routing"
)

// Options configures a new Application.
type Options struct {
	Config config.Options

	// Embedded is the fallback static asset tree, rooted at EmbeddedDir.
	Embedded    fs.FS
	EmbeddedDir string

	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration
}

// Application is the composition root. Startup runs in two phases:
// ConfigureServices (providers register bindings, then Boot seals the
// container) and Configure (Handler assembles the request pipeline from
// the sealed container).
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	opts    Options
	bootErr error
	handler http.Handler
}

// New creates the application and registers the framework providers.
// Application providers are added with Register before Boot.
func New(opts Options) *Application {
	c := container.New()
	registry := container.NewProviderRegistry(c)

	a := &Application{Container: c, Providers: registry, opts: opts}

	registry.Register(&providers.ConfigServiceProvider{Options: opts.Config})
	registry.Register(&providers.LoggingServiceProvider{})
	registry.Register(&providers.ResourceServiceProvider{Embedded: opts.Embedded, Sub: opts.EmbeddedDir})
	registry.Register(&providers.DatabaseServiceProvider{})
	registry.Register(&providers.RoutingServiceProvider{})
	registry.Register(&providers.DocsServiceProvider{})
	registry.Register(&providers.AuthServiceProvider{})

	return a
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) {
	a.Providers.Register(provider)
}

// Boot seals the container and boots every provider. Any composition
// problem is returned, by this and every later call, and the application
// must not serve.
func (a *Application) Boot() error {
	if !a.Providers.Booted() {
		a.bootErr = a.Providers.Boot()
	}
	return a.bootErr
}

// Handler returns the assembled pipeline, booting first if needed. The
// pipeline is built once.
func (a *Application) Handler() (http.Handler, error) {
	if a.handler != nil {
		return a.handler, nil
	}
	if err := a.Boot(); err != nil {
		return nil, err
	}

	cfg, err := container.Resolve[*config.Config](a)
	if err != nil {
		return nil, err
	}
	logger, err := container.Resolve[*slog.Logger](a)
	if err != nil {
		return nil, err
	}
	files, err := container.Resolve[resource.Provider](a)
	if err != nil {
		return nil, err
	}
	swagger, err := container.Resolve[*docs.Handler](a)
	if err != nil {
		return nil, err
	}
	validator, err := container.Resolve[*auth.Validator](a)
	if err != nil {
		return nil, err
	}
	router, err := container.Resolve[*routing.Router](a)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Logger:      logger,
		Development: cfg.IsDevelopment(),
		Resources:   files,
		Container:   a.Container,
		Docs:        swagger.Middleware,
		Dispatch:    router,
	}
	if validator != nil {
		opts.Authentication = auth.Middleware(validator)
	}
	b := pipeline.Standard(opts)
	h, err := b.Build()
	if err != nil {
		return nil, err
	}
	logger.Debug("pipeline assembled", "stages", b.Stages())
	a.handler = h
	return h, nil
}

// Run serves on App.Port until ctx is cancelled, then shuts down
// gracefully and disposes singletons.
func (a *Application) Run(ctx context.Context) error {
	h, err := a.Handler()
	if err != nil {
		return err
	}
	cfg := a.Config()
	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.App.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	timeout := a.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := a.Close(); err != nil {
		slog.Warn("disposing services", "err", err)
	}
	slog.Info("server stopped cleanly")
	return nil
}

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.MustResolve[*config.Config](a)
}

// Router resolves the dispatch router from the container.
func (a *Application) Router() *routing.Router {
	return container.MustResolve[*routing.Router](a)
}

// Environment returns the App.Env value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsDevelopment() bool { return a.Config().IsDevelopment() }
func (a *Application) IsProduction() bool  { return a.Config().IsProduction() }
func (a *Application) IsTesting() bool     { return a.Config().IsTesting() }

// Controller is an embeddable base for HTTP controllers.
type Controller struct{}

func (c *Controller) Request(r *http.Request) *gohttp.Request {
	return gohttp.NewRequest(r)
}
func (c *Controller) Response(w http.ResponseWriter) *gohttp.Response {
	return gohttp.NewResponse(w)
}
