package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/km-arc/coreapi/framework/container"
	"github.com/km-arc/coreapi/framework/logging"
	"github.com/km-arc/coreapi/framework/resource"
)

// Options carries what Standard needs.
type Options struct {
	Logger      *slog.Logger
	Development bool
	Resources   resource.Provider
	Container   *container.Container
	Docs        func(http.Handler) http.Handler
	// Authentication is nil when authentication is disabled.
	Authentication func(http.Handler) http.Handler
	Dispatch       http.Handler
}

// Standard returns the application pipeline:
//
//	static → logging ( developer-exception-page? → swagger → authentication? → dispatch )
//
// The developer exception page is added only in development and
// authentication only when configured.
func Standard(o Options) *Builder {
	b := New(o.Logger)
	b.Use(StageStatic, Static(o.Resources))
	b.Use(StageLogging, RequestScope(o.Logger, o.Container))
	if o.Development {
		b.Use(StageDeveloperExceptions, DeveloperExceptions(o.Logger))
	}
	b.Use(StageSwagger, o.Docs)
	if o.Authentication != nil {
		b.Use(StageAuthentication, o.Authentication)
	}
	b.Run(StageDispatch, o.Dispatch)
	return b
}

// Static serves GET and HEAD requests for names p holds, with a content
// type from the extension. Misses fall through to next.
func Static(p resource.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			res, err := p.Lookup(r.URL.Path)
			if errors.Is(err, resource.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				panic(err)
			}
			http.ServeContent(w, r, res.Name, res.ModTime, bytes.NewReader(res.Content))
		})
	}
}

// RequestScope is the logging stage: it logs the request around the rest
// of the chain and gives the request its own container scope, closed
// once the response is written.
func RequestScope(logger *slog.Logger, c *container.Container) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logged := logging.Middleware(logger)
	return func(next http.Handler) http.Handler {
		scoped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := c.NewScope(r.Context())
			defer func() {
				if err := scope.Close(); err != nil {
					logger.ErrorContext(r.Context(), "closing request scope", "err", err)
				}
			}()
			next.ServeHTTP(w, r.WithContext(container.WithScope(r.Context(), scope)))
		})
		return logged(scoped)
	}
}
