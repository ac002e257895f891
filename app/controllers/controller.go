// Package controllers holds the HTTP handlers dispatched by the router.
package controllers

import (
	"errors"
	"net/http"

	"github.com/km-arc/coreapi/framework/container"
	gohttp "github.com/km-arc/coreapi/framework/http"
	"github.com/km-arc/coreapi/framework/pipeline"
	"github.com/km-arc/coreapi/framework/service"
)

// scope returns the container scope of the request. Handlers only run
// inside the pipeline, which always opens one.
func scope(r *http.Request) *container.Scope {
	s, ok := container.ScopeFrom(r.Context())
	if !ok {
		pipeline.Fail(container.ErrScope)
	}
	return s
}

// respondError maps expected failures to client errors and hands
// everything else to the pipeline.
func respondError(res *gohttp.Response, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		res.NotFound()
	case errors.Is(err, gohttp.ErrUnsupportedMediaType):
		res.Error(http.StatusUnsupportedMediaType, "Unsupported media type.")
	default:
		pipeline.Fail(err)
	}
}
