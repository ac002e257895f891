package controllers

import (
	"errors"
	"net/http"

	"github.com/km-arc/coreapi/framework/app"
	gohttp "github.com/km-arc/coreapi/framework/http"
	"github.com/km-arc/coreapi/framework/pipeline"
	"github.com/km-arc/coreapi/framework/service"
)

// EntityController is the REST controller for any entity type, backed by
// the request's Service[T].
//
//	router.Resource("/api/notes", controllers.NewEntityController[models.Note]("/api/notes", nil))
type EntityController[T any] struct {
	app.Controller
	prefix string
	// stamp is applied to new entities before they are stored.
	stamp func(*T)
}

// NewEntityController creates a controller mounted at prefix. stamp may
// be nil.
func NewEntityController[T any](prefix string, stamp func(*T)) *EntityController[T] {
	return &EntityController[T]{prefix: prefix, stamp: stamp}
}

// Index lists every entity of the set.
func (c *EntityController[T]) Index(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	svc := c.service(r)
	all, err := svc.All(r.Context())
	if err != nil {
		respondError(res, err)
		return
	}
	if all == nil {
		all = []T{}
	}
	res.Success(all)
}

// Show returns one entity.
func (c *EntityController[T]) Show(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	v, err := c.service(r).Find(r.Context(), c.Request(r).RouteParam("id"))
	if err != nil {
		respondError(res, err)
		return
	}
	res.Success(v)
}

// Store creates an entity from the JSON body and commits it.
func (c *EntityController[T]) Store(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	var v T
	if !c.bind(res, r, &v) {
		return
	}
	if c.stamp != nil {
		c.stamp(&v)
	}
	svc := c.service(r)
	id, err := svc.Add(r.Context(), v)
	if err != nil {
		respondError(res, err)
		return
	}
	if err := svc.Save(r.Context()); err != nil {
		respondError(res, err)
		return
	}
	created, err := svc.Find(r.Context(), id)
	if err != nil {
		respondError(res, err)
		return
	}
	res.Created(created, c.prefix+"/"+id)
}

// Update replaces an existing entity and commits it.
func (c *EntityController[T]) Update(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	var v T
	if !c.bind(res, r, &v) {
		return
	}
	id := c.Request(r).RouteParam("id")
	svc := c.service(r)
	if err := svc.Update(r.Context(), id, v); err != nil {
		respondError(res, err)
		return
	}
	if err := svc.Save(r.Context()); err != nil {
		respondError(res, err)
		return
	}
	updated, err := svc.Find(r.Context(), id)
	if err != nil {
		respondError(res, err)
		return
	}
	res.Success(updated)
}

// Destroy deletes an entity and commits.
func (c *EntityController[T]) Destroy(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	svc := c.service(r)
	if err := svc.Delete(r.Context(), c.Request(r).RouteParam("id")); err != nil {
		respondError(res, err)
		return
	}
	if err := svc.Save(r.Context()); err != nil {
		respondError(res, err)
		return
	}
	res.NoContent()
}

func (c *EntityController[T]) service(r *http.Request) service.Service[T] {
	svc, err := service.For[T](scope(r))
	if err != nil {
		pipeline.Fail(err)
	}
	return svc
}

func (c *EntityController[T]) bind(res *gohttp.Response, r *http.Request, v *T) bool {
	err := c.Request(r).Bind(v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, gohttp.ErrUnsupportedMediaType):
		res.Error(http.StatusUnsupportedMediaType, "Unsupported media type.")
	default:
		res.Error(http.StatusBadRequest, "Malformed JSON body.")
	}
	return false
}
