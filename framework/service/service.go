// Package service is the generic entity service: one open generic binding
// that yields a Service[T] for any entity type T without per-type
// registration.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/km-arc/coreapi/framework/container"
	"github.com/km-arc/coreapi/framework/database"
)

// Family is the open generic capability Service[T].
var Family = container.NewFamily("service.Service")

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = database.ErrNotFound

// Service is CRUD access to the entity set of T plus the request's unit of
// work.
type Service[T any] interface {
	Find(ctx context.Context, id string) (T, error)
	All(ctx context.Context) ([]T, error)
	Add(ctx context.Context, entity T) (string, error)
	Update(ctx context.Context, id string, entity T) error
	Delete(ctx context.Context, id string) error
	// Save commits everything written during the request.
	Save(ctx context.Context) error
}

// Identifiable entities receive the generated id from Add.
type Identifiable interface {
	SetID(id string)
}

// Named entities choose their own set name. Otherwise the lower-cased type
// name is used.
type Named interface {
	EntitySet() string
}

// Register binds the Service family, scoped, against the Store and
// UnitOfWork capabilities.
func Register(c *container.Container) {
	container.RegisterOpenGeneric(c, Family, container.Scoped, Template,
		container.DependsOn[database.Store](),
		container.DependsOn[database.UnitOfWork](),
	)
}

// For resolves Service[T] from r.
//
//	notes, err := service.For[models.Note](scope)
func For[T any](r container.Resolver) (Service[T], error) {
	v, err := container.ResolveGeneric[T](r, Family)
	if err != nil {
		return nil, err
	}
	inner, ok := v.(*entityService)
	if !ok {
		return nil, &container.TypeMismatchError{Expected: "*service.entityService", Got: fmt.Sprintf("%T", v)}
	}
	return typed[T]{inner: inner}, nil
}

// Template builds the erased implementation for type argument arg.
func Template(arg reflect.Type, r container.Resolver) (any, error) {
	store, err := container.Resolve[database.Store](r)
	if err != nil {
		return nil, err
	}
	uow, err := container.Resolve[database.UnitOfWork](r)
	if err != nil {
		return nil, err
	}
	return &entityService{set: SetName(arg), typ: arg, store: store, uow: uow}, nil
}

// SetName returns the entity set that holds values of typ. Pointer types
// share the set of the type they point to.
func SetName(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if n, ok := reflect.New(typ).Elem().Interface().(Named); ok {
		return n.EntitySet()
	}
	if n, ok := reflect.New(typ).Interface().(Named); ok {
		return n.EntitySet()
	}
	return strings.ToLower(typ.Name())
}

// ── erased implementation ─────────────────────────────────────────────────────

type entityService struct {
	set   string
	typ   reflect.Type
	store database.Store
	uow   database.UnitOfWork
}

func (s *entityService) decode(body []byte) (any, error) {
	v := reflect.New(s.typ)
	if err := json.Unmarshal(body, v.Interface()); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.set, err)
	}
	return v.Elem().Interface(), nil
}

func (s *entityService) find(ctx context.Context, id string) (any, error) {
	body, err := s.store.Find(ctx, s.set, id)
	if err != nil {
		return nil, err
	}
	return s.decode(body)
}

func (s *entityService) all(ctx context.Context) ([]any, error) {
	rows, err := s.store.List(ctx, s.set)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		v, err := s.decode(row.Body)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *entityService) put(ctx context.Context, id string, entity any) error {
	target := s.addressable(entity)
	if ident, ok := target.(Identifiable); ok {
		ident.SetID(id)
	}
	body, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", s.set, id, err)
	}
	return s.store.Upsert(ctx, s.set, id, body)
}

// addressable returns a pointer to a copy of entity, so SetID never
// reaches the caller's value. A nil pointer entity becomes a zero value.
func (s *entityService) addressable(entity any) any {
	if s.typ.Kind() != reflect.Pointer {
		v := reflect.New(s.typ)
		v.Elem().Set(reflect.ValueOf(entity))
		return v.Interface()
	}
	v := reflect.New(s.typ.Elem())
	if src := reflect.ValueOf(entity); src.IsValid() && !src.IsNil() {
		v.Elem().Set(src.Elem())
	}
	return v.Interface()
}

func (s *entityService) add(ctx context.Context, entity any) (string, error) {
	id := uuid.NewString()
	if err := s.put(ctx, id, entity); err != nil {
		return "", err
	}
	return id, nil
}

func (s *entityService) update(ctx context.Context, id string, entity any) error {
	if _, err := s.store.Find(ctx, s.set, id); err != nil {
		return err
	}
	return s.put(ctx, id, entity)
}

// ── typed facade ──────────────────────────────────────────────────────────────

// typed is a value so that two facades over the same member compare equal.
type typed[T any] struct {
	inner *entityService
}

func (s typed[T]) Find(ctx context.Context, id string) (T, error) {
	v, err := s.inner.find(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s typed[T]) All(ctx context.Context) ([]T, error) {
	vs, err := s.inner.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(vs))
	for i, v := range vs {
		out[i] = v.(T)
	}
	return out, nil
}

func (s typed[T]) Add(ctx context.Context, entity T) (string, error) {
	return s.inner.add(ctx, entity)
}

func (s typed[T]) Update(ctx context.Context, id string, entity T) error {
	return s.inner.update(ctx, id, entity)
}

func (s typed[T]) Delete(ctx context.Context, id string) error {
	return s.inner.store.Delete(ctx, s.inner.set, id)
}

func (s typed[T]) Save(ctx context.Context) error {
	return s.inner.uow.SaveChanges(ctx)
}
