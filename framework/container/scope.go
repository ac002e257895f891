package container

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Scope owns the scoped instances of one inbound request. It is created by
// the pipeline when a request arrives and closed when the response is done.
type Scope struct {
	root *Container
	ctx  context.Context

	mu        sync.Mutex
	instances map[any]any
	closers   []io.Closer
	closed    bool
}

// NewScope opens a request scope. ctx is handed to factories through
// Resolver.Context.
func (c *Container) NewScope(ctx context.Context) *Scope {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Scope{root: c, ctx: ctx, instances: make(map[any]any)}
}

// Context returns the context the scope was opened with.
func (s *Scope) Context() context.Context { return s.ctx }

// Container returns the root container.
func (s *Scope) Container() *Container { return s.root }

func (s *Scope) begin() *resolution {
	return &resolution{c: s.root, scope: s, ctx: s.ctx}
}

func (s *Scope) instance(key any, name string, build func() (any, error)) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &ScopeError{Type: name, Reason: "scope closed"}
	}
	if v, ok := s.instances[key]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	// Built unlocked: the factory may resolve other scoped capabilities.
	v, err := build()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.instances[key]; ok {
		if closer, ok := v.(io.Closer); ok {
			_ = closer.Close()
		}
		return existing, nil
	}
	s.instances[key] = v
	if closer, ok := v.(io.Closer); ok {
		s.closers = append(s.closers, closer)
	}
	return v, nil
}

// track registers a transient built inside the scope for disposal.
func (s *Scope) track(v any) {
	closer, ok := v.(io.Closer)
	if !ok {
		return
	}
	s.mu.Lock()
	s.closers = append(s.closers, closer)
	s.mu.Unlock()
}

// Close disposes every instance the scope built, newest first. Close is
// idempotent.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.instances = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ── Request context ───────────────────────────────────────────────────────────

type scopeKey struct{}

// WithScope returns a copy of ctx carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope carried by ctx.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}
