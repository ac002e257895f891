package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
)

// ── Lifetimes ─────────────────────────────────────────────────────────────────

// Lifetime controls how long a resolved instance is shared.
type Lifetime int

const (
	// Transient builds a fresh instance on every resolution.
	Transient Lifetime = iota
	// Scoped shares one instance per Scope (one inbound request).
	Scoped
	// Singleton shares one instance for the life of the process.
	Singleton
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Scoped:
		return "scoped"
	case Singleton:
		return "singleton"
	}
	return fmt.Sprintf("lifetime(%d)", int(l))
}

// ── Binding types ─────────────────────────────────────────────────────────────

// Factory builds a concrete value. r resolves the factory's own dependencies
// and carries the context of the resolution.
type Factory func(r Resolver) (any, error)

// binding is one capability → implementation entry.
type binding struct {
	key      reflect.Type
	lifetime Lifetime
	factory  Factory
	aliasOf  reflect.Type
	deps     []dependency

	// singleton state
	mu       sync.Mutex
	built    bool
	instance any
}

func (b *binding) build(r *resolution) (any, error) {
	v, err := b.factory(r)
	if err != nil {
		return nil, &ResolutionError{Type: b.key.String(), Err: err}
	}
	return v, nil
}

// dependency is a declared requirement checked by Build.
type dependency struct {
	key    reflect.Type
	family *Family
}

func (d dependency) String() string {
	if d.family != nil {
		return d.family.String() + "[T]"
	}
	return d.key.String()
}

// Option tunes a registration.
type Option func(*options)

type options struct {
	deps []dependency
}

// DependsOn declares that the binding resolves T. Build fails fast when T is
// not bound, or when T lives shorter than the binding.
func DependsOn[T any]() Option {
	return func(o *options) {
		o.deps = append(o.deps, dependency{key: reflect.TypeFor[T]()})
	}
}

// DependsOnFamily declares that the binding resolves members of an open
// generic family.
func DependsOnFamily(f Family) Option {
	return func(o *options) {
		o.deps = append(o.deps, dependency{family: &f})
	}
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the binding registry. It is mutable during composition and
// sealed by Build; after Build it is safe for concurrent resolution.
type Container struct {
	mu sync.RWMutex

	// capability → binding
	bindings map[reflect.Type]*binding

	// family name → open generic binding
	families map[string]*openBinding

	// registration order, used for deterministic validation and eager boot
	order []reflect.Type

	// problems recorded during registration, reported by Build
	problems []error

	sealed bool

	// singletons that implement io.Closer, in construction order
	closeMu sync.Mutex
	closers []io.Closer
}

// New creates an empty container.
func New() *Container {
	return &Container{
		bindings: make(map[reflect.Type]*binding),
		families: make(map[string]*openBinding),
	}
}

// ── Registration ──────────────────────────────────────────────────────────────

// Register binds capability C to factory under the given lifetime.
//
//	container.Register(c, container.Singleton, func(r container.Resolver) (*config.Config, error) {
//	    return config.Load()
//	})
func Register[C any](c *Container, lifetime Lifetime, factory func(r Resolver) (C, error), opts ...Option) {
	c.add(&binding{
		key:      reflect.TypeFor[C](),
		lifetime: lifetime,
		factory:  func(r Resolver) (any, error) { return factory(r) },
	}, opts)
}

// Bind binds capability C to implementation I. I must be assignable to C;
// a mismatch is recorded as a composition error.
//
//	container.Bind[repositories.UploadedFiles](c, container.Scoped, repositories.NewUploadedFiles)
func Bind[C, I any](c *Container, lifetime Lifetime, ctor func(r Resolver) (I, error), opts ...Option) {
	capability, impl := reflect.TypeFor[C](), reflect.TypeFor[I]()
	if !impl.AssignableTo(capability) {
		c.fail(&TypeMismatchError{Expected: capability.String(), Got: impl.String()})
		return
	}
	c.add(&binding{
		key:      capability,
		lifetime: lifetime,
		factory: func(r Resolver) (any, error) {
			v, err := ctor(r)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}, opts)
}

// Instance registers a pre-built value as a singleton.
func Instance[C any](c *Container, value C) {
	c.add(&binding{
		key:      reflect.TypeFor[C](),
		lifetime: Singleton,
		factory:  func(Resolver) (any, error) { return value, nil },
		built:    true,
		instance: value,
	}, nil)
}

// Alias makes capability C resolve to exactly the instance Target resolves
// to, under Target's lifetime. One implementation can serve several
// contracts this way.
//
//	container.Register(c, container.Scoped, database.NewDataContext)
//	container.Alias[database.UnitOfWork, *database.DataContext](c)
//	container.Alias[database.Store, *database.DataContext](c)
func Alias[C, Target any](c *Container) {
	capability, target := reflect.TypeFor[C](), reflect.TypeFor[Target]()
	if capability == target {
		c.fail(fmt.Errorf("%w: %s is aliased to itself", ErrComposition, capability))
		return
	}
	if !target.AssignableTo(capability) {
		c.fail(&TypeMismatchError{Expected: capability.String(), Got: target.String()})
		return
	}
	c.add(&binding{key: capability, aliasOf: target}, nil)
}

func (c *Container) add(b *binding, opts []Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b.deps = o.deps

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		panic(fmt.Sprintf("container: cannot register %s after Build", b.key))
	}
	if _, exists := c.bindings[b.key]; !exists {
		c.order = append(c.order, b.key)
	}
	// Last registration wins, as with repeated service registrations.
	c.bindings[b.key] = b
}

func (c *Container) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.problems = append(c.problems, err)
}

// ── Build ─────────────────────────────────────────────────────────────────────

// Build validates every registration, seals the container and constructs
// all singletons. It returns a *CompositionError listing every problem; the
// caller must not serve requests when it does.
//
// Build is the barrier between composition and request handling: nothing
// can be registered afterwards and the tables are only read.
func (c *Container) Build() error {
	c.mu.Lock()
	if c.sealed {
		c.mu.Unlock()
		return nil
	}
	problems := append([]error(nil), c.problems...)
	for _, key := range c.order {
		problems = append(problems, c.validate(c.bindings[key])...)
	}
	for _, name := range c.familyNames() {
		problems = append(problems, c.validateFamily(c.families[name])...)
	}
	c.sealed = true
	c.mu.Unlock()

	if len(problems) == 0 {
		root := c.begin()
		for _, key := range c.order {
			b := c.bindings[key]
			if b.aliasOf != nil || b.lifetime != Singleton {
				continue
			}
			if _, err := c.resolve(root, key); err != nil {
				problems = append(problems, err)
			}
		}
	}

	if len(problems) > 0 {
		return &CompositionError{Problems: problems}
	}
	return nil
}

// validate must hold mu.
func (c *Container) validate(b *binding) []error {
	var problems []error
	if b.aliasOf != nil {
		if _, ok := c.bindings[b.aliasOf]; !ok {
			problems = append(problems, fmt.Errorf("alias %s: %w", b.key, &BindingNotFoundError{Type: b.aliasOf.String()}))
		}
		return problems
	}
	for _, d := range b.deps {
		life, ok := c.lifetimeOf(d)
		if !ok {
			problems = append(problems, fmt.Errorf("%s: %w", b.key, &BindingNotFoundError{Type: d.String()}))
			continue
		}
		if b.lifetime == Singleton && life == Scoped {
			problems = append(problems, &CaptiveDependencyError{
				Type: b.key.String(), Lifetime: b.lifetime,
				Dependency: d.String(), DepLife: life,
			})
		}
	}
	return problems
}

// lifetimeOf follows aliases to the effective lifetime of a dependency.
// It must hold mu.
func (c *Container) lifetimeOf(d dependency) (Lifetime, bool) {
	if d.family != nil {
		ob, ok := c.families[d.family.name]
		if !ok {
			return 0, false
		}
		return ob.lifetime, true
	}
	key := d.key
	for hops := 0; hops <= len(c.bindings); hops++ {
		b, ok := c.bindings[key]
		if !ok {
			return 0, false
		}
		if b.aliasOf == nil {
			return b.lifetime, true
		}
		key = b.aliasOf
	}
	return 0, false
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Resolver is anything capabilities can be resolved from: the root
// *Container, a request *Scope, or the resolver handed to a factory.
type Resolver interface {
	// Context returns the context the resolution runs under.
	Context() context.Context

	begin() *resolution
}

// resolution tracks one resolution chain for cycle detection.
type resolution struct {
	c     *Container
	scope *Scope
	ctx   context.Context
	chain []any
	names []string
}

func (r *resolution) Context() context.Context { return r.ctx }
func (r *resolution) begin() *resolution       { return r }

func (r *resolution) enter(key any, name string) (*resolution, error) {
	for _, k := range r.chain {
		if k == key {
			return nil, &CircularDependencyError{Chain: append(append([]string(nil), r.names...), name)}
		}
	}
	next := *r
	next.chain = append(append(make([]any, 0, len(r.chain)+1), r.chain...), key)
	next.names = append(append(make([]string, 0, len(r.names)+1), r.names...), name)
	return &next, nil
}

// detached drops the request scope so singletons can never capture
// per-request instances.
func (r *resolution) detached() *resolution {
	next := *r
	next.scope = nil
	return &next
}

// Context returns context.Background; the root container is not bound to a
// request.
func (c *Container) Context() context.Context { return context.Background() }

func (c *Container) begin() *resolution {
	return &resolution{c: c, ctx: context.Background()}
}

func (c *Container) lookup(key reflect.Type) *binding {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bindings[key]
}

func (c *Container) resolve(r *resolution, key reflect.Type) (any, error) {
	b := c.lookup(key)
	if b == nil {
		return nil, &BindingNotFoundError{Type: key.String()}
	}
	next, err := r.enter(key, key.String())
	if err != nil {
		return nil, err
	}
	if b.aliasOf != nil {
		return c.resolve(next, b.aliasOf)
	}

	switch b.lifetime {
	case Singleton:
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.built {
			return b.instance, nil
		}
		v, err := b.build(next.detached())
		if err != nil {
			return nil, err
		}
		b.instance, b.built = v, true
		c.trackSingleton(v)
		return v, nil
	case Scoped:
		if next.scope == nil {
			return nil, &ScopeError{Type: key.String(), Reason: "no request scope"}
		}
		return next.scope.instance(key, key.String(), func() (any, error) { return b.build(next) })
	default:
		v, err := b.build(next)
		if err != nil {
			return nil, err
		}
		if next.scope != nil {
			next.scope.track(v)
		}
		return v, nil
	}
}

func (c *Container) trackSingleton(v any) {
	if closer, ok := v.(io.Closer); ok {
		c.closeMu.Lock()
		c.closers = append(c.closers, closer)
		c.closeMu.Unlock()
	}
}

// Resolve resolves capability C from r.
//
//	uow, err := container.Resolve[database.UnitOfWork](scope)
func Resolve[C any](r Resolver) (C, error) {
	var zero C
	res := r.begin()
	key := reflect.TypeFor[C]()
	v, err := res.c.resolve(res, key)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(C)
	if !ok {
		return zero, &TypeMismatchError{Expected: key.String(), Got: fmt.Sprintf("%T", v)}
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error. Use it only where a
// failure is a programming error, e.g. after Build validated the binding.
func MustResolve[C any](r Resolver) C {
	v, err := Resolve[C](r)
	if err != nil {
		panic(fmt.Sprintf("container: %v", err))
	}
	return v
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound reports whether capability C has a binding.
func Bound[C any](c *Container) bool {
	return c.lookup(reflect.TypeFor[C]()) != nil
}

// Sealed reports whether Build has run.
func (c *Container) Sealed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sealed
}

// Bindings returns every registered capability and family with its
// lifetime, sorted (for diagnostics).
func (c *Container) Bindings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings)+len(c.families))
	for key, b := range c.bindings {
		if b.aliasOf != nil {
			out = append(out, fmt.Sprintf("%s => %s", key, b.aliasOf))
			continue
		}
		out = append(out, fmt.Sprintf("%s (%s)", key, b.lifetime))
	}
	for name, ob := range c.families {
		out = append(out, fmt.Sprintf("%s[T] (%s)", name, ob.lifetime))
	}
	sort.Strings(out)
	return out
}

// Close closes every constructed singleton implementing io.Closer, in
// reverse construction order.
func (c *Container) Close() error {
	c.closeMu.Lock()
	closers := c.closers
	c.closers = nil
	c.closeMu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Container) familyNames() []string {
	names := make([]string, 0, len(c.families))
	for name := range c.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
