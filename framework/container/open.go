package container

import (
	"fmt"
	"reflect"
	"sync"
)

// ── Open generic bindings ─────────────────────────────────────────────────────

// Family names an open generic capability such as Service[T]. One
// registration against a Family covers every type argument.
type Family struct {
	name string
}

// NewFamily returns the family with the given name. Families are compared
// by name.
func NewFamily(name string) Family { return Family{name: name} }

func (f Family) String() string { return f.name }

// Member returns the display name of the family closed over arg.
func (f Family) Member(arg reflect.Type) string {
	return fmt.Sprintf("%s[%s]", f.name, arg)
}

// Template builds the implementation of a family member for the runtime
// type argument arg. It is the type-erased half of an open generic binding;
// the typed half is a generic accessor that calls ResolveGeneric.
type Template func(arg reflect.Type, r Resolver) (any, error)

type openBinding struct {
	family   Family
	lifetime Lifetime
	template Template
	deps     []dependency

	mu      sync.Mutex
	members map[reflect.Type]*member
}

// member holds the singleton instance of one closed family member.
type member struct {
	mu       sync.Mutex
	built    bool
	instance any
}

// memberKey identifies a closed family member in scopes and chains.
type memberKey struct {
	family string
	arg    reflect.Type
}

// RegisterOpenGeneric binds every member of family to template under one
// lifetime. No per-type registration is needed afterwards.
//
//	container.RegisterOpenGeneric(c, service.Family, container.Scoped, service.Template,
//	    container.DependsOn[database.Store]())
func RegisterOpenGeneric(c *Container, family Family, lifetime Lifetime, template Template, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		panic(fmt.Sprintf("container: cannot register %s[T] after Build", family))
	}
	c.families[family.name] = &openBinding{
		family:   family,
		lifetime: lifetime,
		template: template,
		deps:     o.deps,
		members:  make(map[reflect.Type]*member),
	}
}

// BoundFamily reports whether family has an open generic binding.
func BoundFamily(c *Container, family Family) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.families[family.name]
	return ok
}

// validateFamily must hold mu.
func (c *Container) validateFamily(ob *openBinding) []error {
	var problems []error
	for _, d := range ob.deps {
		life, ok := c.lifetimeOf(d)
		if !ok {
			problems = append(problems, fmt.Errorf("%s[T]: %w", ob.family, &BindingNotFoundError{Type: d.String()}))
			continue
		}
		if ob.lifetime == Singleton && life == Scoped {
			problems = append(problems, &CaptiveDependencyError{
				Type: ob.family.String() + "[T]", Lifetime: ob.lifetime,
				Dependency: d.String(), DepLife: life,
			})
		}
	}
	return problems
}

// ResolveGeneric resolves the member of family closed over type argument A,
// synthesising it from the family's template on first use and sharing it
// according to the family's lifetime.
//
// Capability packages wrap it in a typed accessor:
//
//	func For[T any](r container.Resolver) (Service[T], error) {
//	    v, err := container.ResolveGeneric[T](r, Family)
//	    ...
//	}
func ResolveGeneric[A any](r Resolver, family Family) (any, error) {
	res := r.begin()
	return res.c.resolveMember(res, family, reflect.TypeFor[A]())
}

func (c *Container) resolveMember(r *resolution, family Family, arg reflect.Type) (any, error) {
	c.mu.RLock()
	ob, ok := c.families[family.name]
	c.mu.RUnlock()
	name := family.Member(arg)
	if !ok {
		return nil, &BindingNotFoundError{Type: name}
	}

	key := memberKey{family: family.name, arg: arg}
	next, err := r.enter(key, name)
	if err != nil {
		return nil, err
	}
	build := func(res *resolution) (any, error) {
		v, err := ob.template(arg, res)
		if err != nil {
			return nil, &ResolutionError{Type: name, Err: err}
		}
		return v, nil
	}

	switch ob.lifetime {
	case Singleton:
		m := ob.member(arg)
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.built {
			return m.instance, nil
		}
		v, err := build(next.detached())
		if err != nil {
			return nil, err
		}
		m.instance, m.built = v, true
		c.trackSingleton(v)
		return v, nil
	case Scoped:
		if next.scope == nil {
			return nil, &ScopeError{Type: name, Reason: "no request scope"}
		}
		return next.scope.instance(key, name, func() (any, error) { return build(next) })
	default:
		v, err := build(next)
		if err != nil {
			return nil, err
		}
		if next.scope != nil {
			next.scope.track(v)
		}
		return v, nil
	}
}

func (ob *openBinding) member(arg reflect.Type) *member {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	m, ok := ob.members[arg]
	if !ok {
		m = &member{}
		ob.members[arg] = m
	}
	return m
}
