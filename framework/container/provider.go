package container

import "fmt"

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups related registrations.
//
// Register only binds; it must not resolve anything. Boot runs after every
// provider has registered and the container has been built, so it may
// resolve any binding.
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) {
//	    container.Bind[repositories.UploadedFiles](app, container.Scoped, repositories.NewUploadedFiles,
//	        container.DependsOn[database.Store]())
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	Register(app *Container)

	// Boot is called after all providers are registered and the container
	// is sealed. A non-nil error aborts startup.
	Boot(app *Container) error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable no-op Boot.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers providers in order and boots them once the
// container is built.
type ProviderRegistry struct {
	app        *Container
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register method. Registering the
// same provider twice is a no-op. Registering after Boot panics, since the
// container is sealed by then.
func (r *ProviderRegistry) Register(provider ServiceProvider) {
	if r.registered[provider] {
		return
	}
	if r.booted {
		panic(fmt.Sprintf("container: provider %T registered after Boot", provider))
	}
	r.registered[provider] = true
	provider.Register(r.app)
	r.providers = append(r.providers, provider)
}

// Boot builds the container, then calls Boot on every provider in
// registration order. It returns a *CompositionError on the first failing
// phase. Later calls are no-ops.
func (r *ProviderRegistry) Boot() error {
	if r.booted {
		return nil
	}
	r.booted = true

	if err := r.app.Build(); err != nil {
		return err
	}
	var problems []error
	for _, provider := range r.providers {
		if err := provider.Boot(r.app); err != nil {
			problems = append(problems, fmt.Errorf("booting %T: %w", provider, err))
		}
	}
	if len(problems) > 0 {
		return &CompositionError{Problems: problems}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered providers in order.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.providers }
