// Package container is the binding registry of the composition root.
//
// # Overview
//
// Capabilities (usually interfaces) are bound to implementations with a
// lifetime. Bindings are keyed by the capability's type, so resolution is
// checked by the compiler at the call site and by Build at startup.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Register providers: registry.Register(&MyProvider{})
//  3. Boot: registry.Boot(): calls c.Build(), which validates and seals
//  4. Serve requests, one Scope per request
//
// # Lifetimes
//
//	// One instance for the process
//	container.Register(c, container.Singleton, func(r container.Resolver) (*config.Config, error) { ... })
//
//	// One instance per request scope
//	container.Bind[UnitOfWork](c, container.Scoped, NewDataContext)
//
//	// A new instance every resolution
//	container.Register(c, container.Transient, NewMailer)
//
// # Aliases
//
// One implementation may serve several contracts:
//
//	container.Register(c, container.Scoped, database.NewDataContext)
//	container.Alias[database.UnitOfWork, *database.DataContext](c)
//	container.Alias[database.Store, *database.DataContext](c)
//
// Both aliases resolve to the same *DataContext within a request.
//
// # Open generics
//
// A Family covers Capability[T] for every T with one registration. The
// template is type-erased and receives the type argument at resolve time;
// the capability package supplies the typed accessor, which the compiler
// instantiates for each T it is called with:
//
//	container.RegisterOpenGeneric(c, service.Family, container.Scoped, service.Template)
//	svc, err := service.For[models.Note](scope)
//
// # Failing fast
//
// Declare what a binding resolves with DependsOn / DependsOnFamily. Build
// reports missing bindings, captive dependencies (a singleton holding a
// scoped instance) and singleton construction failures together as a
// *CompositionError before any request is served.
package container
