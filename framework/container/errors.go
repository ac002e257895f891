package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotBound is matched by every error reporting a capability that has
	// no binding.
	ErrNotBound = errors.New("container: capability not bound")

	// ErrScope is matched when a scoped capability is resolved without a
	// request scope, or from a scope that is already closed.
	ErrScope = errors.New("container: no active scope")

	// ErrComposition is matched by every error produced while the container
	// is being composed or sealed.
	ErrComposition = errors.New("container: composition failed")
)

// BindingNotFoundError reports a capability with no binding.
type BindingNotFoundError struct {
	Type string
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("no binding registered for %s", e.Type)
}

func (e *BindingNotFoundError) Is(target error) bool { return target == ErrNotBound }

// CircularDependencyError reports a resolution chain that loops back on itself.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Chain, " -> "))
}

// ScopeError reports a scoped capability resolved from the root container
// or from a closed scope.
type ScopeError struct {
	Type   string
	Reason string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("cannot resolve scoped %s: %s", e.Type, e.Reason)
}

func (e *ScopeError) Is(target error) bool { return target == ErrScope }

// TypeMismatchError reports an implementation that does not satisfy the
// capability it was bound to, or a resolved value of an unexpected type.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// CaptiveDependencyError reports a longer-lived binding that depends on a
// shorter-lived one, e.g. a singleton holding a per-request instance.
type CaptiveDependencyError struct {
	Type       string
	Lifetime   Lifetime
	Dependency string
	DepLife    Lifetime
}

func (e *CaptiveDependencyError) Error() string {
	return fmt.Sprintf("%s %s depends on %s %s", e.Lifetime, e.Type, e.DepLife, e.Dependency)
}

// ResolutionError wraps a failure returned by a factory.
type ResolutionError struct {
	Type string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Type, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// CompositionError aggregates every problem found while composing the
// container. A process receiving one must not start serving.
type CompositionError struct {
	Problems []error
}

func (e *CompositionError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("composition failed (%d problem(s)): %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *CompositionError) Unwrap() []error { return e.Problems }

func (e *CompositionError) Is(target error) bool { return target == ErrComposition }
