// Package pipeline assembles the ordered request pipeline: each stage wraps
// everything after it, and the dispatch stage ends the chain.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrInvalidPipeline is returned by Build for a malformed stage list.
var ErrInvalidPipeline = errors.New("pipeline: invalid")

// Stage names, in the order Standard adds them.
const (
	StageStatic              = "static"
	StageLogging             = "logging"
	StageDeveloperExceptions = "developer-exception-page"
	StageSwagger             = "swagger"
	StageAuthentication      = "authentication"
	StageDispatch            = "dispatch"
)

// Stage is one pipeline step. Exactly one of Middleware and Handler is set;
// a stage with a Handler is terminal.
type Stage struct {
	Name       string
	Middleware func(http.Handler) http.Handler
	Handler    http.Handler
}

// Builder collects stages in order. It is used once, at startup.
type Builder struct {
	stages []Stage
	logger *slog.Logger
}

// New returns an empty Builder. Panics that escape every stage are logged
// to logger and answered with an opaque 500.
func New(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Use appends a wrapping stage.
func (b *Builder) Use(name string, mw func(http.Handler) http.Handler) *Builder {
	b.stages = append(b.stages, Stage{Name: name, Middleware: mw})
	return b
}

// Run appends the terminal stage.
func (b *Builder) Run(name string, h http.Handler) *Builder {
	b.stages = append(b.stages, Stage{Name: name, Handler: h})
	return b
}

// Stages returns the stage names in order.
func (b *Builder) Stages() []string {
	names := make([]string, len(b.stages))
	for i, s := range b.stages {
		names[i] = s.Name
	}
	return names
}

// Build validates the stage list and composes it into one handler. The
// last stage must be the only terminal one and names must be unique.
func (b *Builder) Build() (http.Handler, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	last := len(b.stages) - 1
	h := b.stages[last].Handler
	for i := last - 1; i >= 0; i-- {
		h = b.stages[i].Middleware(h)
	}
	return Recover(b.logger)(h), nil
}

func (b *Builder) validate() error {
	if len(b.stages) == 0 {
		return fmt.Errorf("%w: no stages", ErrInvalidPipeline)
	}
	seen := make(map[string]bool, len(b.stages))
	last := len(b.stages) - 1
	for i, s := range b.stages {
		switch {
		case s.Name == "":
			return fmt.Errorf("%w: stage %d has no name", ErrInvalidPipeline, i)
		case seen[s.Name]:
			return fmt.Errorf("%w: duplicate stage %q", ErrInvalidPipeline, s.Name)
		case i == last && s.Handler == nil:
			return fmt.Errorf("%w: last stage %q is not terminal", ErrInvalidPipeline, s.Name)
		case i < last && s.Handler != nil:
			return fmt.Errorf("%w: terminal stage %q is not last", ErrInvalidPipeline, s.Name)
		case i < last && s.Middleware == nil:
			return fmt.Errorf("%w: stage %q has no middleware", ErrInvalidPipeline, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
