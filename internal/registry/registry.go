package registry

import (
	"fmt"
	"log/slog"
	"sort"
)

// Module is the interface that all runner modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered runners for a single application instance.
type Registry struct {
	Runners map[string]*RegisteredRunner
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		Runners: make(map[string]*RegisteredRunner),
	}
}

// Register adds every module's runners to the registry.
func (r *Registry) Register(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
}

// Lookup returns the runner registered for a runner type.
func (r *Registry) Lookup(runnerType string) (*RegisteredRunner, bool) {
	h, ok := r.Runners[runnerType]
	return h, ok
}

// Names returns the registered runner types, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Runners))
	for name := range r.Runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterRunner registers a Go function as the implementation of a runner
// type. It panics on duplicate names or a malformed handler, both of which
// are programming errors.
func (r *Registry) RegisterRunner(name string, handler *RegisteredRunner) {
	if _, exists := r.Runners[name]; exists {
		panic(fmt.Sprintf("runner handler with name '%s' already registered", name))
	}
	if err := handler.prepare(); err != nil {
		panic(fmt.Sprintf("runner handler '%s': %v", name, err))
	}
	slog.Debug("Registering runner handler.", "name", name, "input", handler.InputType.String())
	r.Runners[name] = handler
}
