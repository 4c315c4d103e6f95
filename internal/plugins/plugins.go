// Package plugins provides the capability registry for modules and
// processors. Catalog entries in a settings document name their
// implementation; names resolve against factories registered here at
// startup. There is no runtime code loading: an assignment naming an
// unregistered capability is a configuration fault.
package plugins

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/settings"
)

// RunContext carries the per-invocation inputs a capability receives.
type RunContext struct {
	// Project is the project the capability runs against.
	Project string

	// SettingsPath is the materialized settings document driving this
	// cycle.
	SettingsPath string

	// HostURL is the data host from the document's general attributes.
	HostURL string
}

// Capability is one module or processor implementation. Configure is
// called once with the catalog entry's arguments before any Run.
type Capability interface {
	Configure(args map[string]string) error
	Run(ctx context.Context, rc RunContext) error
}

// Factory creates a fresh, unconfigured capability instance.
type Factory func() Capability

// Registry maps catalog names to capability factories. Safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry. Capability packages
// register their factories against it from init or from command
// startup; the in-process runner resolves against it.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a factory under a catalog name. Names are unique;
// registering a duplicate is an error.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("capability %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Has reports whether a name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configured is a capability instantiated and configured from one
// catalog entry.
type Configured struct {
	Name       string
	Capability Capability
}

// Bundle is the full set of configured capabilities for one project's
// assignment.
type Bundle struct {
	Modules    []Configured
	Processors []Configured
}

// Resolve instantiates and configures the capabilities a project's
// assignment names, using the entries of the settings document for
// arguments. Order follows the assignment lists.
func (r *Registry) Resolve(doc *settings.Document, project string) (*Bundle, error) {
	var assignment *settings.Assignment
	for i := range doc.Projects {
		if doc.Projects[i].Project == project {
			assignment = &doc.Projects[i]
			break
		}
	}
	if assignment == nil {
		return nil, faults.Configuration("project %q not present in settings document", project)
	}

	modules, err := r.resolveList(settings.Names(assignment.Modules), doc.ModuleByName, "module")
	if err != nil {
		return nil, err
	}
	processors, err := r.resolveList(settings.Names(assignment.Processors), doc.ProcessorByName, "processor")
	if err != nil {
		return nil, err
	}

	return &Bundle{Modules: modules, Processors: processors}, nil
}

func (r *Registry) resolveList(
	names []string,
	lookup func(string) *settings.Entry,
	kind string,
) ([]Configured, error) {
	configured := make([]Configured, 0, len(names))
	for _, name := range names {
		entry := lookup(name)
		if entry == nil {
			return nil, faults.Configuration("%s %q assigned but not defined in document", kind, name)
		}

		r.mu.RLock()
		factory, exists := r.factories[name]
		r.mu.RUnlock()
		if !exists {
			return nil, faults.Configuration("%s %q has no registered implementation", kind, name)
		}

		capability := factory()
		if err := capability.Configure(entry.Arguments); err != nil {
			return nil, faults.Wrap(faults.KindConfiguration, err, "failed to configure %s %q", kind, name)
		}
		configured = append(configured, Configured{Name: name, Capability: capability})
	}
	return configured, nil
}
