// Package providers maps engine names from configuration to engine
// implementations and assembles a ready Surface.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/config"
	"github.com/openfroyo/phonebridge/pkg/engine"
	"github.com/openfroyo/phonebridge/pkg/providers/libphonenumber"
	"github.com/openfroyo/phonebridge/pkg/telemetry"
)

// Factory creates an engine from its configuration.
type Factory func(cfg config.EngineConfig) (engine.Engine, error)

// Registry holds the engine factories known to a process.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in engines.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(libphonenumber.Name, func(cfg config.EngineConfig) (engine.Engine, error) {
		return libphonenumber.New(cfg.WarmupRegions...)
	})
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" || factory == nil {
		return fmt.Errorf("engine name and factory are required")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("engine %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Names lists the registered engine names in sorted order.
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

// New creates the engine named by cfg.
func (r *Registry) New(cfg config.EngineConfig) (engine.Engine, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("engine %q not found (registered: %v)", cfg.Name, r.Names())
	}

	e, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine %s: %w", cfg.Name, err)
	}
	return e, nil
}

// Open builds telemetry, the configured engine and a surface labelled with
// abi. The caller owns the returned telemetry and shuts it down.
func (r *Registry) Open(cfg *config.Config, abi string) (*boundary.Surface, *telemetry.Telemetry, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	e, err := r.New(cfg.Engine)
	if err != nil {
		return nil, tel, err
	}

	surface, err := boundary.NewSurface(e, boundary.WithTelemetry(tel), boundary.WithABI(abi))
	if err != nil {
		return nil, tel, err
	}

	tel.Logger.WithABI(abi).WithField("engine", e.Name()).Debug("surface ready")
	return surface, tel, nil
}
