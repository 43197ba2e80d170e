package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/go-qra/infrastructure/middleware"
	"github.com/ahrav/go-qra/infrastructure/units"
	"github.com/ahrav/go-qra/internal/ports"
)

var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// DefaultUnitRegistry resolves unit types to factories. Every unit it
// creates is wrapped in middleware.InstrumentedUnit so executions are
// traced and counted.
type DefaultUnitRegistry struct {
	factories map[string]ports.UnitFactory
	metrics   ports.MetricsCollector
	mu        sync.RWMutex
}

// RegistryOption configures a DefaultUnitRegistry.
type RegistryOption func(*DefaultUnitRegistry)

// WithMetrics sets the collector passed to instrumented units.
func WithMetrics(m ports.MetricsCollector) RegistryOption {
	return func(r *DefaultUnitRegistry) { r.metrics = m }
}

// NewDefaultUnitRegistry creates a registry with every built-in analysis
// unit registered.
func NewDefaultUnitRegistry(opts ...RegistryOption) *DefaultUnitRegistry {
	r := &DefaultUnitRegistry{
		factories: make(map[string]ports.UnitFactory),
		metrics:   ports.NopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.factories[units.TypePayloadDecoder] = units.NewPayloadDecoderFromConfig
	r.factories[units.TypeQualityFilter] = units.NewQualityFilterFromConfig
	r.factories[units.TypeScoreAggregator] = units.NewScoreAggregatorFromConfig
	r.factories[units.TypeAgreement] = units.NewAgreementFromConfig
	r.factories[units.TypeReproducibility] = units.NewReproducibilityFromConfig
	r.factories[units.TypeDatasetUsage] = units.NewDatasetUsageFromConfig
	return r
}

// CreateUnit instantiates a unit of unitType.
func (r *DefaultUnitRegistry) CreateUnit(unitType string, id string, config map[string]any) (ports.Unit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	metrics := r.metrics
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported unit type: %s", unitType)
	}
	if id == "" {
		return nil, fmt.Errorf("unit ID cannot be empty")
	}
	if config == nil {
		config = make(map[string]any)
	}

	unit, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}
	return middleware.NewInstrumentedUnit(unit, unitType, metrics), nil
}

// RegisterUnitFactory adds or replaces the factory for unitType.
func (r *DefaultUnitRegistry) RegisterUnitFactory(unitType string, factory ports.UnitFactory) error {
	if unitType == "" {
		return fmt.Errorf("unit type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[unitType] = factory
	return nil
}

// GetSupportedTypes returns the registered types in sorted order.
func (r *DefaultUnitRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for unitType := range r.factories {
		types = append(types, unitType)
	}
	slices.Sort(types)
	return types
}
