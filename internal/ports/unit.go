// Package ports defines the contracts between the application layer and
// the infrastructure that implements analysis units and metrics.
package ports

import (
	"context"

	"github.com/ahrav/go-qra/internal/domain"
)

// Unit is one analysis stage. It reads its inputs from the State and
// returns a new State carrying its outputs.
// Units hold no per-run state and may run concurrently inside a layer.
type Unit interface {
	// Name returns the unit's identifier within its graph.
	Name() string

	// Execute runs the stage. The input State must not be modified;
	// outputs are added with domain.With and returned. A unit whose input
	// keys are absent returns an error wrapping domain.ErrInvalidState.
	//
	// Example:
	//
	//	next, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return state, fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks the unit's configuration before it is placed in a graph.
	Validate() error
}

// UnitFactory creates a unit from its id and decoded YAML parameters.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry resolves unit types named in graph configuration.
type UnitRegistry interface {
	// CreateUnit instantiates a unit of the given type.
	CreateUnit(unitType string, id string, config map[string]any) (Unit, error)

	// RegisterUnitFactory adds or replaces the factory for a type.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// GetSupportedTypes lists the registered types in sorted order.
	GetSupportedTypes() []string
}
