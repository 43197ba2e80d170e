package ports

import (
	"context"

	"github.com/ahrav/go-qra/internal/domain"
)

// MergeStrategy combines the states produced by the members of a parallel
// layer into one state.
type MergeStrategy interface {
	// Merge combines states produced from baseState. It must be
	// deterministic for the same inputs in the same order and must not
	// modify any input state.
	Merge(baseState domain.State, states []domain.State) (domain.State, error)
}

// Executable is anything that can run as a node of an analysis graph:
// a unit, a pipeline or a layer.
type Executable interface {
	// Execute transforms state. The input is shared and immutable; several
	// executables in one layer receive the same instance.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// ID returns the node identifier, unique within its graph.
	ID() string
}

// Pipeline runs executables in order, feeding each output to the next.
type Pipeline interface {
	Executable

	// Add appends exec. Duplicate ids are rejected.
	Add(exec Executable) error

	// Executables returns the members in execution order.
	Executables() []Executable
}

// Layer runs independent executables concurrently on the same input and
// merges their outputs.
type Layer interface {
	Executable

	// Add includes exec in the layer. Duplicate ids are rejected.
	Add(exec Executable) error

	// Executables returns the members in insertion order.
	Executables() []Executable

	// SetMergeStrategy replaces the default merge. It must be called
	// before Execute.
	SetMergeStrategy(strategy MergeStrategy)
}

// Graph is a DAG of executables connected by dependency edges.
type Graph interface {
	// AddNode registers exec. Its id must be unique in the graph.
	AddNode(exec Executable) error

	// AddEdge makes targetID depend on sourceID. Edges that would close a
	// cycle are rejected.
	AddEdge(sourceID, targetID string) error

	// TopologicalSort orders the nodes so every dependency precedes its
	// dependents. Ties are broken by id, so the order is stable.
	TopologicalSort() ([]Executable, error)

	// HasCycle reports whether the graph contains a cycle.
	HasCycle() bool

	// GetNode returns the node with the given id. The returned executable
	// is shared and must be treated as read-only.
	GetNode(id string) (Executable, bool)
}
