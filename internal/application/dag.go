package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/logging"
	"github.com/ahrav/go-qra/internal/ports"
)

// ErrMergeConflict is returned when two members of a layer write the same
// state key.
var ErrMergeConflict = errors.New("merge conflict")

// Pipeline runs its executables one after another, feeding each output
// state into the next.
type Pipeline struct {
	id          string
	executables []ports.Executable
	idSet       map[string]struct{}
	mu          sync.RWMutex
}

// NewPipeline creates an empty pipeline.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{
		id:          id,
		executables: make([]ports.Executable, 0),
		idSet:       make(map[string]struct{}),
	}
}

// Execute runs every member in order. It stops at the first failure and
// checks ctx between members.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	p.mu.RLock()
	executables := slices.Clone(p.executables)
	p.mu.RUnlock()

	current := state
	for _, exec := range executables {
		if err := ctx.Err(); err != nil {
			return current, err
		}
		next, err := exec.Execute(ctx, current)
		if err != nil {
			return current, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, exec.ID(), err)
		}
		current = next
	}
	return current, nil
}

// ID returns the pipeline id.
func (p *Pipeline) ID() string { return p.id }

// Add appends exec to the pipeline.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to pipeline")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	execID := exec.ID()
	if _, exists := p.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in pipeline", execID)
	}
	p.executables = append(p.executables, exec)
	p.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the members in execution order.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.executables)
}

// Layer runs independent executables concurrently on the same input state
// and merges their outputs. Results are merged in member id order, so the
// merged state does not depend on scheduling.
type Layer struct {
	id               string
	executables      []ports.Executable
	idSet            map[string]struct{}
	mergeStrategy    ports.MergeStrategy
	concurrencyLimit int
	mu               sync.RWMutex
}

// NewLayer creates an empty layer with the default concurrency limit of
// twice the CPU count.
func NewLayer(id string) *Layer {
	return &Layer{
		id:               id,
		executables:      make([]ports.Executable, 0),
		idSet:            make(map[string]struct{}),
		concurrencyLimit: runtime.NumCPU() * 2,
	}
}

// Execute runs all members with at most the configured number in flight.
// Every member runs to completion; failures are joined into one error and
// the input state is returned unchanged.
func (l *Layer) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	l.mu.RLock()
	executables := slices.Clone(l.executables)
	limit := l.concurrencyLimit
	strategy := l.mergeStrategy
	l.mu.RUnlock()

	if len(executables) == 0 {
		return state, nil
	}
	if limit <= 0 {
		limit = runtime.NumCPU() * 2
	}
	if strategy == nil {
		strategy = UnionMerge{}
	}

	slices.SortFunc(executables, func(a, b ports.Executable) int {
		return cmp.Compare(a.ID(), b.ID())
	})

	states := make([]domain.State, len(executables))
	errs := make([]error, len(executables))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, exec := range executables {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("executable %s: %w", exec.ID(), err)
				return nil
			}
			out, err := exec.Execute(ctx, state)
			if err != nil {
				errs[i] = fmt.Errorf("executable %s: %w", exec.ID(), err)
				return nil
			}
			states[i] = out
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return state, fmt.Errorf("layer %s: %w", l.id, err)
	}

	merged, err := strategy.Merge(state, states)
	if err != nil {
		return state, fmt.Errorf("layer %s: merge failed: %w", l.id, err)
	}
	return merged, nil
}

// ID returns the layer id.
func (l *Layer) ID() string { return l.id }

// Add includes exec in the layer.
func (l *Layer) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to layer")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	execID := exec.ID()
	if _, exists := l.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in layer", execID)
	}
	l.executables = append(l.executables, exec)
	l.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the members in insertion order.
func (l *Layer) Executables() []ports.Executable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.executables)
}

// SetMergeStrategy replaces UnionMerge.
func (l *Layer) SetMergeStrategy(strategy ports.MergeStrategy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mergeStrategy = strategy
}

// SetConcurrencyLimit caps concurrent members. Values <= 0 restore the
// default.
func (l *Layer) SetConcurrencyLimit(limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.concurrencyLimit = limit
}

// UnionMerge combines layer outputs by adding every key a member introduced
// on top of the base state. A key introduced by more than one member is an
// ErrMergeConflict. Changes to keys already in the base are ignored.
type UnionMerge struct{}

// Merge implements ports.MergeStrategy.
func (UnionMerge) Merge(base domain.State, states []domain.State) (domain.State, error) {
	baseKeys := make(map[string]struct{}, base.Len())
	for _, k := range base.Keys() {
		baseKeys[k] = struct{}{}
	}

	updates := make(map[string]any)
	for _, s := range states {
		for _, k := range s.Keys() {
			if _, ok := baseKeys[k]; ok {
				continue
			}
			if _, dup := updates[k]; dup {
				return base, fmt.Errorf("%w: key %q written by more than one member", ErrMergeConflict, k)
			}
			v, _ := s.GetRaw(k)
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		return base, nil
	}
	return base.WithMultiple(updates), nil
}

// Graph is a DAG of executables. Edges order execution; Execute runs nodes
// one at a time in topological order, breaking ties by id.
type Graph struct {
	name     string
	nodes    map[string]ports.Executable
	edges    map[string][]string
	edgeSet  map[[2]string]struct{}
	inDegree map[string]int
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]ports.Executable),
		edges:    make(map[string][]string),
		edgeSet:  make(map[[2]string]struct{}),
		inDegree: make(map[string]int),
		logger:   logging.New("graph"),
	}
}

// Name returns the graph name from its configuration metadata.
func (g *Graph) Name() string { return g.name }

// AddNode registers exec under its id.
func (g *Graph) AddNode(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to graph")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := exec.ID()
	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("node with ID %s already exists in graph", id)
	}
	g.nodes[id] = exec
	g.edges[id] = make([]string, 0)
	g.inDegree[id] = 0
	return nil
}

// AddEdge makes targetID run after sourceID. An edge that would close a
// cycle is rolled back and reported.
func (g *Graph) AddEdge(sourceID, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[sourceID]; !exists {
		return fmt.Errorf("source node %s does not exist", sourceID)
	}
	if _, exists := g.nodes[targetID]; !exists {
		return fmt.Errorf("target node %s does not exist", targetID)
	}

	edgeKey := [2]string{sourceID, targetID}
	if _, exists := g.edgeSet[edgeKey]; exists {
		return fmt.Errorf("edge from %s to %s already exists", sourceID, targetID)
	}

	g.edges[sourceID] = append(g.edges[sourceID], targetID)
	g.edgeSet[edgeKey] = struct{}{}
	g.inDegree[targetID]++

	if g.hasCycleUnsafe() {
		g.edges[sourceID] = g.edges[sourceID][:len(g.edges[sourceID])-1]
		delete(g.edgeSet, edgeKey)
		g.inDegree[targetID]--
		return fmt.Errorf("adding edge from %s to %s would create a cycle", sourceID, targetID)
	}
	return nil
}

// TopologicalSort orders nodes with Kahn's algorithm. Among ready nodes the
// smallest id goes first.
func (g *Graph) TopologicalSort() ([]ports.Executable, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	inDegree := make(map[string]int, len(g.inDegree))
	ready := make([]string, 0)
	for id, degree := range g.inDegree {
		inDegree[id] = degree
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	result := make([]ports.Executable, 0, len(g.nodes))
	for len(ready) > 0 {
		nodeID := ready[0]
		ready = ready[1:]
		result = append(result, g.nodes[nodeID])

		for _, neighbor := range g.edges[nodeID] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				pos, _ := slices.BinarySearch(ready, neighbor)
				ready = slices.Insert(ready, pos, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("graph contains a cycle")
	}
	return result, nil
}

// Execute runs every node in topological order, threading the state
// through. It checks ctx before each node.
func (g *Graph) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return state, err
	}

	current := state
	for _, node := range order {
		if err := ctx.Err(); err != nil {
			return current, err
		}
		g.logger.DebugContext(ctx, "executing node", slog.String("node", node.ID()))
		next, err := node.Execute(ctx, current)
		if err != nil {
			return current, fmt.Errorf("node %s: %w", node.ID(), err)
		}
		current = next
	}
	return current, nil
}

// HasCycle reports whether the graph contains a cycle.
func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleUnsafe()
}

// hasCycleUnsafe runs a three-color DFS. The caller holds g.mu.
func (g *Graph) hasCycleUnsafe() bool {
	const (
		white = iota
		gray
		black
	)
	colors := make(map[string]int, len(g.nodes))

	var dfs func(nodeID string) bool
	dfs = func(nodeID string) bool {
		colors[nodeID] = gray
		for _, neighbor := range g.edges[nodeID] {
			switch colors[neighbor] {
			case gray:
				return true
			case white:
				if dfs(neighbor) {
					return true
				}
			}
		}
		colors[nodeID] = black
		return false
	}

	for id := range g.nodes {
		if colors[id] == white && dfs(id) {
			return true
		}
	}
	return false
}

// GetNode returns the node with the given id.
func (g *Graph) GetNode(id string) (ports.Executable, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	exec, exists := g.nodes[id]
	return exec, exists
}

var (
	_ ports.Pipeline      = (*Pipeline)(nil)
	_ ports.Layer         = (*Layer)(nil)
	_ ports.Graph         = (*Graph)(nil)
	_ ports.MergeStrategy = UnionMerge{}
)
