package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-qra/internal/ports"
)

// GraphLoader parses, validates and compiles analysis graph YAML.
//
// Compiled graphs are cached under the SHA-256 of the re-encoded
// configuration, so two files that differ only in layout share one graph.
// Returned graphs are shared between callers and must not be mutated.
type GraphLoader struct {
	validator    *validator.Validate
	unitRegistry ports.UnitRegistry

	mu     sync.RWMutex
	graphs map[string]*Graph
	flight singleflight.Group
}

// NewGraphLoader creates a loader with an empty cache.
func NewGraphLoader(unitRegistry ports.UnitRegistry) (*GraphLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &GraphLoader{
		validator:    v,
		unitRegistry: unitRegistry,
		graphs:       make(map[string]*Graph),
	}, nil
}

// LoadFromFile compiles the graph stored at path.
func (gl *GraphLoader) LoadFromFile(ctx context.Context, path string) (*Graph, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return gl.load(ctx, data)
}

// LoadFromReader compiles the graph read from r.
func (gl *GraphLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return gl.load(ctx, data)
}

// ClearCache drops every compiled graph.
func (gl *GraphLoader) ClearCache() {
	gl.mu.Lock()
	gl.graphs = make(map[string]*Graph)
	gl.mu.Unlock()
}

// load validates and compiles data once per distinct configuration;
// concurrent callers with the same configuration wait for one compile.
func (gl *GraphLoader) load(ctx context.Context, data []byte) (*Graph, error) {
	config, err := gl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	key, err := configKey(config)
	if err != nil {
		return nil, err
	}

	v, err, _ := gl.flight.Do(key, func() (any, error) {
		if g, ok := gl.lookup(key); ok {
			return g, nil
		}
		if err := gl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		g, err := gl.buildGraph(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to build graph: %w", err)
		}
		gl.mu.Lock()
		gl.graphs[key] = g
		gl.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Graph), nil
}

func (gl *GraphLoader) lookup(key string) (*Graph, bool) {
	gl.mu.RLock()
	defer gl.mu.RUnlock()
	g, ok := gl.graphs[key]
	return g, ok
}

// configKey hashes the canonical YAML encoding of config.
func configKey(config *GraphConfig) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// parseYAML decodes data strictly: unknown fields are errors.
func (gl *GraphLoader) parseYAML(data []byte) (*GraphConfig, error) {
	var config GraphConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

func (gl *GraphLoader) validateConfig(config *GraphConfig) error {
	if err := gl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// group is a pipeline or layer as seen by validation and compilation.
type group struct {
	kind  string
	id    string
	units []string
}

func groups(config *GraphConfig) []group {
	out := make([]group, 0, len(config.Graph.Pipelines)+len(config.Graph.Layers))
	for _, p := range config.Graph.Pipelines {
		out = append(out, group{kind: "pipeline", id: p.ID, units: p.Units})
	}
	for _, l := range config.Graph.Layers {
		out = append(out, group{kind: "layer", id: l.ID, units: l.Units})
	}
	return out
}

// validateSemantics checks what struct tags cannot: ids are unique across
// units, pipelines and layers; every unit is placed at most once; edges
// connect existing top-level nodes; unit parameters fit their schema.
func validateSemantics(config *GraphConfig) error {
	kinds := make(map[string]string)
	claim := func(id, kind string) error {
		if prev, dup := kinds[id]; dup {
			return fmt.Errorf("duplicate ID %q: already used by %s", id, prev)
		}
		kinds[id] = kind
		return nil
	}

	for _, u := range config.Units {
		if err := claim(u.ID, "unit"); err != nil {
			return err
		}
		if err := ValidateUnitParameters(u.Type, u.Parameters); err != nil {
			return fmt.Errorf("unit %s parameter validation failed: %w", u.ID, err)
		}
	}

	owner := make(map[string]string)
	for _, g := range groups(config) {
		if err := claim(g.id, g.kind); err != nil {
			return err
		}
		for _, id := range g.units {
			if kinds[id] != "unit" {
				return fmt.Errorf("%s %s references non-existent unit: %s", g.kind, g.id, id)
			}
			if prev, placed := owner[id]; placed {
				return fmt.Errorf("unit %s is placed in both %s and %s", id, prev, g.id)
			}
			owner[id] = g.id
		}
	}

	for _, e := range config.Graph.Edges {
		if _, ok := kinds[e.From]; !ok {
			return fmt.Errorf("edge references non-existent source node: %s", e.From)
		}
		if _, ok := kinds[e.To]; !ok {
			return fmt.Errorf("edge references non-existent target node: %s", e.To)
		}
		for _, end := range [2]string{e.From, e.To} {
			if g, placed := owner[end]; placed {
				return fmt.Errorf("edge references unit %s inside %s; connect %s instead", end, g, g)
			}
		}
	}
	return nil
}

// buildGraph compiles a validated configuration. Grouped units run inside
// their pipeline or layer; the rest become standalone nodes in
// declaration order.
func (gl *GraphLoader) buildGraph(ctx context.Context, config *GraphConfig) (*Graph, error) {
	graph := NewGraph()
	graph.name = config.Metadata.Name

	adapters := make(map[string]*UnitAdapter, len(config.Units))
	for _, uc := range config.Units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unit, err := gl.createUnit(uc)
		if err != nil {
			return nil, fmt.Errorf("failed to create unit %s: %w", uc.ID, err)
		}
		timeout := time.Duration(uc.Timeout.ExecutionTimeout) * time.Second
		adapters[uc.ID] = NewUnitAdapter(unit, uc.ID, timeout)
	}

	limits := make(map[string]int, len(config.Graph.Layers))
	for _, l := range config.Graph.Layers {
		limits[l.ID] = l.MaxConcurrency
	}

	placed := make(map[string]struct{})
	for _, g := range groups(config) {
		var (
			node ports.Executable
			add  func(ports.Executable) error
		)
		if g.kind == "pipeline" {
			p := NewPipeline(g.id)
			node, add = p, p.Add
		} else {
			l := NewLayer(g.id)
			if n := limits[g.id]; n > 0 {
				l.SetConcurrencyLimit(n)
			}
			node, add = l, l.Add
		}

		for _, id := range g.units {
			a, ok := adapters[id]
			if !ok {
				return nil, fmt.Errorf("unit %s not found for %s %s", id, g.kind, g.id)
			}
			if err := add(a); err != nil {
				return nil, fmt.Errorf("failed to add unit to %s: %w", g.kind, err)
			}
			placed[id] = struct{}{}
		}
		if err := graph.AddNode(node); err != nil {
			return nil, fmt.Errorf("failed to add %s to graph: %w", g.kind, err)
		}
	}

	for _, uc := range config.Units {
		if _, ok := placed[uc.ID]; ok {
			continue
		}
		if err := graph.AddNode(adapters[uc.ID]); err != nil {
			return nil, fmt.Errorf("failed to add unit to graph: %w", err)
		}
	}

	for _, e := range config.Graph.Edges {
		if err := graph.AddEdge(e.From, e.To); err != nil {
			return nil, fmt.Errorf("failed to add edge: %w", err)
		}
	}
	if graph.HasCycle() {
		return nil, fmt.Errorf("graph contains cycles")
	}
	return graph, nil
}

// createUnit decodes a unit's parameters and hands them to the registry.
func (gl *GraphLoader) createUnit(config UnitConfig) (ports.Unit, error) {
	var params map[string]any
	if config.Parameters.Kind != 0 {
		if err := config.Parameters.Decode(&params); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	unit, err := gl.unitRegistry.CreateUnit(config.Type, config.ID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit: %w", err)
	}
	return unit, nil
}
