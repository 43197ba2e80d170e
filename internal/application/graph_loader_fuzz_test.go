package application

import (
	"context"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// FuzzGraphLoader_ParseYAML feeds arbitrary documents through parsing and
// full loading. Neither may panic, whatever the input.
func FuzzGraphLoader_ParseYAML(f *testing.F) {
	testcases := []string{
		string(DefaultGraphYAML()),
		`version: "1.0.0"
metadata:
  name: "test"
units:
  - id: decode
    type: payload_decoder
    parameters: {}
graph: {}`,
		// Unterminated string.
		`version: "1.0.0
metadata:
  name: test"
units:
  - id: unit1`,
		// Wrong shapes.
		`version: 1
metadata: "invalid"
units: "should be array"
graph: null`,
		// Garbage.
		`version: "1.0.0"
metadata:
  name: [[[[[
units:
  - id: !!!
    type: @#$%^&*`,
		// Unicode.
		`version: "1.0.0"
metadata:
  name: "测试 🚀 тест"
units:
  - id: decode
    type: payload_decoder
graph: {}`,
		"",
	}
	for _, tc := range testcases {
		f.Add(tc)
	}

	f.Fuzz(func(t *testing.T, input string) {
		loader, err := NewGraphLoader(newMockUnitRegistry())
		if err != nil {
			t.Fatalf("NewGraphLoader: %v", err)
		}

		config, err := loader.parseYAML([]byte(input))
		if err == nil && config == nil {
			t.Fatal("parseYAML returned neither config nor error")
		}

		graph, err := loader.LoadFromReader(context.Background(), strings.NewReader(input))
		if err == nil {
			if graph == nil {
				t.Fatal("LoadFromReader returned neither graph nor error")
			}
			if graph.HasCycle() {
				t.Fatal("loaded graph contains a cycle")
			}
		}
	})
}

// FuzzGraphLoader_Validation varies the fields that semantic validation
// inspects: ids, unit types, placements and edges.
func FuzzGraphLoader_Validation(f *testing.F) {
	f.Add("decode", "payload_decoder", "filter", "quality_filter", "prepare", "prepare", "filter")
	f.Add("a", "agreement", "a", "agreement", "p", "a", "a")
	f.Add("x", "unknown", "y", "dataset_usage", "l", "x", "ghost")
	f.Add("", "", "", "", "", "", "")

	f.Fuzz(func(t *testing.T, id1, type1, id2, type2, groupID, from, to string) {
		config := &GraphConfig{
			Version:  "1.0.0",
			Metadata: Metadata{Name: "fuzz"},
			Units: []UnitConfig{
				{ID: id1, Type: type1},
				{ID: id2, Type: type2},
			},
			Graph: GraphTopology{
				Pipelines: []PipelineConfig{{ID: groupID, Units: []string{id1}}},
				Edges:     []EdgeConfig{{From: from, To: to}},
			},
		}

		loader, err := NewGraphLoader(newMockUnitRegistry())
		if err != nil {
			t.Fatalf("NewGraphLoader: %v", err)
		}
		if err := loader.validateConfig(config); err != nil {
			return
		}

		// A configuration that validates must also compile, unless its
		// single edge closes a cycle.
		graph, err := loader.buildGraph(context.Background(), config)
		if err != nil {
			if from == to || strings.Contains(err.Error(), "cycle") {
				return
			}
			t.Fatalf("valid config failed to build: %v", err)
		}
		if _, ok := graph.GetNode(groupID); !ok {
			t.Fatalf("pipeline %q missing from graph", groupID)
		}
	})
}

// FuzzValidateUnitParameters checks that parameter validation never
// panics on arbitrary YAML for any unit type.
func FuzzValidateUnitParameters(f *testing.F) {
	f.Add("payload_decoder", "slots: 32\nskip_malformed: true")
	f.Add("quality_filter", "max_excluded_fraction: 0.5")
	f.Add("score_aggregator", "group_by: dataset_item")
	f.Add("reproducibility", "range_start: 10\nrange_end: -10")
	f.Add("agreement", "allow_undefined: maybe")
	f.Add("dataset_usage", "source: [1, 2]")
	f.Add("unknown", "{}")

	f.Fuzz(func(t *testing.T, unitType, params string) {
		var node yaml.Node
		if err := yaml.Unmarshal([]byte(params), &node); err != nil {
			return
		}
		if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
			node = *node.Content[0]
		}
		_ = ValidateUnitParameters(unitType, node)
	})
}

// FuzzDAGOperations builds graphs from "from,to;from,to" descriptions and
// checks that a graph accepted edge by edge always sorts.
func FuzzDAGOperations(f *testing.F) {
	testcases := []string{
		`decode,filter;filter,scores`,
		`A,B;A,C;B,D;C,D`,
		`A,B;C,D`,
		`A,A`,
		`A,B;B,C;C,A`,
		`A,B;B,C;C,D;D,E;E,F;F,G;G,H;H,I;I,J`,
	}
	for _, tc := range testcases {
		f.Add(tc)
	}

	f.Fuzz(func(t *testing.T, graphSpec string) {
		graph := NewGraph()
		edges := strings.Split(graphSpec, ";")

		for _, edge := range edges {
			for _, id := range strings.Split(edge, ",") {
				if id = strings.TrimSpace(id); id != "" {
					_ = graph.AddNode(&mockExecutable{id: id})
				}
			}
		}
		for _, edge := range edges {
			parts := strings.Split(edge, ",")
			if len(parts) != 2 {
				continue
			}
			from, to := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
			if from != "" && to != "" {
				_ = graph.AddEdge(from, to)
			}
		}

		if graph.HasCycle() {
			t.Fatal("AddEdge accepted a cycle")
		}
		order, err := graph.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort: %v", err)
		}
		if len(order) != len(graph.nodes) {
			t.Fatalf("sorted %d of %d nodes", len(order), len(graph.nodes))
		}
	})
}
