package application

import (
	"gopkg.in/yaml.v3"
)

// GraphConfig is the YAML description of an analysis graph: which units
// run, how they are grouped, and in what order the groups execute.
type GraphConfig struct {
	// Version is the configuration schema version (X.Y.Z).
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata names and labels the graph.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Units declares every analysis unit in the graph.
	Units []UnitConfig `yaml:"units" validate:"required,min=1,dive"`
	// Graph wires the units together.
	Graph GraphTopology `yaml:"graph" validate:"required"`
}

// Metadata describes a graph for operators.
type Metadata struct {
	// Name identifies the graph in logs and metrics.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description is free text.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags group graphs by study or purpose.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	// Labels are arbitrary key-value pairs.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// UnitConfig declares one analysis unit.
type UnitConfig struct {
	// ID is unique across units, pipelines and layers.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Type selects the unit implementation from the registry.
	Type string `yaml:"type" validate:"required,oneof=payload_decoder quality_filter score_aggregator agreement reproducibility dataset_usage"`
	// Parameters holds type-specific settings, validated per type.
	Parameters yaml.Node `yaml:"parameters"`
	// Timeout bounds a single execution of the unit.
	Timeout TimeoutConfig `yaml:"timeout"`
}

// TimeoutConfig limits how long a unit may run.
type TimeoutConfig struct {
	// ExecutionTimeout is the limit in seconds. Zero means no limit.
	ExecutionTimeout int `yaml:"execution_timeout_seconds" validate:"omitempty,min=1,max=3600"`
}

// GraphTopology groups units into pipelines and layers and orders the
// resulting nodes with edges. Units in neither a pipeline nor a layer
// become standalone nodes.
type GraphTopology struct {
	// Pipelines run their units in order.
	Pipelines []PipelineConfig `yaml:"pipelines" validate:"dive"`
	// Layers run their units concurrently on the same input.
	Layers []LayerConfig `yaml:"layers" validate:"dive"`
	// Edges order nodes: To runs after From.
	Edges []EdgeConfig `yaml:"edges" validate:"dive"`
}

// PipelineConfig is a sequential chain of units.
type PipelineConfig struct {
	// ID is unique across units, pipelines and layers.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Units lists unit ids in execution order.
	Units []string `yaml:"units" validate:"required,min=1,dive,alphanum"`
}

// LayerConfig is a group of independent units that run concurrently.
// Members may only add state keys; two members writing the same key is an
// error at run time.
type LayerConfig struct {
	// ID is unique across units, pipelines and layers.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Units lists the member unit ids. A layer needs at least two.
	Units []string `yaml:"units" validate:"required,min=2,dive,alphanum"`
	// MaxConcurrency caps how many members run at once. Zero uses the
	// default of twice the CPU count.
	MaxConcurrency int `yaml:"max_concurrency" validate:"omitempty,min=1,max=64"`
}

// EdgeConfig makes To depend on From.
type EdgeConfig struct {
	From string `yaml:"from" validate:"required,alphanum"`
	To   string `yaml:"to" validate:"required,alphanum"`
}
