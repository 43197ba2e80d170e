// Package units provides the analysis units that implement ports.Unit for
// the go-qra graph engine. Each unit wraps one stage of the judgment
// analysis and reads and writes typed keys on domain.State.
package units

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// Unit type names as used in graph configuration.
const (
	TypePayloadDecoder  = "payload_decoder"
	TypeQualityFilter   = "quality_filter"
	TypeScoreAggregator = "score_aggregator"
	TypeAgreement       = "agreement"
	TypeReproducibility = "reproducibility"
	TypeDatasetUsage    = "dataset_usage"
)

var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrTooManyExclusions is returned when the quality filter excludes a
	// larger share of participants than its configuration allows.
	ErrTooManyExclusions = errors.New("too many participants excluded")
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// decodeConfig overlays a parameter map on dst, which should already hold
// the defaults.
func decodeConfig(config map[string]any, dst any) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// decodeParameters strictly decodes a YAML parameter node into dst and
// validates the result. Unknown fields are rejected.
func decodeParameters(params yaml.Node, dst any) error {
	if params.Kind == 0 {
		return validate.Struct(dst)
	}
	var buf bytes.Buffer
	if err := yaml.NewEncoder(&buf).Encode(&params); err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	dec := yaml.NewDecoder(&buf)
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	return nil
}

// ValidateParameters checks a parameter node against the configuration
// schema of unitType.
func ValidateParameters(unitType string, params yaml.Node) error {
	var cfg any
	switch unitType {
	case TypePayloadDecoder:
		c := DefaultPayloadDecoderConfig()
		cfg = &c
	case TypeQualityFilter:
		c := DefaultQualityFilterConfig()
		cfg = &c
	case TypeScoreAggregator:
		c := DefaultScoreAggregatorConfig()
		cfg = &c
	case TypeAgreement:
		c := DefaultAgreementConfig()
		cfg = &c
	case TypeReproducibility:
		c := DefaultReproducibilityConfig()
		cfg = &c
	case TypeDatasetUsage:
		c := DefaultDatasetUsageConfig()
		cfg = &c
	default:
		return fmt.Errorf("unknown unit type: %s", unitType)
	}
	return decodeParameters(params, cfg)
}

// fail records err on span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
