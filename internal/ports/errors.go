package ports

import (
	"errors"
	"fmt"
)

// ErrConfigNotFound indicates that a required configuration value is missing.
var ErrConfigNotFound = errors.New("configuration not found")

// UnitError attributes a failure to one unit of a graph.
type UnitError struct {
	// UnitID is the id of the failing unit.
	UnitID string

	// Stage names what the unit was doing, e.g. "execute" or "validate".
	Stage string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for UnitError.
func (e *UnitError) Error() string {
	return fmt.Sprintf("unit error: unit=%s, stage=%s, err=%v", e.UnitID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *UnitError) Unwrap() error { return e.Err }

// NewUnitError creates a UnitError.
func NewUnitError(unitID, stage string, err error) *UnitError {
	return &UnitError{UnitID: unitID, Stage: stage, Err: err}
}

// MetricsError represents an error from metrics collection operations.
type MetricsError struct {
	// Metric is the name of the metric being recorded.
	Metric string

	// Operation is the metrics operation that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for MetricsError.
func (e *MetricsError) Error() string {
	return fmt.Sprintf("metrics error: operation=%s, metric=%s, err=%v", e.Operation, e.Metric, e.Err)
}

// Unwrap returns the underlying error.
func (e *MetricsError) Unwrap() error { return e.Err }

// NewMetricsError creates a new MetricsError with the given details.
func NewMetricsError(metric, operation string, err error) *MetricsError {
	return &MetricsError{Metric: metric, Operation: operation, Err: err}
}

// ConfigError represents an invalid or missing configuration value.
type ConfigError struct {
	// ConfigKey is the offending configuration key.
	ConfigKey string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{ConfigKey: key, Err: err}
}
