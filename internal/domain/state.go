// Package domain holds the judgment record model and the report types that
// flow between the analysis stages. It has no dependencies on the
// application or infrastructure layers.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the string form of the key.
func (k Key[T]) Name() string { return k.name }

// State keys written and read by the analysis units.
var (
	// KeyPayloads stores the raw participant responses.
	KeyPayloads = Key[[]Payload]{"payloads"}

	// KeyJudgments stores every decoded judgment, attention checks included.
	KeyJudgments = Key[[]Judgment]{"judgments"}

	// KeyDecodeFailures counts payloads that failed decoding and were skipped.
	KeyDecodeFailures = Key[int]{"decode_failures"}

	// KeyFilteredJudgments stores the judgments that survived quality filtering.
	KeyFilteredJudgments = Key[[]Judgment]{"filtered_judgments"}

	// KeyFilterReport stores what the quality filter removed.
	KeyFilterReport = Key[FilterReport]{"filter_report"}

	// KeyTaskScores stores the per-task score table.
	KeyTaskScores = Key[TaskScoreTable]{"task_scores"}

	// KeySystemMetrics stores the whole-study metrics, one row per candidate.
	KeySystemMetrics = Key[[]SystemMetrics]{"system_metrics"}

	// KeySignificance stores the ANOVA over the task score table.
	KeySignificance = Key[SignificanceResult]{"significance"}

	// KeyAgreement stores both agreement coefficients.
	KeyAgreement = Key[AgreementReport]{"agreement"}

	// KeyOriginalScores stores the published Best-Worst Scale scores.
	KeyOriginalScores = Key[[]SystemScore]{"original_scores"}

	// KeyReproducibility stores the comparison with the published scores.
	KeyReproducibility = Key[ReproducibilityReport]{"reproducibility"}

	// KeyDatasetUsage stores the distinct items used per dataset.
	KeyDatasetUsage = Key[[]DatasetUsage]{"dataset_usage"}

	// Execution context keys.

	// KeyGraphID stores the identifier of the analysis graph being executed.
	KeyGraphID = Key[string]{"execution.graph_id"}

	// KeyRunID stores the identifier of this analysis run.
	KeyRunID = Key[string]{"execution.run_id"}

	// KeyStartedAt stores when the run began.
	KeyStartedAt = Key[time.Time]{"execution.started_at"}
)

// deepCopyValue creates a deep copy of a value so callers cannot mutate
// data held by a State through a returned slice, map or pointer.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}
	return copyValue(reflect.ValueOf(value)).Interface()
}

func copyValue(v reflect.Value) reflect.Value {
	// time.Time is immutable and carries unexported fields.
	if v.Type() == reflect.TypeOf(time.Time{}) {
		return v
	}

	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyValue(v.Index(i)))
		}
		return out

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyValue(v.Index(i)))
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(copyValue(iter.Key()), copyValue(iter.Value()))
		}
		return out

	case reflect.Ptr:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Elem().Type())
		out.Elem().Set(copyValue(v.Elem()))
		return out

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(copyValue(v.Elem()))
		return out

	case reflect.Struct:
		// Unexported fields are left zero; State values use exported fields only.
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if out.Field(i).CanSet() {
				out.Field(i).Set(copyValue(v.Field(i)))
			}
		}
		return out

	default:
		return v
	}
}

// State is an immutable collection of analysis data passed between units.
// It uses copy-on-write semantics, so a State can be shared across
// goroutines without locking.
type State struct {
	data map[string]any
}

// NewState creates a new empty State.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a deep copy of the value stored under key.
// The boolean is false when the key is absent or holds another type.
//
// Example:
//
//	judgments, ok := Get(state, KeyFilteredJudgments)
//	if !ok {
//	    // handle missing value
//	}
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// MustGet is like Get but reports a missing key as ErrInvalidState.
func MustGet[T any](s State, key Key[T]) (T, error) {
	v, ok := Get(s, key)
	if !ok {
		return v, fmt.Errorf("%w: missing %q", ErrInvalidState, key.name)
	}
	return v, nil
}

// GetRaw retrieves a value by its string key.
// For type safety, use the generic Get function instead.
func (s State) GetRaw(keyName string) (any, bool) {
	value, exists := s.data[keyName]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// With returns a new State with key set to value, leaving s unchanged.
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	if newData == nil {
		newData = make(map[string]any, 1)
	}
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithRaw is the string-keyed form of With.
func (s State) WithRaw(keyName string, value any) State {
	newData := maps.Clone(s.data)
	if newData == nil {
		newData = make(map[string]any, 1)
	}
	newData[keyName] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple returns a new State with all updates applied in a single
// clone.
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	if newData == nil {
		newData = make(map[string]any, len(updates))
	}
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State in sorted order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s.data))
}

// Len returns the number of keys in the State.
func (s State) Len() int { return len(s.data) }

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.Keys())
}

// ExecutionContext identifies one analysis run.
type ExecutionContext struct {
	GraphID   string
	RunID     string
	StartedAt time.Time
}

// WithExecutionContext stores the run metadata in a new State.
func (s State) WithExecutionContext(ctx ExecutionContext) State {
	return s.WithMultiple(map[string]any{
		KeyGraphID.name:   ctx.GraphID,
		KeyRunID.name:     ctx.RunID,
		KeyStartedAt.name: ctx.StartedAt,
	})
}

// GetExecutionContext extracts the run metadata. It returns false when any
// field is absent.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	graphID, ok1 := Get(s, KeyGraphID)
	runID, ok2 := Get(s, KeyRunID)
	startedAt, ok3 := Get(s, KeyStartedAt)
	if !ok1 || !ok2 || !ok3 {
		return ExecutionContext{}, false
	}
	return ExecutionContext{GraphID: graphID, RunID: runID, StartedAt: startedAt}, true
}
