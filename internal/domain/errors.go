package domain

import (
	"errors"
	"fmt"
)

// Error kinds raised by the judgment pipeline. Callers match them with
// errors.Is; the typed errors below add record context and unwrap to these.
var (
	// ErrMalformedSelection indicates a selection flag that is neither
	// true nor false.
	ErrMalformedSelection = errors.New("malformed selection")

	// ErrMalformedPayload indicates a participant payload that could not be
	// parsed. It is recovered locally by substituting an empty payload.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUnknownSystem indicates a system name outside the closed enumeration.
	ErrUnknownSystem = errors.New("unknown system")

	// ErrInvalidSample indicates a sample whose mean is zero or negative.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrInsufficientSample indicates fewer than two measurements.
	ErrInsufficientSample = errors.New("insufficient sample")

	// ErrInconsistentCount indicates wins+losses disagreeing with the number
	// of appearances. It signals a logic defect, never a data defect.
	ErrInconsistentCount = errors.New("inconsistent count")

	// ErrUndefinedAgreement indicates an agreement matrix for which the
	// coefficient has no defined value.
	ErrUndefinedAgreement = errors.New("undefined agreement")

	// ErrUndefinedCorrelation indicates a correlation over a constant series.
	ErrUndefinedCorrelation = errors.New("undefined correlation")

	// ErrInvalidState indicates that a State lacks a value a unit requires.
	ErrInvalidState = errors.New("invalid state")
)

// JudgmentError locates a failure to a single comparison slot of a
// participant response.
type JudgmentError struct {
	// TaskUUID is the payload-level identifier of the rendering instance.
	TaskUUID string

	// TaskID is the synthesized comparison key, when it was available.
	TaskID string

	// ParticipantID is the anonymized participant identifier.
	ParticipantID string

	// Slot is the comparison slot index within the payload, or -1.
	Slot int

	// Err is the underlying error kind.
	Err error
}

// Error implements the error interface for JudgmentError.
func (e *JudgmentError) Error() string {
	return fmt.Sprintf("judgment error: task_uuid=%s, task_id=%s, participant=%s, slot=%d, err=%v",
		e.TaskUUID, e.TaskID, e.ParticipantID, e.Slot, e.Err)
}

// Unwrap returns the underlying error kind.
func (e *JudgmentError) Unwrap() error { return e.Err }

// NewJudgmentError creates a JudgmentError for the given judgment.
func NewJudgmentError(j Judgment, slot int, err error) *JudgmentError {
	return &JudgmentError{
		TaskUUID:      j.TaskUUID,
		TaskID:        j.TaskID,
		ParticipantID: j.ParticipantID,
		Slot:          slot,
		Err:           err,
	}
}

// SampleError reports a measurement set the precision estimator rejected.
type SampleError struct {
	// Measurand names what was measured, typically a system name.
	Measurand string

	// Values holds the rejected measurements.
	Values []float64

	// Err is ErrInvalidSample or ErrInsufficientSample.
	Err error
}

// Error implements the error interface for SampleError.
func (e *SampleError) Error() string {
	return fmt.Sprintf("sample error: measurand=%s, values=%v, err=%v", e.Measurand, e.Values, e.Err)
}

// Unwrap returns the underlying error kind.
func (e *SampleError) Unwrap() error { return e.Err }

// CountError reports a per-system tally that failed its consistency check.
type CountError struct {
	System      System
	Wins        int
	Losses      int
	Appearances int
}

// Error implements the error interface for CountError.
func (e *CountError) Error() string {
	return fmt.Sprintf("%v: system=%s, wins=%d, losses=%d, appearances=%d",
		ErrInconsistentCount, e.System, e.Wins, e.Losses, e.Appearances)
}

// Unwrap returns ErrInconsistentCount.
func (e *CountError) Unwrap() error { return ErrInconsistentCount }

// AgreementError reports why an agreement coefficient is undefined.
type AgreementError struct {
	// Coefficient names the statistic, e.g. "fleiss_kappa".
	Coefficient string

	// Reason describes the degenerate input.
	Reason string
}

// Error implements the error interface for AgreementError.
func (e *AgreementError) Error() string {
	return fmt.Sprintf("%v: coefficient=%s, reason=%s", ErrUndefinedAgreement, e.Coefficient, e.Reason)
}

// Unwrap returns ErrUndefinedAgreement.
func (e *AgreementError) Unwrap() error { return ErrUndefinedAgreement }

// ValidationError collects every failed rule for one entity.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the validation messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
