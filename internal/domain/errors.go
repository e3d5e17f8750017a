package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrJobExpired           = errors.New("job expired")
	ErrInvalidState         = errors.New("invalid state")
	ErrDuplicateApplication = errors.New("duplicate application")
	ErrRateLimited          = errors.New("rate limited")
	ErrInternal             = errors.New("internal error")
)

// StateError reports an operation that is not legal for the session's actual status.
type StateError struct {
	Op     string
	Status SessionStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: session status is %s", e.Op, e.Status)
}

// Unwrap lets errors.Is(err, ErrInvalidState) match.
func (e *StateError) Unwrap() error { return ErrInvalidState }

// Hint returns a candidate-facing explanation for the status.
func (e *StateError) Hint() string {
	switch e.Status {
	case SessionInProgress:
		return "please complete the questionnaire"
	case SessionFailed:
		return "did not meet requirements"
	case SessionAbandoned:
		return "session expired, please start again"
	case SessionPassed:
		return "application already submitted"
	}
	return ""
}

// FieldError is one offending field of a ValidationError.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError reports malformed input per offending field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return "invalid argument: " + strings.Join(names, ", ")
}

// Unwrap lets errors.Is(err, ErrInvalidArgument) match.
func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// Add appends a field error.
func (e *ValidationError) Add(field, code, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: msg})
}

// OrNil returns nil when no field failed, sorting fields for stable output.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	sort.SliceStable(e.Fields, func(i, j int) bool { return e.Fields[i].Field < e.Fields[j].Field })
	return e
}
