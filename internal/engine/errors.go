package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a caller-usage error detected by the engine.
//
// Runtime errors include:
//   - Unknown references: contact, group, wire or primitive not found
//   - Duplicate IDs: IDs are unique across contacts, wires and groups
//   - Illegal wires: a wire that would write into a read-only contact
//   - Malformed actions: an action that fails validation
//   - Quota exceeded: a drain processed more queue entries than allowed
//
// Contradictions are never RuntimeErrors; they surface as events.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ID is the contact, wire, group or primitive the error refers to.
	ID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeUnknownContact     RuntimeErrorCode = "UNKNOWN_CONTACT"
	ErrCodeUnknownGroup       RuntimeErrorCode = "UNKNOWN_GROUP"
	ErrCodeUnknownWire        RuntimeErrorCode = "UNKNOWN_WIRE"
	ErrCodeUnknownTarget      RuntimeErrorCode = "UNKNOWN_TARGET"
	ErrCodeDuplicateID        RuntimeErrorCode = "DUPLICATE_ID"
	ErrCodeMissingReference   RuntimeErrorCode = "MISSING_REFERENCE"
	ErrCodeIllegalWire        RuntimeErrorCode = "ILLEGAL_WIRE"
	ErrCodeMalformedAction    RuntimeErrorCode = "MALFORMED_ACTION"
	ErrCodeImmutableProperty  RuntimeErrorCode = "IMMUTABLE_PROPERTY"
	ErrCodeDuplicatePrimitive RuntimeErrorCode = "DUPLICATE_PRIMITIVE"
	ErrCodeUnknownPrimitive   RuntimeErrorCode = "UNKNOWN_PRIMITIVE"
	ErrCodeNotAStream         RuntimeErrorCode = "NOT_A_STREAM"
	ErrCodeInvalidNetwork     RuntimeErrorCode = "INVALID_NETWORK"

	// ErrCodeQuotaExceeded indicates a drain exceeded the max steps quota.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is (or wraps) a RuntimeError with the given code.
func IsCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	return IsCode(err, ErrCodeQuotaExceeded)
}

func newError(code RuntimeErrorCode, id, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, ID: id, Message: fmt.Sprintf(format, args...)}
}

func errUnknownContact(id string) *RuntimeError {
	return newError(ErrCodeUnknownContact, id, "contact does not exist")
}

func errUnknownGroup(id string) *RuntimeError {
	return newError(ErrCodeUnknownGroup, id, "group does not exist")
}

func errUnknownWire(id string) *RuntimeError {
	return newError(ErrCodeUnknownWire, id, "wire does not exist")
}

func errDuplicateID(id, kind string) *RuntimeError {
	return newError(ErrCodeDuplicateID, id, "id already used by a %s", kind)
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(steps, maxSteps int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("propagation exceeded max steps (%d > %d)", steps, maxSteps),
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", steps),
			"max_steps": fmt.Sprintf("%d", maxSteps),
		},
	}
}

// ActionSetError reports the action that stopped an action set.
// Actions before Index stay applied.
type ActionSetError struct {
	Index int
	Type  string
	Err   error
}

func (e *ActionSetError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *ActionSetError) Unwrap() error {
	return e.Err
}
