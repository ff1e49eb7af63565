package ir

import (
	"errors"
	"fmt"
)

// TraceError represents a structural failure while decoding a trace.
//
// Every TraceError is fatal for the run: graph state after an anomaly
// cannot be trusted for later records. Top-level elements already written
// stay on the output stream.
type TraceError struct {
	// Code identifies the error category.
	Code TraceErrorCode

	// Message is a human-readable description.
	Message string

	// RecordIndex is the zero-based position of the offending record in
	// the outer array, or -1 when the failure is not tied to a record.
	RecordIndex int

	// ObjectID is the offending identifier when HasID is set.
	ObjectID ObjectID
	HasID    bool

	// Err is the underlying decoder error, if any.
	Err error
}

// TraceErrorCode categorizes trace errors.
type TraceErrorCode string

const (
	// ErrCodeUnknownReference indicates an ObjectID that is not currently live.
	ErrCodeUnknownReference TraceErrorCode = "UNKNOWN_REFERENCE"

	// ErrCodeDuplicateID indicates a re-definition of a live ObjectID.
	ErrCodeDuplicateID TraceErrorCode = "DUPLICATE_ID"

	// ErrCodeInvalidParentKind indicates an attach target that cannot accept
	// the payload (not a container, or sequence/mapping mismatch).
	ErrCodeInvalidParentKind TraceErrorCode = "INVALID_PARENT_KIND"

	// ErrCodeMalformedRecord indicates a record that is neither [ref] nor
	// [parent, children], or a definition marker in an unexpected place.
	ErrCodeMalformedRecord TraceErrorCode = "MALFORMED_RECORD"

	// ErrCodeDuplicateRoot indicates the same value was marked as a root twice.
	ErrCodeDuplicateRoot TraceErrorCode = "DUPLICATE_ROOT"

	// ErrCodeDecodeFailed indicates the bytes are not a well-formed trace.
	ErrCodeDecodeFailed TraceErrorCode = "DECODE_FAILED"
)

// Error implements the error interface.
func (e *TraceError) Error() string {
	var where string
	switch {
	case e.RecordIndex >= 0 && e.HasID:
		where = fmt.Sprintf(" (record=%d, id=%d)", e.RecordIndex, e.ObjectID)
	case e.RecordIndex >= 0:
		where = fmt.Sprintf(" (record=%d)", e.RecordIndex)
	case e.HasID:
		where = fmt.Sprintf(" (id=%d)", e.ObjectID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s%s: %v", e.Code, e.Message, where, e.Err)
	}
	return fmt.Sprintf("%s: %s%s", e.Code, e.Message, where)
}

// Unwrap returns the underlying decoder error.
func (e *TraceError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the TraceErrorCode of err, or "" if err is not a
// TraceError. Uses errors.As to handle wrapped errors.
func ErrorCode(err error) TraceErrorCode {
	var te *TraceError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsUnknownReference returns true if err is an UNKNOWN_REFERENCE error.
func IsUnknownReference(err error) bool {
	return ErrorCode(err) == ErrCodeUnknownReference
}

// IsDuplicateID returns true if err is a DUPLICATE_ID error.
func IsDuplicateID(err error) bool {
	return ErrorCode(err) == ErrCodeDuplicateID
}

// IsInvalidParentKind returns true if err is an INVALID_PARENT_KIND error.
func IsInvalidParentKind(err error) bool {
	return ErrorCode(err) == ErrCodeInvalidParentKind
}

// IsMalformedRecord returns true if err is a MALFORMED_RECORD error.
func IsMalformedRecord(err error) bool {
	return ErrorCode(err) == ErrCodeMalformedRecord
}

// NewUnknownReference creates a TraceError for an ObjectID that is not live.
func NewUnknownReference(index int, id ObjectID) *TraceError {
	return &TraceError{
		Code:        ErrCodeUnknownReference,
		Message:     "object id is not live",
		RecordIndex: index,
		ObjectID:    id,
		HasID:       true,
	}
}

// NewDuplicateID creates a TraceError for a re-definition of a live id.
func NewDuplicateID(index int, id ObjectID) *TraceError {
	return &TraceError{
		Code:        ErrCodeDuplicateID,
		Message:     "object id is already defined",
		RecordIndex: index,
		ObjectID:    id,
		HasID:       true,
	}
}

// NewMalformedRecord creates a TraceError for a record with the wrong shape.
func NewMalformedRecord(index int, format string, args ...any) *TraceError {
	return &TraceError{
		Code:        ErrCodeMalformedRecord,
		Message:     fmt.Sprintf(format, args...),
		RecordIndex: index,
	}
}

// NewDecodeFailed wraps a CBOR decoding error.
func NewDecodeFailed(index int, msg string, err error) *TraceError {
	return &TraceError{
		Code:        ErrCodeDecodeFailed,
		Message:     msg,
		RecordIndex: index,
		Err:         err,
	}
}
