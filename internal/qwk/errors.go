package qwk

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the codec, control parser and index packages.
var (
	ErrTruncatedRecord         = errors.New("qwk: truncated record")
	ErrMalformedField          = errors.New("qwk: malformed field")
	ErrControlFileTooShort     = errors.New("qwk: control file too short")
	ErrTooManyConferences      = errors.New("qwk: too many conferences")
	ErrUnrecoverableCorruption = errors.New("qwk: unrecoverable corruption, offset tracking lost")
	ErrRecordSkipped           = errors.New("qwk: record skipped")
	ErrInvalidPolicy           = errors.New("qwk: invalid field policy")
)

// IOError reports a failed file operation together with the path involved.
// Written is the number of records that reached the output before the
// failure; it is only meaningful for write operations.
type IOError struct {
	Op      string
	Path    string
	Written int
	Err     error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("qwk: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("qwk: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FieldError describes a single field that could not be decoded or encoded.
type FieldError struct {
	Field  string
	Raw    []byte
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("qwk: malformed field %s %q: %s", e.Field, e.Raw, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrMalformedField }

// DecodeError collects every field error found while decoding one header.
// The header returned alongside it is still populated, so callers can use
// the fields that did decode (SizeMsg in particular).
type DecodeError struct {
	Fields []*FieldError
}

func (e *DecodeError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Error()
	}
	return strings.Join(names, "; ")
}

func (e *DecodeError) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f
	}
	return errs
}

// Has reports whether field f failed to decode.
func (e *DecodeError) Has(f Field) bool {
	for _, fe := range e.Fields {
		if fe.Field == f.String() {
			return true
		}
	}
	return false
}

// SkippedRecord is a non-fatal, per-record failure reported by the index
// builder.
type SkippedRecord struct {
	Source string // File the record was read from
	Offset uint64 // Stream offset of the record header
	Err    error
}

func (s SkippedRecord) Error() string {
	return fmt.Sprintf("qwk: record at %s+%d skipped: %v", s.Source, s.Offset, s.Err)
}

func (s SkippedRecord) Unwrap() []error { return []error{ErrRecordSkipped, s.Err} }

func truncatedError(got, want int) error {
	return fmt.Errorf("%w: got %d bytes, want %d", ErrTruncatedRecord, got, want)
}
