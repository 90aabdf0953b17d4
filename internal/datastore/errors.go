package datastore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedScheme is wrapped by UnsupportedSchemeError.
	ErrUnsupportedScheme = errors.New("unsupported storage scheme")

	// ErrMalformedMetadata is wrapped by MalformedMetadataError.
	ErrMalformedMetadata = errors.New("malformed metadata")

	// ErrUnit is wrapped by UnitError.
	ErrUnit = errors.New("unresolved unit")
)

// UnsupportedSchemeError is returned for an observatory tag with no known
// file layout.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported storage scheme %q", e.Scheme)
}

func (e *UnsupportedSchemeError) Unwrap() error { return ErrUnsupportedScheme }

// MalformedMetadataError reports a missing or unparseable header field.
type MalformedMetadataError struct {
	ObsID  int64
	File   string
	Field  string
	Reason string
}

func (e *MalformedMetadataError) Error() string {
	return fmt.Sprintf("obs %d: %s: field %s: %s", e.ObsID, e.File, e.Field, e.Reason)
}

func (e *MalformedMetadataError) Unwrap() error { return ErrMalformedMetadata }

// UnitError reports a column whose physical unit could not be resolved and
// for which no fallback was permitted.
type UnitError struct {
	ObsID  int64
	File   string
	Column string
	Unit   string
	Err    error
}

func (e *UnitError) Error() string {
	msg := fmt.Sprintf("obs %d: %s: column %s: unit %q", e.ObsID, e.File, e.Column, e.Unit)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnit}
	}
	return []error{ErrUnit, e.Err}
}
