// Package model holds the canonical, format-independent representation of a
// table: schema, partitioning, column statistics, data files and their
// diffs, snapshots, commits and sync checkpoints. Values here are immutable
// once constructed; a change is expressed by building a new value, never by
// mutating in place.
package model

import (
	"errors"
	"fmt"
)

// ErrorKind tags a lakebridge error with one of the taxonomy entries from
// the sync engine's error model. Callers should switch on Kind rather than
// string-matching messages.
type ErrorKind string

const (
	ErrUnsupportedType              ErrorKind = "UnsupportedType"
	ErrUnsupportedPartitionTransform ErrorKind = "UnsupportedPartitionTransform"
	ErrInvalidSchema                ErrorKind = "InvalidSchema"
	ErrInvalidPartitionSpec         ErrorKind = "InvalidPartitionSpec"
	ErrSchemaMismatch               ErrorKind = "SchemaMismatch"
	ErrSourceReadError              ErrorKind = "SourceReadError"
	ErrSourceVersionMissing         ErrorKind = "SourceVersionMissing"
	ErrTargetWriteError             ErrorKind = "TargetWriteError"
	ErrCheckpointConflict           ErrorKind = "CheckpointConflict"
	ErrConfigError                  ErrorKind = "ConfigError"
)

// Error is the single error value type used across lakebridge. There is no
// silent fallback: every failure path constructs one of these with a tag
// and a human message, optionally wrapping a lower-level cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause.
func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an Error with a formatted message.
func Newf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error tagging a lower-level cause.
func Wrap(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Wrapf builds an Error tagging a lower-level cause with a formatted message.
func Wrapf(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given ErrorKind anywhere in its chain.
func Is(err error, kind ErrorKind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
