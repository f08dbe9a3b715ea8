// Package errors provides error handling for wikiner.
//
// This package re-exports github.com/cockroachdb/errors, providing stack traces,
// wrapping, hints and error marks, and declares the sentinel errors the pipeline
// branches on.
//
// Usage:
//
//	if err := resolver.Resolve(ctx, seeds, closure.Backward); err != nil {
//	    return errors.Wrap(err, "resolve location closure")
//	}
//
//	if errors.Is(err, errors.ErrTransient) {
//	    // retry
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint       = crdb.WithHint
	WithHintf      = crdb.WithHintf
	WithDetail     = crdb.WithDetail
	WithDetailf    = crdb.WithDetailf
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
	Mark      = crdb.Mark
	Join      = crdb.Join
)

// Sentinel errors. Wrap or Mark them to add context while keeping errors.Is working.
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrTransient marks a failure that is worth retrying (rate limit, 5xx, network)
	ErrTransient = New("transient failure")

	// ErrClosure indicates a class closure could not be resolved completely
	ErrClosure = New("closure resolution failed")

	// ErrConnectivity indicates the corpus or output store is unreachable
	ErrConnectivity = New("store unreachable")

	// ErrPartialWrite indicates a bulk write rejected one or more documents
	ErrPartialWrite = New("partial bulk write")

	// ErrInvalidConfig indicates the configuration cannot be used
	ErrInvalidConfig = New("invalid configuration")
)

// MarkTransient tags err as retryable without changing its message.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return Mark(err, ErrTransient)
}

// IsTransient reports whether err (or anything it wraps) was marked retryable.
func IsTransient(err error) bool {
	return err != nil && Is(err, ErrTransient)
}

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewInvalidConfig creates an invalid-configuration error with a formatted message
func NewInvalidConfig(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidConfig)
}
