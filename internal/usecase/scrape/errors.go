package scrape

import (
	"context"
	"errors"
	"fmt"

	"market-watch/internal/domain/entity"
)

// ErrorKind classifies an adapter failure. The kind decides retry behavior,
// circuit breaker accounting and how loudly the failure is logged.
type ErrorKind string

const (
	// ErrorKindNetwork covers transient transport failures; retried with
	// backoff a bounded number of times.
	ErrorKindNetwork ErrorKind = "network"
	// ErrorKindBlocked means the site's anti-bot defenses rejected us. Never
	// retried within a cycle and trips the circuit breaker.
	ErrorKindBlocked ErrorKind = "blocked"
	// ErrorKindParse means the site markup no longer matches the adapter.
	// Rare and loud: the adapter needs maintenance.
	ErrorKindParse ErrorKind = "parse"
	// ErrorKindTimeout is a deadline hit; treated like a network failure.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindCircuitOpen means the adapter was skipped entirely for this
	// cycle. Not counted against the breaker again.
	ErrorKindCircuitOpen ErrorKind = "circuit_open"
)

// ErrNoAdapter indicates a saved search references a marketplace with no
// registered adapter.
var ErrNoAdapter = errors.New("no adapter registered for marketplace")

// AdapterError is the failure type every adapter surfaces.
type AdapterError struct {
	Site entity.Marketplace
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter: %s: %v", e.Site, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError wraps err with a site and kind.
func NewAdapterError(site entity.Marketplace, kind ErrorKind, err error) *AdapterError {
	return &AdapterError{Site: site, Kind: kind, Err: err}
}

// KindOf extracts the error kind from an adapter failure. Deadline errors that
// escaped untyped map to timeout, everything else to network.
func KindOf(err error) ErrorKind {
	var aerr *AdapterError
	if errors.As(err, &aerr) {
		return aerr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	return ErrorKindNetwork
}
