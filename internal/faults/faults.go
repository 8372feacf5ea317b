// Package faults defines the error taxonomy shared by the loading core.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationInProgress rejects an operation while another one of the same kind is running.
	// Callers retry later; requests are never queued.
	ErrOperationInProgress = errors.New("operation already in progress")
	// ErrKeyNotFound reports an unknown profile, state or component identifier.
	ErrKeyNotFound = errors.New("key not found")
	// ErrLoadFailure reports that a provider failed to load or unload a resource.
	ErrLoadFailure = errors.New("load failure")
	// ErrInvariantViolation signals a programming error upstream, such as resuming an empty state stack.
	ErrInvariantViolation = errors.New("invariant violation")
)

// LoadError describes a provider failure for one resource.
type LoadError struct {
	// Resource is the kind of resource that failed (asset, scene, component).
	Resource string
	// Key identifies the resource.
	Key string
	// Err is the underlying provider error, if any.
	Err error
}

// NewLoadError wraps err as a load failure for the given resource kind and key.
func NewLoadError(resource, key string, err error) *LoadError {
	return &LoadError{Resource: resource, Key: key, Err: err}
}

func (e *LoadError) Error() string {
	if e == nil {
		return ErrLoadFailure.Error()
	}
	if e.Err == nil {
		return fmt.Sprintf("load %s %q failed", e.Resource, e.Key)
	}
	return fmt.Sprintf("load %s %q failed: %v", e.Resource, e.Key, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the provider cause.
func (e *LoadError) Unwrap() []error {
	if e == nil || e.Err == nil {
		return []error{ErrLoadFailure}
	}
	return []error{ErrLoadFailure, e.Err}
}

// IsLoadFailure reports whether err is or wraps a load failure.
func IsLoadFailure(err error) bool {
	return errors.Is(err, ErrLoadFailure)
}

// IsOperationInProgress reports whether err was caused by a busy single-flight guard.
func IsOperationInProgress(err error) bool {
	return errors.Is(err, ErrOperationInProgress)
}

// KeyNotFound wraps ErrKeyNotFound with the kind and key that were looked up.
func KeyNotFound(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, ErrKeyNotFound)
}

// InProgress wraps ErrOperationInProgress with the name of the busy component.
func InProgress(component string) error {
	return fmt.Errorf("%s: %w", component, ErrOperationInProgress)
}
