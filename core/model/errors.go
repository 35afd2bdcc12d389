package model

import (
	"errors"
	"fmt"
)

// ErrConfigIntegrity marks errors caused by inconsistent configuration data.
// Such errors abort a run and are never retried.
var ErrConfigIntegrity = errors.New("configuration integrity error")

// IntegrityError names the configuration entity that failed a consistency check.
type IntegrityError struct {
	Entity string
	ID     string
	Reason string
}

// NewIntegrityError builds an IntegrityError.
func NewIntegrityError(entity, id, reason string) *IntegrityError {
	return &IntegrityError{Entity: entity, ID: id, Reason: reason}
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Entity, e.ID, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfigIntegrity).
func (e *IntegrityError) Unwrap() error { return ErrConfigIntegrity }
