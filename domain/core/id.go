package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

func (id ID) String() string {
	return string(id)
}

func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	// FitID names a persisted or worker-resident fit.
	FitID ID
	// RequestID correlates a request with its responses across the worker boundary.
	RequestID ID
)

func (id FitID) String() string     { return ID(id).String() }
func (id RequestID) String() string { return ID(id).String() }

func NewFitID() FitID         { return FitID(NewID()) }
func NewRequestID() RequestID { return RequestID(NewID()) }

// ParseFitID accepts only UUID-shaped identifiers.
func ParseFitID(s string) (FitID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("fit ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("fit ID %q is not a UUID: %w", s, err)
	}
	return FitID(s), nil
}
