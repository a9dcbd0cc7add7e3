package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrQueryExecutionFailed wraps a failure of the primary store fetch.
	ErrQueryExecutionFailed = errors.New("query execution failed")

	// ErrInvalidReferenceID is returned for malformed reference ids.
	ErrInvalidReferenceID = errors.New("invalid reference id")

	// ErrUnknownEntity is returned when no descriptor exists for an entity name.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrFilterShape marks a filter value whose shape does not fit the
	// declared filter type, e.g. a plain value on a range filter.
	ErrFilterShape = errors.New("filter value does not match declared type")
)

// ValidationError collects every problem found in a request.
// Messages are ordered and distinct.
type ValidationError struct {
	Messages []string
	causes   []error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// Unwrap exposes the sentinel causes, so errors.Is(err, ErrInvalidReferenceID) works.
func (e *ValidationError) Unwrap() []error {
	return e.causes
}

// Add records msg unless it was already recorded. cause may be nil.
func (e *ValidationError) Add(msg string, cause error) {
	for _, m := range e.Messages {
		if m == msg {
			return
		}
	}
	e.Messages = append(e.Messages, msg)
	if cause != nil {
		e.causes = append(e.causes, cause)
	}
}

// Merge appends the messages and causes of other.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for _, m := range other.Messages {
		e.Add(m, nil)
	}
	e.causes = append(e.causes, other.causes...)
}

// ErrOrNil returns e as an error when it holds messages, and nil otherwise.
func (e *ValidationError) ErrOrNil() error {
	if e == nil || len(e.Messages) == 0 {
		return nil
	}
	return e
}

// ReferenceID is the store's cross-collection document identifier.
type ReferenceID = uuid.UUID

// ToReferenceID parses s as a reference id.
func ToReferenceID(s string) (ReferenceID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, ErrInvalidReferenceID
	}
	return id, nil
}

// NewReferenceID generates a fresh reference id.
func NewReferenceID() ReferenceID {
	return uuid.New()
}
