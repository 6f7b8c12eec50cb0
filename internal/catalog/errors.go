package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrSchemaMismatch      = errors.New("schema mismatch")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrDegenerateDimension = errors.New("degenerate dimension")
	ErrIncompleteCorpus    = errors.New("incomplete corpus")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
)

// Error carries the kind of a pipeline failure together with the offending
// item or dimension so callers can report it.
type Error struct {
	Kind   error
	Index  int    // item index or dimension, -1 when not applicable
	ID     string // item ID, empty when not applicable
	Detail string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.ID != "" {
		msg += fmt.Sprintf(" (item %q)", e.ID)
	}
	if e.Index >= 0 {
		msg += fmt.Sprintf(" at index %d", e.Index)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// MarshalJSON writes the kind as its message so reports can carry errors.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Index  int    `json:"index"`
		ID     string `json:"id,omitempty"`
		Detail string `json:"detail,omitempty"`
	}{e.Kind.Error(), e.Index, e.ID, e.Detail})
}

// NewError builds an Error of the given kind. index is -1 when not applicable.
func NewError(kind error, index int, id, format string, args ...any) *Error {
	return &Error{Kind: kind, Index: index, ID: id, Detail: fmt.Sprintf(format, args...)}
}

// DimensionMismatch builds an ErrDimensionMismatch for vectors of length got and want.
func DimensionMismatch(id string, got, want int) error {
	return NewError(ErrDimensionMismatch, -1, id, "vector length %d, want %d", got, want)
}
