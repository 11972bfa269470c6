package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("Insufficient stock")
)

// ValidationError is a missing or malformed field the caller can correct.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" || e.Reason == "required" {
		return e.Field + " is required"
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DuplicateError is returned when a roll intake matches an existing roll.
// Nothing has been written; the caller resolves it with ConfirmDuplicate.
type DuplicateError struct {
	Existing             ProductSummary
	RequiresConfirmation bool
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("roll already exists for product %q", e.Existing.Name)
}

// FieldDiff is one differing field between a stored variant and an
// imported row, both in canonical form.
type FieldDiff struct {
	Field    string `json:"field"`
	Existing string `json:"existing"`
	Incoming string `json:"incoming"`
}

type RowConflict struct {
	Row       int         `json:"row"`
	ProductID uuid.UUID   `json:"productId"`
	Name      string      `json:"productName"`
	Category  Category    `json:"productType"`
	Diffs     []FieldDiff `json:"differences"`
}

// ConflictError reports imported rows that differ from stored variants and
// were not applied.
type ConflictError struct {
	Conflicts []RowConflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d conflicting rows", len(e.Conflicts))
}

// StoreError wraps a persistence failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore tags err as a StoreError unless it is a domain sentinel or
// already a StoreError.
func WrapStore(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInsufficientStock) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}
