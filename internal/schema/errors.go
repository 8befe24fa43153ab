package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable indicates the store could not be opened or reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSchemaInspectionFailed indicates the live columns or indexes of a
	// table could not be enumerated.
	ErrSchemaInspectionFailed = errors.New("schema inspection failed")

	// ErrAlterationRejected indicates the store refused a single addition.
	ErrAlterationRejected = errors.New("alteration rejected")

	// ErrTableNotFound is returned by stores when the named table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrColumnNotFound indicates an index names a column the table lacks.
	ErrColumnNotFound = errors.New("column not found")

	// ErrInvalidDefinition indicates a column or index definition that
	// cannot be rendered as DDL safely.
	ErrInvalidDefinition = errors.New("invalid definition")
)

// InspectionError reports a failure to read the live schema of a table.
type InspectionError struct {
	Table string
	Err   error
}

// Error implements the error interface
func (e *InspectionError) Error() string {
	return fmt.Sprintf("inspect table %q: %v", e.Table, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *InspectionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *InspectionError) Is(target error) bool {
	return target == ErrSchemaInspectionFailed
}

// AlterationError reports that the store rejected adding one column or index.
// Exactly one of Column and Index is set.
type AlterationError struct {
	Table  string
	Column string
	Index  string
	Err    error
}

// Error implements the error interface
func (e *AlterationError) Error() string {
	if e.Index != "" {
		return fmt.Sprintf("add index %q on %q: %v", e.Index, e.Table, e.Err)
	}
	return fmt.Sprintf("add column %q to %q: %v", e.Column, e.Table, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *AlterationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AlterationError) Is(target error) bool {
	return target == ErrAlterationRejected
}

func unavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
