package schema

import (
	"github.com/hashicorp/go-multierror"
)

// Action is what happened, or would happen, to a desired column or index.
type Action string

const (
	ActionPresent Action = "present" // already in the live schema, left untouched
	ActionAdded   Action = "added"   // created by this run
	ActionMissing Action = "missing" // absent, reported by Plan only
	ActionFailed  Action = "failed"  // the store rejected the addition
	ActionSkipped Action = "skipped" // not attempted after an earlier failure with StopOnError
)

// ColumnOutcome is the per-column record of a reconciliation.
type ColumnOutcome struct {
	Column Column
	Action Action

	// LiveType is the declared type of a present column.
	LiveType string

	// TypeMismatch is set when a present column's declared type differs
	// from the desired one. The column is still considered satisfied.
	TypeMismatch bool

	Err error
}

// IndexOutcome is the per-index record of a reconciliation.
type IndexOutcome struct {
	Index  Index
	Action Action
	Err    error
}

// Result holds the outcome of reconciling one table.
type Result struct {
	Table   string
	Columns []ColumnOutcome
	Indexes []IndexOutcome

	// Aborted is set when the table could not be reconciled at all, for
	// example because its schema could not be inspected.
	Aborted error
}

// Count returns how many columns and indexes ended with action a.
func (r *Result) Count(a Action) int {
	n := 0
	for _, c := range r.Columns {
		if c.Action == a {
			n++
		}
	}
	for _, i := range r.Indexes {
		if i.Action == a {
			n++
		}
	}
	return n
}

// Mismatches returns the present columns whose live type differs from the desired one.
func (r *Result) Mismatches() []ColumnOutcome {
	var out []ColumnOutcome
	for _, c := range r.Columns {
		if c.TypeMismatch {
			out = append(out, c)
		}
	}
	return out
}

// Err returns every failure recorded in r, or nil.
func (r *Result) Err() error {
	var result *multierror.Error
	if r.Aborted != nil {
		result = multierror.Append(result, r.Aborted)
	}
	for _, c := range r.Columns {
		if c.Err != nil {
			result = multierror.Append(result, c.Err)
		}
	}
	for _, i := range r.Indexes {
		if i.Err != nil {
			result = multierror.Append(result, i.Err)
		}
	}
	return result.ErrorOrNil()
}

// Errors combines the failures of several results, or returns nil.
func Errors(results []*Result) error {
	var result *multierror.Error
	for _, r := range results {
		if err := r.Err(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
