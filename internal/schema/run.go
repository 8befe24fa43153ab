package schema

import (
	"context"
	"errors"
)

// Plan reports what reconciling spec would do without changing the store.
// Missing columns and indexes are reported as ActionMissing. Items that a
// run would reject without asking the store, such as an invalid definition
// or an index over a column neither present nor pending, are reported as
// ActionFailed.
func Plan(ctx context.Context, s Store, spec TableSpec) (*Result, error) {
	live, err := Inspect(ctx, s, spec.Name)
	if err != nil {
		return nil, err
	}
	pending := live.Diff(spec.Columns)

	result := &Result{Table: spec.Name}
	for _, col := range spec.Columns {
		if !hasColumn(pending, col.Name) {
			info, _ := live.Column(col.Name)
			result.Columns = append(result.Columns, ColumnOutcome{
				Column:       col,
				Action:       ActionPresent,
				LiveType:     info.Type,
				TypeMismatch: !SameType(info.Type, col.Type),
			})
			continue
		}
		if err := col.Validate(); err != nil {
			result.Columns = append(result.Columns, ColumnOutcome{
				Column: col,
				Action: ActionFailed,
				Err:    &AlterationError{Table: spec.Name, Column: col.Name, Err: err},
			})
			continue
		}
		result.Columns = append(result.Columns, ColumnOutcome{Column: col, Action: ActionMissing})
	}
	for _, idx := range spec.Indexes {
		if _, ok := live.Index(idx.Name); ok {
			result.Indexes = append(result.Indexes, IndexOutcome{Index: idx, Action: ActionPresent})
			continue
		}
		if err := live.checkIndex(idx, pending...); err != nil {
			result.Indexes = append(result.Indexes, IndexOutcome{
				Index:  idx,
				Action: ActionFailed,
				Err:    &AlterationError{Table: spec.Name, Index: idx.Name, Err: err},
			})
			continue
		}
		result.Indexes = append(result.Indexes, IndexOutcome{Index: idx, Action: ActionMissing})
	}
	return result, nil
}

// PlanAll plans every spec in order. A table that cannot be inspected is
// reported through Result.Aborted; an unreachable store stops the plan.
func PlanAll(ctx context.Context, s Store, specs []TableSpec) ([]*Result, error) {
	results := make([]*Result, 0, len(specs))
	for _, spec := range specs {
		res, err := Plan(ctx, s, spec)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) || ctx.Err() != nil {
				return results, err
			}
			res = &Result{Table: spec.Name, Aborted: err}
		}
		results = append(results, res)
	}
	return results, nil
}

// Run reconciles the columns and then the indexes of every spec, in order.
//
// A table whose schema cannot be inspected is recorded with Result.Aborted
// and the run continues with the next table. An unreachable store or a
// cancelled context ends the run with an error. With StopOnError, the first
// failure of any kind marks everything after it as skipped.
func Run(ctx context.Context, s Store, specs []TableSpec, opts Options) ([]*Result, error) {
	log := opts.logger()

	results := make([]*Result, 0, len(specs))
	stopped := false
	for _, spec := range specs {
		if stopped {
			results = append(results, skipped(spec))
			continue
		}

		tlog := log.With("table", spec.Name)
		topts := opts
		topts.Logger = tlog

		res, err := Reconcile(ctx, s, spec.Name, spec.Columns, topts)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrStoreUnavailable) {
				if res != nil {
					results = append(results, res)
				}
				return results, err
			}
			tlog.Error("table %s: %v", spec.Name, err)
			results = append(results, &Result{Table: spec.Name, Aborted: err})
			stopped = opts.StopOnError
			continue
		}

		if opts.StopOnError && res.Err() != nil {
			for _, idx := range spec.Indexes {
				res.Indexes = append(res.Indexes, IndexOutcome{Index: idx, Action: ActionSkipped})
			}
		} else if len(spec.Indexes) > 0 {
			ires, err := ReconcileIndexes(ctx, s, spec.Name, spec.Indexes, topts)
			if ires != nil {
				res.Indexes = ires.Indexes
			}
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, ErrStoreUnavailable) {
					results = append(results, res)
					return results, err
				}
				tlog.Error("table %s: %v", spec.Name, err)
				res.Aborted = err
			}
		}

		results = append(results, res)
		if opts.StopOnError && res.Err() != nil {
			stopped = true
		}

		tlog.Info("table %s: %d added, %d present, %d failed",
			spec.Name, res.Count(ActionAdded), res.Count(ActionPresent), res.Count(ActionFailed))
	}
	return results, nil
}

func skipped(spec TableSpec) *Result {
	res := &Result{Table: spec.Name}
	for _, col := range spec.Columns {
		res.Columns = append(res.Columns, ColumnOutcome{Column: col, Action: ActionSkipped})
	}
	for _, idx := range spec.Indexes {
		res.Indexes = append(res.Indexes, IndexOutcome{Index: idx, Action: ActionSkipped})
	}
	return res
}
