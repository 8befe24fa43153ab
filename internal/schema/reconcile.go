package schema

import (
	"context"
	"errors"

	"github.com/maloquacious/schemactl/internal/logger"
)

// Options controls a reconciliation.
type Options struct {
	// StopOnError stops at the first rejected addition. Remaining items are
	// reported as ActionSkipped.
	StopOnError bool

	// Logger receives progress messages. Defaults to logger.Default.
	Logger logger.Logger
}

func (o Options) logger() logger.Logger {
	if o.Logger == nil {
		return logger.Default
	}
	return o.Logger
}

// Inspect reads the live columns and indexes of table.
func Inspect(ctx context.Context, s Store, table string) (*Table, error) {
	if err := s.Ping(ctx); err != nil {
		return nil, unavailable(err)
	}
	return inspect(ctx, s, table, true)
}

func inspect(ctx context.Context, s Store, table string, withIndexes bool) (*Table, error) {
	columns, err := s.TableColumns(ctx, table)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, &InspectionError{Table: table, Err: err}
	}
	t := &Table{Name: table, Columns: columns}
	if withIndexes {
		indexes, err := s.TableIndexes(ctx, table)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				return nil, err
			}
			return nil, &InspectionError{Table: table, Err: err}
		}
		t.Indexes = indexes
	}
	return t, nil
}

// Reconcile adds the desired columns missing from table.
//
// The returned error is non-nil only when nothing could be attempted: the
// store is unreachable (ErrStoreUnavailable), the table could not be
// inspected (ErrSchemaInspectionFailed), or ctx was cancelled. Rejected
// columns are recorded in the Result with an *AlterationError.
func Reconcile(ctx context.Context, s Store, table string, columns []Column, opts Options) (*Result, error) {
	log := opts.logger()

	if err := s.Ping(ctx); err != nil {
		return nil, unavailable(err)
	}
	live, err := inspect(ctx, s, table, false)
	if err != nil {
		return nil, err
	}
	missing := live.Diff(columns)
	log.Debug("table %s: %d live columns, %d desired, %d missing", table, len(live.Columns), len(columns), len(missing))
	if len(missing) == 0 {
		log.Debug("table %s: columns up to date", table)
	}

	result := &Result{Table: table}
	stopped := false
	for _, col := range columns {
		if stopped {
			result.Columns = append(result.Columns, ColumnOutcome{Column: col, Action: ActionSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if info, ok := live.Column(col.Name); ok {
			out := ColumnOutcome{Column: col, Action: ActionPresent, LiveType: info.Type}
			if !SameType(info.Type, col.Type) {
				out.TypeMismatch = true
				log.Warn("table %s: column %s is declared %q, desired %q; left unchanged", table, col.Name, info.Type, col.Type)
			} else {
				log.Debug("table %s: column %s already present", table, col.Name)
			}
			result.Columns = append(result.Columns, out)
			continue
		}

		if err := col.Validate(); err != nil {
			aerr := &AlterationError{Table: table, Column: col.Name, Err: err}
			log.Error("%v", aerr)
			result.Columns = append(result.Columns, ColumnOutcome{Column: col, Action: ActionFailed, Err: aerr})
			stopped = opts.StopOnError
			continue
		}

		if err := s.AddColumn(ctx, table, col); err != nil {
			aerr := &AlterationError{Table: table, Column: col.Name, Err: err}
			log.Error("%v", aerr)
			result.Columns = append(result.Columns, ColumnOutcome{Column: col, Action: ActionFailed, Err: aerr})
			stopped = opts.StopOnError
			continue
		}

		log.Info("table %s: added column %s %s", table, col.Name, col.Type)
		live.Columns = append(live.Columns, ColumnInfo{Name: col.Name, Type: col.Type})
		result.Columns = append(result.Columns, ColumnOutcome{Column: col, Action: ActionAdded, LiveType: col.Type})
	}
	return result, nil
}

// ReconcileIndexes creates the desired indexes missing from table. Indexes
// are matched by name only. Errors follow the same rules as Reconcile.
func ReconcileIndexes(ctx context.Context, s Store, table string, indexes []Index, opts Options) (*Result, error) {
	log := opts.logger()

	if err := s.Ping(ctx); err != nil {
		return nil, unavailable(err)
	}
	live, err := inspect(ctx, s, table, true)
	if err != nil {
		return nil, err
	}

	result := &Result{Table: table}
	stopped := false
	for _, idx := range indexes {
		if stopped {
			result.Indexes = append(result.Indexes, IndexOutcome{Index: idx, Action: ActionSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if _, ok := live.Index(idx.Name); ok {
			log.Debug("table %s: index %s already present", table, idx.Name)
			result.Indexes = append(result.Indexes, IndexOutcome{Index: idx, Action: ActionPresent})
			continue
		}

		if err := live.checkIndex(idx); err != nil {
			aerr := &AlterationError{Table: table, Index: idx.Name, Err: err}
			log.Error("%v", aerr)
			result.Indexes = append(result.Indexes, IndexOutcome{Index: idx, Action: ActionFailed, Err: aerr})
			stopped = opts.StopOnError
			continue
		}

		if err := s.CreateIndex(ctx, table, idx); err != nil {
			aerr := &AlterationError{Table: table, Index: idx.Name, Err: err}
			log.Error("%v", aerr)
			result.Indexes = append(result.Indexes, IndexOutcome{Index: idx, Action: ActionFailed, Err: aerr})
			stopped = opts.StopOnError
			continue
		}

		log.Info("table %s: created index %s", table, idx.Name)
		live.Indexes = append(live.Indexes, IndexInfo{Name: idx.Name, Unique: idx.Unique, Columns: idx.Columns})
		result.Indexes = append(result.Indexes, IndexOutcome{Index: idx, Action: ActionAdded})
	}
	return result, nil
}
