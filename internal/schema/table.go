package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Store is the part of a relational store the reconciler works against.
// Implementations commit every AddColumn and CreateIndex call before returning.
type Store interface {
	// Ping reports whether the store can be reached.
	Ping(ctx context.Context) error

	// TableColumns returns the live columns of table in declaration order.
	// It returns ErrTableNotFound when the table does not exist.
	TableColumns(ctx context.Context, table string) ([]ColumnInfo, error)

	// TableIndexes returns the live indexes of table.
	TableIndexes(ctx context.Context, table string) ([]IndexInfo, error)

	// AddColumn adds a single column to table.
	AddColumn(ctx context.Context, table string, col Column) error

	// CreateIndex creates a single index on table.
	CreateIndex(ctx context.Context, table string, idx Index) error
}

// Column is a desired column.
type Column struct {
	Name    string  `json:"name" yaml:"name"`
	Type    string  `json:"type" yaml:"type"`
	NotNull bool    `json:"not_null,omitempty" yaml:"not_null,omitempty"`
	Default *string `json:"default,omitempty" yaml:"default,omitempty"`
	Unique  bool    `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// UniqueIndexName is the name of the index backing a unique column.
func (c Column) UniqueIndexName(table string) string {
	return "idx_" + table + "_" + c.Name
}

// Index is a desired index.
type Index struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// TableSpec groups the desired columns and indexes of one table.
type TableSpec struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []Column `json:"columns,omitempty" yaml:"columns,omitempty"`
	Indexes []Index  `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// ColumnInfo is a column as declared in the live store.
type ColumnInfo struct {
	Position   int     `json:"position"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	NotNull    bool    `json:"not_null"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey int     `json:"primary_key,omitempty"`
}

// IndexInfo is an index as declared in the live store.
type IndexInfo struct {
	Name    string   `json:"name"`
	Unique  bool     `json:"unique"`
	Origin  string   `json:"origin"`
	Columns []string `json:"columns"`
}

// Table is a snapshot of the live schema of a table.
type Table struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
	Indexes []IndexInfo  `json:"indexes,omitempty"`
}

// Column looks up a live column. SQLite identifiers are case-insensitive,
// so the lookup is too.
func (t *Table) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// Index looks up a live index by name.
func (t *Table) Index(name string) (IndexInfo, bool) {
	for _, idx := range t.Indexes {
		if strings.EqualFold(idx.Name, name) {
			return idx, true
		}
	}
	return IndexInfo{}, false
}

// SortedColumnNames returns column names sorted in alphabetical order
func (t *Table) SortedColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Diff returns the desired columns missing from t, in desired order.
// Types are not compared.
func (t *Table) Diff(desired []Column) []Column {
	var missing []Column
	for _, col := range desired {
		if _, ok := t.Column(col.Name); !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// checkIndex reports why idx cannot be created on t: an invalid
// definition, or columns the table does not have. Extra names in pending
// count as present.
func (t *Table) checkIndex(idx Index, pending ...Column) error {
	if err := idx.Validate(); err != nil {
		return err
	}
	var absent []string
	for _, name := range idx.Columns {
		if _, ok := t.Column(name); ok || hasColumn(pending, name) {
			continue
		}
		absent = append(absent, name)
	}
	if len(absent) > 0 {
		return fmt.Errorf("%w: %s (table has %s)", ErrColumnNotFound,
			strings.Join(absent, ", "), strings.Join(t.SortedColumnNames(), ", "))
	}
	return nil
}

func hasColumn(cols []Column, name string) bool {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// SameType reports whether two declared SQL types are equivalent, ignoring
// case and whitespace differences.
func SameType(a, b string) bool {
	return normalizeType(a) == normalizeType(b)
}

func normalizeType(t string) string {
	return strings.ToUpper(strings.Join(strings.Fields(t), ""))
}
