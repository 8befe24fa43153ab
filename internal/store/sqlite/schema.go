package sqlite

import (
	"fmt"
	"strings"

	"github.com/maloquacious/schemactl/internal/schema"
)

// bookkeepingSchema records which manifest versions have been applied.
// It is only created on request, the reconciler never needs it.
const bookkeepingSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`

// quoteIdent quotes an SQLite identifier. Table names such as "order" are
// reserved words, so every identifier is quoted.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

// columnDefinition renders col for ALTER TABLE ... ADD COLUMN. The UNIQUE
// flag is not part of it: SQLite cannot add a UNIQUE column, so uniqueness
// is enforced with a separate index.
func columnDefinition(col schema.Column) string {
	var b strings.Builder
	b.WriteString(quoteIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(col.Type)
	if col.NotNull {
		b.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*col.Default)
	}
	return b.String()
}

func hasColumn(cols []schema.ColumnInfo, name string) bool {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func addColumnSQL(table string, col schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), columnDefinition(col))
}

// createIndexSQL has no IF NOT EXISTS: an index of the same name over other
// columns must fail rather than pass for the one requested.
func createIndexSQL(table string, idx schema.Index) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = quoteIdent(c)
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, quoteIdent(idx.Name), quoteIdent(table), strings.Join(cols, ", "))
}
