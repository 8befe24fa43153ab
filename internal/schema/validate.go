package schema

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	typeRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ]*(\(\s*[0-9]+\s*(,\s*[0-9]+\s*)?\))?$`)
	numberRe = regexp.MustCompile(`^[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][-+]?[0-9]+)?$`)
)

// ValidIdentifier reports whether name is a plain SQL identifier.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

// Validate checks that c can be rendered into an ADD COLUMN clause: a
// plain name, a type name with an optional size, and a constant default.
func (c Column) Validate() error {
	if !ValidIdentifier(c.Name) {
		return fmt.Errorf("%w: invalid column name %q", ErrInvalidDefinition, c.Name)
	}
	if !typeRe.MatchString(strings.TrimSpace(c.Type)) {
		return fmt.Errorf("%w: column %s: invalid type %q", ErrInvalidDefinition, c.Name, c.Type)
	}
	if c.Default != nil {
		if err := CheckDefault(*c.Default); err != nil {
			return fmt.Errorf("%w: column %s: %v", ErrInvalidDefinition, c.Name, err)
		}
	}
	return nil
}

// Validate checks the index name and column list.
func (idx Index) Validate() error {
	if !ValidIdentifier(idx.Name) {
		return fmt.Errorf("%w: invalid index name %q", ErrInvalidDefinition, idx.Name)
	}
	if len(idx.Columns) == 0 {
		return fmt.Errorf("%w: index %s: no columns", ErrInvalidDefinition, idx.Name)
	}
	for _, c := range idx.Columns {
		if !ValidIdentifier(c) {
			return fmt.Errorf("%w: index %s: invalid column name %q", ErrInvalidDefinition, idx.Name, c)
		}
	}
	return nil
}

// CheckDefault accepts the literal forms SQLite allows in ADD COLUMN: a
// quoted string, a number, NULL, or TRUE/FALSE. CURRENT_* keywords are
// refused because SQLite cannot add a column with a non-constant default.
func CheckDefault(v string) error {
	v = strings.TrimSpace(v)
	switch strings.ToUpper(v) {
	case "NULL", "TRUE", "FALSE":
		return nil
	}
	if numberRe.MatchString(v) {
		return nil
	}
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		inner := v[1 : len(v)-1]
		if !strings.Contains(strings.ReplaceAll(inner, "''", ""), "'") {
			return nil
		}
	}
	return fmt.Errorf("default %q is not a literal (quote strings as 'text')", v)
}
