// Package manifest loads the desired-state file that lists, per table, the
// columns and indexes a store is expected to carry.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"

	"github.com/maloquacious/schemactl/internal/schema"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid manifest")

// Manifest is the desired state of a store.
type Manifest struct {
	// Version is recorded in the store after a successful run when requested.
	Version string             `yaml:"version"`
	Tables  []schema.TableSpec `yaml:"tables"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no manifest path given", ErrInvalid)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest. Unknown keys are rejected so a
// misspelled option does not silently change the desired state.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate reports every problem in m at once.
func (m *Manifest) Validate() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if len(m.Tables) == 0 {
		fail("no tables")
	}

	tables := map[string]bool{}
	indexes := map[string]bool{}
	for i, t := range m.Tables {
		if !schema.ValidIdentifier(t.Name) {
			fail("tables[%d]: invalid table name %q", i, t.Name)
			continue
		}
		key := strings.ToLower(t.Name)
		if tables[key] {
			fail("table %s: listed more than once", t.Name)
		}
		tables[key] = true

		if len(t.Columns) == 0 && len(t.Indexes) == 0 {
			fail("table %s: no columns or indexes", t.Name)
		}

		columns := map[string]bool{}
		for j, c := range t.Columns {
			if err := c.Validate(); err != nil {
				fail("table %s: columns[%d]: %v", t.Name, j, err)
				if !schema.ValidIdentifier(c.Name) {
					continue
				}
			}
			ckey := strings.ToLower(c.Name)
			if columns[ckey] {
				fail("table %s: column %s listed more than once", t.Name, c.Name)
			}
			columns[ckey] = true

			if c.Unique {
				indexes[strings.ToLower(c.UniqueIndexName(t.Name))] = true
			}
		}

		for j, idx := range t.Indexes {
			if err := idx.Validate(); err != nil {
				fail("table %s: indexes[%d]: %v", t.Name, j, err)
				if !schema.ValidIdentifier(idx.Name) {
					continue
				}
			}
			ikey := strings.ToLower(idx.Name)
			if indexes[ikey] {
				fail("table %s: index %s defined more than once", t.Name, idx.Name)
			}
			indexes[ikey] = true
		}
	}
	return result.ErrorOrNil()
}

// Table returns the spec for name, if present.
func (m *Manifest) Table(name string) (schema.TableSpec, bool) {
	for _, t := range m.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return schema.TableSpec{}, false
}
