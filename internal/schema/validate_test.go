package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maloquacious/schemactl/internal/schema"
)

func TestCheckDefault(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"0", true},
		{"5.0", true},
		{"-1.5e3", true},
		{".5", true},
		{"NULL", true},
		{"true", true},
		{"'online'", true},
		{"'it''s'", true},
		{"''", true},
		{"online", false},
		{"'it's'", false},
		{"CURRENT_TIMESTAMP", false},
		{"current_date", false},
		{"(1 + 1)", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := schema.CheckDefault(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestColumnValidate(t *testing.T) {
	tests := []struct {
		name string
		col  schema.Column
		ok   bool
	}{
		{"plain", schema.Column{Name: "viewed_at", Type: "TIMESTAMP"}, true},
		{"sized type", schema.Column{Name: "order_type", Type: "VARCHAR(20)", NotNull: true, Default: strPtr("'online'")}, true},
		{"precision", schema.Column{Name: "total", Type: "DECIMAL(10, 2)"}, true},
		{"two word type", schema.Column{Name: "ratio", Type: "DOUBLE PRECISION"}, true},
		{"empty name", schema.Column{Type: "TEXT"}, false},
		{"quoted name", schema.Column{Name: `"viewed"`, Type: "TEXT"}, false},
		{"empty type", schema.Column{Name: "viewed"}, false},
		{"trailing clause", schema.Column{Name: "viewed", Type: "TEXT) --"}, false},
		{"expression default", schema.Column{Name: "viewed_at", Type: "TIMESTAMP", Default: strPtr("CURRENT_TIMESTAMP")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.col.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, schema.ErrInvalidDefinition), err)
		})
	}
}

func TestIndexValidate(t *testing.T) {
	tests := []struct {
		name string
		idx  schema.Index
		ok   bool
	}{
		{"single column", schema.Index{Name: "idx_order_status", Columns: []string{"status"}}, true},
		{"composite", schema.Index{Name: "idx_order_status_date", Columns: []string{"status", "order_date"}, Unique: true}, true},
		{"no columns", schema.Index{Name: "idx_order_status"}, false},
		{"bad name", schema.Index{Name: "idx order", Columns: []string{"status"}}, false},
		{"quoted column", schema.Index{Name: "idx_order_status", Columns: []string{`"status"`}}, false},
		{"expression column", schema.Index{Name: "idx_order_lower", Columns: []string{"lower(status)"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.idx.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, schema.ErrInvalidDefinition), err)
		})
	}
}
