package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/maloquacious/schemactl/internal/schema"
	"github.com/maloquacious/schemactl/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestStore opens a store on a fresh database file and runs ddl against it.
func newTestStore(t *testing.T, ddl ...string) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pos.db")
	f, err := os.Create(dbPath)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s := New(dbPath, "2025.05")
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	for _, stmt := range ddl {
		_, err := s.db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return s
}

func strPtr(s string) *string { return &s }

func TestOpenMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.db"), "")
	err := s.Open(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrStoreUnavailable))

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr), "Open must not create the file")
}

func TestPingClosed(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	err := s.Ping(context.Background())
	assert.True(t, errors.Is(err, schema.ErrStoreUnavailable))
}

func TestTables(t *testing.T) {
	s := newTestStore(t,
		`CREATE TABLE product (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE "order" (id INTEGER PRIMARY KEY AUTOINCREMENT, total_amount FLOAT NOT NULL)`,
	)

	tables, err := s.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "product"}, tables)
}

func TestTableColumns(t *testing.T) {
	s := newTestStore(t, `CREATE TABLE "order" (
		id INTEGER PRIMARY KEY,
		status VARCHAR(20) DEFAULT 'pending',
		total_amount FLOAT NOT NULL
	)`)
	ctx := context.Background()

	cols, err := s.TableColumns(ctx, "order")
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, 1, cols[0].PrimaryKey)
	assert.Equal(t, "status", cols[1].Name)
	assert.Equal(t, "VARCHAR(20)", cols[1].Type)
	require.NotNil(t, cols[1].Default)
	assert.Equal(t, "'pending'", *cols[1].Default)
	assert.True(t, cols[2].NotNull)
	assert.Nil(t, cols[2].Default)

	_, err = s.TableColumns(ctx, "customer")
	assert.True(t, errors.Is(err, schema.ErrTableNotFound))
}

func TestAddColumn(t *testing.T) {
	s := newTestStore(t,
		`CREATE TABLE product (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO product (name) VALUES ('soap'), ('salt')`,
	)
	ctx := context.Background()

	require.NoError(t, s.AddColumn(ctx, "product", schema.Column{
		Name: "low_stock_threshold", Type: "FLOAT", Default: strPtr("5.0"),
	}))
	require.NoError(t, s.AddColumn(ctx, "product", schema.Column{
		Name: "unit", Type: "VARCHAR(10)", NotNull: true, Default: strPtr("'pcs'"),
	}))

	var threshold float64
	var unit string
	require.NoError(t, s.db.QueryRow(`SELECT low_stock_threshold, unit FROM product WHERE name = 'soap'`).Scan(&threshold, &unit))
	assert.Equal(t, 5.0, threshold)
	assert.Equal(t, "pcs", unit)

	err := s.AddColumn(ctx, "product", schema.Column{Name: "unit", Type: "TEXT"})
	assert.ErrorContains(t, err, "duplicate column name")
}

func TestAddColumnNotNullWithoutDefault(t *testing.T) {
	s := newTestStore(t,
		`CREATE TABLE product (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO product (name) VALUES ('soap')`,
	)

	err := s.AddColumn(context.Background(), "product", schema.Column{Name: "sku", Type: "TEXT", NotNull: true})
	require.Error(t, err)

	cols, err := s.TableColumns(context.Background(), "product")
	require.NoError(t, err)
	assert.Len(t, cols, 2)
}

func TestAddUniqueColumnRollsBack(t *testing.T) {
	s := newTestStore(t,
		`CREATE TABLE product (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO product (name) VALUES ('soap'), ('salt')`,
	)
	ctx := context.Background()

	err := s.AddColumn(ctx, "product", schema.Column{Name: "barcode", Type: "VARCHAR(50)", Default: strPtr("'0000'"), Unique: true})
	require.Error(t, err)

	cols, err := s.TableColumns(ctx, "product")
	require.NoError(t, err)
	for _, c := range cols {
		assert.NotEqual(t, "barcode", c.Name, "failed addition must leave no column behind")
	}

	// without a constant default the existing rows hold NULLs, which do not collide
	require.NoError(t, s.AddColumn(ctx, "product", schema.Column{Name: "barcode", Type: "VARCHAR(50)", Unique: true}))
	indexes, err := s.TableIndexes(ctx, "product")
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, "idx_product_barcode", indexes[0].Name)
	assert.True(t, indexes[0].Unique)
	assert.Equal(t, []string{"barcode"}, indexes[0].Columns)
}

func TestCreateIndex(t *testing.T) {
	s := newTestStore(t, `CREATE TABLE "order" (id INTEGER PRIMARY KEY, status TEXT, order_date TIMESTAMP)`)
	ctx := context.Background()

	idx := schema.Index{Name: "idx_order_status_date", Columns: []string{"status", "order_date"}}
	require.NoError(t, s.CreateIndex(ctx, "order", idx))
	assert.ErrorContains(t, s.CreateIndex(ctx, "order", idx), "already exists")

	indexes, err := s.TableIndexes(ctx, "order")
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, "idx_order_status_date", indexes[0].Name)
	assert.False(t, indexes[0].Unique)
	assert.Equal(t, "c", indexes[0].Origin)
	assert.Equal(t, []string{"status", "order_date"}, indexes[0].Columns)

	// an unknown column never reaches SQLite, which would index the quoted
	// name as a string constant
	for _, bad := range []schema.Index{
		{Name: "idx_bad", Columns: []string{"nope"}},
		{Name: "idx_bad_unique", Columns: []string{"status", "stauts"}, Unique: true},
	} {
		err = s.CreateIndex(ctx, "order", bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, schema.ErrColumnNotFound), err)
	}
	indexes, err = s.TableIndexes(ctx, "order")
	require.NoError(t, err)
	assert.Len(t, indexes, 1)

	err = s.CreateIndex(ctx, "order", schema.Index{Name: "idx_none"})
	assert.True(t, errors.Is(err, schema.ErrInvalidDefinition), err)
	err = s.CreateIndex(ctx, "customer", schema.Index{Name: "idx_customer", Columns: []string{"id"}})
	assert.True(t, errors.Is(err, schema.ErrTableNotFound), err)
}

func TestAddColumnRejectsInvalidDefinition(t *testing.T) {
	s := newTestStore(t, `CREATE TABLE product (id INTEGER PRIMARY KEY, name TEXT)`)
	ctx := context.Background()

	tests := []struct {
		name string
		col  schema.Column
	}{
		{"bad name", schema.Column{Name: "low stock", Type: "FLOAT"}},
		{"bad type", schema.Column{Name: "barcode", Type: "TEXT; DROP TABLE product"}},
		{"expression default", schema.Column{Name: "added_at", Type: "TIMESTAMP", Default: strPtr("CURRENT_TIMESTAMP")}},
		{"unquoted string default", schema.Column{Name: "status", Type: "TEXT", Default: strPtr("pending")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddColumn(ctx, "product", tt.col)
			require.Error(t, err)
			assert.True(t, errors.Is(err, schema.ErrInvalidDefinition), err)
		})
	}

	cols, err := s.TableColumns(ctx, "product")
	require.NoError(t, err)
	assert.Len(t, cols, 2)
}

func TestConnectionSettings(t *testing.T) {
	s := newTestStore(t)
	// no idle connections, so each query runs on a freshly opened one
	s.db.SetMaxIdleConns(0)

	for i := 0; i < 2; i++ {
		var foreignKeys, busyTimeout int
		require.NoError(t, s.db.QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys))
		require.NoError(t, s.db.QueryRow(`PRAGMA busy_timeout`).Scan(&busyTimeout))
		assert.Equal(t, 1, foreignKeys)
		assert.Equal(t, 5000, busyTimeout)
	}
}

func TestBackup(t *testing.T) {
	s := newTestStore(t,
		`CREATE TABLE product (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO product (name) VALUES ('soap')`,
	)
	ctx := context.Background()

	dest := filepath.Join(t.TempDir(), "pos_backup.db")
	require.NoError(t, s.Backup(ctx, dest))

	copied := New(dest, "")
	require.NoError(t, copied.Open(ctx))
	defer copied.Close()

	var count int
	require.NoError(t, copied.db.QueryRow(`SELECT COUNT(*) FROM product`).Scan(&count))
	assert.Equal(t, 1, count)

	assert.Error(t, s.Backup(ctx, dest), "existing destination is refused")
}

func TestIntegrityCheck(t *testing.T) {
	s := newTestStore(t, `CREATE TABLE product (id INTEGER PRIMARY KEY, name TEXT)`)

	problems, err := s.IntegrityCheck(context.Background())
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestStateAndVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state, err := s.CheckState(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.StateUninitialized, state)

	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.InitSchema(ctx))
	version, err := s.GetSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Empty(t, version)

	state, err = s.CheckState(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.StateVersionMismatch, state)

	require.NoError(t, s.RecordVersion(ctx, "2025.04"))
	require.NoError(t, s.RecordVersion(ctx, "2025.05"))
	version, err = s.GetSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025.05", version)

	state, err = s.CheckState(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.StateReady, state)

	// recording an older version again makes it current
	require.NoError(t, s.RecordVersion(ctx, "2025.04"))
	version, err = s.GetSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025.04", version)
}

func TestStatementBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "plain column",
			got:  addColumnSQL("user", schema.Column{Name: "last_seen", Type: "DATETIME"}),
			want: `ALTER TABLE "user" ADD COLUMN "last_seen" DATETIME`,
		},
		{
			name: "not null with default",
			got:  addColumnSQL("order", schema.Column{Name: "order_type", Type: "VARCHAR(20)", NotNull: true, Default: strPtr("'online'")}),
			want: `ALTER TABLE "order" ADD COLUMN "order_type" VARCHAR(20) NOT NULL DEFAULT 'online'`,
		},
		{
			name: "unique flag stays out of the column definition",
			got:  addColumnSQL("product", schema.Column{Name: "barcode", Type: "VARCHAR(50)", Unique: true}),
			want: `ALTER TABLE "product" ADD COLUMN "barcode" VARCHAR(50)`,
		},
		{
			name: "unique index",
			got:  createIndexSQL("user", schema.Index{Name: "idx_user_email", Columns: []string{"email"}, Unique: true}),
			want: `CREATE UNIQUE INDEX "idx_user_email" ON "user" ("email")`,
		},
		{
			name: "quoted identifier",
			got:  quoteIdent(`we"ird`),
			want: `"we""ird"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
