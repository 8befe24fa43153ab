package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maloquacious/schemactl/internal/schema"
	"github.com/maloquacious/schemactl/internal/store"
	_ "modernc.org/sqlite"
)

var _ store.Store = (*SQLiteStore)(nil)

// connParams are applied by the driver to every connection it opens.
const connParams = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// SQLiteStore implements the Store interface using modernc.org/sqlite.
type SQLiteStore struct {
	dbPath          string
	db              *sql.DB
	expectedVersion string
}

// New creates a new SQLiteStore. expectedVersion is the manifest version
// CheckState compares against; it may be empty.
func New(dbPath string, expectedVersion string) *SQLiteStore {
	return &SQLiteStore{
		dbPath:          dbPath,
		expectedVersion: expectedVersion,
	}
}

// Open opens an existing SQLite database. It never creates one: a missing
// file is reported as schema.ErrStoreUnavailable.
func (s *SQLiteStore) Open(ctx context.Context) error {
	exists, err := store.CheckExists(s.dbPath)
	if err != nil {
		return fmt.Errorf("%w: %w", schema.ErrStoreUnavailable, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s does not exist", schema.ErrStoreUnavailable, s.dbPath)
	}

	// Connection settings ride on the DSN so every new connection gets them;
	// the journal mode of the file is left as found
	db, err := sql.Open("sqlite", s.dbPath+connParams)
	if err != nil {
		return fmt.Errorf("%w: failed to open database: %w", schema.ErrStoreUnavailable, err)
	}
	// one connection, so per-column transactions never race each other
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: %w", schema.ErrStoreUnavailable, err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Ping verifies the database is open and reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("%w: database not opened", schema.ErrStoreUnavailable)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", schema.ErrStoreUnavailable, err)
	}
	return nil
}

// Tables lists user tables, sorted by name.
func (s *SQLiteStore) Tables(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: database not opened", schema.ErrStoreUnavailable)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *SQLiteStore) tableExists(ctx context.Context, table string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=? COLLATE NOCASE`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %q: %w", table, err)
	}
	return count > 0, nil
}

// TableColumns returns the live columns of table from PRAGMA table_info.
func (s *SQLiteStore) TableColumns(ctx context.Context, table string) ([]schema.ColumnInfo, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: database not opened", schema.ErrStoreUnavailable)
	}
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", schema.ErrTableNotFound, table)
	}

	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to query table_info: %w", err)
	}
	defer rows.Close()

	var columns []schema.ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table_info: %w", err)
		}
		col := schema.ColumnInfo{
			Position:   cid,
			Name:       name,
			Type:       ctype,
			NotNull:    notnull != 0,
			PrimaryKey: pk,
		}
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// TableIndexes returns the live indexes of table from PRAGMA index_list.
func (s *SQLiteStore) TableIndexes(ctx context.Context, table string) ([]schema.IndexInfo, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: database not opened", schema.ErrStoreUnavailable)
	}
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", schema.ErrTableNotFound, table)
	}

	indexes, err := s.indexList(ctx, table)
	if err != nil {
		return nil, err
	}
	// index_info is queried after index_list is closed: the pool has one connection
	for i := range indexes {
		cols, err := s.indexColumns(ctx, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = cols
	}
	return indexes, nil
}

func (s *SQLiteStore) indexList(ctx context.Context, table string) ([]schema.IndexInfo, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA index_list("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to query index_list: %w", err)
	}
	defer rows.Close()

	var indexes []schema.IndexInfo
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("failed to scan index_list: %w", err)
		}
		indexes = append(indexes, schema.IndexInfo{Name: name, Unique: unique != 0, Origin: origin})
	}
	return indexes, rows.Err()
}

func (s *SQLiteStore) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA index_info("+quoteIdent(index)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to query index_info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("failed to scan index_info: %w", err)
		}
		if name.Valid {
			cols = append(cols, name.String)
		} else {
			cols = append(cols, "<expr>")
		}
	}
	return cols, rows.Err()
}

// AddColumn adds col to table and commits. A unique column gets its backing
// index in the same transaction, so duplicate data rejects the whole addition.
func (s *SQLiteStore) AddColumn(ctx context.Context, table string, col schema.Column) error {
	if s.db == nil {
		return fmt.Errorf("%w: database not opened", schema.ErrStoreUnavailable)
	}

	if err := col.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, addColumnSQL(table, col)); err != nil {
		return err
	}
	if col.Unique {
		idx := schema.Index{Name: col.UniqueIndexName(table), Columns: []string{col.Name}, Unique: true}
		if _, err := tx.ExecContext(ctx, createIndexSQL(table, idx)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateIndex creates idx on table and commits. Every indexed column must
// exist: SQLite would otherwise read a quoted unknown name as a string
// literal and index the constant.
func (s *SQLiteStore) CreateIndex(ctx context.Context, table string, idx schema.Index) error {
	if s.db == nil {
		return fmt.Errorf("%w: database not opened", schema.ErrStoreUnavailable)
	}
	if err := idx.Validate(); err != nil {
		return err
	}
	cols, err := s.TableColumns(ctx, table)
	if err != nil {
		return err
	}
	for _, name := range idx.Columns {
		if !hasColumn(cols, name) {
			return fmt.Errorf("%w: %s.%s", schema.ErrColumnNotFound, table, name)
		}
	}
	if _, err := s.db.ExecContext(ctx, createIndexSQL(table, idx)); err != nil {
		return err
	}
	return nil
}

// Backup writes a compacted copy of the database to path with VACUUM INTO,
// which includes pages still in the WAL. path must not exist.
func (s *SQLiteStore) Backup(ctx context.Context, path string) error {
	if s.db == nil {
		return fmt.Errorf("%w: database not opened", schema.ErrStoreUnavailable)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO "+quoteString(path)); err != nil {
		return fmt.Errorf("failed to back up database to %s: %w", path, err)
	}
	return nil
}

// IntegrityCheck runs PRAGMA integrity_check and returns the problems it
// reports. An empty slice means the database is sound.
func (s *SQLiteStore) IntegrityCheck(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: database not opened", schema.ErrStoreUnavailable)
	}

	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan integrity_check: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	return problems, rows.Err()
}

// InitSchema creates the schema_migrations bookkeeping table.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(ctx, bookkeepingSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordVersion stamps the database with a manifest version.
func (s *SQLiteStore) RecordVersion(ctx context.Context, version string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, bookkeepingSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// re-recording a version moves it to the top
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, version); err != nil {
		return fmt.Errorf("failed to replace schema version: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, strftime('%s', 'now'))`, version)
	if err != nil {
		return fmt.Errorf("failed to insert schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CheckState returns the current state of the datastore.
func (s *SQLiteStore) CheckState(ctx context.Context) (store.StoreState, error) {
	if s.db == nil {
		return store.StateMissing, fmt.Errorf("database not opened")
	}

	exists, err := s.tableExists(ctx, "schema_migrations")
	if err != nil {
		return store.StateUninitialized, fmt.Errorf("failed to check schema_migrations table: %w", err)
	}
	if !exists {
		return store.StateUninitialized, nil
	}

	version, err := s.GetSchemaVersion(ctx)
	if err != nil {
		return store.StateUninitialized, fmt.Errorf("failed to get schema version: %w", err)
	}

	if version != s.expectedVersion {
		return store.StateVersionMismatch, nil
	}

	return store.StateReady, nil
}

// GetSchemaVersion returns the most recently recorded manifest version.
func (s *SQLiteStore) GetSchemaVersion(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	var version string
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_migrations ORDER BY applied_at DESC, rowid DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}

	return version, nil
}
