package store

import (
	"context"

	"github.com/maloquacious/schemactl/internal/schema"
)

// StoreState represents the bookkeeping state of the datastore.
type StoreState int

const (
	StateMissing         StoreState = iota // File doesn't exist
	StateUninitialized                     // File exists but no bookkeeping table
	StateVersionMismatch                   // Recorded manifest version differs from the expected one
	StateReady                             // Initialized and at the expected version
)

func (s StoreState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateUninitialized:
		return "uninitialized"
	case StateVersionMismatch:
		return "version-mismatch"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Store defines the datastore contract used by the CLI.
// Implementations are used from a single goroutine per invocation.
type Store interface {
	schema.Store

	// Open opens the datastore connection
	Open(ctx context.Context) error

	// Close closes the datastore connection
	Close() error

	// Path returns the datastore file path
	Path() string

	// Tables lists the user tables in the datastore
	Tables(ctx context.Context) ([]string, error)

	// Backup writes a consistent copy of the datastore to path
	Backup(ctx context.Context, path string) error

	// IntegrityCheck returns the problems found in the datastore file
	IntegrityCheck(ctx context.Context) ([]string, error)

	// InitSchema creates the bookkeeping table if it is missing
	InitSchema(ctx context.Context) error

	// RecordVersion stamps the datastore with a manifest version
	RecordVersion(ctx context.Context, version string) error

	// CheckState returns the current state of the datastore
	CheckState(ctx context.Context) (StoreState, error)

	// GetSchemaVersion returns the most recently recorded manifest version
	GetSchemaVersion(ctx context.Context) (string, error)
}
