// Package schema reconciles the live shape of a table with a desired set of
// columns and indexes.
//
// Reconciliation is strictly additive: missing columns and indexes are
// created, everything already present is left alone. Presence is read from
// the live store on every call, so running the same reconciliation twice is
// a no-op the second time.
//
// Each column is added in its own transaction and committed before the next
// one is attempted. A rejected column is recorded in the Result and the run
// moves on, unless Options.StopOnError is set.
package schema
