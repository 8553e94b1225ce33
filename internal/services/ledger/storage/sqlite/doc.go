// Package sqlite implements the ledger store over a single SQLite file.
//
// Units of work open with BEGIN IMMEDIATE, so the write lock is held from the
// first read of a transfer to its commit. Readers use WAL snapshots and never
// see uncommitted balances.
package sqlite
