// Package postgres implements the ledger store over PostgreSQL using a pgx
// connection pool.
//
// Units of work run at READ COMMITTED. Accounts are locked with
// SELECT ... FOR UPDATE one row at a time in storage.LockOrder, so two units
// of work touching the same pair always queue in the same order. Serialization
// failures and detected deadlocks surface as TRANSACTION_CONFLICT.
package postgres
