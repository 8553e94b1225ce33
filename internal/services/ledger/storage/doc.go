// Backends live in subpackages: sqlite (default, single file), postgres
// (pgx, row locks) and memory (per-account mutexes, tests and demos). All of
// them pass the storagetest conformance suite.
package storage
