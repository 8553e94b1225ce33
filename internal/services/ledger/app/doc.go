// Package server assembles the ledger service: it opens the configured store,
// wires the auth service and transfer engine into the HTTP API, and serves the
// ops gRPC health endpoint beside it.
package server
