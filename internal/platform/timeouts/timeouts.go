// Package timeouts defines the timeout constants shared by the ledger
// binaries.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the ops gRPC endpoint.
const GRPCDial = 2 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown. Transfers already inside a unit of work finish first.
const Shutdown = 5 * time.Second

// StoreConnect caps the initial store ping at startup.
const StoreConnect = 10 * time.Second
