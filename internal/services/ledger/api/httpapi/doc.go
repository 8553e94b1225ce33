// Package httpapi exposes the ledger over JSON HTTP under /api/v1.
//
// Handlers decode typed request structs, validate them with
// go-playground/validator and delegate to the auth service and the transfer
// engine. Error kinds map to status codes through apperrors.Code; clients
// only ever see the fixed user message for a kind.
package httpapi
