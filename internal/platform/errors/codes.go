// Package errors provides the typed error kinds shared by the ledger core and
// its HTTP boundary.
package errors

import "net/http"

// Code is a machine-readable error kind.
type Code string

const (
	// CodeUnknown represents an unexpected fault.
	CodeUnknown Code = "UNKNOWN"

	// Transfer errors
	CodeInvalidAmount       Code = "INVALID_AMOUNT"
	CodeUnknownSender       Code = "UNKNOWN_SENDER"
	CodeUnknownReceiver     Code = "UNKNOWN_RECEIVER"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"

	// Identity errors
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeEmailTaken         Code = "EMAIL_TAKEN"
	CodeInvalidInput       Code = "INVALID_INPUT"

	// Storage errors
	CodeNotFound            Code = "NOT_FOUND"
	CodeTransactionConflict Code = "TRANSACTION_CONFLICT"
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
)

// userMessages holds the client-visible text for each code. Internal messages
// and causes never leave the process.
var userMessages = map[Code]string{
	CodeInvalidAmount:       "Invalid amount",
	CodeUnknownSender:       "Invalid account",
	CodeUnknownReceiver:     "Invalid account",
	CodeInsufficientBalance: "Insufficient balance",
	CodeUnauthenticated:     "Unauthenticated",
	CodeInvalidCredentials:  "Incorrect email or password",
	CodeEmailTaken:          "User already exists",
	CodeInvalidInput:        "Invalid request",
	CodeNotFound:            "Not found",
	CodeTransactionConflict: "The request conflicted with another operation. Please retry.",
}

const unexpectedMessage = "An unexpected error occurred. Please try again later."

// HTTPStatus maps error kinds to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidAmount,
		CodeUnknownSender,
		CodeUnknownReceiver,
		CodeInsufficientBalance,
		CodeInvalidInput:
		return http.StatusBadRequest

	case CodeUnauthenticated:
		return http.StatusForbidden

	case CodeInvalidCredentials:
		return http.StatusUnauthorized

	case CodeNotFound:
		return http.StatusNotFound

	case CodeEmailTaken,
		CodeTransactionConflict:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the message safe to show to clients.
func (c Code) UserMessage() string {
	if msg, ok := userMessages[c]; ok {
		return msg
	}
	return unexpectedMessage
}

// Retryable reports whether the caller may safely retry the request.
func (c Code) Retryable() bool {
	return c == CodeTransactionConflict
}
