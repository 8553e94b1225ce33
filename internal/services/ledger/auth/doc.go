// Package auth owns ledger identities at the service boundary: signup with an
// opening balance, password signin and stateless bearer-token verification.
//
// Only Authenticate is consulted on the transfer path. The engine trusts the
// user ID it yields as the sender.
package auth
