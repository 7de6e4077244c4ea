// Package api defines the request and response messages of the ledger.v1
// Connect services. Messages travel as JSON; money amounts are decimal
// strings.
package api
