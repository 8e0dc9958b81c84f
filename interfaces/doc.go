// Package interfaces defines the domain types and capability boundaries shared
// across the wallet recovery system.
//
// The external threshold-key management service, the remote backup store, the
// OAuth token issuer, and user interaction are all consumed through interfaces
// declared here, so the factor manager and backup orchestrator can be exercised
// with fakes. Concrete implementations live in the tkms, drive, and store
// packages.
//
// The package also owns the error taxonomy: every failure crossing the factor
// manager or orchestrator boundary is classified as one of the sentinel errors
// or structured error types declared in errors.go, never surfaced as a raw
// transport error.
package interfaces
