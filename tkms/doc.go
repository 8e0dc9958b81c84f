// Package tkms adapts the external threshold-key service behind the
// ThresholdKeyService interface.
//
// Two implementations are provided: Client talks to a remote service over
// HTTP, and LocalService is a self-contained in-memory service built on
// Shamir secret sharing, used for development and tests where no remote
// service is available.
package tkms
