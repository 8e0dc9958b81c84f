package interfaces

import "context"

// ThresholdKeyService is the capability boundary to the external threshold-key
// management service. The MPC protocol itself is entirely behind this
// interface; the factor manager only mediates share-set mutations.
//
// Implementations must surface a metadata version conflict as an error
// wrapping ErrMetadataConflict so callers can apply the resync-and-retry
// policy. All other errors are opaque and must not be retried.
type ThresholdKeyService interface {
	// Resync re-initializes the handle against the service's current
	// metadata. Mutating operations call this before every attempt.
	Resync(ctx context.Context) error

	// Status reports the current session status without a network call.
	Status() SessionStatus

	// CreateFactor registers a new factor key with the service.
	CreateFactor(ctx context.Context, kind ShareKind, key FactorKeyHex, module ModuleKind) error

	// DeleteFactor removes the factor named by its public identifier.
	DeleteFactor(ctx context.Context, factorPub string) error

	// InputFactorKey submits a raw factor key toward meeting the threshold.
	InputFactorKey(ctx context.Context, key FactorKeyHex) error

	// DeviceFactor returns the factor key stored on this device.
	DeviceFactor(ctx context.Context) (FactorKeyHex, error)

	// KeyDetails returns the unfiltered share-set snapshot.
	KeyDetails(ctx context.Context) (KeyDetails, error)

	// Commit persists pending metadata changes durably.
	Commit(ctx context.Context) error

	// EnableMFA converts the account to multi-factor and returns the new
	// backup factor key.
	EnableMFA(ctx context.Context) (FactorKeyHex, error)

	// SignOut ends the session.
	SignOut(ctx context.Context) error
}
