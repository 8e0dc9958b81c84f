package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrMetadataConflict is the external service's signal that its stored
	// metadata changed since the last synchronization. Mutating operations
	// resynchronize and retry exactly once on this error class.
	ErrMetadataConflict = errors.New("threshold service metadata version conflict")

	// ErrNotInitialized is returned when an operation is attempted before the
	// threshold-key service handle exists.
	ErrNotInitialized = errors.New("threshold-key service not initialized")

	// ErrValidation marks failures refused before any network call: empty or
	// short passphrases, duplicate recovery factors, missing required input.
	ErrValidation = errors.New("validation failed")

	// ErrDecryption is returned when AEAD decryption fails. Wrong passphrase
	// and tampered ciphertext are deliberately indistinguishable.
	ErrDecryption = errors.New("decryption failed: wrong passphrase or corrupted backup")

	// ErrNoBackupFound is returned when a restore finds no backup files in
	// the remote store.
	ErrNoBackupFound = errors.New("no backup found in remote store")

	// ErrInvalidBackupFormat is returned when a downloaded record is not a
	// version-1 backup produced by this application.
	ErrInvalidBackupFormat = errors.New("invalid backup file format")
)

var (
	// ErrDuplicateRecoveryFactor refuses creation of a second seed-phrase
	// factor while one already exists.
	ErrDuplicateRecoveryFactor = fmt.Errorf("%w: a seed-phrase recovery factor already exists, delete it first", ErrValidation)

	// ErrAmbiguousRecoveryFactor is returned when more than one seed-phrase
	// descriptor is observed, which the duplicate guard should have made
	// impossible. The anomaly is surfaced instead of silently picking one.
	ErrAmbiguousRecoveryFactor = fmt.Errorf("%w: multiple seed-phrase factors present, state needs manual inspection", ErrValidation)

	// ErrPassphraseTooShort enforces the minimum backup passphrase length.
	ErrPassphraseTooShort = fmt.Errorf("%w: passphrase must be at least %d characters", ErrValidation, MinPassphraseLen)
)

// MinPassphraseLen is the minimum length accepted for backup passphrases.
const MinPassphraseLen = 8

// RemoteStoreError reports a non-success response from the remote backup
// store, carrying the HTTP status and the server's message. Store operations
// never retry internally; retry policy belongs to the caller.
type RemoteStoreError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteStoreError) Error() string {
	return fmt.Sprintf("remote store %s failed: %d %s", e.Op, e.StatusCode, e.Message)
}
