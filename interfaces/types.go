package interfaces

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SessionStatus mirrors the authentication status reported by the external
// threshold-key service.
type SessionStatus string

const (
	// StatusUninitialized means the service handle exists but has not been
	// initialized or synchronized yet.
	StatusUninitialized SessionStatus = "UNINITIALIZED"

	// StatusAwaitingFactor means the user is authenticated but the threshold
	// is not yet met and one or more factor keys must still be supplied.
	StatusAwaitingFactor SessionStatus = "AWAITING_FACTOR"

	// StatusReady means the threshold is met and the signing key is usable.
	StatusReady SessionStatus = "READY"

	// StatusSignedOut means the user explicitly signed out.
	StatusSignedOut SessionStatus = "SIGNED_OUT"
)

// ShareKind classifies a factor's role within the threshold scheme.
type ShareKind string

const (
	ShareRecovery ShareKind = "RECOVERY"
	ShareDevice   ShareKind = "DEVICE"
	ShareServer   ShareKind = "SERVER"
)

// ModuleKind identifies the kind of module that produced a factor, as recorded
// in its share description.
type ModuleKind string

const (
	ModuleDeviceShare    ModuleKind = "deviceShare"
	ModuleSeedPhrase     ModuleKind = "seedPhrase"
	ModuleHashedPassword ModuleKind = "hashedShare"
	ModuleOther          ModuleKind = "other"
)

// FactorKeyHex is the raw secret of a single factor, encoded as a fixed-width
// lowercase hex scalar (32 bytes, 64 hex characters).
type FactorKeyHex string

// factorKeyBytes is the raw length of a factor key.
const factorKeyBytes = 32

// GenerateFactorKey produces a fresh random factor key.
func GenerateFactorKey() (FactorKeyHex, error) {
	buf := make([]byte, factorKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate factor key: %w", err)
	}
	return FactorKeyHex(hex.EncodeToString(buf)), nil
}

// Validate checks that the key is a well-formed 32-byte hex scalar.
func (k FactorKeyHex) Validate() error {
	clean := strings.TrimPrefix(string(k), "0x")
	if len(clean) != factorKeyBytes*2 {
		return errors.New("factor key must be 64 hex characters")
	}
	if _, err := hex.DecodeString(clean); err != nil {
		return fmt.Errorf("factor key is not valid hex: %w", err)
	}
	return nil
}

// Bytes returns the decoded 32-byte scalar. Validate must have passed.
func (k FactorKeyHex) Bytes() ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(string(k), "0x"))
}

// Factor describes one share of the distributed signing key, parsed from the
// service's share description record.
type Factor struct {
	// PubKey is the opaque public identifier uniquely naming the share.
	PubKey string `json:"pub"`

	// Module records which kind of module created the share.
	Module ModuleKind `json:"module"`

	// ShareIndex is the share's position within the threshold scheme.
	ShareIndex int `json:"tssShareIndex,omitempty"`

	// DateAdded is the creation time reported by the service.
	DateAdded time.Time `json:"-"`

	// Device carries optional browser/device metadata for device shares.
	Device string `json:"browser,omitempty"`
}

// KeyDetails is a snapshot of the threshold scheme's current composition.
// It is derived on demand from the external service, never stored.
type KeyDetails struct {
	// RequiredFactors is how many more shares are needed right now.
	RequiredFactors int `json:"requiredFactors"`

	// Threshold is the minimum number of shares needed to operate.
	Threshold int `json:"threshold"`

	// TotalFactors counts all registered shares.
	TotalFactors int `json:"totalFactors"`

	// KeyType names the signing curve or scheme.
	KeyType string `json:"keyType"`

	// ShareDescriptions maps a factor public identifier to its descriptor
	// documents. Entries with no descriptor are invalid; the factor manager
	// filters them out before exposing the snapshot to callers.
	ShareDescriptions map[string][]string `json:"shareDescriptions"`
}
