package tkms

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/vault/shamir"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// LocalService is an in-memory threshold-key service. The master key is split
// into a server share and a user share with Shamir secret sharing; the user
// share is stored encrypted under each factor key, so presenting any valid
// factor key reconstructs the master key and unlocks the session.
//
// Metadata mutations are staged and only become durable on Commit, mirroring
// the remote service's two-phase metadata protocol.
type LocalService struct {
	mu  sync.Mutex
	log *slog.Logger

	masterSum   [32]byte
	serverShare []byte
	userShare   []byte

	status    interfaces.SessionStatus
	deviceKey interfaces.FactorKeyHex

	staged    map[string]factorEntry
	committed map[string]factorEntry

	conflictsLeft int
}

type factorEntry struct {
	encryptedShare []byte
	kind           interfaces.ShareKind
	module         interfaces.ModuleKind
	shareIndex     int
	added          time.Time
}

// NewLocalService creates a local service with a fresh master key and a
// device factor already enrolled, so the session starts Ready the way a
// logged-in device does.
func NewLocalService(log *slog.Logger) (*LocalService, error) {
	masterKey := make([]byte, 32)
	if _, err := rand.Read(masterKey); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}

	shares, err := shamir.Split(masterKey, 2, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to split master key: %w", err)
	}

	s := &LocalService{
		log:         log,
		masterSum:   sha256.Sum256(masterKey),
		serverShare: shares[0],
		userShare:   shares[1],
		status:      interfaces.StatusAwaitingFactor,
		staged:      map[string]factorEntry{},
		committed:   map[string]factorEntry{},
	}

	deviceKey, err := interfaces.GenerateFactorKey()
	if err != nil {
		return nil, err
	}
	if err := s.addFactor(interfaces.ShareDevice, deviceKey, interfaces.ModuleDeviceShare); err != nil {
		return nil, err
	}
	s.committed = cloneEntries(s.staged)
	s.deviceKey = deviceKey
	s.status = interfaces.StatusReady

	return s, nil
}

// InjectConflicts makes the next n Commit calls fail with a metadata
// conflict, for exercising retry paths.
func (s *LocalService) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflictsLeft = n
}

func (s *LocalService) Resync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = cloneEntries(s.committed)
	return nil
}

func (s *LocalService) Status() interfaces.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *LocalService) CreateFactor(ctx context.Context, kind interfaces.ShareKind, key interfaces.FactorKeyHex, module interfaces.ModuleKind) error {
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != interfaces.StatusReady {
		return interfaces.ErrNotInitialized
	}
	return s.addFactor(kind, key, module)
}

// addFactor stages a factor entry. Caller holds the lock (or is the
// constructor).
func (s *LocalService) addFactor(kind interfaces.ShareKind, key interfaces.FactorKeyHex, module interfaces.ModuleKind) error {
	pub, err := factorPubKey(key)
	if err != nil {
		return err
	}

	encrypted, err := sealShare(key, s.userShare)
	if err != nil {
		return fmt.Errorf("failed to seal user share: %w", err)
	}

	s.staged[pub] = factorEntry{
		encryptedShare: encrypted,
		kind:           kind,
		module:         module,
		shareIndex:     2 + len(s.staged),
		added:          time.Now().UTC(),
	}
	return nil
}

func (s *LocalService) DeleteFactor(ctx context.Context, factorPub string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.staged[factorPub]; !found {
		return fmt.Errorf("%w: unknown factor %s", interfaces.ErrValidation, factorPub)
	}
	delete(s.staged, factorPub)
	return nil
}

// InputFactorKey tries the key against every enrolled factor. A key that
// opens an encrypted user share reconstructs the master key and readies the
// session; a key that opens nothing is rejected.
func (s *LocalService) InputFactorKey(ctx context.Context, key interfaces.FactorKeyHex) error {
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for pub, entry := range s.committed {
		share, err := openShare(key, entry.encryptedShare)
		if err != nil {
			continue
		}

		master, err := shamir.Combine([][]byte{s.serverShare, share})
		if err != nil {
			return fmt.Errorf("failed to combine shares: %w", err)
		}
		if sha256.Sum256(master) != s.masterSum {
			return fmt.Errorf("%w: reconstructed key mismatch", interfaces.ErrValidation)
		}

		s.status = interfaces.StatusReady
		s.log.Info("Session unlocked with factor", "factorPub", pub, "module", string(entry.module))
		return nil
	}
	return fmt.Errorf("%w: factor key does not match any enrolled factor", interfaces.ErrValidation)
}

func (s *LocalService) DeviceFactor(ctx context.Context) (interfaces.FactorKeyHex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deviceKey == "" {
		return "", interfaces.ErrNotInitialized
	}
	return s.deviceKey, nil
}

func (s *LocalService) KeyDetails(ctx context.Context) (interfaces.KeyDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	descriptions := make(map[string][]string, len(s.staged))
	for pub, entry := range s.staged {
		doc, err := json.Marshal(map[string]interface{}{
			"module":        string(entry.module),
			"dateAdded":     entry.added.UnixMilli(),
			"tssShareIndex": entry.shareIndex,
		})
		if err != nil {
			return interfaces.KeyDetails{}, err
		}
		descriptions[pub] = []string{string(doc)}
	}

	required := 0
	if s.status != interfaces.StatusReady {
		required = 1
	}
	return interfaces.KeyDetails{
		RequiredFactors:   required,
		Threshold:         2,
		TotalFactors:      len(descriptions),
		KeyType:           "secp256k1",
		ShareDescriptions: descriptions,
	}, nil
}

func (s *LocalService) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return fmt.Errorf("metadata commit rejected, code %d: %w", conflictCode, interfaces.ErrMetadataConflict)
	}

	s.committed = cloneEntries(s.staged)
	return nil
}

// EnableMFA enrolls a fresh recovery factor and returns its key.
func (s *LocalService) EnableMFA(ctx context.Context) (interfaces.FactorKeyHex, error) {
	key, err := interfaces.GenerateFactorKey()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != interfaces.StatusReady {
		return "", interfaces.ErrNotInitialized
	}
	if err := s.addFactor(interfaces.ShareRecovery, key, interfaces.ModuleSeedPhrase); err != nil {
		return "", err
	}
	s.committed = cloneEntries(s.staged)
	return key, nil
}

func (s *LocalService) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = interfaces.StatusSignedOut
	return nil
}

func cloneEntries(in map[string]factorEntry) map[string]factorEntry {
	out := make(map[string]factorEntry, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// factorPubKey derives the compressed secp256k1 public key identifying a
// factor.
func factorPubKey(key interfaces.FactorKeyHex) (string, error) {
	raw, err := key.Bytes()
	if err != nil {
		return "", err
	}
	priv, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return "", fmt.Errorf("%w: factor key is not a valid scalar: %v", interfaces.ErrValidation, err)
	}
	return hex.EncodeToString(ethcrypto.CompressPubkey(&priv.PublicKey)), nil
}

// sealShare encrypts a user share under a factor key. The nonce is prepended
// to the ciphertext.
func sealShare(key interfaces.FactorKeyHex, share []byte) ([]byte, error) {
	aead, err := shareAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, share, nil), nil
}

func openShare(key interfaces.FactorKeyHex, sealed []byte) ([]byte, error) {
	aead, err := shareAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed share too short")
	}
	return aead.Open(nil, sealed[:aead.NonceSize()], sealed[aead.NonceSize():], nil)
}

func shareAEAD(key interfaces.FactorKeyHex) (cipher.AEAD, error) {
	raw, err := key.Bytes()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
