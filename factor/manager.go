package factor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// deleteConfirmPrompt gates the irreversible removal of the seed-phrase
// factor.
const deleteConfirmPrompt = "Deleting the seed-phrase factor is irreversible: the mnemonic will no " +
	"longer recover this account. Make sure another recovery path exists. Continue?"

// Manager creates, deletes, and inspects threshold-key factors through the
// injected service. It owns the process-local "last created mnemonic": single
// writer (factor creation), read by the backup orchestrator.
type Manager struct {
	svc    interfaces.ThresholdKeyService
	prompt interfaces.InteractionProvider
	log    *slog.Logger

	mu           sync.RWMutex
	lastMnemonic string
}

// NewManager wires a manager to the threshold-key service. prompt gates
// irreversible operations and may be nil only if DeleteRecoveryFactor is
// never used.
func NewManager(svc interfaces.ThresholdKeyService, prompt interfaces.InteractionProvider, log *slog.Logger) *Manager {
	return &Manager{svc: svc, prompt: prompt, log: log}
}

// LastCreatedMnemonic returns the mnemonic of the most recently created
// factor in this process, or "" if none was created yet. It is overwritten by
// every factor creation.
func (m *Manager) LastCreatedMnemonic() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastMnemonic
}

func (m *Manager) setLastMnemonic(mnemonic string) {
	m.mu.Lock()
	m.lastMnemonic = mnemonic
	m.mu.Unlock()
}

// resyncAndRetry runs one mutating operation with the conflict policy shared
// by all mutations: resync, run, and on a metadata version conflict resync
// and rerun exactly once. Any other failure, and a conflict on the second
// run, surface immediately.
func (m *Manager) resyncAndRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	if m.svc == nil {
		return interfaces.ErrNotInitialized
	}

	if err := m.svc.Resync(ctx); err != nil {
		return fmt.Errorf("resync before %s failed: %w", op, err)
	}

	err := fn(ctx)
	if err == nil || !errors.Is(err, interfaces.ErrMetadataConflict) {
		return err
	}

	m.log.Warn("Metadata version conflict, resynchronizing and retrying once", "op", op)
	if err := m.svc.Resync(ctx); err != nil {
		return fmt.Errorf("resync before %s retry failed: %w", op, err)
	}
	return fn(ctx)
}

// commitIfReady persists pending metadata changes, but only while the session
// is Ready. Committing mid-enrollment is skipped deliberately; the service
// flushes on the transition to Ready.
func (m *Manager) commitIfReady(ctx context.Context) error {
	status := m.svc.Status()
	if status != interfaces.StatusReady {
		m.log.Debug("Skipping commit, session not ready", "status", string(status))
		return nil
	}
	if err := m.svc.Commit(ctx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// EnableMultiFactor converts the account to multi-factor and returns the new
// backup factor key. The key's mnemonic encoding becomes the last created
// mnemonic.
func (m *Manager) EnableMultiFactor(ctx context.Context) (interfaces.FactorKeyHex, error) {
	var key interfaces.FactorKeyHex

	err := m.resyncAndRetry(ctx, "enable MFA", func(ctx context.Context) error {
		k, err := m.svc.EnableMFA(ctx)
		if err != nil {
			return err
		}
		key = k
		return m.commitIfReady(ctx)
	})
	if err != nil {
		m.log.Error("Enabling MFA failed", "err", err)
		return "", err
	}

	mnemonic, err := KeyToMnemonic(key)
	if err != nil {
		return "", err
	}
	m.setLastMnemonic(mnemonic)

	m.log.Info("MFA enabled, backup factor created")
	return key, nil
}

// CreateRecoveryFactor generates a fresh random factor key, registers it as a
// recovery-type seed-phrase share, and returns its mnemonic. Creation is
// refused while a seed-phrase factor already exists.
func (m *Manager) CreateRecoveryFactor(ctx context.Context) (string, error) {
	var mnemonic string

	err := m.resyncAndRetry(ctx, "create recovery factor", func(ctx context.Context) error {
		factors, err := m.validFactors(ctx)
		if err != nil {
			return err
		}
		switch seed := filterByModule(factors, interfaces.ModuleSeedPhrase); len(seed) {
		case 0:
			// No existing recovery factor, proceed.
		case 1:
			return interfaces.ErrDuplicateRecoveryFactor
		default:
			return interfaces.ErrAmbiguousRecoveryFactor
		}

		key, err := interfaces.GenerateFactorKey()
		if err != nil {
			return err
		}
		if err := m.svc.CreateFactor(ctx, interfaces.ShareRecovery, key, interfaces.ModuleSeedPhrase); err != nil {
			return err
		}

		mn, err := KeyToMnemonic(key)
		if err != nil {
			return err
		}
		mnemonic = mn
		return m.commitIfReady(ctx)
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrValidation) {
			m.log.Warn("Recovery factor creation refused", "err", err)
		} else {
			m.log.Error("Recovery factor creation failed", "err", err)
		}
		return "", err
	}

	m.setLastMnemonic(mnemonic)
	m.log.Info("Recovery factor created, store the mnemonic safely")
	return mnemonic, nil
}

// DeleteRecoveryFactor locates the unique seed-phrase factor, asks the user
// to confirm the irreversible deletion, removes it, and returns a refreshed
// share-set snapshot. A missing factor or a declined confirmation completes
// as a logged no-op.
func (m *Manager) DeleteRecoveryFactor(ctx context.Context) (interfaces.KeyDetails, error) {
	var details interfaces.KeyDetails

	err := m.resyncAndRetry(ctx, "delete recovery factor", func(ctx context.Context) error {
		factors, err := m.validFactors(ctx)
		if err != nil {
			return err
		}

		seed := filterByModule(factors, interfaces.ModuleSeedPhrase)
		if len(seed) == 0 {
			m.log.Warn("No seed-phrase factor to delete")
			d, err := m.FetchKeyDetails(ctx)
			details = d
			return err
		}
		if len(seed) > 1 {
			return interfaces.ErrAmbiguousRecoveryFactor
		}

		if m.prompt == nil {
			return fmt.Errorf("%w: deletion requires an interaction provider", interfaces.ErrValidation)
		}
		ok, err := m.prompt.Confirm(ctx, deleteConfirmPrompt)
		if err != nil {
			return err
		}
		if !ok {
			m.log.Info("Recovery factor deletion cancelled")
			return nil
		}

		m.log.Info("Deleting seed-phrase factor", "factorPub", seed[0].PubKey)
		if err := m.svc.DeleteFactor(ctx, seed[0].PubKey); err != nil {
			return err
		}
		if err := m.commitIfReady(ctx); err != nil {
			return err
		}

		// Resync once more so the returned snapshot reflects the deletion.
		if err := m.svc.Resync(ctx); err != nil {
			return fmt.Errorf("resync after deletion failed: %w", err)
		}
		d, err := m.FetchKeyDetails(ctx)
		details = d
		return err
	})
	if err != nil {
		m.log.Error("Recovery factor deletion failed", "err", err)
		return interfaces.KeyDetails{}, err
	}
	return details, nil
}

// InputBackupFactor submits a raw factor key toward the threshold. The session
// status afterwards tells whether more factors are still required.
func (m *Manager) InputBackupFactor(ctx context.Context, key interfaces.FactorKeyHex) error {
	if m.svc == nil {
		return interfaces.ErrNotInitialized
	}
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrValidation, err)
	}

	if err := m.svc.InputFactorKey(ctx, key); err != nil {
		m.log.Error("Submitting backup factor failed", "err", err)
		return err
	}

	switch status := m.svc.Status(); status {
	case interfaces.StatusReady:
		m.log.Info("Factor accepted, threshold met")
	case interfaces.StatusAwaitingFactor:
		m.log.Info("Factor accepted, more factors still required")
	default:
		m.log.Info("Factor accepted", "status", string(status))
	}
	return nil
}

// ConvertMnemonicToKey recovers the raw factor key from its word encoding.
func (m *Manager) ConvertMnemonicToKey(mnemonic string) (interfaces.FactorKeyHex, error) {
	return MnemonicToKey(mnemonic)
}

// FetchDeviceFactor returns the factor key stored on this device.
func (m *Manager) FetchDeviceFactor(ctx context.Context) (interfaces.FactorKeyHex, error) {
	if m.svc == nil {
		return "", interfaces.ErrNotInitialized
	}
	key, err := m.svc.DeviceFactor(ctx)
	if err != nil {
		m.log.Error("Fetching device factor failed", "err", err)
		return "", err
	}
	return key, nil
}

// FetchKeyDetails returns the current share-set snapshot with invalid (empty)
// descriptor entries filtered out.
func (m *Manager) FetchKeyDetails(ctx context.Context) (interfaces.KeyDetails, error) {
	if m.svc == nil {
		return interfaces.KeyDetails{}, interfaces.ErrNotInitialized
	}

	details, err := m.svc.KeyDetails(ctx)
	if err != nil {
		return interfaces.KeyDetails{}, fmt.Errorf("could not fetch key details: %w", err)
	}

	filtered := make(map[string][]string, len(details.ShareDescriptions))
	for pub, docs := range details.ShareDescriptions {
		if len(docs) == 0 {
			continue
		}
		filtered[pub] = docs
	}
	details.ShareDescriptions = filtered
	return details, nil
}

// HasRecoveryFactor reports whether a seed-phrase factor currently exists.
func (m *Manager) HasRecoveryFactor(ctx context.Context) (bool, error) {
	factors, err := m.validFactors(ctx)
	if err != nil {
		return false, err
	}
	return len(filterByModule(factors, interfaces.ModuleSeedPhrase)) > 0, nil
}

func (m *Manager) validFactors(ctx context.Context) ([]interfaces.Factor, error) {
	details, err := m.FetchKeyDetails(ctx)
	if err != nil {
		return nil, err
	}
	return ParseDescriptors(details.ShareDescriptions), nil
}
