// Package backup sequences the end-to-end encrypted backup and restore
// protocols: token acquisition, passphrase policy, envelope encryption,
// remote upload, listing and selection, download, decryption, and hand-off of
// the recovered mnemonic to the factor manager.
//
// Each invocation is a strictly sequential pipeline; no step begins before
// the previous one's result is known, and a user-declined prompt cancels the
// operation with no further network effect.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/huahuahua1223/w3a-mpc/cryptobox"
	"github.com/huahuahua1223/w3a-mpc/factor"
	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// Orchestrator composes the codec, the remote store, and the factor manager
// into the backup and restore protocols.
type Orchestrator struct {
	store   interfaces.BackupStore
	tokens  interfaces.TokenSource
	factors *factor.Manager
	prompt  interfaces.InteractionProvider
	log     *slog.Logger

	now func() time.Time
}

// NewOrchestrator wires an orchestrator. tokens may be nil for stores that
// authenticate on their own; when present, it is consulted up front so the
// consent flow happens before any secret is requested from the user.
func NewOrchestrator(store interfaces.BackupStore, tokens interfaces.TokenSource, factors *factor.Manager, prompt interfaces.InteractionProvider, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		tokens:  tokens,
		factors: factors,
		prompt:  prompt,
		log:     log,
		now:     time.Now,
	}
}

func (o *Orchestrator) connect(ctx context.Context) error {
	if o.tokens == nil {
		return nil
	}
	if _, err := o.tokens.AccessToken(ctx); err != nil {
		return fmt.Errorf("could not connect to remote store: %w", err)
	}
	return nil
}

// BackupToRemote encrypts mnemonic under a user-chosen passphrase and uploads
// it as a recovery backup record. A declined passphrase prompt cancels the
// backup as a no-op; a passphrase below the minimum length is refused before
// anything leaves the process.
func (o *Orchestrator) BackupToRemote(ctx context.Context, mnemonic, label string) error {
	if strings.TrimSpace(mnemonic) == "" {
		return fmt.Errorf("%w: no mnemonic to back up", interfaces.ErrValidation)
	}

	if err := o.connect(ctx); err != nil {
		return err
	}

	passphrase, ok, err := o.prompt.ReadSecret(ctx,
		fmt.Sprintf("Set a passphrase to encrypt the backup (at least %d characters). You will need it to restore.", interfaces.MinPassphraseLen))
	if err != nil {
		return err
	}
	if !ok {
		o.log.Info("Backup cancelled at passphrase prompt")
		return nil
	}
	if len(passphrase) < interfaces.MinPassphraseLen {
		return interfaces.ErrPassphraseTooShort
	}

	env, err := cryptobox.Encrypt(passphrase, mnemonic)
	if err != nil {
		return err
	}

	record := NewRecoveryRecord(env, label, o.now())
	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal backup record: %w", err)
	}

	handle, err := o.store.Create(ctx, MakeFileName(o.now()), content)
	if err != nil {
		o.log.Error("Backup upload failed", "err", err)
		return err
	}

	o.log.Info("Backup uploaded", "name", handle.Name, "id", handle.ID)
	return nil
}

// BackupSmart backs up the recovery factor, creating one first if none
// exists. With an existing factor it prefers the most recently created
// in-process mnemonic, then the caller-supplied fallback, and completes as a
// no-op when neither is available.
func (o *Orchestrator) BackupSmart(ctx context.Context, fallbackMnemonic, label string) error {
	exists, err := o.factors.HasRecoveryFactor(ctx)
	if err != nil {
		return err
	}

	if !exists {
		o.log.Info("No recovery factor yet, creating one before backup")
		mnemonic, err := o.factors.CreateRecoveryFactor(ctx)
		if err != nil {
			return err
		}
		return o.BackupToRemote(ctx, mnemonic, label)
	}

	mnemonic := o.factors.LastCreatedMnemonic()
	if mnemonic == "" {
		mnemonic = strings.TrimSpace(fallbackMnemonic)
	}
	if mnemonic == "" {
		o.log.Warn("Recovery factor exists but no mnemonic is available to back up, nothing to do")
		return nil
	}
	return o.BackupToRemote(ctx, mnemonic, label)
}

// ListBackups returns the remote backup handles, most recent first.
func (o *Orchestrator) ListBackups(ctx context.Context) ([]interfaces.BackupFileHandle, error) {
	if err := o.connect(ctx); err != nil {
		return nil, err
	}

	files, err := o.store.List(ctx, FilePrefix)
	if err != nil {
		return nil, err
	}
	sortByCreatedDesc(files)
	return files, nil
}

// RestoreFromRemote downloads a chosen backup, decrypts it with a
// user-supplied passphrase, and feeds the recovered factor key into the
// threshold scheme. Cancellation at the selection or passphrase prompt
// returns an empty key and no error.
func (o *Orchestrator) RestoreFromRemote(ctx context.Context) (interfaces.FactorKeyHex, error) {
	files, err := o.ListBackups(ctx)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", interfaces.ErrNoBackupFound
	}
	o.log.Info("Found remote backups", "count", len(files))

	chosen, ok, err := o.selectBackup(ctx, files)
	if err != nil {
		return "", err
	}
	if !ok {
		o.log.Info("Restore cancelled at file selection")
		return "", nil
	}

	o.log.Info("Downloading backup", "name", chosen.Name)
	content, err := o.store.Download(ctx, chosen.ID)
	if err != nil {
		return "", err
	}

	record, err := ParseRecord(content)
	if err != nil {
		return "", err
	}

	passphrase, ok, err := o.prompt.ReadSecret(ctx,
		fmt.Sprintf("Enter the backup passphrase (backup created %s).", record.CreatedAt))
	if err != nil {
		return "", err
	}
	if !ok {
		o.log.Info("Restore cancelled at passphrase prompt")
		return "", nil
	}

	mnemonic, err := cryptobox.Decrypt(passphrase, record.Encrypted)
	if err != nil {
		return "", err
	}
	o.log.Info("Backup decrypted")

	key, err := o.factors.ConvertMnemonicToKey(mnemonic)
	if err != nil {
		return "", err
	}
	if err := o.factors.InputBackupFactor(ctx, key); err != nil {
		return "", err
	}
	return key, nil
}

// selectBackup picks the backup to restore. With a single candidate there is
// nothing to ask. Otherwise the ordered list is presented; the selection is
// 1-indexed, blank input means the most recent, and an unparseable or
// out-of-range selection falls back to the most recent rather than erroring.
func (o *Orchestrator) selectBackup(ctx context.Context, files []interfaces.BackupFileHandle) (interfaces.BackupFileHandle, bool, error) {
	if len(files) == 1 {
		return files[0], true, nil
	}

	var listing strings.Builder
	for i, f := range files {
		fmt.Fprintf(&listing, "%d. %s (%s)\n", i+1, f.Name, f.CreatedTime.Format(time.RFC3339))
	}
	prompt := fmt.Sprintf("Found %d backups:\n%sSelect 1-%d, or press enter for the most recent.",
		len(files), listing.String(), len(files))

	input, ok, err := o.prompt.ReadLine(ctx, prompt)
	if err != nil || !ok {
		return interfaces.BackupFileHandle{}, false, err
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return files[0], true, nil
	}

	idx, err := strconv.Atoi(input)
	if err != nil || idx < 1 || idx > len(files) {
		o.log.Warn("Selection out of range, using the most recent backup", "input", input)
		return files[0], true, nil
	}
	return files[idx-1], true, nil
}

func sortByCreatedDesc(files []interfaces.BackupFileHandle) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedTime.After(files[j].CreatedTime)
	})
}
