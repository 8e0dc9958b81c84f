package factor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// fakeService scripts the external threshold-key service. conflictsLeft makes
// the next N mutation attempts fail with the metadata conflict class.
type fakeService struct {
	status        interfaces.SessionStatus
	descriptions  map[string][]string
	deviceKey     interfaces.FactorKeyHex
	conflictsLeft int

	resyncs     int
	commits     int
	createCalls int
	deleteCalls int
	enableCalls int
	inputKeys   []interfaces.FactorKeyHex
	deleted     []string
}

func newFakeService(status interfaces.SessionStatus) *fakeService {
	return &fakeService{status: status, descriptions: map[string][]string{}}
}

func (f *fakeService) conflict() error {
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return fmt.Errorf("service error code 1401: %w", interfaces.ErrMetadataConflict)
	}
	return nil
}

func (f *fakeService) Resync(ctx context.Context) error { f.resyncs++; return nil }
func (f *fakeService) Status() interfaces.SessionStatus { return f.status }

func (f *fakeService) CreateFactor(ctx context.Context, kind interfaces.ShareKind, key interfaces.FactorKeyHex, module interfaces.ModuleKind) error {
	f.createCalls++
	if err := f.conflict(); err != nil {
		return err
	}
	pub := fmt.Sprintf("pub-%d", f.createCalls)
	f.descriptions[pub] = []string{fmt.Sprintf(`{"module":%q,"dateAdded":1714000000000,"tssShareIndex":2}`, module)}
	return nil
}

func (f *fakeService) DeleteFactor(ctx context.Context, factorPub string) error {
	f.deleteCalls++
	if err := f.conflict(); err != nil {
		return err
	}
	if _, found := f.descriptions[factorPub]; !found {
		return fmt.Errorf("unknown factor %s", factorPub)
	}
	delete(f.descriptions, factorPub)
	f.deleted = append(f.deleted, factorPub)
	return nil
}

func (f *fakeService) InputFactorKey(ctx context.Context, key interfaces.FactorKeyHex) error {
	f.inputKeys = append(f.inputKeys, key)
	f.status = interfaces.StatusReady
	return nil
}

func (f *fakeService) DeviceFactor(ctx context.Context) (interfaces.FactorKeyHex, error) {
	return f.deviceKey, nil
}

func (f *fakeService) KeyDetails(ctx context.Context) (interfaces.KeyDetails, error) {
	return interfaces.KeyDetails{
		Threshold:         2,
		TotalFactors:      len(f.descriptions),
		KeyType:           "secp256k1",
		ShareDescriptions: f.descriptions,
	}, nil
}

func (f *fakeService) Commit(ctx context.Context) error { f.commits++; return nil }

func (f *fakeService) EnableMFA(ctx context.Context) (interfaces.FactorKeyHex, error) {
	f.enableCalls++
	if err := f.conflict(); err != nil {
		return "", err
	}
	return interfaces.GenerateFactorKey()
}

func (f *fakeService) SignOut(ctx context.Context) error {
	f.status = interfaces.StatusSignedOut
	return nil
}

// scriptedPrompt answers Confirm with a fixed verdict.
type scriptedPrompt struct {
	verdict  bool
	confirms int
}

func (p *scriptedPrompt) Confirm(ctx context.Context, prompt string) (bool, error) {
	p.confirms++
	return p.verdict, nil
}

func (p *scriptedPrompt) ReadSecret(ctx context.Context, prompt string) (string, bool, error) {
	return "", false, nil
}

func (p *scriptedPrompt) ReadLine(ctx context.Context, prompt string) (string, bool, error) {
	return "", false, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateRecoveryFactor(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	mgr := NewManager(svc, &scriptedPrompt{verdict: true}, testLogger())

	mnemonic, err := mgr.CreateRecoveryFactor(context.Background())
	require.NoError(t, err, "Creation should succeed with no existing recovery factor")
	require.NotEmpty(t, mnemonic)

	key, err := MnemonicToKey(mnemonic)
	require.NoError(t, err, "Returned mnemonic must convert back to a key")
	assert.NoError(t, key.Validate())

	assert.Equal(t, 1, svc.createCalls)
	assert.Equal(t, 1, svc.commits, "Commit must run when the session is Ready")
	assert.Equal(t, mnemonic, mgr.LastCreatedMnemonic())
}

func TestCreateRecoveryFactorDuplicateGuard(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	svc.descriptions["existing"] = []string{`{"module":"seedPhrase","dateAdded":1714000000000}`}
	mgr := NewManager(svc, &scriptedPrompt{verdict: true}, testLogger())

	mnemonic, err := mgr.CreateRecoveryFactor(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrDuplicateRecoveryFactor)
	assert.ErrorIs(t, err, interfaces.ErrValidation)
	assert.Empty(t, mnemonic)
	assert.Zero(t, svc.createCalls, "Guard must refuse before any mutation call")
	assert.Zero(t, svc.commits)
}

func TestCreateRecoveryFactorAmbiguousGuard(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	svc.descriptions["one"] = []string{`{"module":"seedPhrase","dateAdded":1}`}
	svc.descriptions["two"] = []string{`{"module":"seedPhrase","dateAdded":2}`}
	mgr := NewManager(svc, &scriptedPrompt{verdict: true}, testLogger())

	_, err := mgr.CreateRecoveryFactor(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrAmbiguousRecoveryFactor,
		"Two seed-phrase factors must surface the anomaly, not silently pick one")
	assert.Zero(t, svc.createCalls)
}

func TestCreateRecoveryFactorConflictRetry(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	svc.conflictsLeft = 1
	mgr := NewManager(svc, &scriptedPrompt{verdict: true}, testLogger())

	mnemonic, err := mgr.CreateRecoveryFactor(context.Background())
	require.NoError(t, err, "First-attempt conflict must be retried once and succeed")
	assert.NotEmpty(t, mnemonic)
	assert.Equal(t, 2, svc.createCalls, "Exactly two mutation attempts")
	assert.Equal(t, 2, svc.resyncs, "Resync before each attempt")
}

func TestCreateRecoveryFactorConflictRetryBound(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	svc.conflictsLeft = 2
	mgr := NewManager(svc, &scriptedPrompt{verdict: true}, testLogger())

	_, err := mgr.CreateRecoveryFactor(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrMetadataConflict, "Second conflict surfaces")
	assert.Equal(t, 2, svc.createCalls, "No third attempt is made")
}

func TestCreateRecoveryFactorNoCommitBeforeReady(t *testing.T) {
	svc := newFakeService(interfaces.StatusAwaitingFactor)
	mgr := NewManager(svc, &scriptedPrompt{verdict: true}, testLogger())

	_, err := mgr.CreateRecoveryFactor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, svc.createCalls)
	assert.Zero(t, svc.commits, "Commit must not run while the session is not Ready")
}

func TestEnableMultiFactor(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	mgr := NewManager(svc, &scriptedPrompt{verdict: true}, testLogger())

	key, err := mgr.EnableMultiFactor(context.Background())
	require.NoError(t, err)
	require.NoError(t, key.Validate())

	mnemonic := mgr.LastCreatedMnemonic()
	require.NotEmpty(t, mnemonic)
	back, err := MnemonicToKey(mnemonic)
	require.NoError(t, err)
	assert.Equal(t, key, back, "Cached mnemonic must encode the returned key")
	assert.Equal(t, 1, svc.commits)
}

func TestEnableMultiFactorConflictRetry(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	svc.conflictsLeft = 1
	mgr := NewManager(svc, &scriptedPrompt{verdict: true}, testLogger())

	_, err := mgr.EnableMultiFactor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, svc.enableCalls)
}

func TestDeleteRecoveryFactor(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	svc.descriptions["seed-pub"] = []string{`{"module":"seedPhrase","dateAdded":1714000000000}`}
	svc.descriptions["device-pub"] = []string{`{"module":"deviceShare","dateAdded":1714000000000}`}
	prompt := &scriptedPrompt{verdict: true}
	mgr := NewManager(svc, prompt, testLogger())

	details, err := mgr.DeleteRecoveryFactor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, prompt.confirms, "Deletion must be confirmed first")
	assert.Equal(t, []string{"seed-pub"}, svc.deleted)
	assert.Equal(t, 1, svc.commits)
	assert.NotContains(t, details.ShareDescriptions, "seed-pub", "Returned snapshot must be refreshed")
	assert.Contains(t, details.ShareDescriptions, "device-pub")
}

func TestDeleteRecoveryFactorDeclined(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	svc.descriptions["seed-pub"] = []string{`{"module":"seedPhrase","dateAdded":1714000000000}`}
	prompt := &scriptedPrompt{verdict: false}
	mgr := NewManager(svc, prompt, testLogger())

	_, err := mgr.DeleteRecoveryFactor(context.Background())
	require.NoError(t, err, "Declining the confirmation is a no-op, not an error")
	assert.Equal(t, 1, prompt.confirms)
	assert.Zero(t, svc.deleteCalls)
	assert.Zero(t, svc.commits)
}

func TestDeleteRecoveryFactorMissing(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	mgr := NewManager(svc, &scriptedPrompt{verdict: true}, testLogger())

	_, err := mgr.DeleteRecoveryFactor(context.Background())
	require.NoError(t, err, "Missing factor completes as a logged no-op")
	assert.Zero(t, svc.deleteCalls)
}

func TestInputBackupFactorValidation(t *testing.T) {
	svc := newFakeService(interfaces.StatusAwaitingFactor)
	mgr := NewManager(svc, nil, testLogger())

	err := mgr.InputBackupFactor(context.Background(), "not-hex")
	assert.ErrorIs(t, err, interfaces.ErrValidation)
	assert.Empty(t, svc.inputKeys)

	key, err := interfaces.GenerateFactorKey()
	require.NoError(t, err)
	require.NoError(t, mgr.InputBackupFactor(context.Background(), key))
	assert.Equal(t, []interfaces.FactorKeyHex{key}, svc.inputKeys)
	assert.Equal(t, interfaces.StatusReady, svc.Status())
}

func TestFetchKeyDetailsFiltersInvalidEntries(t *testing.T) {
	svc := newFakeService(interfaces.StatusReady)
	svc.descriptions["valid"] = []string{`{"module":"deviceShare","dateAdded":1714000000000}`}
	svc.descriptions["empty"] = []string{}
	mgr := NewManager(svc, nil, testLogger())

	details, err := mgr.FetchKeyDetails(context.Background())
	require.NoError(t, err)
	assert.Contains(t, details.ShareDescriptions, "valid")
	assert.NotContains(t, details.ShareDescriptions, "empty",
		"Entries with no descriptor documents are invalid and excluded")
}

func TestManagerNotInitialized(t *testing.T) {
	mgr := NewManager(nil, nil, testLogger())

	_, err := mgr.CreateRecoveryFactor(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrNotInitialized)

	_, err = mgr.FetchKeyDetails(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrNotInitialized)
}
