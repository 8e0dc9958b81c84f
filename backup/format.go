package backup

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huahuahua1223/w3a-mpc/cryptobox"
	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

const (
	// FormatVersion is the backup file format version this code writes and
	// accepts.
	FormatVersion = 1

	// AppTag identifies this application's backup files. Records carrying a
	// different tag are rejected before decryption is attempted.
	AppTag = "w3a-mpc"

	// FilePrefix is the file-name prefix shared by all backup objects, used
	// as the server-side listing filter.
	FilePrefix = "w3a-mpc-backup-"
)

// Record is the JSON object persisted to the remote store.
type Record struct {
	Version          int                 `json:"v"`
	App              string              `json:"app"`
	CreatedAt        string              `json:"createdAt"`
	Label            string              `json:"label,omitempty"`
	ShareType        interfaces.ShareKind `json:"shareType"`
	ShareDescription string              `json:"shareDescription,omitempty"`
	Encrypted        cryptobox.Envelope  `json:"encrypted"`
}

// NewRecoveryRecord builds a version-1 record wrapping an encrypted recovery
// mnemonic.
func NewRecoveryRecord(env cryptobox.Envelope, label string, now time.Time) Record {
	return Record{
		Version:          FormatVersion,
		App:              AppTag,
		CreatedAt:        now.UTC().Format(time.RFC3339),
		Label:            label,
		ShareType:        interfaces.ShareRecovery,
		ShareDescription: string(interfaces.ModuleSeedPhrase),
		Encrypted:        env,
	}
}

// ParseRecord decodes and validates a downloaded backup file. Structurally
// wrong content, a foreign application tag, or an unknown format version all
// fail with ErrInvalidBackupFormat; the envelope is never touched in that
// case.
func ParseRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidBackupFormat, err)
	}
	if rec.Version != FormatVersion {
		return Record{}, fmt.Errorf("%w: unsupported version %d", interfaces.ErrInvalidBackupFormat, rec.Version)
	}
	if rec.App != AppTag {
		return Record{}, fmt.Errorf("%w: foreign application tag %q", interfaces.ErrInvalidBackupFormat, rec.App)
	}
	return rec, nil
}

// MakeFileName returns the timestamp-suffixed backup file name. Colons are
// replaced by hyphens and sub-second precision is stripped, so lexical order
// matches chronological order.
func MakeFileName(now time.Time) string {
	return FilePrefix + now.UTC().Format("2006-01-02T15-04-05") + ".json"
}

// ParseFileNameTime recovers the creation timestamp embedded in a backup file
// name. Stores that do not track per-object creation times use it to order
// backups.
func ParseFileNameTime(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, ".json") {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), ".json")
	t, err := time.Parse("2006-01-02T15-04-05", stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
