package backup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huahuahua1223/w3a-mpc/cryptobox"
	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

func TestMakeFileName(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	assert.Equal(t, "w3a-mpc-backup-2024-05-01T10-00-00.json", MakeFileName(at),
		"Colons become hyphens and sub-second precision is dropped")

	later := MakeFileName(at.Add(time.Hour))
	assert.Greater(t, later, MakeFileName(at), "Lexical order must match chronological order")
}

func TestParseFileNameTime(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	got, ok := ParseFileNameTime(MakeFileName(at))
	require.True(t, ok)
	assert.Equal(t, at, got)

	for _, name := range []string{"", "notes.txt", FilePrefix + "garbage.json", "other-backup-2024-05-01T10-00-00.json"} {
		_, ok := ParseFileNameTime(name)
		assert.False(t, ok, "name %q", name)
	}
}

func TestRecordWireShape(t *testing.T) {
	env, err := cryptobox.Encrypt("correcthorse", "secret words")
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := NewRecoveryRecord(env, "laptop", at)

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	for _, key := range []string{"v", "app", "createdAt", "label", "shareType", "shareDescription", "encrypted"} {
		assert.Contains(t, wire, key)
	}
	assert.JSONEq(t, `"w3a-mpc"`, string(wire["app"]))
	assert.JSONEq(t, `"RECOVERY"`, string(wire["shareType"]))
	assert.JSONEq(t, `"seedPhrase"`, string(wire["shareDescription"]))
	assert.JSONEq(t, `"2024-05-01T10:00:00Z"`, string(wire["createdAt"]))

	parsed, err := ParseRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec, parsed)
}

func TestRecordOmitsEmptyLabel(t *testing.T) {
	env, err := cryptobox.Encrypt("correcthorse", "secret words")
	require.NoError(t, err)

	data, err := json.Marshal(NewRecoveryRecord(env, "", time.Now()))
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.NotContains(t, wire, "label")
}

func TestParseRecordRejections(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "][ garbage"},
		{"wrong version", `{"v":2,"app":"w3a-mpc","createdAt":"2024-05-01T10:00:00Z","shareType":"RECOVERY","encrypted":{}}`},
		{"foreign app", `{"v":1,"app":"other-app","createdAt":"2024-05-01T10:00:00Z","shareType":"RECOVERY","encrypted":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRecord([]byte(tc.data))
			assert.ErrorIs(t, err, interfaces.ErrInvalidBackupFormat)
		})
	}
}
