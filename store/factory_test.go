package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct{}

func (staticTokens) AccessToken(ctx context.Context) (string, error) { return "tok", nil }
func (staticTokens) Invalidate()                                     {}

func TestFactorySchemeDispatch(t *testing.T) {
	f := NewFactory(testLogger(), staticTokens{})

	cases := []struct {
		name string
		uri  string
	}{
		{"gdrive", "gdrive://appdata"},
		{"s3", "s3://ak:sk@my-bucket/backups/?region=eu-west-1"},
		{"vault", "vault://vault.example.com:8200/secret/backups?token=abc"},
		{"file", "file://" + filepath.Join(t.TempDir(), "backups")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := f.StoreFor(tc.uri)
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestFactoryRejectsBadURIs(t *testing.T) {
	f := NewFactory(testLogger(), staticTokens{})

	cases := []struct {
		name string
		uri  string
	}{
		{"unsupported scheme", "ftp://example.com/backups"},
		{"s3 missing bucket", "s3:///backups"},
		{"vault missing data path", "vault://vault.example.com:8200/secret"},
		{"vault missing address", "vault:///secret/backups"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.StoreFor(tc.uri)
			assert.Error(t, err)
		})
	}
}

func TestFactoryDriveRequiresTokens(t *testing.T) {
	f := NewFactory(testLogger(), nil)
	_, err := f.StoreFor("gdrive://appdata")
	assert.Error(t, err)
}
