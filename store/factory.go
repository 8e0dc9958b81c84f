package store

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/huahuahua1223/w3a-mpc/drive"
	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// Factory creates backup stores from location URIs.
type Factory struct {
	log    *slog.Logger
	tokens interfaces.TokenSource
}

// NewFactory creates a store factory. tokens is only needed for the gdrive
// scheme and may be nil otherwise.
func NewFactory(log *slog.Logger, tokens interfaces.TokenSource) *Factory {
	return &Factory{log: log, tokens: tokens}
}

// StoreFor creates a backup store from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - gdrive:// - Google Drive application data folder
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2 mount
//   - file:// - Local filesystem directory
func (f *Factory) StoreFor(locationURI string) (interfaces.BackupStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid store URI: %v", interfaces.ErrValidation, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "gdrive":
		return f.createDriveStore(u)
	case "s3":
		return f.createS3Store(u)
	case "vault":
		return f.createVaultStore(u)
	case "file":
		return f.createFileStore(u)
	default:
		return nil, fmt.Errorf("unsupported store scheme: %s", u.Scheme)
	}
}

// createDriveStore creates the Google Drive store.
// URI format: gdrive://appdata
func (f *Factory) createDriveStore(u *url.URL) (interfaces.BackupStore, error) {
	f.log.Debug("Creating Google Drive store", slog.String("uri", u.String()))

	if f.tokens == nil {
		return nil, fmt.Errorf("gdrive store requires an OAuth token source")
	}
	return drive.NewClient(f.tokens, f.log), nil
}

// createS3Store creates an S3 or S3-compatible store.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix/?region=us-west-2&endpoint=custom.s3.com
func (f *Factory) createS3Store(u *url.URL) (interfaces.BackupStore, error) {
	f.log.Debug("Creating S3 store", slog.String("uri", u.Redacted()))

	bucket := u.Host
	if bucket == "" {
		return nil, fmt.Errorf("missing bucket name in S3 URI")
	}
	prefix := strings.TrimPrefix(u.Path, "/")

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Store(bucket, prefix, region, endpoint, accessKey, secretKey, f.log)
}

// createVaultStore creates a HashiCorp Vault store.
// URI format: vault://vault.example.com:8200/secret/backups?token=...&tls=false
// The first path segment is the KV v2 mount, the rest is the data path.
func (f *Factory) createVaultStore(u *url.URL) (interfaces.BackupStore, error) {
	f.log.Debug("Creating Vault store", slog.String("uri", u.Redacted()))

	if u.Host == "" {
		return nil, fmt.Errorf("missing Vault address in URI")
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid Vault URI, expected vault://host:port/mount/path")
	}

	query := u.Query()
	scheme := "https"
	if query.Get("tls") == "false" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, u.Host)

	return NewVaultStore(address, parts[0], parts[1], query.Get("token"), f.log)
}

// createFileStore creates a local filesystem store.
// URI format: file:///absolute/path/ or file://./relative/path/
func (f *Factory) createFileStore(u *url.URL) (interfaces.BackupStore, error) {
	f.log.Debug("Creating file store", slog.String("uri", u.String()))

	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	return NewFileStore(path, f.log)
}
