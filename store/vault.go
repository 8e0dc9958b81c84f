package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/huahuahua1223/w3a-mpc/backup"
	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// VaultStore keeps backup files as secrets in a HashiCorp Vault KV v2 mount.
// Since Vault does not expose object timestamps through the list API, backup
// creation times are recovered from the timestamp embedded in the file name.
type VaultStore struct {
	client   *api.Client
	mount    string
	dataPath string
	log      *slog.Logger
}

// NewVaultStore creates a Vault-backed store. An empty token defers to the
// client's default sources (VAULT_TOKEN, token helper).
func NewVaultStore(address, mount, dataPath, token string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultStore{
		client:   client,
		mount:    strings.Trim(mount, "/"),
		dataPath: strings.Trim(dataPath, "/"),
		log:      log,
	}, nil
}

func (s *VaultStore) secretPath(name string) string {
	return fmt.Sprintf("%s/data/%s/%s", s.mount, s.dataPath, name)
}

func (s *VaultStore) metadataPath() string {
	return fmt.Sprintf("%s/metadata/%s", s.mount, s.dataPath)
}

func (s *VaultStore) List(ctx context.Context, prefix string) ([]interfaces.BackupFileHandle, error) {
	secret, err := s.client.Logical().ListWithContext(ctx, s.metadataPath())
	if err != nil {
		return nil, fmt.Errorf("failed to list backups in Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	keys, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid list format in Vault response")
	}

	var handles []interfaces.BackupFileHandle
	for _, raw := range keys {
		name, ok := raw.(string)
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		handle := interfaces.BackupFileHandle{ID: name, Name: name}
		if created, ok := backup.ParseFileNameTime(name); ok {
			handle.CreatedTime = created
			handle.ModifiedTime = created
		}
		handles = append(handles, handle)
	}

	s.log.Debug("Listed backups in Vault",
		slog.String("path", s.metadataPath()),
		slog.Int("count", len(handles)))
	return handles, nil
}

func (s *VaultStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.secretPath(fileID))
	if err != nil {
		return nil, fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, &interfaces.RemoteStoreError{Op: "download", StatusCode: 404, Message: "no such backup secret"}
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}
	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}
	return []byte(content), nil
}

func (s *VaultStore) Create(ctx context.Context, fileName string, content []byte) (interfaces.BackupFileHandle, error) {
	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": string(content),
		},
	}

	_, err := s.client.Logical().WriteWithContext(ctx, s.secretPath(fileName), secretData)
	if err != nil {
		return interfaces.BackupFileHandle{}, fmt.Errorf("failed to write to Vault: %w", err)
	}

	s.log.Debug("Stored backup in Vault", slog.String("path", s.secretPath(fileName)))
	handle := interfaces.BackupFileHandle{ID: fileName, Name: fileName, Size: int64(len(content))}
	if created, ok := backup.ParseFileNameTime(fileName); ok {
		handle.CreatedTime = created
		handle.ModifiedTime = created
	}
	return handle, nil
}
