package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/huahuahua1223/w3a-mpc/backup"
	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// FileStore keeps backup files in a local directory. Mostly useful for
// development and as an escrow target on an encrypted disk.
type FileStore struct {
	root string
	log  *slog.Logger
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string, log *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty path in file store URI")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &FileStore{root: dir, log: log}, nil
}

func (s *FileStore) List(ctx context.Context, prefix string) ([]interfaces.BackupFileHandle, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup directory: %w", err)
	}

	var handles []interfaces.BackupFileHandle
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		created := info.ModTime()
		if stamped, ok := backup.ParseFileNameTime(entry.Name()); ok {
			created = stamped
		}
		handles = append(handles, interfaces.BackupFileHandle{
			ID:           entry.Name(),
			Name:         entry.Name(),
			CreatedTime:  created,
			ModifiedTime: info.ModTime(),
			Size:         info.Size(),
		})
	}
	return handles, nil
}

func (s *FileStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.Base(fileID)))
	if os.IsNotExist(err) {
		return nil, &interfaces.RemoteStoreError{Op: "download", StatusCode: 404, Message: "no such backup file"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}
	return data, nil
}

func (s *FileStore) Create(ctx context.Context, fileName string, content []byte) (interfaces.BackupFileHandle, error) {
	name := filepath.Base(fileName)
	path := filepath.Join(s.root, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return interfaces.BackupFileHandle{}, fmt.Errorf("failed to write backup file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return interfaces.BackupFileHandle{}, fmt.Errorf("failed to stat backup file: %w", err)
	}

	s.log.Debug("Stored backup file", slog.String("path", path), slog.Int("size", len(content)))
	return interfaces.BackupFileHandle{
		ID:           name,
		Name:         name,
		CreatedTime:  info.ModTime(),
		ModifiedTime: info.ModTime(),
		Size:         info.Size(),
	}, nil
}
