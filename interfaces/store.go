package interfaces

import (
	"context"
	"time"
)

// BackupFileHandle describes one object in the remote backup store.
type BackupFileHandle struct {
	ID           string
	Name         string
	CreatedTime  time.Time
	ModifiedTime time.Time
	Size         int64
}

// BackupStore provides append-only access to the application-private backup
// folder of a remote object store. Listing order is unspecified; callers that
// need recency order sort by CreatedTime themselves. None of the operations
// retry internally.
type BackupStore interface {
	// List returns handles for files whose name contains prefix, excluding
	// trashed files.
	List(ctx context.Context, prefix string) ([]BackupFileHandle, error)

	// Download returns the raw content of the file named by id.
	Download(ctx context.Context, fileID string) ([]byte, error)

	// Create uploads content under fileName and returns the stored handle.
	Create(ctx context.Context, fileName string, content []byte) (BackupFileHandle, error)
}

// TokenSource supplies bearer access tokens for the remote store, acquired
// lazily through an external OAuth consent flow and cached in memory for the
// session. Invalidate drops the cached token so the next use reconnects.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Invalidate()
}
