package drive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// AcquireFunc performs one OAuth consent flow and returns a bearer token.
type AcquireFunc func(ctx context.Context) (string, error)

// CachedTokenSource caches a bearer token in memory for the lifetime of the
// session. The token is never written to durable storage; Invalidate drops it
// so the next use runs the consent flow again.
type CachedTokenSource struct {
	mu      sync.Mutex
	token   string
	acquire AcquireFunc
	log     *slog.Logger
}

// NewCachedTokenSource wraps acquire with in-memory caching.
func NewCachedTokenSource(acquire AcquireFunc, log *slog.Logger) *CachedTokenSource {
	return &CachedTokenSource{acquire: acquire, log: log}
}

// AccessToken returns the cached token, acquiring one on first use. The lock
// is held across acquisition so concurrent callers cannot trigger two consent
// flows.
func (s *CachedTokenSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	s.log.Info("Acquiring remote store access token")
	token, err := s.acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("token acquisition failed: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("token acquisition returned an empty token")
	}

	s.token = token
	return token, nil
}

// Invalidate forgets the cached token.
func (s *CachedTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
