package drive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedTokenSource(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	calls := 0
	src := NewCachedTokenSource(func(ctx context.Context) (string, error) {
		calls++
		return "tok", nil
	}, logger)

	for i := 0; i < 3; i++ {
		token, err := src.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", token)
	}
	assert.Equal(t, 1, calls, "Token must be cached across uses within a session")

	src.Invalidate()
	_, err := src.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "Invalidate must force reacquisition")
}

func TestCachedTokenSourceAcquireFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	src := NewCachedTokenSource(func(ctx context.Context) (string, error) {
		return "", errors.New("consent declined")
	}, logger)

	_, err := src.AccessToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consent declined")
}
