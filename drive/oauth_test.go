package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoopbackAuthorizerFlow drives the full code+PKCE flow against a fake
// token endpoint, acting as the user agent by following the consent URL's
// redirect_uri directly.
func TestLoopbackAuthorizerFlow(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "client-123", r.PostForm.Get("client_id"))
		assert.NotEmpty(t, r.PostForm.Get("code_verifier"), "PKCE verifier must be sent")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"granted-token","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	auth := &LoopbackAuthorizer{
		ClientID: "client-123",
		Scope:    Scope,
		TokenURL: tokenSrv.URL,
		Log:      logger,
	}
	auth.OpenURL = func(consentURL string) error {
		parsed, err := url.Parse(consentURL)
		require.NoError(t, err)
		assert.Equal(t, "S256", parsed.Query().Get("code_challenge_method"))

		redirect := parsed.Query().Get("redirect_uri")
		state := parsed.Query().Get("state")

		// Simulate the provider redirecting the browser back.
		go func() {
			resp, err := http.Get(redirect + "?code=the-code&state=" + url.QueryEscape(state))
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := auth.Acquire(ctx)
	require.NoError(t, err, "Acquire should complete the flow")
	assert.Equal(t, "granted-token", token)
}

func TestLoopbackAuthorizerDenied(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	auth := &LoopbackAuthorizer{
		ClientID: "client-123",
		Log:      logger,
	}
	auth.OpenURL = func(consentURL string) error {
		parsed, err := url.Parse(consentURL)
		require.NoError(t, err)
		redirect := parsed.Query().Get("redirect_uri")
		go func() {
			resp, err := http.Get(redirect + "?error=access_denied")
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := auth.Acquire(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}
