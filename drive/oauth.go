package drive

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
)

const (
	// DefaultAuthURL is Google's OAuth 2.0 authorization endpoint.
	DefaultAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"

	// DefaultTokenURL is Google's OAuth 2.0 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	callbackPath = "/oauth2/callback"
)

// LoopbackAuthorizer runs the OAuth 2.0 authorization-code flow with PKCE for
// a native application: it serves the redirect on a loopback address, hands
// the consent URL to the user, and exchanges the returned code for a bearer
// token. It satisfies AcquireFunc via Acquire.
type LoopbackAuthorizer struct {
	ClientID     string
	ClientSecret string
	Scope        string

	// ListenAddr is the loopback address for the redirect server.
	// Use port 0 to pick a free port.
	ListenAddr string

	// AuthURL and TokenURL default to Google's endpoints.
	AuthURL  string
	TokenURL string

	// OpenURL presents the consent URL to the user, e.g. by launching a
	// browser. Defaults to logging the URL.
	OpenURL func(url string) error

	HTTPClient *http.Client
	Log        *slog.Logger
}

type callbackResult struct {
	code string
	err  error
}

// Acquire runs one complete consent flow and returns the access token.
func (a *LoopbackAuthorizer) Acquire(ctx context.Context) (string, error) {
	if a.ClientID == "" {
		return "", fmt.Errorf("oauth client id is not configured")
	}

	listenAddr := a.ListenAddr
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return "", fmt.Errorf("could not open loopback listener: %w", err)
	}
	defer listener.Close()

	redirectURI := fmt.Sprintf("http://%s%s", listener.Addr().String(), callbackPath)

	state, err := randomToken()
	if err != nil {
		return "", err
	}
	verifier, err := randomToken()
	if err != nil {
		return "", err
	}
	challenge := sha256.Sum256([]byte(verifier))

	results := make(chan callbackResult, 1)

	mux := chi.NewRouter()
	mux.Use(func(next http.Handler) http.Handler {
		return httplogger.LoggingMiddlewareSlog(a.Log, next)
	})
	mux.Get(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errCode := q.Get("error"); errCode != "" {
			http.Error(w, "authorization failed", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("authorization denied: %s", errCode)}
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("oauth state mismatch")}
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>Authorization complete. You may close this window.</body></html>")
		results <- callbackResult{code: q.Get("code")}
	})

	srv := &http.Server{Handler: mux, ReadTimeout: 30 * time.Second}
	go func() { _ = srv.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	consentURL := a.consentURL(redirectURI, state, challenge[:])
	openURL := a.OpenURL
	if openURL == nil {
		openURL = func(u string) error {
			a.Log.Info("Open this URL to authorize remote backup access", "url", u)
			return nil
		}
	}
	if err := openURL(consentURL); err != nil {
		return "", fmt.Errorf("could not present consent URL: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-results:
		if res.err != nil {
			return "", res.err
		}
		return a.exchangeCode(ctx, res.code, redirectURI, verifier)
	}
}

func (a *LoopbackAuthorizer) consentURL(redirectURI, state string, challenge []byte) string {
	authURL := a.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	scope := a.Scope
	if scope == "" {
		scope = Scope
	}

	q := url.Values{}
	q.Set("client_id", a.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", scope)
	q.Set("state", state)
	q.Set("code_challenge", base64.RawURLEncoding.EncodeToString(challenge))
	q.Set("code_challenge_method", "S256")
	q.Set("access_type", "online")
	q.Set("prompt", "consent")
	return authURL + "?" + q.Encode()
}

func (a *LoopbackAuthorizer) exchangeCode(ctx context.Context, code, redirectURI, verifier string) (string, error) {
	tokenURL := a.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", a.ClientID)
	if a.ClientSecret != "" {
		form.Set("client_secret", a.ClientSecret)
	}
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", verifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("could not initialize token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := a.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("could not parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	a.Log.Info("Remote store authorization complete", "expires_in_s", tokenResp.ExpiresIn)
	return tokenResp.AccessToken, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
