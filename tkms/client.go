package tkms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// conflictCode is the service's error code for a rejected metadata commit
// caused by a concurrent writer.
const conflictCode = 1401

// Client talks to a remote threshold-key service over HTTP. Session status is
// cached from the latest response carrying one, so Status is a local read
// suitable for high-frequency polling.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger

	status atomic.String
}

// NewClient creates a client for the threshold-key service at baseURL.
func NewClient(baseURL string, log *slog.Logger, timeout ...time.Duration) *Client {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: clientTimeout},
		log:        log,
	}
	c.status.Store(string(interfaces.StatusUninitialized))
	return c
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type sessionState struct {
	Status string `json:"status"`
}

// doJSON performs a request with an optional JSON body, decoding a successful
// response into out (when non-nil). Commit conflicts are surfaced as
// ErrMetadataConflict so callers can resync and retry.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to threshold-key service failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && (apiErr.Code == conflictCode || resp.StatusCode == http.StatusConflict) {
			return fmt.Errorf("service error code %d: %s: %w", apiErr.Code, apiErr.Message, interfaces.ErrMetadataConflict)
		}
		return fmt.Errorf("%s %s failed with code %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) updateStatus(status string) {
	if status != "" {
		c.status.Store(status)
	}
}

func (c *Client) Resync(ctx context.Context) error {
	var state sessionState
	if err := c.doJSON(ctx, http.MethodPost, "/v1/session/resync", nil, &state); err != nil {
		return err
	}
	c.updateStatus(state.Status)
	return nil
}

func (c *Client) Status() interfaces.SessionStatus {
	return interfaces.SessionStatus(c.status.Load())
}

func (c *Client) CreateFactor(ctx context.Context, kind interfaces.ShareKind, key interfaces.FactorKeyHex, module interfaces.ModuleKind) error {
	body := map[string]string{
		"shareType": string(kind),
		"factorKey": string(key),
		"module":    string(module),
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/factors", body, nil)
}

func (c *Client) DeleteFactor(ctx context.Context, factorPub string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/factors/"+factorPub, nil, nil)
}

func (c *Client) InputFactorKey(ctx context.Context, key interfaces.FactorKeyHex) error {
	var state sessionState
	body := map[string]string{"factorKey": string(key)}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/factors/input", body, &state); err != nil {
		return err
	}
	c.updateStatus(state.Status)
	return nil
}

func (c *Client) DeviceFactor(ctx context.Context) (interfaces.FactorKeyHex, error) {
	var result struct {
		FactorKey string `json:"factorKey"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/factors/device", nil, &result); err != nil {
		return "", err
	}
	return interfaces.FactorKeyHex(result.FactorKey), nil
}

func (c *Client) KeyDetails(ctx context.Context) (interfaces.KeyDetails, error) {
	var details interfaces.KeyDetails
	if err := c.doJSON(ctx, http.MethodGet, "/v1/key-details", nil, &details); err != nil {
		return interfaces.KeyDetails{}, err
	}
	return details, nil
}

func (c *Client) Commit(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/metadata/commit", nil, nil)
}

func (c *Client) EnableMFA(ctx context.Context) (interfaces.FactorKeyHex, error) {
	var result struct {
		FactorKey string `json:"factorKey"`
		Status    string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/mfa/enable", nil, &result); err != nil {
		return "", err
	}
	c.updateStatus(result.Status)
	return interfaces.FactorKeyHex(result.FactorKey), nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/v1/session/signout", nil, nil); err != nil {
		return err
	}
	c.updateStatus(string(interfaces.StatusSignedOut))
	return nil
}
