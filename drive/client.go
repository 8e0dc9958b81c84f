package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

const (
	// DefaultAPIBase is the Drive v3 metadata and download endpoint.
	DefaultAPIBase = "https://www.googleapis.com/drive/v3"

	// DefaultUploadBase is the Drive v3 multipart upload endpoint.
	DefaultUploadBase = "https://www.googleapis.com/upload/drive/v3"

	// Scope is the OAuth scope granting access to the appDataFolder only.
	Scope = "https://www.googleapis.com/auth/drive.appdata"
)

// Client implements interfaces.BackupStore against the Google Drive v3 API,
// scoped to the application-private appDataFolder.
type Client struct {
	// HTTPClient is used for all requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	tokens     interfaces.TokenSource
	apiBase    string
	uploadBase string
	log        *slog.Logger
}

// NewClient creates a Drive-backed backup store using tokens for bearer
// authentication.
func NewClient(tokens interfaces.TokenSource, log *slog.Logger) *Client {
	return &Client{
		HTTPClient: http.DefaultClient,
		tokens:     tokens,
		apiBase:    DefaultAPIBase,
		uploadBase: DefaultUploadBase,
		log:        log,
	}
}

// SetEndpoints overrides the API endpoints, used by tests.
func (c *Client) SetEndpoints(apiBase, uploadBase string) {
	c.apiBase = apiBase
	c.uploadBase = uploadBase
}

// driveFile is the wire shape of a file resource. Drive reports size as a
// decimal string.
type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CreatedTime  string `json:"createdTime,omitempty"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         string `json:"size,omitempty"`
}

func (f driveFile) toHandle() interfaces.BackupFileHandle {
	h := interfaces.BackupFileHandle{ID: f.ID, Name: f.Name}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		h.CreatedTime = t
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		h.ModifiedTime = t
	}
	if n, err := strconv.ParseInt(f.Size, 10, 64); err == nil {
		h.Size = n
	}
	return h
}

// List returns handles for non-trashed appDataFolder files whose name
// contains prefix. Ordering is whatever the server returns.
func (c *Client) List(ctx context.Context, prefix string) ([]interfaces.BackupFileHandle, error) {
	q := url.Values{}
	q.Set("spaces", "appDataFolder")
	q.Set("q", fmt.Sprintf("name contains '%s' and trashed = false", prefix))
	q.Set("fields", "files(id,name,createdTime,modifiedTime,size)")

	body, err := c.do(ctx, http.MethodGet, c.apiBase+"/files?"+q.Encode(), "", nil, "list")
	if err != nil {
		return nil, err
	}

	var listing struct {
		Files []driveFile `json:"files"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("could not parse drive listing: %w", err)
	}

	handles := make([]interfaces.BackupFileHandle, 0, len(listing.Files))
	for _, f := range listing.Files {
		handles = append(handles, f.toHandle())
	}

	c.log.Debug("Listed drive backups", "prefix", prefix, "count", len(handles))
	return handles, nil
}

// Download returns the raw content of the file named by fileID.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, c.apiBase+"/files/"+url.PathEscape(fileID)+"?alt=media", "", nil, "download")
}

// Create uploads content as a JSON file in the appDataFolder via a
// multipart/related request with a random boundary.
func (c *Client) Create(ctx context.Context, fileName string, content []byte) (interfaces.BackupFileHandle, error) {
	boundary := "w3aMpcBoundary_" + uuid.NewString()

	metadata, err := json.Marshal(map[string]any{
		"name":     fileName,
		"mimeType": "application/json",
		"parents":  []string{"appDataFolder"},
	})
	if err != nil {
		return interfaces.BackupFileHandle{}, fmt.Errorf("could not marshal file metadata: %w", err)
	}

	var buf bytes.Buffer
	delimiter := "--" + boundary + "\r\n"
	buf.WriteString(delimiter)
	buf.WriteString("Content-Type: application/json; charset=UTF-8\r\n\r\n")
	buf.Write(metadata)
	buf.WriteString("\r\n")
	buf.WriteString(delimiter)
	buf.WriteString("Content-Type: application/json; charset=UTF-8\r\n\r\n")
	buf.Write(content)
	buf.WriteString("\r\n")
	buf.WriteString("--" + boundary + "--\r\n")

	contentType := "multipart/related; boundary=" + boundary
	body, err := c.do(ctx, http.MethodPost, c.uploadBase+"/files?uploadType=multipart", contentType, buf.Bytes(), "create")
	if err != nil {
		return interfaces.BackupFileHandle{}, err
	}

	var created driveFile
	if err := json.Unmarshal(body, &created); err != nil {
		return interfaces.BackupFileHandle{}, fmt.Errorf("could not parse drive create response: %w", err)
	}

	c.log.Info("Uploaded backup to drive", "name", created.Name, "id", created.ID)
	return created.toHandle(), nil
}

// do performs one authenticated request and returns the response body.
// Non-2xx statuses become RemoteStoreError; nothing is retried here.
func (c *Client) do(ctx context.Context, method, rawURL, contentType string, reqBody []byte, op string) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not acquire drive access token: %w", err)
	}

	var reader io.Reader
	if reqBody != nil {
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read drive response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &interfaces.RemoteStoreError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	return body, nil
}
