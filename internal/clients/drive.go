package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/mikelady/showcase/internal/services"
)

// Drive API error definitions
var (
	ErrDriveAuthentication = errors.New("Drive authentication failed")
	ErrDriveRequestFailed  = errors.New("Drive request failed")
)

// Drive endpoints
const (
	DefaultDriveAPIBaseURL    = "https://www.googleapis.com"
	DefaultDriveUploadBaseURL = "https://www.googleapis.com/upload"
)

// Compile-time interface compliance check
var _ services.StorageProvider = (*DriveClient)(nil)

// DriveConfig configures a DriveClient.
type DriveConfig struct {
	AccessToken   string
	FolderID      string // uploads land here; listing is scoped to it when set
	APIBaseURL    string
	UploadBaseURL string
	HTTPClient    *http.Client
}

// DriveClient stores order photos in a Drive folder and shares them publicly.
type DriveClient struct {
	accessToken   string
	folderID      string
	apiBaseURL    string
	uploadBaseURL string
	client        *http.Client
}

// FileMetadata holds the public links Drive reports for a file.
type FileMetadata struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	WebContentLink string `json:"webContentLink"`
	ThumbnailLink  string `json:"thumbnailLink"`
}

// NewDriveClient creates a new Drive API client
func NewDriveClient(cfg DriveConfig) *DriveClient {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultDriveAPIBaseURL
	}
	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = DefaultDriveUploadBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &DriveClient{
		accessToken:   cfg.AccessToken,
		folderID:      cfg.FolderID,
		apiBaseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		uploadBaseURL: strings.TrimRight(cfg.UploadBaseURL, "/"),
		client:        cfg.HTTPClient,
	}
}

// Upload stores data under name, makes it readable by anyone with the link and returns
// the file id.
func (c *DriveClient) Upload(ctx context.Context, data []byte, name, contentType string) (string, error) {
	meta := map[string]interface{}{"name": name}
	if c.folderID != "" {
		meta["parents"] = []string{c.folderID}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}

	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}
	if _, err := mediaPart.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}

	endpoint := c.uploadBaseURL + "/drive/v3/files?uploadType=multipart&fields=id"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	var created struct {
		ID string `json:"id"`
	}
	if err := c.send(req, &created); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: upload returned no file id", ErrDriveRequestFailed)
	}

	if err := c.shareWithAnyone(ctx, created.ID); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *DriveClient) shareWithAnyone(ctx context.Context, fileID string) error {
	payload := []byte(`{"role":"reader","type":"anyone"}`)
	endpoint := c.apiBaseURL + "/drive/v3/files/" + url.PathEscape(fileID) + "/permissions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.send(req, nil); err != nil {
		return fmt.Errorf("failed to share file %s: %w", fileID, err)
	}
	return nil
}

// Delete removes a file. A file that is already gone counts as deleted.
func (c *DriveClient) Delete(ctx context.Context, fileID string) error {
	endpoint := c.apiBaseURL + "/drive/v3/files/" + url.PathEscape(fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	err = c.send(req, nil)
	var statusErr *driveStatusError
	if errors.As(err, &statusErr) && statusErr.status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}
	return nil
}

// ListByNamePrefix returns the ids of non-trashed files whose name starts with prefix.
func (c *DriveClient) ListByNamePrefix(ctx context.Context, prefix string) ([]string, error) {
	q := fmt.Sprintf("name contains '%s' and trashed = false", escapeDriveQuery(prefix))
	if c.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeDriveQuery(c.folderID))
	}

	var ids []string
	pageToken := ""
	for {
		params := url.Values{
			"q":        {q},
			"fields":   {"nextPageToken,files(id,name)"},
			"pageSize": {"100"},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/drive/v3/files?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		var page struct {
			NextPageToken string         `json:"nextPageToken"`
			Files         []FileMetadata `json:"files"`
		}
		if err := c.send(req, &page); err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}

		// "contains" matches word prefixes anywhere in the name; keep true prefixes only.
		for _, f := range page.Files {
			if strings.HasPrefix(f.Name, prefix) {
				ids = append(ids, f.ID)
			}
		}

		if page.NextPageToken == "" {
			return ids, nil
		}
		pageToken = page.NextPageToken
	}
}

// FileMetadata fetches the public links of a file.
func (c *DriveClient) FileMetadata(ctx context.Context, fileID string) (*FileMetadata, error) {
	params := url.Values{"fields": {"id,name,webContentLink,thumbnailLink"}}
	endpoint := c.apiBaseURL + "/drive/v3/files/" + url.PathEscape(fileID) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var meta FileMetadata
	if err := c.send(req, &meta); err != nil {
		return nil, fmt.Errorf("failed to get metadata for %s: %w", fileID, err)
	}
	return &meta, nil
}

type driveStatusError struct {
	status int
	body   string
}

func (e *driveStatusError) Error() string {
	return fmt.Sprintf("%d - %s", e.status, e.body)
}

func (e *driveStatusError) Unwrap() error {
	if e.status == http.StatusUnauthorized || e.status == http.StatusForbidden {
		return ErrDriveAuthentication
	}
	return ErrDriveRequestFailed
}

func (c *DriveClient) send(req *http.Request, out interface{}) error {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDriveRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &driveStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func escapeDriveQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
