package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/services"
)

// Instagram API error definitions
var (
	ErrInstagramRateLimited    = fmt.Errorf("rate limited by Instagram API: %w", services.ErrPlatformRateLimited)
	ErrInstagramAuthentication = fmt.Errorf("Instagram authentication failed: %w", services.ErrPlatformAuthentication)
	ErrInstagramPostFailed     = errors.New("Instagram post creation failed")
	ErrInstagramPostNotFound   = fmt.Errorf("Instagram post not found: %w", services.ErrPlatformPostNotFound)
)

// Instagram platform constants
const (
	DefaultInstagramBaseURL = "https://graph.facebook.com/v19.0"

	DefaultSimulateMinDelay = 150 * time.Millisecond
	DefaultSimulateMaxDelay = 600 * time.Millisecond

	// SimulatedPostPrefix marks ids produced in simulation mode.
	SimulatedPostPrefix = "sim_"
)

// Graph API error codes that signal an expired or invalid token, or throttling.
const graphCodeInvalidToken = 190

// Code 100 with subcode 33 is the Graph answer for an object id that does not exist.
const (
	graphCodeInvalidParameter = 100
	graphSubcodeNoSuchObject  = 33
)

var graphRateLimitCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}

// Compile-time interface compliance check
var _ services.AutomatedPublisher = (*InstagramClient)(nil)

// InstagramConfig configures an InstagramClient.
type InstagramConfig struct {
	AccessToken string
	UserID      string // Instagram business account id
	BaseURL     string

	// Simulate skips every network call and fabricates plausible results.
	Simulate         bool
	SimulateMinDelay time.Duration
	SimulateMaxDelay time.Duration

	HTTPClient *http.Client
}

// InstagramClient is the automated publishing adapter for the Instagram Graph API.
type InstagramClient struct {
	accessToken string
	userID      string
	baseURL     string
	client      *http.Client
	logger      *zap.Logger

	simulate bool
	minDelay time.Duration
	maxDelay time.Duration
}

// NewInstagramClient creates a new Instagram Graph API client
func NewInstagramClient(cfg InstagramConfig, logger *zap.Logger) *InstagramClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultInstagramBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.SimulateMinDelay <= 0 {
		cfg.SimulateMinDelay = DefaultSimulateMinDelay
	}
	if cfg.SimulateMaxDelay <= cfg.SimulateMinDelay {
		cfg.SimulateMaxDelay = cfg.SimulateMinDelay + DefaultSimulateMaxDelay - DefaultSimulateMinDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InstagramClient{
		accessToken: cfg.AccessToken,
		userID:      cfg.UserID,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      cfg.HTTPClient,
		logger:      logger,
		simulate:    cfg.Simulate,
		minDelay:    cfg.SimulateMinDelay,
		maxDelay:    cfg.SimulateMaxDelay,
	}
}

// Simulated reports whether the client runs in simulation mode.
func (c *InstagramClient) Simulated() bool {
	return c.simulate
}

// CreatePost publishes an image post.
// The Graph API uses a two-step process:
// 1. Create a media object (container)
// 2. Publish the container
// The permalink is fetched afterwards on a best-effort basis.
func (c *InstagramClient) CreatePost(ctx context.Context, content services.PostContent) (*services.PostResult, error) {
	if c.simulate {
		return c.simulatePost(ctx, content)
	}

	// Step 1: Create media container
	creationID, err := c.CreateMediaObject(ctx, content.ImageURL, content.Caption)
	if err != nil {
		return nil, fmt.Errorf("failed to create media object: %w", err)
	}

	// Step 2: Publish the container
	postID, err := c.PublishMedia(ctx, creationID)
	if err != nil {
		return nil, fmt.Errorf("failed to publish media: %w", err)
	}

	// Fetch the permalink; the post is already live if this fails
	permalink, err := c.GetPermalink(ctx, postID)
	if err != nil {
		c.logger.Warn("permalink lookup failed after publish",
			zap.String("post_id", postID),
			zap.Error(err),
		)
		permalink = ""
	}

	return &services.PostResult{
		PostID:    postID,
		Permalink: permalink,
		Caption:   content.Caption,
	}, nil
}

// CreateMediaObject creates an image container and returns its creation id.
func (c *InstagramClient) CreateMediaObject(ctx context.Context, imageURL, caption string) (string, error) {
	params := url.Values{
		"image_url": {imageURL},
		"caption":   {caption},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/"+c.userID+"/media", params, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: empty creation id", ErrInstagramPostFailed)
	}
	return resp.ID, nil
}

// PublishMedia publishes a previously created container and returns the post id.
func (c *InstagramClient) PublishMedia(ctx context.Context, creationID string) (string, error) {
	params := url.Values{"creation_id": {creationID}}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/"+c.userID+"/media_publish", params, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: empty post id", ErrInstagramPostFailed)
	}
	return resp.ID, nil
}

// GetPermalink returns the public URL of a post.
func (c *InstagramClient) GetPermalink(ctx context.Context, postID string) (string, error) {
	if c.simulate {
		return simulatedPermalink(postID), nil
	}

	var resp struct {
		Permalink string `json:"permalink"`
	}
	params := url.Values{"fields": {"permalink"}}
	if err := c.do(ctx, http.MethodGet, "/"+postID, params, &resp); err != nil {
		return "", err
	}
	if resp.Permalink == "" {
		return "", fmt.Errorf("%w: post %s has no permalink", ErrInstagramPostFailed, postID)
	}
	return resp.Permalink, nil
}

// DeletePost removes a published post. A false result means the API answered without
// confirming the deletion.
func (c *InstagramClient) DeletePost(ctx context.Context, postID string) (bool, error) {
	if c.simulate {
		delay, err := c.simulateLatency(ctx)
		if err != nil {
			return false, err
		}
		c.logger.Debug("simulated instagram delete", zap.String("post_id", postID), zap.Duration("delay", delay))
		return true, nil
	}

	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodDelete, "/"+postID, nil, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// ValidateCredentials checks that the token can read the configured account.
// Authentication failures are reported as an invalid status, not as an error.
func (c *InstagramClient) ValidateCredentials(ctx context.Context) (*services.CredentialStatus, error) {
	if c.simulate {
		return &services.CredentialStatus{
			Valid:     true,
			Simulated: true,
			AccountID: c.userID,
			Detail:    "simulation mode: no request was made",
		}, nil
	}
	if c.accessToken == "" || c.userID == "" {
		return &services.CredentialStatus{Valid: false, Detail: "access token and user id are required"}, nil
	}

	// Read the account the token belongs to
	var resp struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	params := url.Values{"fields": {"id,username"}}
	err := c.do(ctx, http.MethodGet, "/"+c.userID, params, &resp)
	if errors.Is(err, services.ErrPlatformAuthentication) {
		return &services.CredentialStatus{Valid: false, AccountID: c.userID, Detail: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}

	return &services.CredentialStatus{
		Valid:     true,
		AccountID: resp.ID,
		Username:  resp.Username,
	}, nil
}

// =============================================================================
// Transport
// =============================================================================

type graphError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// do sends a Graph API request and decodes a 2xx body into out.
func (c *InstagramClient) do(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.accessToken)

	// POST sends form params in the body, everything else in the query string
	endpoint := c.baseURL + path
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(params.Encode())
	} else {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	// Execute request
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstagramPostFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for errors
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyGraphError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func classifyGraphError(status int, body []byte) error {
	var ge graphError
	_ = json.Unmarshal(body, &ge)
	detail := ge.Error.Message
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || ge.Error.Code == graphCodeInvalidToken:
		return fmt.Errorf("%w: %s", ErrInstagramAuthentication, detail)
	case status == http.StatusTooManyRequests || graphRateLimitCodes[ge.Error.Code]:
		return fmt.Errorf("%w: %s", ErrInstagramRateLimited, detail)
	case status == http.StatusNotFound ||
		(ge.Error.Code == graphCodeInvalidParameter && ge.Error.ErrorSubcode == graphSubcodeNoSuchObject):
		return fmt.Errorf("%w: %s", ErrInstagramPostNotFound, detail)
	default:
		return fmt.Errorf("%w: %d - %s", ErrInstagramPostFailed, status, detail)
	}
}

// =============================================================================
// Simulation
// =============================================================================

// simulateLatency waits a random delay between minDelay and maxDelay, or until ctx is done.
func (c *InstagramClient) simulateLatency(ctx context.Context) (time.Duration, error) {
	delay := c.minDelay + rand.N(c.maxDelay-c.minDelay)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return delay, nil
	}
}

func (c *InstagramClient) simulatePost(ctx context.Context, content services.PostContent) (*services.PostResult, error) {
	delay, err := c.simulateLatency(ctx)
	if err != nil {
		return nil, err
	}

	postID := fmt.Sprintf("%s%d_%06d", SimulatedPostPrefix, time.Now().UnixNano(), rand.IntN(1_000_000))
	c.logger.Debug("simulated instagram post", zap.String("post_id", postID), zap.Duration("delay", delay))

	return &services.PostResult{
		PostID:    postID,
		Permalink: simulatedPermalink(postID),
		Simulated: true,
		Caption:   content.Caption,
	}, nil
}

func simulatedPermalink(postID string) string {
	return "https://www.instagram.com/p/" + postID + "/"
}

// IsSimulatedPostID reports whether id came from simulation mode.
func IsSimulatedPostID(id string) bool {
	return strings.HasPrefix(id, SimulatedPostPrefix)
}
