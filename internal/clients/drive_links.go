package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/metrics"
	"github.com/mikelady/showcase/internal/services"
)

// =============================================================================
// Drive Link Resolver
// Turns a Drive file handle into the most durable public image URL available
// =============================================================================

// Resolver defaults
const (
	DefaultDriveBaseURL       = "https://drive.google.com"
	DefaultResolveStepTimeout = 5 * time.Second

	// FallbackDownloadURL is always constructible and is returned when every strategy fails.
	FallbackDownloadURL = "https://drive.usercontent.google.com/download?id=%s&export=view"

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// DefaultThumbnailSizes are probed largest first.
var DefaultThumbnailSizes = []int{4000, 2000, 1600, 1000}

var (
	errNoRedirect   = errors.New("no redirect")
	errNotCanonical = errors.New("redirect target is not on the canonical host")
	errNoLink       = errors.New("no public link")

	canonicalHostPattern = regexp.MustCompile(`^lh\d*\.googleusercontent\.com$`)
	sizeSuffixPattern    = regexp.MustCompile(`=[swh]\d+(-[a-z0-9]+)*$`)
	fileIDPattern        = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)
	filePathPattern      = regexp.MustCompile(`/d/([A-Za-z0-9_-]{10,})`)
)

// sizeParams are query parameters that cap the rendered image size.
var sizeParams = []string{"sz", "w", "h"}

// Compile-time interface compliance check
var _ services.LinkResolver = (*DriveLinkResolver)(nil)

// FileMetadataFetcher looks up the public links Drive reports for a file.
type FileMetadataFetcher interface {
	FileMetadata(ctx context.Context, fileID string) (*FileMetadata, error)
}

// DriveLinkResolverConfig configures a DriveLinkResolver.
type DriveLinkResolverConfig struct {
	DriveBaseURL   string
	StepTimeout    time.Duration
	ThumbnailSizes []int

	// Metadata enables the metadata API strategy when set.
	Metadata FileMetadataFetcher

	// HTTPClient is copied; redirects are never followed by the copy.
	HTTPClient *http.Client
}

// resolveStrategy is one step of the fallback chain. It returns a URL or an error.
type resolveStrategy struct {
	name string
	run  func(ctx context.Context, fileID string) (string, error)
}

// DriveLinkResolver implements services.LinkResolver as an ordered fallback chain.
type DriveLinkResolver struct {
	driveBaseURL string
	stepTimeout  time.Duration
	client       *http.Client
	metadata     FileMetadataFetcher
	logger       *zap.Logger
	strategies   []resolveStrategy
}

// NewDriveLinkResolver creates a resolver with the default strategy order.
func NewDriveLinkResolver(cfg DriveLinkResolverConfig, logger *zap.Logger) *DriveLinkResolver {
	if cfg.DriveBaseURL == "" {
		cfg.DriveBaseURL = DefaultDriveBaseURL
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultResolveStepTimeout
	}
	if len(cfg.ThumbnailSizes) == 0 {
		cfg.ThumbnailSizes = DefaultThumbnailSizes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		client = &copied
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	r := &DriveLinkResolver{
		driveBaseURL: strings.TrimRight(cfg.DriveBaseURL, "/"),
		stepTimeout:  cfg.StepTimeout,
		client:       client,
		metadata:     cfg.Metadata,
		logger:       logger,
	}

	for _, size := range cfg.ThumbnailSizes {
		r.strategies = append(r.strategies, resolveStrategy{
			name: "thumbnail_w" + strconv.Itoa(size),
			run: func(ctx context.Context, fileID string) (string, error) {
				return r.probeThumbnail(ctx, fileID, size)
			},
		})
	}
	r.strategies = append(r.strategies, resolveStrategy{name: "export_view", run: r.probeExportView})
	if r.metadata != nil {
		r.strategies = append(r.strategies, resolveStrategy{name: "metadata", run: r.lookupMetadata})
	}
	return r
}

// Resolve never fails. Canonical URLs are returned unchanged; anything else is reduced to
// a file id and run through the strategy chain, ending at the generic download URL.
func (r *DriveLinkResolver) Resolve(ctx context.Context, fileHandle string) string {
	handle := strings.TrimSpace(fileHandle)
	if IsCanonicalImageURL(handle) {
		metrics.LinkResolutions.WithLabelValues("canonical_input", "hit").Inc()
		return handle
	}

	fileID := ExtractFileID(handle)
	if fileID == "" {
		r.logger.Debug("file handle is not a drive file id", zap.String("handle", handle))
		metrics.LinkResolutions.WithLabelValues("fallback", "hit").Inc()
		return FallbackURL(handle)
	}

	for _, s := range r.strategies {
		resolved, err := r.attempt(ctx, s, fileID)
		if err == nil {
			metrics.LinkResolutions.WithLabelValues(s.name, "hit").Inc()
			return resolved
		}

		outcome := "miss"
		if !errors.Is(err, errNoRedirect) && !errors.Is(err, errNotCanonical) && !errors.Is(err, errNoLink) {
			outcome = "error"
		}
		metrics.LinkResolutions.WithLabelValues(s.name, outcome).Inc()
		r.logger.Debug("link resolve strategy failed",
			zap.String("strategy", s.name),
			zap.String("file_id", fileID),
			zap.Error(err),
		)
	}

	metrics.LinkResolutions.WithLabelValues("fallback", "hit").Inc()
	return FallbackURL(fileID)
}

// attempt runs one strategy under its own timeout.
func (r *DriveLinkResolver) attempt(ctx context.Context, s resolveStrategy, fileID string) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	return s.run(stepCtx, fileID)
}

func (r *DriveLinkResolver) probeThumbnail(ctx context.Context, fileID string, size int) (string, error) {
	params := url.Values{"id": {fileID}, "sz": {"w" + strconv.Itoa(size)}}
	location, err := r.redirectTarget(ctx, r.driveBaseURL+"/thumbnail?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	return CleanCanonicalURL(location)
}

func (r *DriveLinkResolver) probeExportView(ctx context.Context, fileID string) (string, error) {
	params := url.Values{"export": {"view"}, "id": {fileID}}
	headers := http.Header{
		"User-Agent":      {browserUserAgent},
		"Accept":          {"image/avif,image/webp,image/apng,image/*,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.9"},
	}
	location, err := r.redirectTarget(ctx, r.driveBaseURL+"/uc?"+params.Encode(), headers)
	if err != nil {
		return "", err
	}
	if !IsCanonicalImageURL(location) {
		return "", errNotCanonical
	}
	return location, nil
}

func (r *DriveLinkResolver) lookupMetadata(ctx context.Context, fileID string) (string, error) {
	meta, err := r.metadata.FileMetadata(ctx, fileID)
	if err != nil {
		return "", err
	}
	if meta.WebContentLink != "" {
		return meta.WebContentLink, nil
	}
	if meta.ThumbnailLink != "" {
		return CleanCanonicalURL(meta.ThumbnailLink)
	}
	return "", errNoLink
}

// redirectTarget issues a GET and returns the Location of a redirect response.
func (r *DriveLinkResolver) redirectTarget(ctx context.Context, target string, headers http.Header) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: status %d", errNoRedirect, resp.StatusCode)
	}
	location, err := resp.Location()
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoRedirect, err)
	}
	return location.String(), nil
}

// =============================================================================
// URL helpers
// =============================================================================

// IsCanonicalImageURL reports whether raw points at the long-lived image CDN.
func IsCanonicalImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return false
	}
	return canonicalHostPattern.MatchString(strings.ToLower(u.Hostname()))
}

// CleanCanonicalURL strips size limits from a canonical CDN URL so the full image is served.
// It returns an error when raw is not on the canonical host.
func CleanCanonicalURL(raw string) (string, error) {
	if !IsCanonicalImageURL(raw) {
		return "", errNotCanonical
	}
	u, _ := url.Parse(raw)

	u.Path = sizeSuffixPattern.ReplaceAllString(u.Path, "")
	u.RawPath = ""

	q := u.Query()
	for _, p := range sizeParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractFileID reduces a Drive share URL or a bare id to the file id.
// It returns "" when no id can be found.
func ExtractFileID(handle string) string {
	handle = strings.TrimSpace(handle)
	if fileIDPattern.MatchString(handle) {
		return handle
	}

	u, err := url.Parse(handle)
	if err != nil || u.Host == "" {
		return ""
	}
	if m := filePathPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	if id := u.Query().Get("id"); fileIDPattern.MatchString(id) {
		return id
	}
	return ""
}

// FallbackURL builds the generic download URL for a file id.
func FallbackURL(fileID string) string {
	return fmt.Sprintf(FallbackDownloadURL, url.QueryEscape(fileID))
}

// IsFallbackURL reports whether raw was produced by FallbackURL.
func IsFallbackURL(raw string) bool {
	return strings.HasPrefix(raw, "https://drive.usercontent.google.com/download?")
}
