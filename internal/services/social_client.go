package services

import (
	"context"
	"errors"
)

// =============================================================================
// Publisher Interface and Types
// Shared contract of the automated and manual publishing adapters
// =============================================================================

// Platform error classes. Adapter errors wrap one of these so callers can classify
// failures without knowing the concrete adapter.
var (
	ErrPlatformAuthentication = errors.New("platform rejected the credentials")
	ErrPlatformRateLimited    = errors.New("platform rate limit reached")
	ErrPlatformPostNotFound   = errors.New("post does not exist on the platform")
)

// Publisher is implemented by both publishing adapters. Callers depend only on this
// contract and cannot tell a simulated automated adapter from a live one except through
// PostResult.Simulated and the synthetic id prefix.
type Publisher interface {
	// CreatePost publishes (or prepares) an image post with the given caption.
	CreatePost(ctx context.Context, content PostContent) (*PostResult, error)

	// DeletePost removes a post. A false result with a nil error means the platform
	// answered but refused the deletion.
	DeletePost(ctx context.Context, postID string) (bool, error)
}

// CredentialChecker validates the credentials an automated adapter was built with.
type CredentialChecker interface {
	ValidateCredentials(ctx context.Context) (*CredentialStatus, error)
}

// PermalinkFetcher looks up the public permalink of a post.
// Returns an error wrapping ErrPlatformPostNotFound when the platform reports the post missing.
type PermalinkFetcher interface {
	GetPermalink(ctx context.Context, postID string) (string, error)
}

// AutomatedPublisher is the full capability set of the automated adapter.
type AutomatedPublisher interface {
	Publisher
	CredentialChecker
	PermalinkFetcher
}

// PostContent is what gets published.
type PostContent struct {
	// ImageURL must be publicly reachable by the platform.
	ImageURL string

	// Caption is the post text, hashtags included.
	Caption string
}

// PostResult describes a created post.
type PostResult struct {
	// PostID is the platform id, or a local placeholder for the manual path.
	PostID string

	// Permalink is the public URL of the post, empty when it could not be fetched.
	Permalink string

	// Simulated is true when no network call was made.
	Simulated bool

	// Caption is the caption as it should appear on the platform.
	Caption string

	// Instructions are the numbered steps a human follows on the manual path.
	Instructions []string

	// TopicTags are display-only hashtags derived from the caption.
	TopicTags []string
}

// CredentialStatus is the outcome of a credentials diagnostic.
type CredentialStatus struct {
	Valid     bool   `json:"valid"`
	Simulated bool   `json:"simulated"`
	AccountID string `json:"account_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// LinkResolver turns a storage file handle into the most durable public URL it can find.
// Resolve never fails; on total failure it returns a generic download URL.
type LinkResolver interface {
	Resolve(ctx context.Context, fileHandle string) string
}

// StorageProvider is the raw file storage used for order photos.
type StorageProvider interface {
	Upload(ctx context.Context, data []byte, name, contentType string) (string, error)
	Delete(ctx context.Context, fileHandle string) error
	ListByNamePrefix(ctx context.Context, prefix string) ([]string, error)
}
