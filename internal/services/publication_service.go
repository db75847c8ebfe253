package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/metrics"
)

// =============================================================================
// Publication Service
// Drives publication records through their lifecycle on either publishing path
// =============================================================================

// MaxCaptionLength is the platform caption limit, counted in runes.
const MaxCaptionLength = 2200

// maxOrderIDLength bounds order ids accepted from callers.
const maxOrderIDLength = 128

// defaultFailReason is recorded when a manual post is abandoned without a reason.
const defaultFailReason = "manual publication abandoned"

// removeTakedownReason is recorded on the implicit takedown performed by Remove.
const removeTakedownReason = "removed"

// CreateRequest is the input to PublicationService.Create.
type CreateRequest struct {
	OrderID string

	// ImageURL defaults to the order's after photo when empty.
	ImageURL string

	Caption       string
	UseManualPath bool
	CreatedBy     string
}

// CreateResult is the outcome of a successful Create.
type CreateResult struct {
	Publication *Publication

	// Instructions and TopicTags are only set on the manual path.
	Instructions []string
	TopicTags    []string
}

// PublicationView is a publication enriched for display.
type PublicationView struct {
	*Publication
	Order *Order
}

// PublicationService is the post lifecycle manager.
type PublicationService struct {
	store     PublicationStore
	orders    OrderLookup
	automated AutomatedPublisher
	manual    Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewPublicationService creates a lifecycle manager.
// orders and automated may be nil: without orders no display enrichment or image fallback
// happens, without automated only the manual path is available.
func NewPublicationService(store PublicationStore, orders OrderLookup, automated AutomatedPublisher, manual Publisher, logger *zap.Logger) *PublicationService {
	if manual == nil {
		manual = NewManualPublisher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicationService{
		store:     store,
		orders:    orders,
		automated: automated,
		manual:    manual,
		logger:    logger,
		now:       time.Now,
	}
}

// Create publishes an order photo through the automated adapter, or prepares it for a
// human on the manual path. Nothing is persisted when the automated adapter fails.
func (s *PublicationService) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.ImageURL = strings.TrimSpace(req.ImageURL)

	if err := validateOrderID(req.OrderID); err != nil {
		return nil, err
	}
	// Fall back to the order's after photo
	if req.ImageURL == "" {
		imageURL, err := s.orderPhoto(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}
		req.ImageURL = imageURL
	}
	if err := validateImageURL(req.ImageURL); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.Caption) > MaxCaptionLength {
		return nil, NewValidationError("caption", fmt.Sprintf("must be at most %d characters", MaxCaptionLength))
	}

	// Check for an active publication before touching the platform
	existing, err := s.store.GetActivePublicationByOrder(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing publication: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicatePublication
	}

	if req.UseManualPath {
		return s.createManual(ctx, req)
	}
	return s.createAutomated(ctx, req)
}

func (s *PublicationService) createAutomated(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if s.automated == nil {
		return nil, fmt.Errorf("%w: automated publishing is not configured", ErrPublishFailed)
	}

	// Publish first, then record
	result, err := s.automated.CreatePost(ctx, PostContent{ImageURL: req.ImageURL, Caption: req.Caption})
	if err != nil {
		metrics.PublishFailures.WithLabelValues(failureKind(err)).Inc()
		s.logger.Warn("automated publish failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	now := s.now()
	record := &Publication{
		OrderID:        req.OrderID,
		ExternalPostID: result.PostID,
		Permalink:      result.Permalink,
		ImageURL:       req.ImageURL,
		Caption:        req.Caption,
		Path:           PathAutomated,
		State:          StatePublished,
		IsSimulated:    result.Simulated,
		CreatedBy:      req.CreatedBy,
		PublishedAt:    &now,
	}

	saved, err := s.store.CreatePublication(ctx, record)
	if err != nil {
		// The post is live but has no local record; pull it back.
		s.retract(ctx, s.automated, result.PostID, req.OrderID)
		if errors.Is(err, ErrDuplicatePublication) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record publication: %w", err)
	}

	s.recordTransition(saved)
	return &CreateResult{Publication: saved}, nil
}

func (s *PublicationService) createManual(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	caption := EnrichCaption(req.Caption)

	result, err := s.manual.CreatePost(ctx, PostContent{ImageURL: req.ImageURL, Caption: caption})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	record := &Publication{
		OrderID:        req.OrderID,
		ExternalPostID: result.PostID,
		ImageURL:       req.ImageURL,
		Caption:        result.Caption,
		Path:           PathManual,
		State:          StatePendingManual,
		CreatedBy:      req.CreatedBy,
	}

	saved, err := s.store.CreatePublication(ctx, record)
	if err != nil {
		if errors.Is(err, ErrDuplicatePublication) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record publication: %w", err)
	}

	s.recordTransition(saved)
	return &CreateResult{
		Publication:  saved,
		Instructions: result.Instructions,
		TopicTags:    result.TopicTags,
	}, nil
}

// ConfirmManual records the permalink a human obtained after posting manually.
// The state is checked before the URL so a wrong-state call never reports a URL problem.
func (s *PublicationService) ConfirmManual(ctx context.Context, id, externalURL string) (*Publication, error) {
	current, err := s.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.State != StatePendingManual {
		return nil, fmt.Errorf("%w: cannot confirm a %s publication", ErrInvalidTransition, current.State)
	}

	// Extract the shortcode from the permalink
	code, err := ParsePermalink(externalURL)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated := current.Clone()
	updated.State = StatePublished
	updated.ExternalPostID = code
	updated.Permalink = CanonicalPermalink(code)
	updated.PublishedAt = &now

	if err := s.store.UpdatePublicationState(ctx, updated, StatePendingManual); err != nil {
		return nil, fmt.Errorf("failed to confirm publication: %w", err)
	}

	s.recordTransition(updated)
	return updated, nil
}

// FailManual marks a pending manual publication as abandoned.
func (s *PublicationService) FailManual(ctx context.Context, id, reason string) (*Publication, error) {
	current, err := s.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.State.CanTransitionTo(StateFailed) {
		return nil, fmt.Errorf("%w: cannot fail a %s publication", ErrInvalidTransition, current.State)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultFailReason
	}

	updated := current.Clone()
	updated.State = StateFailed
	updated.FailureReason = reason

	if err := s.store.UpdatePublicationState(ctx, updated, current.State); err != nil {
		return nil, fmt.Errorf("failed to mark publication failed: %w", err)
	}

	s.recordTransition(updated)
	return updated, nil
}

// Takedown withdraws a published post. The remote delete is best effort: its failure is
// logged and the local record still moves to takenDown.
func (s *PublicationService) Takedown(ctx context.Context, id, reason string) (*Publication, error) {
	current, err := s.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.takedown(ctx, current, strings.TrimSpace(reason))
}

func (s *PublicationService) takedown(ctx context.Context, current *Publication, reason string) (*Publication, error) {
	if current.State != StatePublished || current.TakenDownAt != nil {
		return nil, fmt.Errorf("%w: cannot take down a %s publication", ErrInvalidTransition, current.State)
	}

	// Delete the remote post
	s.retract(ctx, s.adapterFor(current), current.ExternalPostID, current.OrderID)

	now := s.now()
	updated := current.Clone()
	updated.State = StateTakenDown
	updated.TakenDownAt = &now
	updated.TakedownReason = reason

	if err := s.store.UpdatePublicationState(ctx, updated, StatePublished); err != nil {
		return nil, fmt.Errorf("failed to take down publication: %w", err)
	}

	s.recordTransition(updated)
	return updated, nil
}

// Remove soft-deletes a publication, taking it down first when it is still published.
// Removing an already deleted record is a no-op.
func (s *PublicationService) Remove(ctx context.Context, id string) (*Publication, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Deleted {
		return current, nil
	}

	// Published records are taken down before they are deleted
	if current.State == StatePublished {
		current, err = s.takedown(ctx, current, removeTakedownReason)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	if err := s.store.SetPublicationDeleted(ctx, current.ID, &now); err != nil {
		return nil, fmt.Errorf("failed to delete publication: %w", err)
	}

	removed := current.Clone()
	removed.Deleted = true
	removed.DeletedAt = &now

	s.logger.Info("publication removed",
		zap.String("publication_id", removed.ID),
		zap.String("order_id", removed.OrderID),
		zap.String("state", string(removed.State)),
	)
	return removed, nil
}

// Restore clears the soft-delete flag. The lifecycle state is left untouched.
// It fails with ErrDuplicatePublication when the order has another active record.
func (s *PublicationService) Restore(ctx context.Context, id string) (*Publication, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Deleted {
		return current, nil
	}

	if err := s.store.SetPublicationDeleted(ctx, current.ID, nil); err != nil {
		if errors.Is(err, ErrDuplicatePublication) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to restore publication: %w", err)
	}

	restored := current.Clone()
	restored.Deleted = false
	restored.DeletedAt = nil

	s.logger.Info("publication restored",
		zap.String("publication_id", restored.ID),
		zap.String("order_id", restored.OrderID),
		zap.String("state", string(restored.State)),
	)
	return restored, nil
}

// Get returns one publication, deleted or not, with its order summary.
func (s *PublicationService) Get(ctx context.Context, id string) (*PublicationView, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PublicationView{Publication: p, Order: s.orderSummary(ctx, p.OrderID)}, nil
}

// List returns publications matching filter, newest first.
func (s *PublicationService) List(ctx context.Context, filter ListFilter) ([]*PublicationView, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, NewValidationError("state", fmt.Sprintf("unknown state %q", filter.State))
	}

	records, err := s.store.ListPublications(ctx, filter.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list publications: %w", err)
	}

	// Look up each order once
	orders := make(map[string]*Order)
	views := make([]*PublicationView, 0, len(records))
	for _, p := range records {
		order, ok := orders[p.OrderID]
		if !ok {
			order = s.orderSummary(ctx, p.OrderID)
			orders[p.OrderID] = order
		}
		views = append(views, &PublicationView{Publication: p, Order: order})
	}
	return views, nil
}

// CheckCredentials reports whether the automated adapter can reach the platform.
func (s *PublicationService) CheckCredentials(ctx context.Context) (*CredentialStatus, error) {
	if s.automated == nil {
		return &CredentialStatus{Valid: false, Detail: "automated publishing is not configured"}, nil
	}
	return s.automated.ValidateCredentials(ctx)
}

// =============================================================================
// Helpers
// =============================================================================

func (s *PublicationService) load(ctx context.Context, id string) (*Publication, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("id", "is required")
	}
	p, err := s.store.GetPublication(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPublicationNotFound
	}
	return p, nil
}

// loadActive loads a record that is about to change state. Deleted records only accept Restore.
func (s *PublicationService) loadActive(ctx context.Context, id string) (*Publication, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Deleted {
		return nil, ErrPublicationIsDeleted
	}
	return p, nil
}

func (s *PublicationService) adapterFor(p *Publication) Publisher {
	if p.Path == PathAutomated && s.automated != nil {
		return s.automated
	}
	return s.manual
}

// retract deletes a remote post, logging instead of failing.
func (s *PublicationService) retract(ctx context.Context, adapter Publisher, postID, orderID string) {
	deleted, err := adapter.DeletePost(ctx, postID)
	if err == nil && deleted {
		return
	}
	metrics.BestEffortFailures.WithLabelValues("delete_post").Inc()
	s.logger.Warn("remote post delete failed",
		zap.String("order_id", orderID),
		zap.String("external_post_id", postID),
		zap.Bool("refused", err == nil && !deleted),
		zap.Error(err),
	)
}

func (s *PublicationService) orderPhoto(ctx context.Context, orderID string) (string, error) {
	if s.orders == nil {
		return "", NewValidationError("image_url", "is required")
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return "", ErrOrderNotFound
	}
	if order.PhotoAfterURL == "" {
		return "", NewValidationError("image_url", "is required when the order has no after photo")
	}
	return order.PhotoAfterURL, nil
}

// orderSummary loads the order for display. Lookup failures only cost the enrichment.
func (s *PublicationService) orderSummary(ctx context.Context, orderID string) *Order {
	if s.orders == nil {
		return nil
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn("order lookup failed", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}
	return order
}

func (s *PublicationService) recordTransition(p *Publication) {
	metrics.PublicationTransitions.WithLabelValues(string(p.Path), string(p.State)).Inc()
	s.logger.Info("publication state changed",
		zap.String("publication_id", p.ID),
		zap.String("order_id", p.OrderID),
		zap.String("state", string(p.State)),
		zap.String("path", string(p.Path)),
		zap.Bool("simulated", p.IsSimulated),
	)
}

func validateOrderID(orderID string) error {
	if orderID == "" {
		return NewValidationError("order_id", "is required")
	}
	if len(orderID) > maxOrderIDLength {
		return NewValidationError("order_id", fmt.Sprintf("must be at most %d characters", maxOrderIDLength))
	}
	return nil
}

func validateImageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewValidationError("image_url", "must be an absolute http(s) URL")
	}
	return nil
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrPlatformAuthentication):
		return "authentication"
	case errors.Is(err, ErrPlatformRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "other"
	}
}
