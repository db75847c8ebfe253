package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Publication Record and Lifecycle States
// One publication per order photo, driven through the automated or manual path
// =============================================================================

// PublicationState is the lifecycle state of a publication record.
type PublicationState string

// Lifecycle states. StateDraft is transient and never persisted.
const (
	StateDraft         PublicationState = "draft"
	StatePendingManual PublicationState = "pendingManual"
	StatePublished     PublicationState = "published"
	StateFailed        PublicationState = "failed"
	StateTakenDown     PublicationState = "takenDown"
)

// PublishPath records which adapter variant produced the record.
type PublishPath string

const (
	PathAutomated PublishPath = "automated"
	PathManual    PublishPath = "manual"
)

// transitions lists the legal next states for every state.
var transitions = map[PublicationState][]PublicationState{
	StateDraft:         {StatePublished, StatePendingManual},
	StatePendingManual: {StatePublished, StateFailed},
	StatePublished:     {StateTakenDown},
	StateFailed:        nil,
	StateTakenDown:     nil,
}

// Valid reports whether s is a known lifecycle state.
func (s PublicationState) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s PublicationState) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s PublicationState) CanTransitionTo(next PublicationState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParsePublicationState parses a state name, accepting any letter case.
func ParsePublicationState(raw string) (PublicationState, error) {
	for s := range transitions {
		if strings.EqualFold(string(s), raw) {
			return s, nil
		}
	}
	return "", NewValidationError("state", fmt.Sprintf("unknown state %q", raw))
}

// Publication errors
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrPublicationNotFound  = errors.New("publication not found")
	ErrDuplicatePublication = errors.New("an active publication already exists for this order")
	ErrInvalidTransition    = errors.New("invalid publication state transition")
	ErrPublishFailed        = errors.New("publishing to the platform failed")
	ErrOrderNotFound        = errors.New("order not found")
	ErrPublicationIsDeleted = fmt.Errorf("%w: publication is deleted", ErrInvalidTransition)

	// ErrInvalidPermalink is a validation failure; it also matches ErrInvalidInput.
	ErrInvalidPermalink error = NewValidationError("external_url", "does not match a known instagram permalink")
)

// ValidationError describes a rejected input field. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Is lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Publication is the local record of one attempt to show an order photo on the platform.
type Publication struct {
	ID             string
	OrderID        string
	ExternalPostID string
	Permalink      string
	ImageURL       string
	Caption        string
	Path           PublishPath
	State          PublicationState
	IsSimulated    bool
	FailureReason  string
	TakedownReason string
	CreatedBy      string
	PublishedAt    *time.Time
	TakenDownAt    *time.Time
	Deleted        bool
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Annotation returns a human readable note for records produced in simulation mode.
func (p *Publication) Annotation() string {
	if p.IsSimulated {
		return "simulated: nothing was posted to the platform"
	}
	return ""
}

// Clone returns a deep copy so stores never share timestamps with callers.
func (p *Publication) Clone() *Publication {
	if p == nil {
		return nil
	}
	c := *p
	c.PublishedAt = cloneTime(p.PublishedAt)
	c.TakenDownAt = cloneTime(p.TakenDownAt)
	c.DeletedAt = cloneTime(p.DeletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ListFilter narrows ListPublications results.
type ListFilter struct {
	OrderID        string
	State          PublicationState
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// DefaultListLimit and MaxListLimit bound list queries.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalize clamps paging values.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// PublicationStore persists publication records.
//
// CreatePublication must return ErrDuplicatePublication when another non-deleted record
// exists for the same order. UpdatePublicationState must only apply when the stored state
// still equals from, returning ErrInvalidTransition otherwise.
type PublicationStore interface {
	CreatePublication(ctx context.Context, p *Publication) (*Publication, error)
	GetPublication(ctx context.Context, id string) (*Publication, error)
	GetActivePublicationByOrder(ctx context.Context, orderID string) (*Publication, error)
	UpdatePublicationState(ctx context.Context, p *Publication, from PublicationState) error
	SetPublicationDeleted(ctx context.Context, id string, deletedAt *time.Time) error
	ListPublications(ctx context.Context, filter ListFilter) ([]*Publication, error)
}

// Order is the read-only view of an order used for display enrichment.
type Order struct {
	ID            string `json:"id"`
	UniqueCode    string `json:"unique_code"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	PhotoAfterURL string `json:"photo_after_url,omitempty"`
}

// OrderLookup supplies orders owned by the CRUD layer. Returns nil, nil when absent.
type OrderLookup interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}
