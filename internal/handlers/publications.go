package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/auth"
	"github.com/mikelady/showcase/internal/services"
)

// =============================================================================
// Publication Handlers
// =============================================================================

// PublicationManager is the lifecycle API the handlers drive.
type PublicationManager interface {
	Create(ctx context.Context, req services.CreateRequest) (*services.CreateResult, error)
	ConfirmManual(ctx context.Context, id, externalURL string) (*services.Publication, error)
	FailManual(ctx context.Context, id, reason string) (*services.Publication, error)
	Takedown(ctx context.Context, id, reason string) (*services.Publication, error)
	Remove(ctx context.Context, id string) (*services.Publication, error)
	Restore(ctx context.Context, id string) (*services.Publication, error)
	Get(ctx context.Context, id string) (*services.PublicationView, error)
	List(ctx context.Context, filter services.ListFilter) ([]*services.PublicationView, error)
	CheckCredentials(ctx context.Context) (*services.CredentialStatus, error)
}

// Compile-time interface compliance check
var _ PublicationManager = (*services.PublicationService)(nil)

// PublicationsHandler serves /api/v1/publications.
type PublicationsHandler struct {
	manager PublicationManager
	logger  *zap.Logger
}

// NewPublicationsHandler creates a new publications handler
func NewPublicationsHandler(manager PublicationManager, logger *zap.Logger) *PublicationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicationsHandler{manager: manager, logger: logger}
}

// CreatePublicationRequest is the body of both create endpoints.
type CreatePublicationRequest struct {
	OrderID  string `json:"order_id"`
	ImageURL string `json:"image_url,omitempty"`
	Caption  string `json:"caption"`
}

// ConfirmRequest is the body of the confirm endpoint.
type ConfirmRequest struct {
	ExternalURL string `json:"external_url"`
}

// ReasonRequest is the body of the fail and takedown endpoints.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// PublicationResponse is the publication object in API responses
type PublicationResponse struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	ExternalPostID string          `json:"external_post_id"`
	Permalink      string          `json:"permalink,omitempty"`
	ImageURL       string          `json:"image_url"`
	Caption        string          `json:"caption"`
	PublishPath    string          `json:"publish_path"`
	State          string          `json:"state"`
	IsSimulated    bool            `json:"is_simulated"`
	Annotation     string          `json:"annotation,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	TakedownReason string          `json:"takedown_reason,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	PublishedAt    *string         `json:"published_at"`
	TakenDownAt    *string         `json:"taken_down_at"`
	Deleted        bool            `json:"deleted"`
	DeletedAt      *string         `json:"deleted_at"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
	Order          *services.Order `json:"order,omitempty"`
}

// CreatePublicationResponse adds the manual-path guidance to the record.
type CreatePublicationResponse struct {
	Publication  PublicationResponse `json:"publication"`
	Instructions []string            `json:"instructions,omitempty"`
	TopicTags    []string            `json:"topic_tags,omitempty"`
}

// Create handles POST /api/v1/publications
func (h *PublicationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, false)
}

// CreateManual handles POST /api/v1/publications/manual
func (h *PublicationsHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, true)
}

func (h *PublicationsHandler) create(w http.ResponseWriter, r *http.Request, manual bool) {
	var req CreatePublicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	result, err := h.manager.Create(r.Context(), services.CreateRequest{
		OrderID:       req.OrderID,
		ImageURL:      req.ImageURL,
		Caption:       req.Caption,
		UseManualPath: manual,
		CreatedBy:     auth.GetUserIDFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	message := "publication created"
	if manual {
		message = "manual publication prepared, follow the instructions and confirm with the post link"
	} else if result.Publication.IsSimulated {
		message = "publication simulated"
	}
	writeSuccess(w, http.StatusCreated, message, CreatePublicationResponse{
		Publication:  toPublicationResponse(result.Publication, nil),
		Instructions: result.Instructions,
		TopicTags:    result.TopicTags,
	})
}

// Confirm handles POST /api/v1/publications/{id}/confirm
func (h *PublicationsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	p, err := h.manager.ConfirmManual(r.Context(), r.PathValue("id"), req.ExternalURL)
	h.writePublication(w, p, err, "publication confirmed")
}

// Fail handles POST /api/v1/publications/{id}/fail
func (h *PublicationsHandler) Fail(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	p, err := h.manager.FailManual(r.Context(), r.PathValue("id"), req.Reason)
	h.writePublication(w, p, err, "publication marked failed")
}

// Takedown handles POST /api/v1/publications/{id}/takedown
func (h *PublicationsHandler) Takedown(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	p, err := h.manager.Takedown(r.Context(), r.PathValue("id"), req.Reason)
	h.writePublication(w, p, err, "publication taken down")
}

// Remove handles DELETE /api/v1/publications/{id}
func (h *PublicationsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	p, err := h.manager.Remove(r.Context(), r.PathValue("id"))
	h.writePublication(w, p, err, "publication removed")
}

// Restore handles POST /api/v1/publications/{id}/restore
func (h *PublicationsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	p, err := h.manager.Restore(r.Context(), r.PathValue("id"))
	h.writePublication(w, p, err, "publication restored")
}

// Get handles GET /api/v1/publications/{id}
func (h *PublicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "publication retrieved", toPublicationResponse(view.Publication, view.Order))
}

// List handles GET /api/v1/publications
func (h *PublicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	views, err := h.manager.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	out := make([]PublicationResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toPublicationResponse(v.Publication, v.Order))
	}
	writeSuccess(w, http.StatusOK, "publications retrieved", out)
}

// Credentials handles GET /api/v1/publications/credentials
func (h *PublicationsHandler) Credentials(w http.ResponseWriter, r *http.Request) {
	status, err := h.manager.CheckCredentials(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	message := "credentials valid"
	if !status.Valid {
		message = "credentials invalid"
	}
	writeSuccess(w, http.StatusOK, message, status)
}

func (h *PublicationsHandler) writePublication(w http.ResponseWriter, p *services.Publication, err error, message string) {
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, message, toPublicationResponse(p, nil))
}

func parseListFilter(r *http.Request) (services.ListFilter, error) {
	q := r.URL.Query()
	filter := services.ListFilter{OrderID: strings.TrimSpace(q.Get("order_id"))}

	if raw := q.Get("state"); raw != "" {
		state, err := services.ParsePublicationState(raw)
		if err != nil {
			return filter, err
		}
		filter.State = state
	}
	if raw := q.Get("include_deleted"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, services.NewValidationError("include_deleted", "must be a boolean")
		}
		filter.IncludeDeleted = v
	}

	var err error
	if filter.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(q.Get("offset"), "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, services.NewValidationError(field, "must be a non-negative integer")
	}
	return v, nil
}

func toPublicationResponse(p *services.Publication, order *services.Order) PublicationResponse {
	return PublicationResponse{
		ID:             p.ID,
		OrderID:        p.OrderID,
		ExternalPostID: p.ExternalPostID,
		Permalink:      p.Permalink,
		ImageURL:       p.ImageURL,
		Caption:        p.Caption,
		PublishPath:    string(p.Path),
		State:          string(p.State),
		IsSimulated:    p.IsSimulated,
		Annotation:     p.Annotation(),
		FailureReason:  p.FailureReason,
		TakedownReason: p.TakedownReason,
		CreatedBy:      p.CreatedBy,
		PublishedAt:    formatTime(p.PublishedAt),
		TakenDownAt:    formatTime(p.TakenDownAt),
		Deleted:        p.Deleted,
		DeletedAt:      formatTime(p.DeletedAt),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
		Order:          order,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
