package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// CreateIncidentRequest payload.
type CreateIncidentRequest struct {
	Title         string                  `json:"title" validate:"required,max=200"`
	Description   string                  `json:"description" validate:"required"`
	Severity      domain.IncidentSeverity `json:"severity" validate:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW"`
	AttachmentKey *string                 `json:"attachment_key,omitempty"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

// SetStatusRequest payload.
type SetStatusRequest struct {
	Status domain.IncidentStatus `json:"status" validate:"required,oneof=OPEN IN_PROGRESS RESOLVED"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required"`
}

// IncidentSummary response.
type IncidentSummary struct {
	ID                string                  `json:"id"`
	Title             string                  `json:"title"`
	Severity          domain.IncidentSeverity `json:"severity"`
	Status            domain.IncidentStatus   `json:"status"`
	CreatedBy         string                  `json:"created_by"`
	AssignedTo        *string                 `json:"assigned_to"`
	VisibleToReporter bool                    `json:"visible_to_reporter"`
	VisibleToSupport  bool                    `json:"visible_to_support"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// IncidentDetailResponse provides full incident info.
type IncidentDetailResponse struct {
	IncidentSummary
	Description   string            `json:"description"`
	AttachmentKey *string           `json:"attachment_key,omitempty"`
	Comments      []CommentResponse `json:"comments"`
}

// CommentResponse represents one thread entry.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SupportUserResponse lists assignment candidates for admins.
type SupportUserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
