package events

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentCreated       EventType = "incident_created"
	EventIncidentAssigned      EventType = "incident_assigned"
	EventIncidentStatusChanged EventType = "incident_status_changed"
	EventIncidentCommentAdded  EventType = "incident_comment_added"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID        string `json:"id"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
	IsSupport bool   `json:"is_support,omitempty"`
}

// Event represents a domain event emitted by the lifecycle engine.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IncidentID string      `json:"incident_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// IncidentCreatedPayload payload.
type IncidentCreatedPayload struct {
	Title    string                  `json:"title"`
	Severity domain.IncidentSeverity `json:"severity"`
}

// IncidentAssignedPayload payload.
type IncidentAssignedPayload struct {
	AssigneeID string `json:"assignee_id"`
}

// IncidentStatusChangedPayload payload.
type IncidentStatusChangedPayload struct {
	OldStatus domain.IncidentStatus `json:"old_status"`
	NewStatus domain.IncidentStatus `json:"new_status"`
	Hidden    bool                  `json:"hidden,omitempty"`
}

// IncidentCommentAddedPayload payload.
type IncidentCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	TextPreview string `json:"text_preview"`
}
