package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/access"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// statusRetries bounds the compare-and-swap loop for status writes. Each
// attempt re-reads the row, so losing a race never applies a stale write.
const statusRetries = 3

// IncidentService owns the incident lifecycle: which transitions of status,
// assignment and visibility are legal, and how concurrent actors are kept
// from corrupting shared state.
type IncidentService struct {
	incidents  repository.IncidentRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// IncidentDependencies bundles repositories for the lifecycle engine.
type IncidentDependencies struct {
	IncidentRepo repository.IncidentRepository
	CommentRepo  repository.CommentRepository
	UserRepo     repository.UserRepository
	Dispatcher   events.Dispatcher
}

// IncidentCreateInput describes incident creation payload.
type IncidentCreateInput struct {
	Title         string
	Description   string
	Severity      domain.IncidentSeverity
	AttachmentKey *string
}

// IncidentListFilter carries the optional admin refinements.
type IncidentListFilter struct {
	Status   *domain.IncidentStatus
	Severity *domain.IncidentSeverity
	Limit    int
	Offset   int
}

// NewIncidentService constructs the service.
func NewIncidentService(deps IncidentDependencies) *IncidentService {
	return &IncidentService{
		incidents:  deps.IncidentRepo,
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
	}
}

// CreateIncident opens a new incident reported by the actor. The incident
// starts OPEN, unassigned and visible to both reporter and support; the
// reporter binding is permanent.
func (s *IncidentService) CreateIncident(ctx context.Context, actor domain.Actor, input IncidentCreateInput) (*domain.Incident, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewInvalidArgument("title required", nil)
	}
	severity := input.Severity
	if severity == "" {
		severity = domain.SeverityLow
	}
	if !domain.ValidSeverity(severity) {
		return nil, apperrors.NewInvalidArgument("invalid severity", map[string]any{"severity": severity})
	}

	incident := &domain.Incident{
		Title:             title,
		Description:       strings.TrimSpace(input.Description),
		Severity:          severity,
		Status:            domain.IncidentStatusOpen,
		CreatedBy:         actor.ID,
		VisibleToReporter: true,
		VisibleToSupport:  true,
		AttachmentKey:     input.AttachmentKey,
	}
	if err := s.incidents.Create(ctx, incident); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, actor, events.Event{
		Type:       events.EventIncidentCreated,
		IncidentID: incident.ID,
		Payload: events.IncidentCreatedPayload{
			Title:    incident.Title,
			Severity: incident.Severity,
		},
	})
	return incident, nil
}

// ListIncidents returns the actor's dashboard slice of the pool. The
// predicate is exactly the resolver's ACT condition for the actor's role;
// status/severity refinements apply only to administrators and are silently
// ignored for everyone else.
func (s *IncidentService) ListIncidents(ctx context.Context, actor domain.Actor, filter IncidentListFilter) ([]domain.Incident, error) {
	scope := access.ScopeFor(actor)
	repoFilter := repository.IncidentFilter{
		CreatedBy:         scope.CreatedBy,
		AssignedTo:        scope.AssignedTo,
		VisibleToReporter: scope.VisibleToReporter,
		VisibleToSupport:  scope.VisibleToSupport,
		Limit:             filter.Limit,
		Offset:            filter.Offset,
	}
	if scope.AllowRefinement {
		if filter.Status != nil {
			if !domain.ValidStatus(*filter.Status) {
				return nil, apperrors.NewInvalidArgument("invalid status filter", map[string]any{"status": *filter.Status})
			}
			repoFilter.Status = filter.Status
		}
		if filter.Severity != nil {
			if !domain.ValidSeverity(*filter.Severity) {
				return nil, apperrors.NewInvalidArgument("invalid severity filter", map[string]any{"severity": *filter.Severity})
			}
			repoFilter.Severity = filter.Severity
		}
	}
	incidents, err := s.incidents.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return incidents, nil
}

// GetIncident fetches one incident the actor may see. A missing id and an
// id the actor is not allowed to see produce the same NotFound.
func (s *IncidentService) GetIncident(ctx context.Context, actor domain.Actor, id string) (*domain.Incident, error) {
	return s.getVisible(ctx, actor, id)
}

// ListComments returns the comment thread, newest first, for an incident
// the actor may see.
func (s *IncidentService) ListComments(ctx context.Context, actor domain.Actor, incidentID string) ([]domain.Comment, error) {
	if _, err := s.getVisible(ctx, actor, incidentID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// Assign binds a support identity to an unassigned incident. Administrators
// only. Assignment is write-once: when the incident already carries an
// assignee, the request is accepted and silently dropped, never an error
// and never a mutation.
func (s *IncidentService) Assign(ctx context.Context, actor domain.Actor, incidentID, assigneeID string) (*domain.Incident, error) {
	incident, err := s.getVisible(ctx, actor, incidentID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, apperrors.NewUnauthorized("administrator required")
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidArgument("unknown support identity", map[string]any{"assignee_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.IsSupport || !assignee.Active {
		return nil, apperrors.NewInvalidArgument("assignee is not an active support member", map[string]any{"assignee_id": assigneeID})
	}

	applied, err := s.incidents.AssignIfUnassigned(ctx, incident.ID, assignee.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	incident, err = s.reload(ctx, incident.ID)
	if err != nil {
		return nil, err
	}
	if applied {
		s.publishEvent(ctx, actor, events.Event{
			Type:       events.EventIncidentAssigned,
			IncidentID: incident.ID,
			Payload:    events.IncidentAssignedPayload{AssigneeID: assignee.ID},
		})
	}
	return incident, nil
}

// SetStatus moves the incident to the requested status. Any enumerated
// status is reachable from any other. Reaching RESOLVED clears both
// visibility flags in the same atomic write.
func (s *IncidentService) SetStatus(ctx context.Context, actor domain.Actor, incidentID string, status domain.IncidentStatus) (*domain.Incident, error) {
	if !domain.ValidStatus(status) {
		return nil, apperrors.NewInvalidArgument("invalid status", map[string]any{"status": status})
	}
	return s.changeStatus(ctx, actor, incidentID, status, false)
}

// Close forces the incident to RESOLVED with its hide side effect, as one
// atomic operation. Closing an already-resolved incident is a no-op.
func (s *IncidentService) Close(ctx context.Context, actor domain.Actor, incidentID string) (*domain.Incident, error) {
	return s.changeStatus(ctx, actor, incidentID, domain.IncidentStatusResolved, true)
}

// AddComment appends a comment to an incident the actor may see. Comments
// never touch the incident state tuple.
func (s *IncidentService) AddComment(ctx context.Context, actor domain.Actor, incidentID, text string) (*domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewInvalidArgument("text required", nil)
	}
	incident, err := s.getVisible(ctx, actor, incidentID)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		IncidentID: incident.ID,
		AuthorID:   actor.ID,
		Text:       text,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, actor, events.Event{
		Type:       events.EventIncidentCommentAdded,
		IncidentID: incident.ID,
		Payload: events.IncidentCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    comment.AuthorID,
			TextPreview: textPreview(comment.Text, 120),
		},
	})
	return comment, nil
}

// changeStatus is the shared read-modify-write for SetStatus and Close. The
// write is guarded by the updated_at read in the same iteration; losing the
// race re-reads and retries so the authorization check always reflects the
// row that is actually written.
func (s *IncidentService) changeStatus(ctx context.Context, actor domain.Actor, incidentID string, status domain.IncidentStatus, idempotentWhenResolved bool) (*domain.Incident, error) {
	for attempt := 0; attempt < statusRetries; attempt++ {
		incident, err := s.getVisible(ctx, actor, incidentID)
		if err != nil {
			return nil, err
		}
		if !actor.IsAdmin && !actor.IsSupport {
			return nil, apperrors.NewUnauthorized("administrator or assigned support required")
		}
		if idempotentWhenResolved && incident.Resolved() {
			return incident, nil
		}

		oldStatus := incident.Status
		applied, err := s.incidents.UpdateStatusCAS(ctx, incident.ID, status, incident.UpdatedAt)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !applied {
			continue
		}
		updated, err := s.reload(ctx, incident.ID)
		if err != nil {
			return nil, err
		}
		s.publishEvent(ctx, actor, events.Event{
			Type:       events.EventIncidentStatusChanged,
			IncidentID: updated.ID,
			Payload: events.IncidentStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: updated.Status,
				Hidden:    updated.Resolved(),
			},
		})
		return updated, nil
	}
	return nil, apperrors.NewConflict("concurrent update, retry", map[string]any{"incident_id": incidentID})
}

// getVisible fetches an incident and resolves the actor against it. Both
// "no such id" and "exists but outside the actor's visible set" collapse to
// NotFound so callers cannot probe for hidden incidents.
func (s *IncidentService) getVisible(ctx context.Context, actor domain.Actor, id string) (*domain.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"incident_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if access.Resolve(actor, incident) == access.LevelNone {
		return nil, apperrors.NewNotFound("incident", map[string]any{"incident_id": id})
	}
	return incident, nil
}

func (s *IncidentService) reload(ctx context.Context, id string) (*domain.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return incident, nil
}

func (s *IncidentService) publishEvent(ctx context.Context, actor domain.Actor, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Actor = events.Actor{ID: actor.ID, IsAdmin: actor.IsAdmin, IsSupport: actor.IsSupport}
	_ = s.dispatcher.Publish(ctx, event)
}

func textPreview(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	if max <= 3 {
		return text[:max]
	}
	return text[:max-3] + "..."
}
