package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// IncidentsHandler exposes the lifecycle operations over HTTP. Role checks
// live in the engine and resolver; the handler only shapes requests and
// responses.
type IncidentsHandler struct {
	incidents *service.IncidentService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(incidentService *service.IncidentService) *IncidentsHandler {
	return &IncidentsHandler{incidents: incidentService}
}

// Create POST /incidents.
func (h *IncidentsHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	var req dto.CreateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	incident, err := h.incidents.CreateIncident(c.Context(), actor, service.IncidentCreateInput{
		Title:         req.Title,
		Description:   req.Description,
		Severity:      req.Severity,
		AttachmentKey: req.AttachmentKey,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": incidentSummary(incident)})
}

// List GET /incidents.
func (h *IncidentsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	filter := service.IncidentListFilter{
		Limit:  parseInt(c.Query("page_size"), 50),
		Offset: 0,
	}
	if page := parseInt(c.Query("page"), 1); page > 1 {
		filter.Offset = (page - 1) * filter.Limit
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := domain.IncidentStatus(statusStr)
		filter.Status = &status
	}
	if severityStr := c.Query("severity"); severityStr != "" {
		severity := domain.IncidentSeverity(severityStr)
		filter.Severity = &severity
	}

	incidents, err := h.incidents.ListIncidents(c.Context(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.IncidentSummary, 0, len(incidents))
	for i := range incidents {
		items = append(items, incidentSummary(&incidents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /incidents/:id.
func (h *IncidentsHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	incident, err := h.incidents.GetIncident(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	comments, err := h.incidents.ListComments(c.Context(), actor, incident.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentDetail(incident, comments)})
}

// Assign POST /incidents/:id/assign.
func (h *IncidentsHandler) Assign(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	incident, err := h.incidents.Assign(c.Context(), actor, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// SetStatus PATCH /incidents/:id/status.
func (h *IncidentsHandler) SetStatus(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	var req dto.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	incident, err := h.incidents.SetStatus(c.Context(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// Close POST /incidents/:id/close.
func (h *IncidentsHandler) Close(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	incident, err := h.incidents.Close(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// AddComment POST /incidents/:id/comments.
func (h *IncidentsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	comment, err := h.incidents.AddComment(c.Context(), actor, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func actorFromRequest(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor, nil
}

func incidentSummary(incident *domain.Incident) dto.IncidentSummary {
	return dto.IncidentSummary{
		ID:                incident.ID,
		Title:             incident.Title,
		Severity:          incident.Severity,
		Status:            incident.Status,
		CreatedBy:         incident.CreatedBy,
		AssignedTo:        incident.AssignedTo,
		VisibleToReporter: incident.VisibleToReporter,
		VisibleToSupport:  incident.VisibleToSupport,
		CreatedAt:         incident.CreatedAt,
		UpdatedAt:         incident.UpdatedAt,
	}
}

func incidentDetail(incident *domain.Incident, comments []domain.Comment) dto.IncidentDetailResponse {
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return dto.IncidentDetailResponse{
		IncidentSummary: incidentSummary(incident),
		Description:     incident.Description,
		AttachmentKey:   incident.AttachmentKey,
		Comments:        items,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		AuthorID:  comment.AuthorID,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	}
}
