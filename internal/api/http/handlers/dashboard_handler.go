package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// DashboardHandler serves role-scoped dashboard data.
type DashboardHandler struct {
	stats   *service.StatsService
	users   repository.UserRepository
	metrics *observability.Metrics
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(stats *service.StatsService, users repository.UserRepository, metrics *observability.Metrics) *DashboardHandler {
	return &DashboardHandler{stats: stats, users: users, metrics: metrics}
}

// Stats GET /dashboard/stats.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	stats, err := h.stats.DashboardStats(c.Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// SupportUsers GET /admin/support-users. Assignment candidates for the
// admin dashboard dropdown.
func (h *DashboardHandler) SupportUsers(c *fiber.Ctx) error {
	users, err := h.users.ListSupport(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.SupportUserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.SupportUserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Metrics GET /admin/metrics. Raw request and error counters.
func (h *DashboardHandler) Metrics(c *fiber.Ctx) error {
	requests, errs := h.metrics.Snapshot()
	return c.JSON(fiber.Map{"data": fiber.Map{
		"requests": requests,
		"errors":   errs,
	}})
}
