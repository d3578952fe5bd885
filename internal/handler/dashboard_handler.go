package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskhub/internal/auth"
	"taskhub/internal/service"
)

// DashboardHandler serves the role-scoped summary view.
type DashboardHandler struct {
	svc service.DashboardService
}

// NewDashboardHandler creates a handler layer.
func NewDashboardHandler(svc service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Stats godoc
// @Summary Role-scoped dashboard stats
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.DashboardStats
// @Failure 401 {object} errors.ErrorResponse
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.Stats(c.Request().Context(), caller)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
