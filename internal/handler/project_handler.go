package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"taskhub/internal/auth"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/service"
)

const dateLayout = "2006-01-02"

// ProjectHandler bundles project endpoints.
type ProjectHandler struct {
	svc service.ProjectService
}

// NewProjectHandler creates a handler layer.
func NewProjectHandler(svc service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// ProjectRequest represents a project create/update request.
type ProjectRequest struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	Status       string `json:"status" validate:"omitempty,oneof=active on_hold completed"`
	StartDate    string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	ClientIDs    []uint `json:"client_ids"`
	DeveloperIDs []uint `json:"developer_ids"`
}

func (r ProjectRequest) toInput() service.ProjectInput {
	return service.ProjectInput{
		Name:         r.Name,
		Description:  r.Description,
		Status:       model.ProjectStatus(r.Status),
		StartDate:    parseDate(r.StartDate),
		EndDate:      parseDate(r.EndDate),
		ClientIDs:    r.ClientIDs,
		DeveloperIDs: r.DeveloperIDs,
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// ListProjects godoc
// @Summary List projects visible to the caller
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name search"
// @Param status query string false "Project status"
// @Param page query int false "Page"
// @Param per_page query int false "Items per page"
// @Success 200 {object} PaginatedResponse
// @Router /projects [get]
func (h *ProjectHandler) ListProjects(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	filter := repository.ProjectFilter{
		Search:  c.QueryParam("search"),
		Status:  model.ProjectStatus(c.QueryParam("status")),
		Page:    page,
		PerPage: perPage,
	}

	projects, total, err := h.svc.List(c.Request().Context(), caller, filter)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, PaginatedResponse{
		Data:    projects,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	})
}

// GetProject godoc
// @Summary Get project by id
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} model.Project
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetProject(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	project, err := h.svc.Get(c.Request().Context(), caller, uint(id))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, project)
}

// CreateProject godoc
// @Summary Create project (super_admin or developer)
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProjectRequest true "Project payload"
// @Success 201 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects [post]
func (h *ProjectHandler) CreateProject(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	project, err := h.svc.Create(c.Request().Context(), caller, req.toInput())
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, project)
}

// UpdateProject godoc
// @Summary Update project with full membership replace (super_admin)
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Param request body ProjectRequest true "Project payload"
// @Success 200 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	project, err := h.svc.Update(c.Request().Context(), caller, uint(id), req.toInput())
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary Delete project and its tasks (super_admin)
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), caller, uint(id)); err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "project deleted"})
}
