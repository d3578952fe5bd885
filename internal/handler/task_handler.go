package handler

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"taskhub/internal/auth"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/service"
)

// TaskHandler bundles task endpoints.
type TaskHandler struct {
	svc service.TaskService
}

// NewTaskHandler creates a handler layer.
func NewTaskHandler(svc service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// TaskRequest represents a task create/update request. Sent as multipart form
// so the attachment can ride along; plain JSON works when no file is sent.
type TaskRequest struct {
	ProjectID      uint   `json:"project_id" form:"project_id"`
	Title          string `json:"title" form:"title"`
	Description    string `json:"description" form:"description"`
	Status         string `json:"status" form:"status" validate:"omitempty,oneof=pending in_progress completed approved rejected"`
	Priority       string `json:"priority" form:"priority" validate:"omitempty,oneof=normal urgent top_urgent"`
	StartDate      string `json:"start_date" form:"start_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate        string `json:"due_date" form:"due_date" validate:"omitempty,datetime=2006-01-02"`
	EstimatedHours string `json:"estimated_hours" form:"estimated_hours"`
	AssignedUserID *uint  `json:"assigned_user_id" form:"assigned_user_id"`
	DeveloperIDs   []uint `json:"developer_ids" form:"developer_ids"`
}

// StatusRequest represents a status-only update.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed approved rejected"`
}

func (h *TaskHandler) bindInput(c echo.Context, req *TaskRequest) (service.TaskInput, *echo.HTTPError) {
	input := service.TaskInput{
		ProjectID:      req.ProjectID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         model.TaskStatus(req.Status),
		Priority:       model.TaskPriority(req.Priority),
		StartDate:      parseDate(req.StartDate),
		DueDate:        parseDate(req.DueDate),
		AssignedUserID: req.AssignedUserID,
		DeveloperIDs:   req.DeveloperIDs,
	}
	if req.EstimatedHours != "" {
		hours, err := decimal.NewFromString(req.EstimatedHours)
		if err != nil {
			return input, echo.NewHTTPError(http.StatusBadRequest, "invalid estimated_hours")
		}
		input.EstimatedHours = &hours
	}
	if file, err := c.FormFile("attachment"); err == nil {
		input.Attachment = file
	}
	return input, nil
}

// ListTasks godoc
// @Summary List tasks visible to the caller
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param search query string false "Title search"
// @Param status query string false "Task status"
// @Param priority query string false "Task priority"
// @Param project_id query int false "Project filter"
// @Param page query int false "Page"
// @Param per_page query int false "Items per page"
// @Success 200 {object} PaginatedResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	projectID, _ := strconv.Atoi(c.QueryParam("project_id"))
	filter := repository.TaskFilter{
		Search:    c.QueryParam("search"),
		Status:    model.TaskStatus(c.QueryParam("status")),
		Priority:  model.TaskPriority(c.QueryParam("priority")),
		ProjectID: uint(projectID),
		Page:      page,
		PerPage:   perPage,
	}

	tasks, total, err := h.svc.List(c.Request().Context(), caller, filter)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, PaginatedResponse{
		Data:    tasks,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	})
}

// GetTask godoc
// @Summary Get task by id
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	task, err := h.svc.Get(c.Request().Context(), caller, uint(id))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// CreateTask godoc
// @Summary Create task (super_admin or developer)
// @Tags tasks
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param project_id formData int true "Project ID"
// @Param title formData string true "Title"
// @Param attachment formData file false "Attachment (max 10MB)"
// @Success 201 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID == 0 || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id and title are required")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	input, httpErr := h.bindInput(c, &req)
	if httpErr != nil {
		return httpErr
	}
	task, err := h.svc.Create(c.Request().Context(), caller, input)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, task)
}

// UpdateTask godoc
// @Summary Update task (super_admin or developer)
// @Tags tasks
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	input, httpErr := h.bindInput(c, &req)
	if httpErr != nil {
		return httpErr
	}
	task, err := h.svc.Update(c.Request().Context(), caller, uint(id), input)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus godoc
// @Summary Update task status along the workflow
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body StatusRequest true "Target status"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/status [patch]
func (h *TaskHandler) UpdateTaskStatus(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.svc.UpdateStatus(c.Request().Context(), caller, uint(id), model.TaskStatus(req.Status))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// ApproveTask godoc
// @Summary Approve a completed task (client)
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/approve [post]
func (h *TaskHandler) ApproveTask(c echo.Context) error {
	return h.decision(c, h.svc.Approve)
}

// RejectTask godoc
// @Summary Reject a completed task for rework (client)
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/reject [post]
func (h *TaskHandler) RejectTask(c echo.Context) error {
	return h.decision(c, h.svc.Reject)
}

func (h *TaskHandler) decision(c echo.Context, decide func(context.Context, auth.Identity, uint) (*model.Task, error)) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	task, err := decide(c.Request().Context(), caller, uint(id))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete task (super_admin)
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
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
	return c.JSON(http.StatusOK, map[string]string{"message": "task deleted"})
}

// DownloadAttachment godoc
// @Summary Download a task's attachment
// @Tags tasks
// @Produce octet-stream
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {file} file
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/attachment [get]
func (h *TaskHandler) DownloadAttachment(c echo.Context) error {
	caller, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	task, err := h.svc.Get(c.Request().Context(), caller, uint(id))
	if err != nil {
		return domainError(err)
	}
	if task.Attachment == "" {
		return echo.NewHTTPError(http.StatusNotFound, "task has no attachment")
	}
	return c.Attachment(task.Attachment, filepath.Base(task.Attachment))
}
