package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/storage"
)

// TaskInput carries task create/update fields. On update, nil pointers and
// empty values mean "unchanged"; AssignedUserID pointing at zero clears the
// assignee, and a non-nil empty DeveloperIDs clears the developers set.
type TaskInput struct {
	ProjectID      uint
	Title          string
	Description    string
	Status         model.TaskStatus
	Priority       model.TaskPriority
	StartDate      *time.Time
	DueDate        *time.Time
	EstimatedHours *decimal.Decimal
	AssignedUserID *uint
	DeveloperIDs   []uint
	Attachment     *multipart.FileHeader
}

// TaskService exposes task operations, all scoped by the explicit caller
// identity. Notification dispatch runs after the mutation commits and never
// affects the returned error.
type TaskService interface {
	List(ctx context.Context, caller auth.Identity, filter repository.TaskFilter) ([]model.Task, int64, error)
	Get(ctx context.Context, caller auth.Identity, id uint) (*model.Task, error)
	Create(ctx context.Context, caller auth.Identity, input TaskInput) (*model.Task, error)
	Update(ctx context.Context, caller auth.Identity, id uint, input TaskInput) (*model.Task, error)
	UpdateStatus(ctx context.Context, caller auth.Identity, id uint, status model.TaskStatus) (*model.Task, error)
	Approve(ctx context.Context, caller auth.Identity, id uint) (*model.Task, error)
	Reject(ctx context.Context, caller auth.Identity, id uint) (*model.Task, error)
	Delete(ctx context.Context, caller auth.Identity, id uint) error
}

type taskService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	attachments *storage.AttachmentStore
	notifier    Notifier
}

// NewTaskService creates a new task service.
func NewTaskService(taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository, attachments *storage.AttachmentStore, notifier Notifier) TaskService {
	return &taskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		attachments: attachments,
		notifier:    notifier,
	}
}

// taskScopeFor maps the caller's role onto a repository scope.
func taskScopeFor(caller auth.Identity) repository.TaskScope {
	userID := caller.UserID
	switch caller.Role {
	case model.RoleSuperAdmin:
		return repository.TaskScope{}
	case model.RoleDeveloper:
		return repository.TaskScope{AssigneeUserID: &userID}
	default:
		return repository.TaskScope{ClientUserID: &userID}
	}
}

func (s *taskService) List(ctx context.Context, caller auth.Identity, filter repository.TaskFilter) ([]model.Task, int64, error) {
	tasks, total, err := s.taskRepo.List(ctx, taskScopeFor(caller), filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// Get returns the task. Not-found wins when the row does not exist;
// out-of-scope tasks surface as forbidden.
func (s *taskService) Get(ctx context.Context, caller auth.Identity, id uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}
	if err := s.authorizeRead(ctx, caller, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) authorizeRead(ctx context.Context, caller auth.Identity, task *model.Task) error {
	switch caller.Role {
	case model.RoleSuperAdmin:
		return nil
	case model.RoleClient:
		tagged, err := s.projectRepo.HasTag(ctx, task.ProjectID, caller.UserID, model.MemberTagClient)
		if err != nil {
			return err
		}
		if !tagged {
			return apperrors.ErrNotProjectMember
		}
		return nil
	case model.RoleDeveloper:
		if task.AssignedUserID != nil && *task.AssignedUserID == caller.UserID {
			return nil
		}
		tagged, err := s.projectRepo.HasTag(ctx, task.ProjectID, caller.UserID, model.MemberTagDeveloper)
		if err != nil {
			return err
		}
		if !tagged {
			return apperrors.ErrNotProjectMember
		}
		return nil
	}
	return apperrors.ErrForbidden
}

// Create builds the task. Clients may not create tasks. Every create fires the
// assignment notification, whether or not an assignee is set.
func (s *taskService) Create(ctx context.Context, caller auth.Identity, input TaskInput) (*model.Task, error) {
	if !caller.IsSuperAdmin() && !caller.IsDeveloper() {
		return nil, apperrors.ErrForbidden
	}

	project, err := s.projectRepo.FindByID(ctx, input.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProjectNotFound
		}
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = model.TaskStatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidStatusTransition, input.Status)
	}
	priority := input.Priority
	if priority == "" {
		priority = model.TaskPriorityNormal
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", apperrors.ErrInvalidStatusTransition, input.Priority)
	}

	task := &model.Task{
		ProjectID:      project.ID,
		Title:          input.Title,
		Description:    input.Description,
		Status:         status,
		Priority:       priority,
		StartDate:      input.StartDate,
		DueDate:        input.DueDate,
		EstimatedHours: input.EstimatedHours,
		AssignedUserID: normalizeAssignee(input.AssignedUserID),
		CreatedByID:    caller.UserID,
	}

	if input.Attachment != nil {
		path, err := s.attachments.Save(input.Attachment)
		if err != nil {
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		task.Attachment = path
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		s.attachments.Remove(task.Attachment)
		return nil, fmt.Errorf("create task: %w", err)
	}

	if len(input.DeveloperIDs) > 0 {
		if err := s.taskRepo.ReplaceDevelopers(ctx, task, usersFromIDs(input.DeveloperIDs)); err != nil {
			return nil, fmt.Errorf("set task developers: %w", err)
		}
	}

	s.notifier.TaskAssigned(ctx, project, task)
	return s.taskRepo.FindByID(ctx, task.ID)
}

// Update edits the task. Clients may not use the generic update; they act
// through Approve and Reject. Status changes follow the workflow table, the
// assignment notification fires when the assignee changes to a new non-null
// user, and the completion notification fires on any transition into
// completed.
func (s *taskService) Update(ctx context.Context, caller auth.Identity, id uint, input TaskInput) (*model.Task, error) {
	if !caller.IsSuperAdmin() && !caller.IsDeveloper() {
		return nil, apperrors.ErrForbidden
	}

	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}

	prevStatus := task.Status
	prevAssignee := task.AssignedUserID

	if input.Title != "" {
		task.Title = input.Title
	}
	task.Description = input.Description
	if input.Priority != "" {
		if !input.Priority.Valid() {
			return nil, fmt.Errorf("%w: unknown priority %q", apperrors.ErrInvalidStatusTransition, input.Priority)
		}
		task.Priority = input.Priority
	}
	task.StartDate = input.StartDate
	task.DueDate = input.DueDate
	if input.EstimatedHours != nil {
		task.EstimatedHours = input.EstimatedHours
	}
	if input.AssignedUserID != nil {
		task.AssignedUserID = normalizeAssignee(input.AssignedUserID)
	}
	if input.Status != "" && input.Status != prevStatus {
		if !input.Status.Valid() || !prevStatus.CanTransitionTo(input.Status) {
			return nil, fmt.Errorf("%w: %s to %s", apperrors.ErrInvalidStatusTransition, prevStatus, input.Status)
		}
		if input.Status == model.TaskStatusApproved || input.Status == model.TaskStatusRejected {
			// Approval decisions belong to clients via Approve/Reject.
			if !caller.IsSuperAdmin() {
				return nil, apperrors.ErrForbidden
			}
		}
		task.Status = input.Status
	}

	var oldAttachment string
	if input.Attachment != nil {
		path, err := s.attachments.Save(input.Attachment)
		if err != nil {
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		oldAttachment = task.Attachment
		task.Attachment = path
	}

	if err := s.taskRepo.Save(ctx, task); err != nil {
		if input.Attachment != nil {
			s.attachments.Remove(task.Attachment)
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	if oldAttachment != "" {
		s.attachments.Remove(oldAttachment)
	}

	if input.DeveloperIDs != nil {
		if err := s.taskRepo.ReplaceDevelopers(ctx, task, usersFromIDs(input.DeveloperIDs)); err != nil {
			return nil, fmt.Errorf("set task developers: %w", err)
		}
	}

	s.dispatchEvents(ctx, task, prevStatus, prevAssignee)
	return s.taskRepo.FindByID(ctx, task.ID)
}

// UpdateStatus moves the task along the workflow. Developers may move their
// own assigned task but never into approved or rejected; clients may only
// approve or reject and only from completed.
func (s *taskService) UpdateStatus(ctx context.Context, caller auth.Identity, id uint, status model.TaskStatus) (*model.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidStatusTransition, status)
	}

	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}

	approval := status == model.TaskStatusApproved || status == model.TaskStatusRejected
	switch caller.Role {
	case model.RoleSuperAdmin:
		// Unrestricted, transition table still applies.
	case model.RoleDeveloper:
		if approval {
			return nil, apperrors.ErrForbidden
		}
		if task.AssignedUserID == nil || *task.AssignedUserID != caller.UserID {
			return nil, apperrors.ErrForbidden
		}
	case model.RoleClient:
		if !approval {
			return nil, apperrors.ErrForbidden
		}
		return s.decide(ctx, caller, task, status)
	default:
		return nil, apperrors.ErrForbidden
	}

	if status == task.Status {
		return task, nil
	}
	if !task.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", apperrors.ErrInvalidStatusTransition, task.Status, status)
	}

	prevStatus := task.Status
	task.Status = status
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}

	s.dispatchEvents(ctx, task, prevStatus, task.AssignedUserID)
	return task, nil
}

// Approve marks a completed task approved. Clients must hold the client tag
// on the task's project; developers may never approve.
func (s *taskService) Approve(ctx context.Context, caller auth.Identity, id uint) (*model.Task, error) {
	return s.approval(ctx, caller, id, model.TaskStatusApproved)
}

// Reject marks a completed task rejected for rework.
func (s *taskService) Reject(ctx context.Context, caller auth.Identity, id uint) (*model.Task, error) {
	return s.approval(ctx, caller, id, model.TaskStatusRejected)
}

func (s *taskService) approval(ctx context.Context, caller auth.Identity, id uint, status model.TaskStatus) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}

	switch caller.Role {
	case model.RoleSuperAdmin:
		if task.Status != model.TaskStatusCompleted {
			return nil, apperrors.ErrTaskNotCompleted
		}
		task.Status = status
		if err := s.taskRepo.Save(ctx, task); err != nil {
			return nil, fmt.Errorf("save approval: %w", err)
		}
		return task, nil
	case model.RoleClient:
		return s.decide(ctx, caller, task, status)
	}
	return nil, apperrors.ErrForbidden
}

// decide applies a client's approve/reject decision: the task must currently
// be completed and the client must hold the client tag on its project.
func (s *taskService) decide(ctx context.Context, caller auth.Identity, task *model.Task, status model.TaskStatus) (*model.Task, error) {
	tagged, err := s.projectRepo.HasTag(ctx, task.ProjectID, caller.UserID, model.MemberTagClient)
	if err != nil {
		return nil, err
	}
	if !tagged {
		return nil, apperrors.ErrNotProjectMember
	}
	if task.Status != model.TaskStatusCompleted {
		return nil, apperrors.ErrTaskNotCompleted
	}

	task.Status = status
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("save approval: %w", err)
	}
	return task, nil
}

// Delete removes the task and its stored attachment. Super admin only.
func (s *taskService) Delete(ctx context.Context, caller auth.Identity, id uint) error {
	if !caller.IsSuperAdmin() {
		return apperrors.ErrForbidden
	}

	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrTaskNotFound
		}
		return err
	}

	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.attachments.Remove(task.Attachment)
	return nil
}

// dispatchEvents fires the notifications owed after a committed mutation:
// assignment when the assignee changed to a new non-null user, completion
// when the status moved into completed from anything else.
func (s *taskService) dispatchEvents(ctx context.Context, task *model.Task, prevStatus model.TaskStatus, prevAssignee *uint) {
	project, err := s.projectRepo.FindByID(ctx, task.ProjectID)
	if err != nil {
		return
	}

	if task.AssignedUserID != nil &&
		(prevAssignee == nil || *prevAssignee != *task.AssignedUserID) {
		s.notifier.TaskAssigned(ctx, project, task)
	}
	if task.Status == model.TaskStatusCompleted && prevStatus != model.TaskStatusCompleted {
		s.notifier.TaskCompleted(ctx, project, task)
	}
}

// normalizeAssignee maps a zero-valued ID to "no assignee".
func normalizeAssignee(id *uint) *uint {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

// usersFromIDs builds association stubs for the developers pivot.
func usersFromIDs(ids []uint) []model.User {
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, model.User{ID: id})
	}
	return users
}
