package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/storage"
)

// ProjectInput carries project create/update fields.
type ProjectInput struct {
	Name         string
	Description  string
	Status       model.ProjectStatus
	StartDate    *time.Time
	EndDate      *time.Time
	ClientIDs    []uint
	DeveloperIDs []uint
}

// ProjectService exposes project operations, all scoped by the explicit
// caller identity.
type ProjectService interface {
	List(ctx context.Context, caller auth.Identity, filter repository.ProjectFilter) ([]model.Project, int64, error)
	Get(ctx context.Context, caller auth.Identity, id uint) (*model.Project, error)
	Create(ctx context.Context, caller auth.Identity, input ProjectInput) (*model.Project, error)
	Update(ctx context.Context, caller auth.Identity, id uint, input ProjectInput) (*model.Project, error)
	Delete(ctx context.Context, caller auth.Identity, id uint) error
}

type projectService struct {
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	attachments *storage.AttachmentStore
}

// NewProjectService creates a new project service.
func NewProjectService(projectRepo repository.ProjectRepository, taskRepo repository.TaskRepository, attachments *storage.AttachmentStore) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		attachments: attachments,
	}
}

// projectScopeFor maps the caller's role onto a repository scope. Super admins
// are unrestricted; everyone else is pinned to their memberships.
func projectScopeFor(caller auth.Identity) repository.ProjectScope {
	userID := caller.UserID
	switch caller.Role {
	case model.RoleSuperAdmin:
		return repository.ProjectScope{}
	case model.RoleDeveloper:
		return repository.ProjectScope{DeveloperUserID: &userID}
	default:
		return repository.ProjectScope{ClientUserID: &userID}
	}
}

func (s *projectService) List(ctx context.Context, caller auth.Identity, filter repository.ProjectFilter) ([]model.Project, int64, error) {
	projects, total, err := s.projectRepo.List(ctx, projectScopeFor(caller), filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	if err := s.attachProgress(ctx, projects); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// attachProgress recomputes the derived progress field for each project from
// its current task counts.
func (s *projectService) attachProgress(ctx context.Context, projects []model.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]uint, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	counts, err := s.taskRepo.StatusCountsByProject(ctx, ids)
	if err != nil {
		return fmt.Errorf("task counts: %w", err)
	}
	for i := range projects {
		c := counts[projects[i].ID]
		projects[i].Progress = Progress(c.Total, c.Approved)
	}
	return nil
}

// Get returns the project with members and tasks. Not-found wins when the row
// does not exist; out-of-scope projects surface as forbidden without leaking
// their contents.
func (s *projectService) Get(ctx context.Context, caller auth.Identity, id uint) (*model.Project, error) {
	if _, err := s.projectRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProjectNotFound
		}
		return nil, err
	}

	if err := s.authorizeRead(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

func (s *projectService) authorizeRead(ctx context.Context, caller auth.Identity, projectID uint) error {
	switch caller.Role {
	case model.RoleSuperAdmin:
		return nil
	case model.RoleClient:
		tagged, err := s.projectRepo.HasTag(ctx, projectID, caller.UserID, model.MemberTagClient)
		if err != nil {
			return err
		}
		if !tagged {
			return apperrors.ErrNotProjectMember
		}
		return nil
	case model.RoleDeveloper:
		tagged, err := s.projectRepo.HasTag(ctx, projectID, caller.UserID, model.MemberTagDeveloper)
		if err != nil {
			return err
		}
		if tagged {
			return nil
		}
		assigned, err := s.taskRepo.HasAssignedInProject(ctx, projectID, caller.UserID)
		if err != nil {
			return err
		}
		if !assigned {
			return apperrors.ErrNotProjectMember
		}
		return nil
	}
	return apperrors.ErrForbidden
}

// Create builds the project and its membership rows. The creator is attached
// with the developer tag unless already present in the submitted member lists.
func (s *projectService) Create(ctx context.Context, caller auth.Identity, input ProjectInput) (*model.Project, error) {
	if !caller.IsSuperAdmin() && !caller.IsDeveloper() {
		return nil, apperrors.ErrForbidden
	}

	status := input.Status
	if status == "" {
		status = model.ProjectStatusActive
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown project status %q", apperrors.ErrInvalidStatusTransition, input.Status)
	}

	project := &model.Project{
		Name:        input.Name,
		Description: input.Description,
		Status:      status,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		CreatedByID: caller.UserID,
	}

	members := buildMembers(input, caller.UserID, true)
	if err := s.projectRepo.Create(ctx, project, members); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return s.reload(ctx, project.ID)
}

// reload fetches a project after a successful mutation, recomputing progress.
func (s *projectService) reload(ctx context.Context, id uint) (*model.Project, error) {
	project, err := s.projectRepo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload project: %w", err)
	}
	var approved int64
	for _, task := range project.Tasks {
		if task.Status == model.TaskStatusApproved {
			approved++
		}
	}
	project.Progress = Progress(int64(len(project.Tasks)), approved)
	return project, nil
}

// buildMembers turns the submitted ID lists into pivot rows, optionally
// auto-attaching the creator as a developer.
func buildMembers(input ProjectInput, creatorID uint, attachCreator bool) []model.ProjectMember {
	submitted := make(map[uint]struct{}, len(input.ClientIDs)+len(input.DeveloperIDs))
	var members []model.ProjectMember
	for _, id := range input.ClientIDs {
		members = append(members, model.ProjectMember{UserID: id, Tag: model.MemberTagClient})
		submitted[id] = struct{}{}
	}
	for _, id := range input.DeveloperIDs {
		members = append(members, model.ProjectMember{UserID: id, Tag: model.MemberTagDeveloper})
		submitted[id] = struct{}{}
	}
	if attachCreator {
		if _, ok := submitted[creatorID]; !ok {
			members = append(members, model.ProjectMember{UserID: creatorID, Tag: model.MemberTagDeveloper})
		}
	}
	return members
}

// Update replaces the project fields and its full membership set
// (detach-all then re-attach). Super admin only.
func (s *projectService) Update(ctx context.Context, caller auth.Identity, id uint, input ProjectInput) (*model.Project, error) {
	if !caller.IsSuperAdmin() {
		return nil, apperrors.ErrForbidden
	}

	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProjectNotFound
		}
		return nil, err
	}

	if input.Name != "" {
		project.Name = input.Name
	}
	project.Description = input.Description
	if input.Status != "" {
		if !input.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown project status %q", apperrors.ErrInvalidStatusTransition, input.Status)
		}
		project.Status = input.Status
	}
	project.StartDate = input.StartDate
	project.EndDate = input.EndDate

	members := buildMembers(input, caller.UserID, false)
	if err := s.projectRepo.ReplaceMembers(ctx, project, members); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return s.reload(ctx, id)
}

// Delete removes the project, cascading tasks and their stored attachments.
// Super admin only.
func (s *projectService) Delete(ctx context.Context, caller auth.Identity, id uint) error {
	if !caller.IsSuperAdmin() {
		return apperrors.ErrForbidden
	}

	project, err := s.projectRepo.FindByIDWithDetails(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrProjectNotFound
		}
		return err
	}

	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	for _, task := range project.Tasks {
		s.attachments.Remove(task.Attachment)
	}
	return nil
}
