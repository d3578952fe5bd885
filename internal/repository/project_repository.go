package repository

import (
	"context"

	"gorm.io/gorm"

	"taskhub/internal/model"
)

// ProjectScope narrows project queries to what a caller may see. A zero scope
// means unrestricted (super_admin).
type ProjectScope struct {
	// ClientUserID limits to projects where the user holds the client tag.
	ClientUserID *uint
	// DeveloperUserID limits to projects where the user holds the developer
	// tag or is the assignee of at least one task.
	DeveloperUserID *uint
}

// ProjectFilter carries list-endpoint filtering and pagination.
type ProjectFilter struct {
	Search  string
	Status  model.ProjectStatus
	Page    int
	PerPage int
}

// ProjectRepository defines project and membership persistence operations.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project, members []model.ProjectMember) error
	Save(ctx context.Context, project *model.Project) error
	ReplaceMembers(ctx context.Context, project *model.Project, members []model.ProjectMember) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Project, error)
	FindByIDWithDetails(ctx context.Context, id uint) (*model.Project, error)
	List(ctx context.Context, scope ProjectScope, filter ProjectFilter) ([]model.Project, int64, error)
	Recent(ctx context.Context, scope ProjectScope, limit int) ([]model.Project, error)
	Count(ctx context.Context, scope ProjectScope) (int64, error)
	HasTag(ctx context.Context, projectID, userID uint, tag model.MemberTag) (bool, error)
	Members(ctx context.Context, projectID uint) ([]model.ProjectMember, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) scoped(db *gorm.DB, scope ProjectScope) *gorm.DB {
	if scope.ClientUserID != nil {
		return db.Where(
			"projects.id IN (?)",
			r.db.Model(&model.ProjectMember{}).Select("project_id").
				Where("user_id = ? AND tag = ?", *scope.ClientUserID, model.MemberTagClient),
		)
	}
	if scope.DeveloperUserID != nil {
		return db.Where(
			"projects.id IN (?) OR projects.id IN (?)",
			r.db.Model(&model.ProjectMember{}).Select("project_id").
				Where("user_id = ? AND tag = ?", *scope.DeveloperUserID, model.MemberTagDeveloper),
			r.db.Model(&model.Task{}).Select("project_id").
				Where("assigned_user_id = ?", *scope.DeveloperUserID),
		)
	}
	return db
}

// Create inserts the project and its membership rows in one transaction.
func (r *projectRepository) Create(ctx context.Context, project *model.Project, members []model.ProjectMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		for i := range members {
			members[i].ProjectID = project.ID
		}
		if len(members) > 0 {
			if err := tx.Create(&members).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *projectRepository) Save(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

// ReplaceMembers saves the project and swaps the full membership set
// (detach-all then re-attach) atomically.
func (r *projectRepository) ReplaceMembers(ctx context.Context, project *model.Project, members []model.ProjectMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members", "Tasks").Save(project).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&model.ProjectMember{}).Error; err != nil {
			return err
		}
		for i := range members {
			members[i].ID = 0
			members[i].ProjectID = project.ID
		}
		if len(members) > 0 {
			if err := tx.Create(&members).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the project, its memberships and its tasks.
func (r *projectRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&model.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.ProjectMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Project{}, id).Error
	})
}

func (r *projectRepository) FindByID(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// FindByIDWithDetails loads the project with members (and their users) and tasks.
func (r *projectRepository) FindByIDWithDetails(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).
		Preload("Members.User").
		Preload("Tasks").
		First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) List(ctx context.Context, scope ProjectScope, filter ProjectFilter) ([]model.Project, int64, error) {
	query := r.scoped(r.db.WithContext(ctx).Model(&model.Project{}), scope)

	if filter.Search != "" {
		query = query.Where("projects.name LIKE ?", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		query = query.Where("projects.status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 15
	}

	var projects []model.Project
	if err := query.
		Preload("Members.User").
		Order("projects.created_at DESC, projects.id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&projects).Error; err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// Recent returns the most recently created visible projects.
func (r *projectRepository) Recent(ctx context.Context, scope ProjectScope, limit int) ([]model.Project, error) {
	var projects []model.Project
	if err := r.scoped(r.db.WithContext(ctx).Model(&model.Project{}), scope).
		Order("projects.created_at DESC, projects.id DESC").
		Limit(limit).
		Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) Count(ctx context.Context, scope ProjectScope) (int64, error) {
	var count int64
	if err := r.scoped(r.db.WithContext(ctx).Model(&model.Project{}), scope).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *projectRepository) HasTag(ctx context.Context, projectID, userID uint, tag model.MemberTag) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id = ? AND tag = ?", projectID, userID, tag).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *projectRepository) Members(ctx context.Context, projectID uint) ([]model.ProjectMember, error) {
	var members []model.ProjectMember
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
