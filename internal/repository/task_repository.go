package repository

import (
	"context"

	"gorm.io/gorm"

	"taskhub/internal/model"
)

// TaskScope narrows task queries to what a caller may see. A zero scope means
// unrestricted (super_admin).
type TaskScope struct {
	// ClientUserID limits to tasks of projects where the user holds the client tag.
	ClientUserID *uint
	// AssigneeUserID limits to tasks assigned to the user.
	AssigneeUserID *uint
}

// TaskFilter carries list-endpoint filtering and pagination.
type TaskFilter struct {
	Search    string
	Status    model.TaskStatus
	Priority  model.TaskPriority
	ProjectID uint
	Page      int
	PerPage   int
}

// ProgressCounts holds per-project task totals used for progress computation.
type ProgressCounts struct {
	ProjectID uint
	Total     int64
	Approved  int64
}

// TaskRepository defines task persistence operations.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	Save(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Task, error)
	List(ctx context.Context, scope TaskScope, filter TaskFilter) ([]model.Task, int64, error)
	Recent(ctx context.Context, scope TaskScope, limit int) ([]model.Task, error)
	Count(ctx context.Context, scope TaskScope) (int64, error)
	CountByStatus(ctx context.Context, scope TaskScope, status model.TaskStatus) (int64, error)
	StatusCountsByProject(ctx context.Context, projectIDs []uint) (map[uint]ProgressCounts, error)
	HasAssignedInProject(ctx context.Context, projectID, userID uint) (bool, error)
	ReplaceDevelopers(ctx context.Context, task *model.Task, developers []model.User) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) scoped(db *gorm.DB, scope TaskScope) *gorm.DB {
	if scope.ClientUserID != nil {
		return db.Where(
			"tasks.project_id IN (?)",
			r.db.Model(&model.ProjectMember{}).Select("project_id").
				Where("user_id = ? AND tag = ?", *scope.ClientUserID, model.MemberTagClient),
		)
	}
	if scope.AssigneeUserID != nil {
		return db.Where("tasks.assigned_user_id = ?", *scope.AssigneeUserID)
	}
	return db
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Omit("Developers").Create(task).Error
}

func (r *taskRepository) Save(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Omit("Developers", "Project", "AssignedTo").Save(task).Error
}

// Delete removes the task and its developer pivot rows.
func (r *taskRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM task_developers WHERE task_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Task{}, id).Error
	})
}

func (r *taskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).
		Preload("AssignedTo").
		Preload("Developers").
		First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, scope TaskScope, filter TaskFilter) ([]model.Task, int64, error) {
	query := r.scoped(r.db.WithContext(ctx).Model(&model.Task{}), scope)

	if filter.Search != "" {
		query = query.Where("tasks.title LIKE ?", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		query = query.Where("tasks.status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("tasks.priority = ?", filter.Priority)
	}
	if filter.ProjectID != 0 {
		query = query.Where("tasks.project_id = ?", filter.ProjectID)
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

	var tasks []model.Task
	if err := query.
		Preload("AssignedTo").
		Order("tasks.created_at DESC, tasks.id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&tasks).Error; err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Recent returns the most recently created visible tasks.
func (r *taskRepository) Recent(ctx context.Context, scope TaskScope, limit int) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.scoped(r.db.WithContext(ctx).Model(&model.Task{}), scope).
		Preload("AssignedTo").
		Order("tasks.created_at DESC, tasks.id DESC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) Count(ctx context.Context, scope TaskScope) (int64, error) {
	var count int64
	if err := r.scoped(r.db.WithContext(ctx).Model(&model.Task{}), scope).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *taskRepository) CountByStatus(ctx context.Context, scope TaskScope, status model.TaskStatus) (int64, error) {
	var count int64
	if err := r.scoped(r.db.WithContext(ctx).Model(&model.Task{}), scope).
		Where("tasks.status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// StatusCountsByProject returns total and approved task counts per project in
// a single grouped query.
func (r *taskRepository) StatusCountsByProject(ctx context.Context, projectIDs []uint) (map[uint]ProgressCounts, error) {
	counts := make(map[uint]ProgressCounts, len(projectIDs))
	if len(projectIDs) == 0 {
		return counts, nil
	}

	var rows []ProgressCounts
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("project_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS approved", model.TaskStatusApproved).
		Where("project_id IN ?", projectIDs).
		Group("project_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ProjectID] = row
	}
	return counts, nil
}

// HasAssignedInProject reports whether the user is the assignee of at least
// one task in the project.
func (r *taskRepository) HasAssignedInProject(ctx context.Context, projectID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("project_id = ? AND assigned_user_id = ?", projectID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReplaceDevelopers swaps the display-only developers association.
func (r *taskRepository) ReplaceDevelopers(ctx context.Context, task *model.Task, developers []model.User) error {
	return r.db.WithContext(ctx).Model(task).Association("Developers").Replace(developers)
}
