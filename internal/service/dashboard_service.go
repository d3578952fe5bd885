package service

import (
	"context"
	"fmt"

	"taskhub/internal/auth"
	"taskhub/internal/cache"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

const (
	recentProjectLimit = 8
	recentTaskLimit    = 5
)

// StatsCounts carries the role-scoped dashboard counters. Pointer fields are
// present only for the roles that surface them.
type StatsCounts struct {
	TotalUsers      *int64 `json:"total_users,omitempty"`
	TotalProjects   int64  `json:"total_projects"`
	TotalTasks      int64  `json:"total_tasks"`
	PendingTasks    int64  `json:"pending_tasks"`
	ApprovedTasks   int64  `json:"approved_tasks"`
	ActiveUsers     *int64 `json:"active_users,omitempty"`
	InProgressTasks *int64 `json:"in_progress_tasks,omitempty"`
}

// DashboardStats is the summary view returned by the stats endpoint.
type DashboardStats struct {
	Counts         StatsCounts     `json:"counts"`
	RecentProjects []model.Project `json:"recent_projects"`
	RecentTasks    []model.Task    `json:"recent_tasks"`
}

// DashboardService aggregates role-scoped counts and recent items.
type DashboardService interface {
	Stats(ctx context.Context, caller auth.Identity) (*DashboardStats, error)
}

type dashboardService struct {
	userRepo    repository.UserRepository
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	presence    *cache.Client
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(userRepo repository.UserRepository, projectRepo repository.ProjectRepository, taskRepo repository.TaskRepository, presence *cache.Client) DashboardService {
	return &dashboardService{
		userRepo:    userRepo,
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		presence:    presence,
	}
}

// Stats composes the dashboard under the caller's visibility rules. Recency is
// descending creation time with stable insertion-order tie-breaks, which the
// repositories implement by ordering on (created_at, id).
func (s *dashboardService) Stats(ctx context.Context, caller auth.Identity) (*DashboardStats, error) {
	projectScope := projectScopeFor(caller)
	taskScope := taskScopeFor(caller)

	counts := StatsCounts{}
	var err error

	counts.TotalProjects, err = s.projectRepo.Count(ctx, projectScope)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	counts.TotalTasks, err = s.taskRepo.Count(ctx, taskScope)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	counts.PendingTasks, err = s.taskRepo.CountByStatus(ctx, taskScope, model.TaskStatusPending)
	if err != nil {
		return nil, fmt.Errorf("count pending tasks: %w", err)
	}
	counts.ApprovedTasks, err = s.taskRepo.CountByStatus(ctx, taskScope, model.TaskStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("count approved tasks: %w", err)
	}

	switch caller.Role {
	case model.RoleSuperAdmin:
		totalUsers, err := s.userRepo.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
		counts.TotalUsers = &totalUsers

		activeUsers, _ := s.presence.CountPattern(ctx, auth.PresencePattern)
		counts.ActiveUsers = &activeUsers
	case model.RoleDeveloper:
		inProgress, err := s.taskRepo.CountByStatus(ctx, taskScope, model.TaskStatusInProgress)
		if err != nil {
			return nil, fmt.Errorf("count in-progress tasks: %w", err)
		}
		counts.InProgressTasks = &inProgress
	}

	recentProjects, err := s.projectRepo.Recent(ctx, projectScope, recentProjectLimit)
	if err != nil {
		return nil, fmt.Errorf("recent projects: %w", err)
	}
	if err := s.attachProgress(ctx, recentProjects); err != nil {
		return nil, err
	}

	recentTasks, err := s.taskRepo.Recent(ctx, taskScope, recentTaskLimit)
	if err != nil {
		return nil, fmt.Errorf("recent tasks: %w", err)
	}

	return &DashboardStats{
		Counts:         counts,
		RecentProjects: recentProjects,
		RecentTasks:    recentTasks,
	}, nil
}

// attachProgress mirrors the project service's derived-progress computation
// for the dashboard's recent list.
func (s *dashboardService) attachProgress(ctx context.Context, projects []model.Project) error {
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
