package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/storage"
)

func newProjectServiceForTest(t *testing.T) (*MockProjectRepository, *MockTaskRepository, ProjectService) {
	t.Helper()
	store, err := storage.NewAttachmentStore(t.TempDir())
	assert.NoError(t, err)

	projectRepo := new(MockProjectRepository)
	taskRepo := new(MockTaskRepository)
	svc := NewProjectService(projectRepo, taskRepo, store)
	return projectRepo, taskRepo, svc
}

func TestProjectServiceGet(t *testing.T) {
	client := auth.Identity{UserID: 3, Role: model.RoleClient}
	developer := auth.Identity{UserID: 7, Role: model.RoleDeveloper}

	t.Run("missing row wins over scope", func(t *testing.T) {
		projectRepo, _, svc := newProjectServiceForTest(t)
		projectRepo.On("FindByID", mock.Anything, uint(9)).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.Get(context.Background(), client, 9)
		assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)
		projectRepo.AssertNotCalled(t, "HasTag", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("client without the client tag is rejected", func(t *testing.T) {
		projectRepo, _, svc := newProjectServiceForTest(t)
		projectRepo.On("FindByID", mock.Anything, uint(9)).Return(&model.Project{ID: 9}, nil)
		projectRepo.On("HasTag", mock.Anything, uint(9), uint(3), model.MemberTagClient).Return(false, nil)

		_, err := svc.Get(context.Background(), client, 9)
		assert.ErrorIs(t, err, apperrors.ErrNotProjectMember)
	})

	t.Run("developer with an assigned task reads without a tag", func(t *testing.T) {
		projectRepo, taskRepo, svc := newProjectServiceForTest(t)
		projectRepo.On("FindByID", mock.Anything, uint(9)).Return(&model.Project{ID: 9}, nil)
		projectRepo.On("HasTag", mock.Anything, uint(9), uint(7), model.MemberTagDeveloper).Return(false, nil)
		taskRepo.On("HasAssignedInProject", mock.Anything, uint(9), uint(7)).Return(true, nil)
		projectRepo.On("FindByIDWithDetails", mock.Anything, uint(9)).
			Return(&model.Project{ID: 9, Tasks: []model.Task{
				{Status: model.TaskStatusApproved},
				{Status: model.TaskStatusApproved},
				{Status: model.TaskStatusRejected},
			}}, nil)

		project, err := svc.Get(context.Background(), developer, 9)
		assert.NoError(t, err)
		assert.Equal(t, 66.67, project.Progress)
	})

	t.Run("developer with neither tag nor task is rejected", func(t *testing.T) {
		projectRepo, taskRepo, svc := newProjectServiceForTest(t)
		projectRepo.On("FindByID", mock.Anything, uint(9)).Return(&model.Project{ID: 9}, nil)
		projectRepo.On("HasTag", mock.Anything, uint(9), uint(7), model.MemberTagDeveloper).Return(false, nil)
		taskRepo.On("HasAssignedInProject", mock.Anything, uint(9), uint(7)).Return(false, nil)

		_, err := svc.Get(context.Background(), developer, 9)
		assert.ErrorIs(t, err, apperrors.ErrNotProjectMember)
	})
}

func TestProjectServiceList(t *testing.T) {
	t.Run("progress attached from task counts", func(t *testing.T) {
		projectRepo, taskRepo, svc := newProjectServiceForTest(t)
		scope := repository.ProjectScope{}
		filter := repository.ProjectFilter{Page: 1, PerPage: 15}
		projectRepo.On("List", mock.Anything, scope, filter).
			Return([]model.Project{{ID: 1}, {ID: 2}}, int64(2), nil)
		taskRepo.On("StatusCountsByProject", mock.Anything, []uint{1, 2}).
			Return(map[uint]repository.ProgressCounts{
				1: {ProjectID: 1, Total: 3, Approved: 1},
			}, nil)

		projects, total, err := svc.List(context.Background(), auth.Identity{UserID: 1, Role: model.RoleSuperAdmin}, filter)
		assert.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, 33.33, projects[0].Progress)
		assert.Equal(t, float64(0), projects[1].Progress)
	})

	t.Run("client scope pins the membership", func(t *testing.T) {
		projectRepo, _, svc := newProjectServiceForTest(t)
		caller := auth.Identity{UserID: 3, Role: model.RoleClient}
		projectRepo.On("List", mock.Anything, mock.MatchedBy(func(s repository.ProjectScope) bool {
			return s.ClientUserID != nil && *s.ClientUserID == 3 && s.DeveloperUserID == nil
		}), mock.Anything).Return([]model.Project{}, int64(0), nil)

		_, _, err := svc.List(context.Background(), caller, repository.ProjectFilter{})
		assert.NoError(t, err)
	})
}

func TestProjectServiceCreate(t *testing.T) {
	developer := auth.Identity{UserID: 7, Role: model.RoleDeveloper}

	t.Run("client may not create projects", func(t *testing.T) {
		_, _, svc := newProjectServiceForTest(t)

		_, err := svc.Create(context.Background(), auth.Identity{UserID: 3, Role: model.RoleClient}, ProjectInput{Name: "x"})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("creator auto-attached as developer", func(t *testing.T) {
		projectRepo, _, svc := newProjectServiceForTest(t)
		projectRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Project"), mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*model.Project).ID = 4
			}).
			Return(nil)
		projectRepo.On("FindByIDWithDetails", mock.Anything, uint(4)).Return(&model.Project{ID: 4}, nil)

		_, err := svc.Create(context.Background(), developer, ProjectInput{
			Name:      "Site",
			ClientIDs: []uint{3},
		})
		assert.NoError(t, err)

		members := projectRepo.Calls[0].Arguments.Get(2).([]model.ProjectMember)
		assert.Equal(t, []model.ProjectMember{
			{UserID: 3, Tag: model.MemberTagClient},
			{UserID: 7, Tag: model.MemberTagDeveloper},
		}, members)
	})

	t.Run("creator in the submitted lists is not duplicated", func(t *testing.T) {
		projectRepo, _, svc := newProjectServiceForTest(t)
		projectRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Project"), mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*model.Project).ID = 4
			}).
			Return(nil)
		projectRepo.On("FindByIDWithDetails", mock.Anything, uint(4)).Return(&model.Project{ID: 4}, nil)

		_, err := svc.Create(context.Background(), developer, ProjectInput{
			Name:      "Site",
			ClientIDs: []uint{7},
		})
		assert.NoError(t, err)

		members := projectRepo.Calls[0].Arguments.Get(2).([]model.ProjectMember)
		assert.Equal(t, []model.ProjectMember{{UserID: 7, Tag: model.MemberTagClient}}, members)
	})
}

func TestProjectServiceUpdate(t *testing.T) {
	superAdmin := auth.Identity{UserID: 1, Role: model.RoleSuperAdmin}

	t.Run("super admin only", func(t *testing.T) {
		_, _, svc := newProjectServiceForTest(t)

		_, err := svc.Update(context.Background(), auth.Identity{UserID: 7, Role: model.RoleDeveloper}, 4, ProjectInput{})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("membership fully replaced without creator auto-attach", func(t *testing.T) {
		projectRepo, _, svc := newProjectServiceForTest(t)
		project := &model.Project{ID: 4, Name: "Site"}
		projectRepo.On("FindByID", mock.Anything, uint(4)).Return(project, nil)
		projectRepo.On("ReplaceMembers", mock.Anything, project, mock.Anything).Return(nil)
		projectRepo.On("FindByIDWithDetails", mock.Anything, uint(4)).Return(&model.Project{ID: 4}, nil)

		_, err := svc.Update(context.Background(), superAdmin, 4, ProjectInput{
			Name:         "Site v2",
			DeveloperIDs: []uint{7},
		})
		assert.NoError(t, err)

		var members []model.ProjectMember
		for _, call := range projectRepo.Calls {
			if call.Method == "ReplaceMembers" {
				members = call.Arguments.Get(2).([]model.ProjectMember)
			}
		}
		assert.Equal(t, []model.ProjectMember{{UserID: 7, Tag: model.MemberTagDeveloper}}, members)
		assert.Equal(t, "Site v2", project.Name)
	})
}

func TestProjectServiceDelete(t *testing.T) {
	t.Run("super admin only", func(t *testing.T) {
		projectRepo, _, svc := newProjectServiceForTest(t)

		err := svc.Delete(context.Background(), auth.Identity{UserID: 3, Role: model.RoleClient}, 4)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		projectRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("missing project is not found", func(t *testing.T) {
		projectRepo, _, svc := newProjectServiceForTest(t)
		projectRepo.On("FindByIDWithDetails", mock.Anything, uint(4)).Return(nil, gorm.ErrRecordNotFound)

		err := svc.Delete(context.Background(), auth.Identity{UserID: 1, Role: model.RoleSuperAdmin}, 4)
		assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)
	})
}
