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
	"taskhub/internal/storage"
)

func newTaskServiceForTest(t *testing.T) (*MockTaskRepository, *MockProjectRepository, *MockNotifier, TaskService) {
	t.Helper()
	store, err := storage.NewAttachmentStore(t.TempDir())
	assert.NoError(t, err)

	taskRepo := new(MockTaskRepository)
	projectRepo := new(MockProjectRepository)
	notifier := new(MockNotifier)
	svc := NewTaskService(taskRepo, projectRepo, store, notifier)
	return taskRepo, projectRepo, notifier, svc
}

func uintPtr(v uint) *uint { return &v }

func TestTaskServiceCreate(t *testing.T) {
	superAdmin := auth.Identity{UserID: 1, Role: model.RoleSuperAdmin}
	developer := auth.Identity{UserID: 7, Role: model.RoleDeveloper}
	client := auth.Identity{UserID: 3, Role: model.RoleClient}

	t.Run("client may not create tasks", func(t *testing.T) {
		_, _, _, svc := newTaskServiceForTest(t)

		_, err := svc.Create(context.Background(), client, TaskInput{ProjectID: 1, Title: "x"})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("missing project surfaces as not found", func(t *testing.T) {
		_, projectRepo, _, svc := newTaskServiceForTest(t)
		projectRepo.On("FindByID", mock.Anything, uint(99)).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.Create(context.Background(), superAdmin, TaskInput{ProjectID: 99, Title: "x"})
		assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)
	})

	t.Run("defaults applied and assignment notification fired", func(t *testing.T) {
		taskRepo, projectRepo, notifier, svc := newTaskServiceForTest(t)
		project := &model.Project{ID: 1, Name: "Site"}
		projectRepo.On("FindByID", mock.Anything, uint(1)).Return(project, nil)
		taskRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Task")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*model.Task).ID = 42
			}).
			Return(nil)
		taskRepo.On("FindByID", mock.Anything, uint(42)).
			Return(&model.Task{ID: 42, ProjectID: 1, Title: "Build it", Status: model.TaskStatusPending, Priority: model.TaskPriorityNormal}, nil)
		notifier.On("TaskAssigned", mock.Anything, project, mock.AnythingOfType("*model.Task")).Return()

		task, err := svc.Create(context.Background(), developer, TaskInput{ProjectID: 1, Title: "Build it"})
		assert.NoError(t, err)
		assert.Equal(t, model.TaskStatusPending, task.Status)
		assert.Equal(t, model.TaskPriorityNormal, task.Priority)
		notifier.AssertCalled(t, "TaskAssigned", mock.Anything, project, mock.AnythingOfType("*model.Task"))

		created := taskRepo.Calls[0].Arguments.Get(1).(*model.Task)
		assert.Equal(t, developer.UserID, created.CreatedByID)
	})

	t.Run("zero assignee stored as null", func(t *testing.T) {
		taskRepo, projectRepo, notifier, svc := newTaskServiceForTest(t)
		project := &model.Project{ID: 1}
		projectRepo.On("FindByID", mock.Anything, uint(1)).Return(project, nil)
		taskRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Task")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*model.Task).ID = 5
			}).
			Return(nil)
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(&model.Task{ID: 5}, nil)
		notifier.On("TaskAssigned", mock.Anything, mock.Anything, mock.Anything).Return()

		_, err := svc.Create(context.Background(), superAdmin, TaskInput{ProjectID: 1, Title: "x", AssignedUserID: uintPtr(0)})
		assert.NoError(t, err)

		created := taskRepo.Calls[0].Arguments.Get(1).(*model.Task)
		assert.Nil(t, created.AssignedUserID)
	})
}

func TestTaskServiceGet(t *testing.T) {
	client := auth.Identity{UserID: 3, Role: model.RoleClient}
	developer := auth.Identity{UserID: 7, Role: model.RoleDeveloper}

	t.Run("missing row wins over scope", func(t *testing.T) {
		taskRepo, projectRepo, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(9)).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.Get(context.Background(), client, 9)
		assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
		projectRepo.AssertNotCalled(t, "HasTag", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("client outside the project is rejected", func(t *testing.T) {
		taskRepo, projectRepo, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(9)).Return(&model.Task{ID: 9, ProjectID: 2}, nil)
		projectRepo.On("HasTag", mock.Anything, uint(2), uint(3), model.MemberTagClient).Return(false, nil)

		_, err := svc.Get(context.Background(), client, 9)
		assert.ErrorIs(t, err, apperrors.ErrNotProjectMember)
	})

	t.Run("assignee reads without a membership tag", func(t *testing.T) {
		taskRepo, projectRepo, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(9)).
			Return(&model.Task{ID: 9, ProjectID: 2, AssignedUserID: uintPtr(7)}, nil)

		task, err := svc.Get(context.Background(), developer, 9)
		assert.NoError(t, err)
		assert.Equal(t, uint(9), task.ID)
		projectRepo.AssertNotCalled(t, "HasTag", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTaskServiceUpdateStatus(t *testing.T) {
	superAdmin := auth.Identity{UserID: 1, Role: model.RoleSuperAdmin}
	developer := auth.Identity{UserID: 7, Role: model.RoleDeveloper}
	client := auth.Identity{UserID: 3, Role: model.RoleClient}

	t.Run("assigned developer completes own task", func(t *testing.T) {
		taskRepo, projectRepo, notifier, svc := newTaskServiceForTest(t)
		task := &model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusInProgress, AssignedUserID: uintPtr(7)}
		project := &model.Project{ID: 2}
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(task, nil)
		taskRepo.On("Save", mock.Anything, task).Return(nil)
		projectRepo.On("FindByID", mock.Anything, uint(2)).Return(project, nil)
		notifier.On("TaskCompleted", mock.Anything, project, task).Return()

		updated, err := svc.UpdateStatus(context.Background(), developer, 5, model.TaskStatusCompleted)
		assert.NoError(t, err)
		assert.Equal(t, model.TaskStatusCompleted, updated.Status)
		notifier.AssertCalled(t, "TaskCompleted", mock.Anything, project, task)
		notifier.AssertNotCalled(t, "TaskAssigned", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("starting a task does not notify completion", func(t *testing.T) {
		taskRepo, projectRepo, notifier, svc := newTaskServiceForTest(t)
		task := &model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusPending, AssignedUserID: uintPtr(7)}
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(task, nil)
		taskRepo.On("Save", mock.Anything, task).Return(nil)
		projectRepo.On("FindByID", mock.Anything, uint(2)).Return(&model.Project{ID: 2}, nil)

		_, err := svc.UpdateStatus(context.Background(), developer, 5, model.TaskStatusInProgress)
		assert.NoError(t, err)
		notifier.AssertNotCalled(t, "TaskCompleted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("developer may not approve", func(t *testing.T) {
		taskRepo, _, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(5)).
			Return(&model.Task{ID: 5, Status: model.TaskStatusCompleted, AssignedUserID: uintPtr(7)}, nil)

		_, err := svc.UpdateStatus(context.Background(), developer, 5, model.TaskStatusApproved)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("developer may not move another developer's task", func(t *testing.T) {
		taskRepo, _, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(5)).
			Return(&model.Task{ID: 5, Status: model.TaskStatusPending, AssignedUserID: uintPtr(9)}, nil)

		_, err := svc.UpdateStatus(context.Background(), developer, 5, model.TaskStatusInProgress)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("client may only approve or reject", func(t *testing.T) {
		taskRepo, _, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(5)).
			Return(&model.Task{ID: 5, Status: model.TaskStatusPending}, nil)

		_, err := svc.UpdateStatus(context.Background(), client, 5, model.TaskStatusInProgress)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("workflow table blocks skipping ahead", func(t *testing.T) {
		taskRepo, _, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(5)).
			Return(&model.Task{ID: 5, Status: model.TaskStatusPending}, nil)

		_, err := svc.UpdateStatus(context.Background(), superAdmin, 5, model.TaskStatusCompleted)
		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
	})

	t.Run("rejected task can be reworked", func(t *testing.T) {
		taskRepo, projectRepo, _, svc := newTaskServiceForTest(t)
		task := &model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusRejected, AssignedUserID: uintPtr(7)}
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(task, nil)
		taskRepo.On("Save", mock.Anything, task).Return(nil)
		projectRepo.On("FindByID", mock.Anything, uint(2)).Return(&model.Project{ID: 2}, nil)

		updated, err := svc.UpdateStatus(context.Background(), developer, 5, model.TaskStatusInProgress)
		assert.NoError(t, err)
		assert.Equal(t, model.TaskStatusInProgress, updated.Status)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		taskRepo, _, _, svc := newTaskServiceForTest(t)
		task := &model.Task{ID: 5, Status: model.TaskStatusInProgress, AssignedUserID: uintPtr(7)}
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(task, nil)

		updated, err := svc.UpdateStatus(context.Background(), developer, 5, model.TaskStatusInProgress)
		assert.NoError(t, err)
		assert.Equal(t, model.TaskStatusInProgress, updated.Status)
		taskRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestTaskServiceApproveReject(t *testing.T) {
	superAdmin := auth.Identity{UserID: 1, Role: model.RoleSuperAdmin}
	developer := auth.Identity{UserID: 7, Role: model.RoleDeveloper}
	client := auth.Identity{UserID: 3, Role: model.RoleClient}

	t.Run("tagged client approves a completed task", func(t *testing.T) {
		taskRepo, projectRepo, _, svc := newTaskServiceForTest(t)
		task := &model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusCompleted}
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(task, nil)
		projectRepo.On("HasTag", mock.Anything, uint(2), uint(3), model.MemberTagClient).Return(true, nil)
		taskRepo.On("Save", mock.Anything, task).Return(nil)

		updated, err := svc.Approve(context.Background(), client, 5)
		assert.NoError(t, err)
		assert.Equal(t, model.TaskStatusApproved, updated.Status)
	})

	t.Run("tagged client rejects for rework", func(t *testing.T) {
		taskRepo, projectRepo, _, svc := newTaskServiceForTest(t)
		task := &model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusCompleted}
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(task, nil)
		projectRepo.On("HasTag", mock.Anything, uint(2), uint(3), model.MemberTagClient).Return(true, nil)
		taskRepo.On("Save", mock.Anything, task).Return(nil)

		updated, err := svc.Reject(context.Background(), client, 5)
		assert.NoError(t, err)
		assert.Equal(t, model.TaskStatusRejected, updated.Status)
	})

	t.Run("client without the tag is not a member", func(t *testing.T) {
		taskRepo, projectRepo, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(5)).
			Return(&model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusCompleted}, nil)
		projectRepo.On("HasTag", mock.Anything, uint(2), uint(3), model.MemberTagClient).Return(false, nil)

		_, err := svc.Approve(context.Background(), client, 5)
		assert.ErrorIs(t, err, apperrors.ErrNotProjectMember)
	})

	t.Run("only completed tasks can be decided", func(t *testing.T) {
		taskRepo, projectRepo, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(5)).
			Return(&model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusInProgress}, nil)
		projectRepo.On("HasTag", mock.Anything, uint(2), uint(3), model.MemberTagClient).Return(true, nil)

		_, err := svc.Approve(context.Background(), client, 5)
		assert.ErrorIs(t, err, apperrors.ErrTaskNotCompleted)
	})

	t.Run("developer may never decide", func(t *testing.T) {
		taskRepo, _, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(5)).
			Return(&model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusCompleted, AssignedUserID: uintPtr(7)}, nil)

		_, err := svc.Reject(context.Background(), developer, 5)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("super admin decides without membership", func(t *testing.T) {
		taskRepo, projectRepo, _, svc := newTaskServiceForTest(t)
		task := &model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusCompleted}
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(task, nil)
		taskRepo.On("Save", mock.Anything, task).Return(nil)

		updated, err := svc.Approve(context.Background(), superAdmin, 5)
		assert.NoError(t, err)
		assert.Equal(t, model.TaskStatusApproved, updated.Status)
		projectRepo.AssertNotCalled(t, "HasTag", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTaskServiceUpdate(t *testing.T) {
	superAdmin := auth.Identity{UserID: 1, Role: model.RoleSuperAdmin}
	developer := auth.Identity{UserID: 7, Role: model.RoleDeveloper}

	t.Run("reassignment notifies the new assignee", func(t *testing.T) {
		taskRepo, projectRepo, notifier, svc := newTaskServiceForTest(t)
		task := &model.Task{ID: 5, ProjectID: 2, Title: "Build it", Status: model.TaskStatusPending}
		project := &model.Project{ID: 2}
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(task, nil)
		taskRepo.On("Save", mock.Anything, task).Return(nil)
		projectRepo.On("FindByID", mock.Anything, uint(2)).Return(project, nil)
		notifier.On("TaskAssigned", mock.Anything, project, task).Return()

		_, err := svc.Update(context.Background(), superAdmin, 5, TaskInput{AssignedUserID: uintPtr(9)})
		assert.NoError(t, err)
		notifier.AssertCalled(t, "TaskAssigned", mock.Anything, project, task)
		notifier.AssertNotCalled(t, "TaskCompleted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unchanged assignee stays quiet", func(t *testing.T) {
		taskRepo, projectRepo, notifier, svc := newTaskServiceForTest(t)
		task := &model.Task{ID: 5, ProjectID: 2, Title: "Build it", Status: model.TaskStatusPending, AssignedUserID: uintPtr(9)}
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(task, nil)
		taskRepo.On("Save", mock.Anything, task).Return(nil)
		projectRepo.On("FindByID", mock.Anything, uint(2)).Return(&model.Project{ID: 2}, nil)

		_, err := svc.Update(context.Background(), superAdmin, 5, TaskInput{Title: "Rename", AssignedUserID: uintPtr(9)})
		assert.NoError(t, err)
		notifier.AssertNotCalled(t, "TaskAssigned", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("developer may not approve through the generic update", func(t *testing.T) {
		taskRepo, _, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(5)).
			Return(&model.Task{ID: 5, ProjectID: 2, Status: model.TaskStatusCompleted, AssignedUserID: uintPtr(7)}, nil)

		_, err := svc.Update(context.Background(), developer, 5, TaskInput{Status: model.TaskStatusApproved})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}

func TestTaskServiceDelete(t *testing.T) {
	t.Run("super admin only", func(t *testing.T) {
		taskRepo, _, _, svc := newTaskServiceForTest(t)

		err := svc.Delete(context.Background(), auth.Identity{UserID: 7, Role: model.RoleDeveloper}, 5)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		taskRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("removes the row", func(t *testing.T) {
		taskRepo, _, _, svc := newTaskServiceForTest(t)
		taskRepo.On("FindByID", mock.Anything, uint(5)).Return(&model.Task{ID: 5}, nil)
		taskRepo.On("Delete", mock.Anything, uint(5)).Return(nil)

		err := svc.Delete(context.Background(), auth.Identity{UserID: 1, Role: model.RoleSuperAdmin}, 5)
		assert.NoError(t, err)
		taskRepo.AssertCalled(t, "Delete", mock.Anything, uint(5))
	})
}
