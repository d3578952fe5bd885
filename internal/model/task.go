package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaskStatus represents the workflow state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusApproved   TaskStatus = "approved"
	TaskStatusRejected   TaskStatus = "rejected"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusApproved, TaskStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the workflow allows moving from s to next.
// Rejected tasks may move back to in_progress for rework.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case TaskStatusPending:
		return next == TaskStatusInProgress
	case TaskStatusInProgress:
		return next == TaskStatusCompleted
	case TaskStatusCompleted:
		return next == TaskStatusApproved || next == TaskStatusRejected
	case TaskStatusRejected:
		return next == TaskStatusInProgress
	}
	return false
}

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	TaskPriorityNormal    TaskPriority = "normal"
	TaskPriorityUrgent    TaskPriority = "urgent"
	TaskPriorityTopUrgent TaskPriority = "top_urgent"
)

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityNormal, TaskPriorityUrgent, TaskPriorityTopUrgent:
		return true
	}
	return false
}

// Task belongs to one project and is optionally assigned to a single developer.
// The Developers set is a separate display-only association and is not kept in
// sync with AssignedUserID.
type Task struct {
	ID             uint             `json:"id" gorm:"primaryKey"`
	ProjectID      uint             `json:"project_id" gorm:"not null;index"`
	Title          string           `json:"title" gorm:"size:255;not null"`
	Description    string           `json:"description,omitempty" gorm:"type:text"`
	Attachment     string           `json:"attachment,omitempty" gorm:"size:512"`
	Status         TaskStatus       `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Priority       TaskPriority     `json:"priority" gorm:"type:varchar(20);not null;default:'normal';index"`
	StartDate      *time.Time       `json:"start_date,omitempty"`
	DueDate        *time.Time       `json:"due_date,omitempty"`
	EstimatedHours *decimal.Decimal `json:"estimated_hours,omitempty" gorm:"type:decimal(6,2)"`
	AssignedUserID *uint            `json:"assigned_user_id,omitempty" gorm:"index"`
	CreatedByID    uint             `json:"created_by_id" gorm:"index"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	DeletedAt      gorm.DeletedAt   `json:"-" gorm:"index"`

	// Relations
	Project    Project `json:"-" gorm:"foreignKey:ProjectID"`
	AssignedTo *User   `json:"assigned_to,omitempty" gorm:"foreignKey:AssignedUserID"`
	Developers []User  `json:"developers,omitempty" gorm:"many2many:task_developers"`
}
