package model

import (
	"time"

	"gorm.io/gorm"
)

// ProjectStatus represents the status of a project.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
)

// Valid reports whether s is one of the known project statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted:
		return true
	}
	return false
}

// Project groups tasks and carries a membership list of clients and developers.
type Project struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"size:255;not null;index"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Status      ProjectStatus  `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	StartDate   *time.Time     `json:"start_date,omitempty"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
	CreatedByID uint           `json:"created_by_id" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Progress is derived from the task set on read, never stored.
	Progress float64 `json:"progress" gorm:"-"`

	// Relations
	Members []ProjectMember `json:"members,omitempty" gorm:"foreignKey:ProjectID"`
	Tasks   []Task          `json:"tasks,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}
