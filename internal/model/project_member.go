package model

import "time"

// MemberTag is the per-project role carried on the membership pivot. It is
// independent of the user's global role: the same user may hold both tags on
// one project as two separate rows.
type MemberTag string

const (
	MemberTagClient    MemberTag = "client"
	MemberTagDeveloper MemberTag = "developer"
)

// Valid reports whether t is one of the known membership tags.
func (t MemberTag) Valid() bool {
	return t == MemberTagClient || t == MemberTagDeveloper
}

// ProjectMember links a user to a project with a role tag. This pivot is the
// sole record of project visibility for non-admin users.
type ProjectMember struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID uint      `json:"project_id" gorm:"not null;index:idx_member_project"`
	UserID    uint      `json:"user_id" gorm:"not null;index:idx_member_user"`
	Tag       MemberTag `json:"tag" gorm:"type:varchar(20);not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User User `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName keeps the pivot name explicit.
func (ProjectMember) TableName() string {
	return "project_members"
}
