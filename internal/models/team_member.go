package models

import "time"

// Team member roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// TeamMember links a user identity to a team with a role. The composite
// unique index turns a lost pre-check race into a storage-level conflict
// instead of a silent duplicate membership.
type TeamMember struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   string    `gorm:"uniqueIndex:idx_team_user;size:36;not null" json:"user_id"`
	TeamID   uint      `gorm:"uniqueIndex:idx_team_user;not null" json:"team_id"`
	Team     *Team     `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	Role     string    `gorm:"size:20;not null;default:member" json:"role"` // owner, member
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (TeamMember) TableName() string { return "team_members" }
