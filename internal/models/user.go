package models

import "time"

// User is an identity record: credentials, profile, and free-form
// invitation metadata delivered back to the app when an invite link is
// redeemed. User ids are opaque uuid strings; deletion is a hard delete.
type User struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"size:255" json:"-"` // bcrypt hash
	Name     string `gorm:"size:100" json:"name"`

	// Invitation metadata, set when an invite email is dispatched and
	// cleared once the membership link completes.
	InvitedTeamID *uint  `json:"invited_team_id,omitempty"`
	InvitedRole   string `gorm:"size:20" json:"invited_role,omitempty"`
	InvitationID  *uint  `json:"invitation_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
