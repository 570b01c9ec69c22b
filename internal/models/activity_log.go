package models

import "time"

// Activity kinds. The set is closed; unknown kinds render as a
// lowercased fallback in the feed.
const (
	ActivitySignUp           = "SIGN_UP"
	ActivitySignIn           = "SIGN_IN"
	ActivitySignOut          = "SIGN_OUT"
	ActivityUpdatePassword   = "UPDATE_PASSWORD"
	ActivityDeleteAccount    = "DELETE_ACCOUNT"
	ActivityUpdateAccount    = "UPDATE_ACCOUNT"
	ActivityCreateTeam       = "CREATE_TEAM"
	ActivityRemoveTeamMember = "REMOVE_TEAM_MEMBER"
	ActivityInviteTeamMember = "INVITE_TEAM_MEMBER"
	ActivityAcceptInvitation = "ACCEPT_INVITATION"
)

// ActivityLog is an append-only audit row for a state-changing action.
// TeamID is null when the actor has no team; UserID is null for system
// actions. Rows are never updated or deleted by normal operation.
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    *uint     `gorm:"index" json:"team_id"`
	UserID    *string   `gorm:"size:36;index" json:"user_id"`
	Action    string    `gorm:"size:50;not null" json:"action"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	IPAddress string    `gorm:"size:45" json:"ip_address"` // best-effort, may be empty
}

func (ActivityLog) TableName() string { return "activity_logs" }
