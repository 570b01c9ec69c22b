package models

import "time"

// Invitation statuses. An invitation moves pending → accepted exactly
// once; there is no other transition.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

// Invitation is a pending offer of team membership tied to an email and
// role, redeemable once. At most one pending invitation may exist per
// (team, email); enforced by a pre-insert existence check.
type Invitation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"index:idx_invite_team_email;not null" json:"team_id"`
	Email     string    `gorm:"index:idx_invite_team_email;size:255;not null" json:"email"`
	Role      string    `gorm:"size:20;not null" json:"role"`
	InvitedBy string    `gorm:"size:36;not null" json:"invited_by"`
	Status    string    `gorm:"size:20;not null;default:pending;index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (Invitation) TableName() string { return "invitations" }
