package services

import (
	"errors"
	"fmt"

	"github.com/teamforge/backend/internal/models"
	"github.com/teamforge/backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrNoTeam              = errors.New("user is not part of a team")
	ErrAlreadyMember       = errors.New("user is already a member of this team")
	ErrDuplicateInvitation = errors.New("an invitation has already been sent to this email")
	ErrInvalidInvitation   = errors.New("invalid or expired invitation")
	ErrEmailDispatch       = errors.New("failed to send invitation email")
)

// InvitationService owns the invite lifecycle: the multi-step create
// saga with its compensating delete, and the idempotent redemption path
// that turns a pending invitation into a membership.
type InvitationService struct {
	db       *gorm.DB
	identity *IdentityService
	activity *ActivityService
	baseURL  string
}

func NewInvitationService(db *gorm.DB, identity *IdentityService, activity *ActivityService, baseURL string) *InvitationService {
	return &InvitationService{
		db:       db,
		identity: identity,
		activity: activity,
		baseURL:  baseURL,
	}
}

// Invite runs the invitation saga for the inviter's team:
// pre-checks, invitation insert, then the awaited email dispatch. A
// dispatch failure triggers a best-effort compensating delete of the
// invitation row before the error is propagated.
func (s *InvitationService) Invite(inviterID, email, role, ip string) (*models.Invitation, error) {
	var membership models.TeamMember
	err := s.db.Preload("Team").Where("user_id = ?", inviterID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoTeam
	}
	if err != nil {
		return nil, err
	}
	teamID := membership.TeamID

	// Existing user already in this team: reject before any write.
	var existing models.User
	err = s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		var count int64
		if err := s.db.Model(&models.TeamMember{}).
			Where("team_id = ? AND user_id = ?", teamID, existing.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrAlreadyMember
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var pending int64
	if err := s.db.Model(&models.Invitation{}).
		Where("team_id = ? AND email = ? AND status = ?", teamID, email, models.InvitationPending).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrDuplicateInvitation
	}

	invitation := models.Invitation{
		TeamID:    teamID,
		Email:     email,
		Role:      role,
		InvitedBy: inviterID,
		Status:    models.InvitationPending,
	}
	if err := s.db.Create(&invitation).Error; err != nil {
		return nil, err
	}

	teamName := ""
	if membership.Team != nil {
		teamName = membership.Team.Name
	}
	inviteURL := fmt.Sprintf("%s/sign-up?inviteId=%d", s.baseURL, invitation.ID)

	if _, err := s.identity.InviteUser(email, teamName, role, teamID, invitation.ID, inviteURL); err != nil {
		// Compensate: the invitation must not stay pending when no
		// email went out. A failed delete leaves an orphan row that a
		// later duplicate-invite pre-check will surface.
		if delErr := s.db.Delete(&models.Invitation{}, invitation.ID).Error; delErr != nil {
			logger.Warn().Err(delErr).
				Uint("invitation_id", invitation.ID).
				Uint("team_id", teamID).
				Str("email", email).
				Msg("orphaned invitation: compensating delete failed after email dispatch error")
		}
		logger.Error().Err(err).Str("email", email).Msg("invitation email dispatch failed")
		return nil, ErrEmailDispatch
	}

	s.activity.Record(&teamID, inviterID, models.ActivityInviteTeamMember, ip)
	return &invitation, nil
}

// Resolve turns a redeemed invite link into a membership. Idempotent:
// replays for an existing membership succeed without writing. Only the
// membership insert is fatal; marking the invitation accepted and
// clearing the identity metadata are best effort.
func (s *InvitationService) Resolve(userID string, teamID uint, role string, invitationID *uint, ip string) error {
	var count int64
	if err := s.db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var team models.Team
	if err := s.db.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidInvitation
		}
		return err
	}

	if role == "" {
		role = models.RoleMember
	}
	member := models.TeamMember{
		UserID: userID,
		TeamID: teamID,
		Role:   role,
	}
	if err := s.db.Create(&member).Error; err != nil {
		// A concurrent redemption can land between the pre-check and
		// the insert; the unique (team_id,user_id) index rejects the
		// loser. That replay is a success, not an error.
		var raced int64
		s.db.Model(&models.TeamMember{}).
			Where("team_id = ? AND user_id = ?", teamID, userID).
			Count(&raced)
		if raced > 0 {
			return nil
		}
		return err
	}

	if invitationID != nil {
		if err := s.db.Model(&models.Invitation{}).
			Where("id = ?", *invitationID).
			Update("status", models.InvitationAccepted).Error; err != nil {
			logger.Warn().Err(err).Uint("invitation_id", *invitationID).Msg("failed to mark invitation accepted")
		}
	}
	if err := s.identity.ClearInvitationMetadata(userID); err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("failed to clear invitation metadata")
	}

	s.activity.Record(&teamID, userID, models.ActivityAcceptInvitation, ip)
	return nil
}

// AcceptAtSignUp redeems a pending invitation for a freshly created
// identity. The invitation must be pending and addressed to the new
// account's email; callers roll the identity back on failure.
func (s *InvitationService) AcceptAtSignUp(userID, email string, invitationID uint, ip string) (*models.Team, error) {
	var invitation models.Invitation
	err := s.db.Where("id = ? AND email = ? AND status = ?", invitationID, email, models.InvitationPending).
		First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidInvitation
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(&invitation).Update("status", models.InvitationAccepted).Error; err != nil {
		return nil, err
	}

	member := models.TeamMember{
		UserID: userID,
		TeamID: invitation.TeamID,
		Role:   invitation.Role,
	}
	if err := s.db.Create(&member).Error; err != nil {
		return nil, err
	}

	var team models.Team
	if err := s.db.First(&team, invitation.TeamID).Error; err != nil {
		return nil, err
	}

	if err := s.identity.ClearInvitationMetadata(userID); err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("failed to clear invitation metadata")
	}

	s.activity.Record(&invitation.TeamID, userID, models.ActivityAcceptInvitation, ip)
	return &team, nil
}
