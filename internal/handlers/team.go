package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/backend/internal/middleware"
	"github.com/teamforge/backend/internal/services"
	"github.com/teamforge/backend/pkg/response"
)

// TeamHandler serves the team aggregate, the activity feed and the
// roster mutations.
type TeamHandler struct {
	membership *services.MembershipService
	invitation *services.InvitationService
	activity   *services.ActivityService
}

func NewTeamHandler(membership *services.MembershipService, invitation *services.InvitationService, activity *services.ActivityService) *TeamHandler {
	return &TeamHandler{
		membership: membership,
		invitation: invitation,
		activity:   activity,
	}
}

// GetTeam returns the caller's team with its enriched roster, or JSON
// null when the caller has no team.
// GET /api/team
func (h *TeamHandler) GetTeam(c *gin.Context) {
	team, err := h.membership.GetTeamForUser(middleware.GetUserID(c))
	if err != nil {
		response.ServerError(c, "failed to load team")
		return
	}
	if team == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, team)
}

// GetActivity returns the caller's recent activity feed.
// GET /api/activity
func (h *TeamHandler) GetActivity(c *gin.Context) {
	entries, err := h.activity.ListForUser(middleware.GetUserID(c))
	if err != nil {
		response.ServerError(c, "failed to load activity")
		return
	}
	c.JSON(http.StatusOK, entries)
}

type InviteMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=member owner"`
}

// InviteMember starts the invitation flow for the caller's team.
// POST /api/team/invite
func (h *TeamHandler) InviteMember(c *gin.Context) {
	var req InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionError(c, "A valid email and role are required.")
		return
	}

	echo := response.ActionResult{"email": req.Email, "role": req.Role}

	_, err := h.invitation.Invite(middleware.GetUserID(c), req.Email, req.Role, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoTeam):
			response.ActionError(c, "User is not part of a team", echo)
		case errors.Is(err, services.ErrAlreadyMember):
			response.ActionError(c, "User is already a member of this team", echo)
		case errors.Is(err, services.ErrDuplicateInvitation):
			response.ActionError(c, "An invitation has already been sent to this email", echo)
		case errors.Is(err, services.ErrEmailDispatch):
			response.ActionError(c, "Failed to send invitation email. Please try again.", echo)
		default:
			response.ActionError(c, "Failed to invite team member. Please try again.", echo)
		}
		return
	}

	response.ActionSuccess(c, "Invitation sent successfully", echo)
}

type RemoveMemberRequest struct {
	MemberID uint `json:"member_id" binding:"required"`
}

// RemoveMember deletes one membership row from the caller's team.
// POST /api/team/remove-member
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	var req RemoveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionError(c, "A member id is required.")
		return
	}

	err := h.membership.RemoveMember(middleware.GetUserID(c), req.MemberID, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoTeam):
			response.ActionError(c, "User is not part of a team")
		case errors.Is(err, services.ErrMemberNotFound):
			response.ActionError(c, "Member not found in your team")
		default:
			response.ActionError(c, "Failed to remove team member. Please try again.")
		}
		return
	}

	response.ActionSuccess(c, "Team member removed successfully")
}

type LinkTeamRequest struct {
	UserID       string `json:"userId" binding:"required"`
	TeamID       uint   `json:"teamId" binding:"required"`
	Role         string `json:"role" binding:"required,oneof=member owner"`
	InvitationID *uint  `json:"invitationId"`
}

// LinkTeam is the internal membership-link endpoint hit when an invite
// redemption completes. Idempotent: replays for an existing membership
// succeed without writing.
// POST /api/internal/link-team
func (h *TeamHandler) LinkTeam(c *gin.Context) {
	var req LinkTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId, teamId and role are required"})
		return
	}

	err := h.invitation.Resolve(req.UserID, req.TeamID, req.Role, req.InvitationID, c.ClientIP())
	if err != nil {
		if errors.Is(err, services.ErrInvalidInvitation) {
			c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link team"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
