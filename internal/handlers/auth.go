package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/backend/internal/middleware"
	"github.com/teamforge/backend/internal/services"
	"github.com/teamforge/backend/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
	identity    *services.IdentityService
}

func NewAuthHandler(authService *services.AuthService, identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		identity:    identity,
	}
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=100"`
	InviteID *uint  `json:"inviteId"`
}

// SignUp registers a new account. With an inviteId the account joins
// the inviting team; otherwise a fresh team is created around it.
// POST /api/auth/sign-up
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionError(c, "Invalid email or password.")
		return
	}

	echo := response.ActionResult{"email": req.Email}

	result, err := h.authService.SignUp(req.Email, req.Password, req.InviteID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			response.ActionError(c, "Failed to create user. Please try again.", echo)
		case errors.Is(err, services.ErrInvalidInvitation):
			response.ActionError(c, "Invalid or expired invitation.", echo)
		default:
			response.ActionError(c, "Failed to create account. Please try again.", echo)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":              result.User,
		"team":              result.Team,
		"access_token":      result.AccessToken,
		"access_expire_at":  result.AccessExpireAt,
		"refresh_token":     result.RefreshToken,
		"refresh_expire_at": result.RefreshExpireAt,
	})
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=100"`
}

// SignIn authenticates by email and password.
// POST /api/auth/sign-in
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionError(c, "Invalid email or password.")
		return
	}

	result, err := h.authService.SignIn(req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ActionError(c, "Invalid email or password. Please try again.", response.ActionResult{"email": req.Email})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":              result.User,
		"access_token":      result.AccessToken,
		"access_expire_at":  result.AccessExpireAt,
		"refresh_token":     result.RefreshToken,
		"refresh_expire_at": result.RefreshExpireAt,
	})
}

type SignOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignOut revokes the refresh token and records the departure.
// POST /api/auth/sign-out
func (h *AuthHandler) SignOut(c *gin.Context) {
	var req SignOutRequest
	_ = c.ShouldBindJSON(&req)

	userID := middleware.GetUserID(c)
	if err := h.authService.SignOut(userID, req.RefreshToken, c.ClientIP()); err != nil {
		response.ServerError(c, "failed to sign out")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "signed out successfully"})
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a refresh token and issues a new access token.
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refresh token required")
		return
	}

	result, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":      result.AccessToken,
		"access_expire_at":  result.AccessExpireAt,
		"refresh_token":     result.RefreshToken,
		"refresh_expire_at": result.RefreshExpireAt,
	})
}

// GetCurrentUser returns the authenticated identity.
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.identity.GetByID(middleware.GetUserID(c))
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}

	c.JSON(http.StatusOK, user)
}
