package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/backend/internal/middleware"
	"github.com/teamforge/backend/internal/services"
	"github.com/teamforge/backend/pkg/response"
)

// AccountHandler serves the signed-in user's self-service actions.
// All endpoints follow the form-action result contract: HTTP 200 with
// either an error or a success message in the body.
type AccountHandler struct {
	authService *services.AuthService
}

func NewAccountHandler(authService *services.AuthService) *AccountHandler {
	return &AccountHandler{authService: authService}
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,min=8,max=100"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirm_password" binding:"required,min=8,max=100"`
}

// UpdatePassword replaces the caller's password after verifying the
// current one.
// POST /api/account/password
func (h *AccountHandler) UpdatePassword(c *gin.Context) {
	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionError(c, "Password must be between 8 and 100 characters.")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		response.ActionError(c, "New password and confirmation password do not match.")
		return
	}
	if req.CurrentPassword == req.NewPassword {
		response.ActionError(c, "New password must be different from the current password.")
		return
	}

	err := h.authService.UpdatePassword(middleware.GetUserID(c), req.CurrentPassword, req.NewPassword, c.ClientIP())
	if err != nil {
		if errors.Is(err, services.ErrWrongPassword) {
			response.ActionError(c, "Current password is incorrect.")
			return
		}
		response.ActionError(c, "Failed to update password. Please try again.")
		return
	}

	response.ActionSuccess(c, "Password updated successfully.")
}

type SetInitialPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirm_password" binding:"required,min=8,max=100"`
}

// SetInitialPassword sets credentials on an invited account that has
// none yet.
// POST /api/account/password/initial
func (h *AccountHandler) SetInitialPassword(c *gin.Context) {
	var req SetInitialPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionError(c, "Password must be between 8 and 100 characters.")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		response.ActionError(c, "New password and confirmation password do not match.")
		return
	}

	if err := h.authService.SetInitialPassword(middleware.GetUserID(c), req.NewPassword, c.ClientIP()); err != nil {
		response.ActionError(c, "Failed to set password. Please try again.")
		return
	}

	response.ActionSuccess(c, "Password set successfully.")
}

type UpdateAccountRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Email string `json:"email" binding:"required,email"`
}

// UpdateAccount changes the caller's display name and email.
// POST /api/account
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionError(c, "Name and a valid email are required.")
		return
	}

	echo := response.ActionResult{"name": req.Name, "email": req.Email}

	err := h.authService.UpdateAccount(middleware.GetUserID(c), req.Name, req.Email, c.ClientIP())
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			response.ActionError(c, "That email is already in use.", echo)
			return
		}
		response.ActionError(c, "Failed to update account. Please try again.", echo)
		return
	}

	response.ActionSuccess(c, "Account updated successfully.", echo)
}

type DeleteAccountRequest struct {
	Password string `json:"password" binding:"required,min=8,max=100"`
}

// DeleteAccount removes the caller's membership and identity after a
// password confirmation. Other members of the team are untouched.
// POST /api/account/delete
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	var req DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionError(c, "Password is required.")
		return
	}

	err := h.authService.DeleteAccount(middleware.GetUserID(c), req.Password, c.ClientIP())
	if err != nil {
		if errors.Is(err, services.ErrWrongPassword) {
			response.ActionError(c, "Incorrect password. Account deletion failed.")
			return
		}
		response.ActionError(c, "Failed to delete account. Please try again.")
		return
	}

	response.ActionSuccess(c, "Account deleted successfully.")
}
