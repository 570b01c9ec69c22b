package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/backend/internal/models"
)

// HealthHandler reports service and subsystem status.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	var pendingInvites int64
	models.GetDB().Model(&models.Invitation{}).
		Where("status = ?", models.InvitationPending).
		Count(&pendingInvites)

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "teamforge",
		"components": gin.H{
			"database":            dbStatus,
			"pending_invitations": pendingInvites,
		},
	})
}
