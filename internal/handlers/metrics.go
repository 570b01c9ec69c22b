package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/backend/internal/models"
)

var startTime = time.Now()

// Metrics returns Prometheus-compatible text format metrics.
func Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "teamforge_uptime_seconds", "Time since server start in seconds", float64(time.Since(startTime).Seconds()))
	writeGauge(&b, "teamforge_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "teamforge_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "teamforge_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "teamforge_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	db := models.GetDB()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "teamforge_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "teamforge_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
			writeGauge(&b, "teamforge_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
		}
	}

	// -- Domain metrics --
	if db != nil {
		var users, teams, memberships, pendingInvites, acceptedInvites, activityRows, liveTokens int64
		db.Model(&models.User{}).Count(&users)
		db.Model(&models.Team{}).Count(&teams)
		db.Model(&models.TeamMember{}).Count(&memberships)
		db.Model(&models.Invitation{}).Where("status = ?", models.InvitationPending).Count(&pendingInvites)
		db.Model(&models.Invitation{}).Where("status = ?", models.InvitationAccepted).Count(&acceptedInvites)
		db.Model(&models.ActivityLog{}).Count(&activityRows)
		db.Model(&models.RefreshToken{}).Where("revoked_at IS NULL AND expires_at > ?", time.Now()).Count(&liveTokens)

		writeGauge(&b, "teamforge_users_total", "Number of registered identities", float64(users))
		writeGauge(&b, "teamforge_teams_total", "Number of teams", float64(teams))
		writeGauge(&b, "teamforge_memberships_total", "Number of team memberships", float64(memberships))
		writeGauge(&b, "teamforge_invitations_pending", "Number of pending invitations", float64(pendingInvites))
		writeGauge(&b, "teamforge_invitations_accepted_total", "Number of accepted invitations", float64(acceptedInvites))
		writeGauge(&b, "teamforge_activity_rows_total", "Number of activity log rows", float64(activityRows))
		writeGauge(&b, "teamforge_refresh_tokens_live", "Number of unexpired, unrevoked refresh tokens", float64(liveTokens))
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n", name, value)
}
