package services

import (
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teamforge/backend/pkg/logger"
	"gorm.io/gorm"
)

// MaintenanceService runs the scheduled refresh-token purge. Activity
// logs are append-only and never purged.
type MaintenanceService struct {
	db            *gorm.DB
	authService   *AuthService
	cronScheduler *cron.Cron
}

func NewMaintenanceService(db *gorm.DB, authService *AuthService) *MaintenanceService {
	return &MaintenanceService{db: db, authService: authService}
}

func (s *MaintenanceService) StartScheduler() {
	s.cronScheduler = cron.New()

	// Daily, off-peak.
	if _, err := s.cronScheduler.AddFunc("30 3 * * *", s.purgeRefreshTokens); err != nil {
		logger.Errorf("[Maintenance] Failed to add purge job: %v", err)
		return
	}

	s.cronScheduler.Start()
	logger.Infof("[Maintenance] Scheduler started")
}

func (s *MaintenanceService) StopScheduler() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

func (s *MaintenanceService) purgeRefreshTokens() {
	retention := s.retentionDays()
	removed, err := s.authService.PurgeStaleRefreshTokens(time.Duration(retention) * 24 * time.Hour)
	if err != nil {
		logger.Errorf("[Maintenance] Refresh token purge failed: %v", err)
		return
	}
	if removed > 0 {
		logger.Infof("[Maintenance] Purged %d stale refresh tokens", removed)
	}
}

func (s *MaintenanceService) retentionDays() int {
	value := NewSystemConfigService(s.db).GetWithDefault("auth_refresh_token_retention_days", "30")
	days, err := strconv.Atoi(value)
	if err != nil || days <= 0 {
		return 30
	}
	return days
}
