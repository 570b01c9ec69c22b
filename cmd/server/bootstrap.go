package main

import (
	"github.com/teamforge/backend/internal/config"
	"github.com/teamforge/backend/internal/handlers"
	"github.com/teamforge/backend/internal/models"
	"github.com/teamforge/backend/internal/services"
	"github.com/teamforge/backend/internal/utils"
	"github.com/teamforge/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	activityService    *services.ActivityService
	maintenanceService *services.MaintenanceService
	authHandler        *handlers.AuthHandler
	accountHandler     *handlers.AccountHandler
	teamHandler        *handlers.TeamHandler
	billingHandler     *handlers.BillingHandler
	healthHandler      *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	db := models.GetDB()

	mailer := services.NewSMTPMailer(db, &cfg.SMTP)
	identityService := services.NewIdentityService(db, mailer)
	activityService := services.NewActivityService(db)
	invitationService := services.NewInvitationService(db, identityService, activityService, cfg.App.BaseURL)
	membershipService := services.NewMembershipService(db, activityService)
	authService := services.NewAuthService(db, identityService, invitationService, activityService, &cfg.JWT)
	billingService := services.NewBillingService(db)

	maintenanceService := services.NewMaintenanceService(db, authService)
	maintenanceService.StartScheduler()

	return &appServices{
		activityService:    activityService,
		maintenanceService: maintenanceService,
		authHandler:        handlers.NewAuthHandler(authService, identityService),
		accountHandler:     handlers.NewAccountHandler(authService),
		teamHandler:        handlers.NewTeamHandler(membershipService, invitationService, activityService),
		billingHandler:     handlers.NewBillingHandler(billingService, cfg.Billing.WebhookSecret),
		healthHandler:      handlers.NewHealthHandler(),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.maintenanceService.StopScheduler()
	s.activityService.Flush()
	logger.Info().Msg("All services stopped")
}
