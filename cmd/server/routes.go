package main

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/backend/internal/handlers"
	"github.com/teamforge/backend/internal/middleware"
	"github.com/teamforge/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())
	r.Use(middleware.AuditTrail())

	// Rate limiter for the public auth endpoints
	authLimiter := middleware.NewRateLimiter(10, 20)

	// Health check and metrics
	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics)

	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/sign-up", svc.authHandler.SignUp)
			auth.POST("/sign-in", svc.authHandler.SignIn)
			auth.POST("/refresh", svc.authHandler.Refresh)
		}

		// Billing webhook (public with signature verification)
		api.POST("/billing/webhook", svc.billingHandler.HandleWebhook)

		// Internal membership link endpoint. Deployed behind the
		// private network boundary, not the public edge.
		api.POST("/internal/link-team", svc.teamHandler.LinkTeam)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/sign-out", svc.authHandler.SignOut)

			protected.GET("/team", svc.teamHandler.GetTeam)
			protected.GET("/activity", svc.teamHandler.GetActivity)
			protected.POST("/team/invite", svc.teamHandler.InviteMember)
			protected.POST("/team/remove-member", svc.teamHandler.RemoveMember)

			protected.POST("/account", svc.accountHandler.UpdateAccount)
			protected.POST("/account/password", svc.accountHandler.UpdatePassword)
			protected.POST("/account/password/initial", svc.accountHandler.SetInitialPassword)
			protected.POST("/account/delete", svc.accountHandler.DeleteAccount)
		}
	}
}
