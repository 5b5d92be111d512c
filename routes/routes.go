package routes

import (
	"call-review-api/controllers"
	"call-review-api/middleware"
	"call-review-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Call Review API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Calls
			calls := protected.Group("/calls")
			{
				calls.GET("", controllers.GetCalls)
				calls.GET("/:id", controllers.GetCall)

				// Call managers own the call lifecycle and the rubric
				calls.POST("", middleware.RequireRole(models.RoleCallManager, models.RoleOrgAdmin), controllers.CreateCall)
				calls.POST("/:id/publish", middleware.RequireRole(models.RoleCallManager, models.RoleOrgAdmin), controllers.PublishCall)
				calls.POST("/:id/close", middleware.RequireRole(models.RoleCallManager, models.RoleOrgAdmin), controllers.CloseCall)
				calls.PUT("/:id/criteria", middleware.RequireRole(models.RoleCallManager, models.RoleOrgAdmin), controllers.SetCriteria)

				// Distribution engine
				calls.POST("/:id/distribute", middleware.RequireRole(models.RoleCallManager, models.RoleOrgAdmin), controllers.AutoDistribute)
				calls.GET("/:id/coverage", middleware.RequireRole(models.RoleCallManager, models.RoleOrgAdmin), controllers.GetCoverage)
			}

			// Proposals
			proposals := protected.Group("/proposals")
			{
				proposals.GET("", controllers.GetMyProposals)
				proposals.GET("/:id", controllers.GetProposal)

				// Only applicants create and submit proposals
				proposals.POST("", middleware.RequireRole(models.RoleApplicant), controllers.CreateProposal)
				proposals.PUT("/:id", middleware.RequireRole(models.RoleApplicant), controllers.UpdateProposal)
				proposals.PUT("/:id/answers", middleware.RequireRole(models.RoleApplicant), controllers.SaveAnswers)
				proposals.POST("/:id/submit", middleware.RequireRole(models.RoleApplicant), controllers.SubmitProposal)
				proposals.POST("/:id/documents", middleware.RequireRole(models.RoleApplicant), controllers.UploadProposalDocument)
				proposals.GET("/:id/documents", controllers.GetProposalDocuments)

				// Manual assignment of an explicit reviewer set
				proposals.POST("/:id/assignments", middleware.RequireRole(models.RoleCallManager, models.RoleOrgAdmin), controllers.AssignReviewers)
			}

			// Reviewer workspace
			assignments := protected.Group("/assignments")
			assignments.Use(middleware.RequireRole(models.RoleReviewer))
			{
				assignments.GET("", controllers.GetMyAssignments)
				assignments.GET("/:id", controllers.GetAssignment)
				assignments.PUT("/:id/review", controllers.SaveReviewDraft)
				assignments.POST("/:id/submit", controllers.SubmitReview)
				assignments.POST("/:id/conflict", controllers.DeclareOwnConflict)
			}

			// Conflict registry (staff)
			conflicts := protected.Group("/conflicts")
			conflicts.Use(middleware.RequireRole(models.RoleCallManager, models.RoleOrgAdmin))
			{
				conflicts.POST("", controllers.RecordConflict)
				conflicts.GET("", controllers.ListConflicts)
			}

			// Audit log (read-only by design)
			protected.GET("/audit", middleware.RequireRole(models.RoleOrgAdmin, models.RolePlatformAdmin), controllers.ListAuditEntries)
		}
	}
}
