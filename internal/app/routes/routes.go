package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/selin/pulseform/internal/app/controllers"
	"github.com/selin/pulseform/internal/middleware"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	accessController *controllers.AccessController,
	participantController *controllers.ParticipantController,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public access routes ---
	activities := v1.Group("/activities")
	{
		activities.POST("/:id/access", accessController.RequestAccess)
		activities.POST("/:id/guest-access", accessController.RequestGuestAccess)
	}

	access := v1.Group("/access")
	{
		access.GET("/:token", accessController.ValidateAccess)
	}

	// --- Session-authenticated routes ---
	// The submission flow authenticates with the session token minted on
	// successful validation.
	session := v1.Group("")
	session.Use(authMiddleware.SessionAuth())
	{
		session.POST("/access/tokens/:id/used", accessController.MarkTokenUsed)
		session.GET("/participants/me/memberships", participantController.GetMyMemberships)
	}
}
