package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/friendix-ai/companion/internal/chat"
	"github.com/friendix-ai/companion/internal/http/api/handlers"
	"github.com/friendix-ai/companion/internal/identity"
)

// Dependencies are the collaborators the REST surface is built from.
type Dependencies struct {
	DB            *gorm.DB
	Identity      *identity.Service
	Chat          *chat.Pipeline
	DefaultAvatar string
}

// RegisterRoutes mounts the public REST surface on the engine.
func RegisterRoutes(engine *gin.Engine, deps Dependencies) {
	engine.Use(CORS(), RequestLog())

	auth := handlers.NewAuthHandler(deps.Identity)
	reset := handlers.NewResetHandler(deps.Identity)
	profile := handlers.NewProfileHandler(deps.DB, deps.Identity, deps.DefaultAvatar)
	chatHandler := handlers.NewChatHandler(deps.DB, deps.Chat)

	engine.POST("/otp/send", auth.SendOTP)
	engine.POST("/otp/verify", auth.VerifyOTP)
	engine.POST("/email/check", auth.CheckEmail)
	engine.POST("/signup", auth.Signup)
	engine.POST("/login", auth.Login)
	engine.POST("/session/check", auth.CheckSession)

	engine.POST("/reset/request", reset.Request)
	engine.POST("/reset/verify", reset.Verify)
	engine.POST("/reset/update-password", reset.UpdatePassword)

	engine.GET("/profile", profile.Get)
	engine.POST("/profile", profile.Update)
	engine.GET("/profile/public", profile.Public)
	engine.GET("/profile/companion", profile.Companion)
	engine.GET("/avatar/:account_id", profile.Avatar)

	engine.POST("/chat/send", chatHandler.Send)
	engine.GET("/chat/history", chatHandler.History)
	engine.POST("/chat/forget", chatHandler.Forget)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
