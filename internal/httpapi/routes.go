package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenplan/chatgate/internal/audit"
	"github.com/lumenplan/chatgate/internal/config"
	"gorm.io/gorm"
)

// Deps holds the collaborators the HTTP surface needs.
type Deps struct {
	DB           *gorm.DB
	JWT          config.JWTConfig
	Sink         audit.Sink
	Backend      ChatBackend
	SecureCookie bool
}

// Register mounts the gated routes on the engine. The gate middleware is
// expected to be installed on the engine already.
func Register(r *gin.Engine, deps Deps) {
	healthHandler := NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	authHandler := NewAuthHandler(deps.DB, deps.JWT, deps.Sink, deps.SecureCookie)
	authGroup := r.Group("/api/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/session", authHandler.Session)

	backend := deps.Backend
	if backend == nil {
		backend = EchoBackend{}
	}
	chatHandler := NewChatHandler(backend, deps.Sink)
	r.POST("/api/chat", chatHandler.Complete)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
