package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/adapters/signal"
	"github.com/dmehra/meetline/internal/app"
	"github.com/dmehra/meetline/internal/config"
	"github.com/dmehra/meetline/internal/domain"
)

// BearerAuthMiddleware rejects connections whose bearer token matches
// neither shared secret, and records which role the token grants. No
// session exists until this has passed.
func BearerAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			log.Warn().Str("module", "adapters.http").Msg("missing bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized client"})
			return
		}

		switch {
		case subtle.ConstantTimeCompare([]byte(token), []byte(cfg.ClientSecret)) == 1:
			c.Set("client_role", string(domain.RoleParticipant))
		case subtle.ConstantTimeCompare([]byte(token), []byte(cfg.RecorderSecret)) == 1:
			c.Set("client_role", string(domain.RoleRecorder))
		default:
			log.Warn().Str("module", "adapters.http").Msg("unrecognized bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized client"})
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	ctrl := signal.NewSignalWSController(orch, cfg.ReadLimit)

	api := r.Group("/api", BearerAuthMiddleware(cfg))

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("role", c.GetString("client_role")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	// Operational read-only views.
	api.GET("/sessions/count", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"participants": orch.Registry.ParticipantCount()})
	})
	api.GET("/recorder", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"connected": orch.Recorder.Connected()})
	})

	return r
}
