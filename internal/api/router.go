package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-jarvis/internal/config"
	"go-jarvis/internal/dialogue"
	"go-jarvis/internal/llm"
	"go-jarvis/internal/memory"
)

// Assistant is the front-end boundary of the conversation engine.
type Assistant interface {
	Submit(ctx context.Context, text string, image *llm.Image) (dialogue.Reply, error)
	ClearMemory()
	Recent(n int) []memory.Exchange
}

func SetupRouter(cfg *config.Config, assistant Assistant, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	subpath := cfg.Server.Subpath // "" or "/jarvis"

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))

		group.POST("/submit", SubmitHandler(assistant))
		group.GET("/memory", MemoryHandler(assistant))
		group.POST("/memory/clear", ClearMemoryHandler(assistant))

		group.GET("/ws", WSHandler(assistant, logger))
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
}
