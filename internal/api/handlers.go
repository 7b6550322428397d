package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"go-jarvis/internal/config"
	"go-jarvis/internal/dialogue"
	"go-jarvis/internal/llm"
	"go-jarvis/internal/memory"
)

// SubmitRequest is the body of POST /submit and of every websocket frame.
type SubmitRequest struct {
	Text      string `json:"text"`
	Image     string `json:"image,omitempty"` // base64
	ImageMIME string `json:"image_mime,omitempty"`
}

func (r SubmitRequest) image() (*llm.Image, error) {
	if r.Image == "" {
		return nil, nil
	}
	raw := r.Image
	mime := r.ImageMIME
	// accept data URLs as sent by browsers
	if strings.HasPrefix(raw, "data:") {
		header, payload, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		if mime == "" {
			mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		raw = payload
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid image encoding: %w", err)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("unsupported image type %q", mime)
	}
	return &llm.Image{MIMEType: mime, Data: data}, nil
}

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		c.JSON(http.StatusOK, gin.H{
			"server": gin.H{
				"host":    cfg.Server.Host,
				"port":    cfg.Server.Port,
				"subpath": cfg.Server.Subpath,
			},
			"assistant": cfg.Assistant,
			"llm": gin.H{
				"provider": cfg.LLM.Provider,
				"model":    cfg.LLM.Model,
			},
			"search": gin.H{
				"provider":    cfg.Search.Provider,
				"strategy":    cfg.Search.Strategy,
				"max_results": cfg.Search.MaxResults,
			},
		})
	}
}

// POST /submit
func SubmitHandler(assistant Assistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		img, err := req.image()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		reply, err := assistant.Submit(c.Request.Context(), req.Text, img)
		if errors.Is(err, dialogue.ErrEmptyUtterance) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text or image is required"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process request"})
			return
		}
		c.JSON(http.StatusOK, reply)
	}
}

// GET /memory?limit=n
func MemoryHandler(assistant Assistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 10
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		exchanges := assistant.Recent(limit)
		if exchanges == nil {
			exchanges = []memory.Exchange{}
		}
		c.JSON(http.StatusOK, gin.H{"exchanges": exchanges})
	}
}

// POST /memory/clear
func ClearMemoryHandler(assistant Assistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		assistant.ClearMemory()
		c.JSON(http.StatusOK, gin.H{"status": "cleared"})
	}
}
