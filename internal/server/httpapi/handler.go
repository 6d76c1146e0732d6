// Package httpapi is the JSON HTTP transport of the chat server. It keeps
// the route layout of the browser client: session cookie auth, per-user
// messages and image uploads.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/chatkeeper/internal/logging"
	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
	"github.com/dmitrijs2005/chatkeeper/internal/server/services"
	"github.com/dmitrijs2005/chatkeeper/internal/server/storage"
	"github.com/gin-gonic/gin"
)

type Accounts interface {
	Register(ctx context.Context, username, password string) (*models.Account, error)
	Login(ctx context.Context, username, password string) (string, error)
	Authenticate(token string) (string, error)
}

type Messages interface {
	Create(ctx context.Context, owner, body string) (*models.Message, error)
	List(ctx context.Context, owner string, limit int) ([]*models.Message, error)
	Delete(ctx context.Context, id int64, owner string) (int64, error)
}

type Images interface {
	Create(ctx context.Context, owner string, meta models.ImageMeta) (*models.Image, error)
	List(ctx context.Context, owner string, limit int) ([]*models.Image, error)
	Delete(ctx context.Context, id int64, owner string) (services.DeleteResult, error)
}

// HealthFunc reports whether the database is reachable.
type HealthFunc func(ctx context.Context) error

type Options struct {
	SessionValidity time.Duration
	MaxUploadSize   int64
	SecureCookie    bool
}

type Handler struct {
	accounts Accounts
	messages Messages
	images   Images
	files    storage.Storage
	health   HealthFunc
	opts     Options
	logger   logging.Logger
}

func NewHandler(a Accounts, m Messages, i Images, files storage.Storage, health HealthFunc, opts Options, l logging.Logger) *Handler {
	return &Handler{
		accounts: a,
		messages: m,
		images:   i,
		files:    files,
		health:   health,
		opts:     opts,
		logger:   l.With("module", "http"),
	}
}

// Routes builds the gin engine with every route registered.
func (h *Handler) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/health", h.handleHealth)

	r.POST("/register", h.handleRegister)
	r.POST("/login", h.handleLogin)
	r.GET("/logout", h.handleLogout)
	r.POST("/logout", h.handleLogout)

	r.GET("/uploads/:filename", h.handleServeUpload)

	api := r.Group("/api", h.requireLogin)
	api.GET("/messages", h.handleListMessages)
	api.POST("/messages", h.handleCreateMessage)
	api.DELETE("/messages/:id", h.handleDeleteMessage)
	api.GET("/images", h.handleListImages)
	api.DELETE("/images/:id", h.handleDeleteImage)

	r.POST("/upload", h.requireLogin, h.handleUpload)

	return r
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (h *Handler) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.health(ctx); err != nil {
		h.logger.Warn(ctx, "health check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "db-failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
