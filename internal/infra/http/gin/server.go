package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"gatherly/internal/infra/config"
	"gatherly/internal/infra/obs"
)

type ChatHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	AddParticipants(c *gin.Context)
	RemoveParticipant(c *gin.Context)
	Deactivate(c *gin.Context)
	SendMessage(c *gin.Context)
	ListMessages(c *gin.Context)
	EditMessage(c *gin.Context)
	UpdateStatus(c *gin.Context)
	DeleteMessage(c *gin.Context)
}

type Handlers struct {
	Chat           ChatHTTP
	WS             gin.HandlerFunc
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	if h.WS != nil {
		router.GET("/ws", h.WS)
	}

	api := router.Group("/api/v1")
	if h.AuthMiddleware != nil {
		api.Use(h.AuthMiddleware)
	}
	if h.Chat != nil {
		api.POST("/chats", h.Chat.Create)
		api.GET("/chats", h.Chat.List)
		api.GET("/chats/:id", h.Chat.Get)
		api.POST("/chats/:id/participants", h.Chat.AddParticipants)
		api.DELETE("/chats/:id/participants/:userId", h.Chat.RemoveParticipant)
		api.POST("/chats/:id/deactivate", h.Chat.Deactivate)
		api.POST("/chats/:id/messages", h.Chat.SendMessage)
		api.GET("/chats/:id/messages", h.Chat.ListMessages)
		api.PATCH("/messages/:id", h.Chat.EditMessage)
		api.POST("/messages/:id/status", h.Chat.UpdateStatus)
		api.DELETE("/messages/:id", h.Chat.DeleteMessage)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
