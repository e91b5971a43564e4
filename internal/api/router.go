package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phylony/mar-library/internal/api/handlers"
	"github.com/phylony/mar-library/internal/api/ws"
	"github.com/phylony/mar-library/internal/auth"
	"github.com/phylony/mar-library/internal/queue"
	"github.com/phylony/mar-library/internal/storage"
	"github.com/phylony/mar-library/internal/track"
)

type RouterConfig struct {
	APIKey   string
	Session  *track.Session
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Session)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Surfaces
	surfaceH := handlers.NewSurfaceHandler(cfg.Session, cfg.DB)
	v1.POST("/surfaces", surfaceH.Create)
	v1.GET("/surfaces", surfaceH.List)
	v1.GET("/surfaces/:id", surfaceH.Get)
	v1.DELETE("/surfaces/:id", surfaceH.Release)
	v1.GET("/surfaces/:id/transform", surfaceH.Transform)
	v1.POST("/surfaces/:id/project", surfaceH.Project)

	// Current frame detector output
	frameH := handlers.NewFrameHandler(cfg.Session)
	v1.GET("/frame/keypoints", frameH.Keypoints)
	v1.GET("/frame/regions", frameH.Regions)

	// Events
	eventH := handlers.NewEventHandler(cfg.DB, cfg.MinIO)
	v1.GET("/events", eventH.List)
	v1.GET("/events/:id", eventH.Get)
	v1.GET("/events/:id/frame", eventH.Frame)
	v1.POST("/search/events", eventH.SearchEvents)

	return r
}
