package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facegate/internal/api/handlers"
	"github.com/your-org/facegate/internal/api/ws"
)

type RouterConfig struct {
	AllowOrigins []string
	Checks       map[string]handlers.Check
	Checker      handlers.FaceChecker
	Enroller     handlers.FaceEnroller
	Contacts     handlers.ContactService
	Clearer      handlers.FaceClearer
	Events       handlers.EventLister
	Hub          *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(LoggingMiddleware())
	r.Use(corsMiddleware(cfg.AllowOrigins))

	// System endpoints
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Face gateway
	faceH := handlers.NewFaceHandler(cfg.Checker, cfg.Enroller, cfg.Contacts, cfg.Clearer)
	f := r.Group("/api/face")
	f.POST("/check", faceH.Check)
	f.POST("/enroll", faceH.Enroll)
	f.POST("/storeUserDetails", faceH.StoreUserDetails)
	f.POST("/attachContact", faceH.StoreUserDetails)
	f.POST("/clear", faceH.Clear)
	f.GET("/ping", faceH.Ping)

	// Read API and event feed
	v1 := r.Group("/v1")
	v1.GET("/faces/:faceId/contacts", faceH.ListContacts)
	if cfg.Events != nil {
		eventH := handlers.NewEventHandler(cfg.Events)
		v1.GET("/events", eventH.List)
	}
	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	return cors.New(cfg)
}
