package api

import (
	"enrollment-service/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	CORSOrigins []string
}

func NewRouter(svc EnrollmentService, cfg RouterConfig) *gin.Engine {
	r := gin.New()

	// CORS goes before routes so preflight requests never reach a handler.
	r.Use(gin.Recovery(), RequestID(), AccessLog(logger.Component("api")))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	RegisterRoutes(r, NewHandler(svc))
	return r
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	enrollments := r.Group("/enrollments")
	enrollments.POST("", RejectMarkup(), h.Register)
	enrollments.GET("", h.List)
	enrollments.GET("/:id", h.Get)
	enrollments.DELETE("/:id", h.Drop)
}
