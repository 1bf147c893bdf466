package handlers

import (
	"github.com/kpszeniczka/temperature-calibration-system/internal/logger"
	"github.com/kpszeniczka/temperature-calibration-system/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// WebSocket telemetry stream on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerDeviceRoutes(api)
		h.registerCalibrationRoutes(api)
		h.registerSessionRoutes(api)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("/scan", h.scanPorts)
		// Body example: {"furnace_port":"/dev/ttyUSB0","multimeter_port":"/dev/ttyUSB1"}
		devices.POST("/connect", h.connectDevices)
		devices.POST("/disconnect", h.disconnectDevices)
	}
}

func (h *Handler) registerCalibrationRoutes(api *gin.RouterGroup) {
	cal := api.Group("/calibration")
	{
		cal.POST("/configure", h.configureChannels)
		cal.POST("/points", h.setPoints)
		cal.POST("/start", h.startRun)
		cal.POST("/stop", h.stopRun)
		cal.POST("/pause", h.pauseRun)
		cal.POST("/resume", h.resumeRun)
		// Manual furnace setpoint, refused while a run is active
		cal.POST("/setpoint", h.setSetpoint)
		cal.GET("/status", h.getStatus)
		cal.GET("/plot", h.getPlotData)
		cal.GET("/report", h.getReport)
	}
}

func (h *Handler) registerSessionRoutes(api *gin.RouterGroup) {
	sessions := api.Group("/sessions")
	{
		sessions.GET("/", h.listSessions)
		sessions.GET("/:id", h.getSession)
		sessions.GET("/:id/results", h.getSessionResults)
		sessions.GET("/:id/measurements", h.getSessionMeasurements)
		sessions.DELETE("/:id", h.deleteSession)
	}
}
