package http

import (
	"context"
	"net/http"
	"time"

	"streamcast/internal/core/ports"
	"streamcast/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// RoomsHandler serves the read-only informational surface: the active room
// listing and the static ICE server configuration. No endpoint here carries
// side effects.
type RoomsHandler struct {
	directory  ports.RoomDirectory
	registry   *services.ConnectionRegistry
	iceServers []webrtc.ICEServer
	startTime  time.Time
	logger     *zap.SugaredLogger
}

func NewRoomsHandler(directory ports.RoomDirectory, registry *services.ConnectionRegistry, iceServers []webrtc.ICEServer, logger *zap.SugaredLogger) *RoomsHandler {
	return &RoomsHandler{
		directory:  directory,
		registry:   registry,
		iceServers: iceServers,
		startTime:  time.Now(),
		logger:     logger,
	}
}

func (h *RoomsHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/api/rooms", h.ListRooms)
	router.GET("/api/ice-servers", h.ICEServers)
}

func (h *RoomsHandler) ListRooms(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	rooms, err := h.directory.List(ctx)
	if err != nil {
		h.logger.Errorw("failed to list rooms", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomsHandler) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}

// Health reports liveness along with the current connection count.
func (h *RoomsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"uptime":      time.Since(h.startTime).String(),
		"connections": h.registry.Count(),
	})
}

// Ready reports readiness, checking the room directory backend.
func (h *RoomsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.directory.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
