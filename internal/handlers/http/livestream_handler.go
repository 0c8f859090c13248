package http

import (
	"net/http"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
	"vroom/internal/infrastructure/middleware"
	"vroom/pkg/config"
	"vroom/pkg/errors"

	"github.com/gin-gonic/gin"
)

type LivestreamHandler struct {
	livestreamService ports.LivestreamService
	cfg               *config.Config
}

func NewLivestreamHandler(livestreamService ports.LivestreamService, cfg *config.Config) *LivestreamHandler {
	return &LivestreamHandler{
		livestreamService: livestreamService,
		cfg:               cfg,
	}
}

func (h *LivestreamHandler) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	api := router.Group("/api/v1", auth)
	{
		api.POST("/rooms/:id/livestream", h.StartLivestream)
		api.POST("/livestreams/:id/live", h.GoLive)
		api.POST("/livestreams/:id/end", h.EndLivestream)
		api.GET("/livestreams/:id", h.GetLivestream)
		api.GET("/rtc-config", h.GetRTCConfig)
	}
}

func (h *LivestreamHandler) StartLivestream(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	roomID := domain.RoomID(c.Param("id"))

	session, err := h.livestreamService.Start(c.Request.Context(), roomID, userID)
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"livestream": session})
}

func (h *LivestreamHandler) GoLive(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	streamID := domain.StreamID(c.Param("id"))

	session, err := h.livestreamService.GoLive(c.Request.Context(), streamID, userID)
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"livestream": session})
}

func (h *LivestreamHandler) EndLivestream(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	streamID := domain.StreamID(c.Param("id"))

	if err := h.livestreamService.End(c.Request.Context(), streamID, userID); err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *LivestreamHandler) GetLivestream(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))

	session, err := h.livestreamService.Get(c.Request.Context(), streamID)
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"livestream": session})
}

// GetRTCConfig hands clients the ICE servers to build their peer connections
// with. Media never transits the coordinator.
func (h *LivestreamHandler) GetRTCConfig(c *gin.Context) {
	servers := make([]gin.H, 0, len(h.cfg.WebRTC.ICEServers))
	for _, s := range h.cfg.WebRTC.ICEServers {
		entry := gin.H{"urls": s.URLs}
		if s.Username != "" {
			entry["username"] = s.Username
			entry["credential"] = s.Credential
		}
		servers = append(servers, entry)
	}

	c.JSON(http.StatusOK, gin.H{"ice_servers": servers})
}
