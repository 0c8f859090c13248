package http

import (
	"net/http"
	"strings"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
	"vroom/internal/core/services"
	"vroom/internal/infrastructure/middleware"
	"vroom/pkg/errors"
	"vroom/pkg/validation"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	roomService ports.RoomService
	metrics     *services.MetricsService
}

func NewRoomHandler(roomService ports.RoomService, metrics *services.MetricsService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		metrics:     metrics,
	}
}

// SetupRoutes registers the room API. The directory listing is public with
// optional identity; everything else requires a valid token.
func (h *RoomHandler) SetupRoutes(router *gin.Engine, auth, optionalAuth gin.HandlerFunc) {
	router.GET("/api/v1/rooms", optionalAuth, h.ListRooms)

	api := router.Group("/api/v1", auth)
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms/:id", h.GetRoom)
		api.PATCH("/rooms/:id", h.UpdateRoom)
		api.GET("/rooms/:id/members", h.GetMembers)
		api.GET("/rooms/:id/stats", h.GetRoomStats)
	}
}

type CreateRoomRequest struct {
	Name       string `json:"name" binding:"required,min=1,max=200"`
	Capacity   int    `json:"capacity" binding:"min=0,max=1000"`
	Private    bool   `json:"private"`
	AccessCode string `json:"access_code" binding:"max=64"`
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req CreateRoomRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateRoomName(req.Name); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateAccessCode(req.AccessCode); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if req.Private && req.AccessCode == "" {
		c.Error(errors.NewInvalidInputError("private rooms require an access code"))
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, req.Name, req.Capacity, req.Private, req.AccessCode)
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room": room})
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	// Anonymous callers browse the public directory only; private rooms show
	// up once the caller presents a valid token.
	if _, authenticated := middleware.UserFromContext(c); !authenticated {
		visible := make([]*domain.Room, 0, len(rooms))
		for _, room := range rooms {
			if !room.Private {
				visible = append(visible, room)
			}
		}
		rooms = visible
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))

	room, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	roomID := domain.RoomID(c.Param("id"))

	var patch domain.RoomSettingsPatch
	if err := c.BindJSON(&patch); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	if patch.Name != nil {
		if err := validation.ValidateRoomName(*patch.Name); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}
	if patch.AccessCode != nil {
		if err := validation.ValidateAccessCode(*patch.AccessCode); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	room, err := h.roomService.UpdateSettings(c.Request.Context(), roomID, userID, patch)
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *RoomHandler) GetMembers(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))

	members, err := h.roomService.Members(c.Request.Context(), roomID)
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *RoomHandler) GetRoomStats(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))

	// Existence check keeps stats from reporting zeros for unknown rooms.
	if _, err := h.roomService.GetRoom(c.Request.Context(), roomID); err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": h.metrics.GetRoomStats(roomID)})
}
