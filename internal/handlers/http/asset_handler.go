package http

import (
	"net/http"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
	"vroom/internal/infrastructure/middleware"
	"vroom/pkg/errors"
	"vroom/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AssetHandler struct {
	assetService ports.AssetService
}

func NewAssetHandler(assetService ports.AssetService) *AssetHandler {
	return &AssetHandler{assetService: assetService}
}

func (h *AssetHandler) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	api := router.Group("/api/v1/rooms/:id/assets", auth)
	{
		api.POST("", h.AddAsset)
		api.PATCH("/:assetID", h.UpdateAsset)
		api.DELETE("/:assetID", h.RemoveAsset)
	}
}

type AddAssetRequest struct {
	AssetRef        string           `json:"asset_ref" binding:"required,max=512"`
	Transform       domain.Transform `json:"transform"`
	Interactive     bool             `json:"interactive"`
	InteractionType string           `json:"interaction_type" binding:"max=100"`
}

func (h *AssetHandler) AddAsset(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	roomID := domain.RoomID(c.Param("id"))

	var req AddAssetRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	if err := validation.ValidateAssetRef(req.AssetRef); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	asset := &domain.RoomAsset{
		AssetRef:        req.AssetRef,
		Transform:       req.Transform,
		Interactive:     req.Interactive,
		InteractionType: req.InteractionType,
	}

	created, err := h.assetService.AddAsset(c.Request.Context(), roomID, userID, asset)
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"asset": created})
}

func (h *AssetHandler) UpdateAsset(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	roomID := domain.RoomID(c.Param("id"))
	assetID := domain.AssetID(c.Param("assetID"))

	var patch domain.AssetPatch
	if err := c.BindJSON(&patch); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if patch.IsEmpty() {
		c.Error(errors.NewInvalidInputError("patch must change at least one field"))
		return
	}

	asset, err := h.assetService.UpdateAsset(c.Request.Context(), roomID, assetID, userID, patch)
	if err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

func (h *AssetHandler) RemoveAsset(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	roomID := domain.RoomID(c.Param("id"))
	assetID := domain.AssetID(c.Param("assetID"))

	if err := h.assetService.RemoveAsset(c.Request.Context(), roomID, assetID, userID); err != nil {
		c.Error(errors.FromDomain(err))
		return
	}

	c.Status(http.StatusNoContent)
}
