package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/muzammelhussain/krishi-link-server/internal/api/middleware"
	"github.com/muzammelhussain/krishi-link-server/internal/models"
	"github.com/muzammelhussain/krishi-link-server/internal/services"
	"github.com/muzammelhussain/krishi-link-server/internal/utils"
)

// RestCropHandler handles REST requests for crop listings.
type RestCropHandler struct {
	cropService services.ICropService
}

// NewRestCropHandler creates a new RestCropHandler.
func NewRestCropHandler(cropService services.ICropService) *RestCropHandler {
	return &RestCropHandler{cropService: cropService}
}

type createCropRequest struct {
	OwnerName string  `json:"ownerName"`
	Name      string  `json:"name" binding:"required"`
	Type      string  `json:"type"`
	Location  string  `json:"location"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	Price     float64 `json:"price"`
	Details   string  `json:"details"`
}

// CreateCrop handles POST /products. The owner email comes from the verified token.
func (h *RestCropHandler) CreateCrop(c *gin.Context) {
	var req createCropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Quantity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity cannot be negative"})
		return
	}

	ownerName := req.OwnerName
	if ownerName == "" {
		ownerName = c.GetString(middleware.ContextKeyUserName)
	}
	owner := models.CropOwner{
		OwnerName:  ownerName,
		OwnerEmail: middleware.CallerEmail(c),
	}

	crop, err := h.cropService.CreateCrop(c.Request.Context(), owner, req.Name, req.Type, req.Location, req.Quantity, req.Unit, req.Price, req.Details)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create crop"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"insertedId": crop.ID})
}

// SearchCrops handles GET /products with optional ?search= term.
func (h *RestCropHandler) SearchCrops(c *gin.Context) {
	crops, err := h.cropService.SearchCrops(c.Request.Context(), c.Query("search"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list crops"})
		return
	}
	c.JSON(http.StatusOK, crops)
}

// GetCropByID handles GET /products/:id.
func (h *RestCropHandler) GetCropByID(c *gin.Context) {
	cropID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid crop ID format"})
		return
	}

	crop, err := h.cropService.FindCropByID(c.Request.Context(), cropID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Crop not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve crop"})
		}
		return
	}

	c.JSON(http.StatusOK, crop)
}

// GetCropsByOwner handles GET /products/byOwner/:email.
func (h *RestCropHandler) GetCropsByOwner(c *gin.Context) {
	crops, err := h.cropService.FindCropsByOwner(c.Request.Context(), c.Param("email"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list crops"})
		return
	}
	c.JSON(http.StatusOK, crops)
}

// UpdateCrop handles PUT /products/:id. Owner-scoped.
func (h *RestCropHandler) UpdateCrop(c *gin.Context) {
	cropID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid crop ID format"})
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	crop, err := h.cropService.UpdateCrop(c.Request.Context(), cropID, middleware.CallerEmail(c), updates)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Crop not found"})
		case errors.Is(err, services.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the crop owner can update it"})
		case errors.Is(err, services.ErrInvalidUpdate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update crop"})
		}
		return
	}

	c.JSON(http.StatusOK, crop)
}

// DeleteCrop handles DELETE /products/:id. Owner-scoped.
func (h *RestCropHandler) DeleteCrop(c *gin.Context) {
	cropID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid crop ID format"})
		return
	}

	err = h.cropService.DeleteCrop(c.Request.Context(), cropID, middleware.CallerEmail(c))
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Crop not found"})
		case errors.Is(err, services.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the crop owner can delete it"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete crop"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
