package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/muzammelhussain/krishi-link-server/internal/services"
)

// RestUserHandler handles REST requests for user profiles.
type RestUserHandler struct {
	userService services.IUserService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService) *RestUserHandler {
	return &RestUserHandler{userService: userService}
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	PhotoURL string `json:"photoURL"`
}

// CreateUser handles POST /users. Registering an already-known email is not an
// error; the existing profile is acknowledged instead.
func (h *RestUserHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, created, err := h.userService.CreateUser(c.Request.Context(), req.Name, req.Email, req.Phone, req.Address, req.PhotoURL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if !created {
		c.JSON(http.StatusOK, gin.H{"message": "user already exists. Do not need to insert again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"insertedId": user.ID})
}

// GetUserByEmail handles GET /users/:email.
func (h *RestUserHandler) GetUserByEmail(c *gin.Context) {
	user, err := h.userService.FindByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		}
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUserByEmail handles PUT /users/:email and returns the updated profile.
func (h *RestUserHandler) UpdateUserByEmail(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.userService.UpdateByEmail(c.Request.Context(), c.Param("email"), updates)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, services.ErrInvalidUpdate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		}
		return
	}
	c.JSON(http.StatusOK, user)
}
