package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/muzammelhussain/krishi-link-server/internal/api/middleware"
	"github.com/muzammelhussain/krishi-link-server/internal/models"
	"github.com/muzammelhussain/krishi-link-server/internal/services"
	"github.com/muzammelhussain/krishi-link-server/internal/tasks"
	"github.com/muzammelhussain/krishi-link-server/internal/utils"
)

// IAsynqClient is the slice of the asynq client the handlers need, split out so
// tests can mock task enqueueing.
type IAsynqClient interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RestInterestHandler handles REST requests for the interest workflow.
type RestInterestHandler struct {
	interestService services.IInterestService
	cropService     services.ICropService
	taskClient      IAsynqClient
}

// NewRestInterestHandler creates a new RestInterestHandler. taskClient may be
// nil, in which case notifications are skipped.
func NewRestInterestHandler(interestService services.IInterestService, cropService services.ICropService, taskClient IAsynqClient) *RestInterestHandler {
	return &RestInterestHandler{
		interestService: interestService,
		cropService:     cropService,
		taskClient:      taskClient,
	}
}

type submitInterestRequest struct {
	CropID    utils.SixID `json:"cropId" binding:"required"`
	UserEmail string      `json:"userEmail"`
	UserName  string      `json:"userName"`
	Quantity  float64     `json:"quantity"`
	Message   string      `json:"message"`
}

// SubmitInterest handles POST /interests. The caller identity comes from the
// verified token; a conflicting userEmail in the body is rejected.
func (h *RestInterestHandler) SubmitInterest(c *gin.Context) {
	var req submitInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	callerEmail := middleware.CallerEmail(c)
	if req.UserEmail != "" && req.UserEmail != callerEmail {
		c.JSON(http.StatusForbidden, gin.H{"error": "userEmail does not match authenticated caller"})
		return
	}
	userName := req.UserName
	if userName == "" {
		userName = c.GetString(middleware.ContextKeyUserName)
	}

	// The service's existence check loads the crop; reuse it for the notification.
	interest, crop, err := h.interestService.SubmitInterest(c.Request.Context(), req.CropID, callerEmail, userName, req.Quantity, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateInterest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "You have already sent an interest for this crop"})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Crop not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit interest"})
		}
		return
	}

	h.notifyOwner(crop, interest)

	c.JSON(http.StatusOK, gin.H{"inserted": true})
}

// notifyOwner enqueues the owner notification. Best effort: a broken task queue
// must not fail a successfully recorded interest.
func (h *RestInterestHandler) notifyOwner(crop *models.Crop, interest *models.Interest) {
	if h.taskClient == nil {
		return
	}
	task, err := tasks.NewInterestReceivedTask(tasks.InterestReceivedPayload{
		CropName:   crop.Name,
		OwnerName:  crop.Owner.OwnerName,
		OwnerEmail: crop.Owner.OwnerEmail,
		BuyerName:  interest.UserName,
		BuyerEmail: interest.UserEmail,
		Quantity:   interest.Quantity,
		Message:    interest.Message,
	})
	if err != nil {
		log.Printf("Failed to build owner notification task: %v", err)
		return
	}
	if _, err := h.taskClient.Enqueue(task, asynq.Queue("default")); err != nil {
		log.Printf("Failed to enqueue owner notification: %v", err)
	}
}

// MyInterests handles GET /my-interests/:email.
func (h *RestInterestHandler) MyInterests(c *gin.Context) {
	email := c.Param("email")
	if email != middleware.CallerEmail(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot list another user's interests"})
		return
	}

	results, err := h.interestService.ListInterestsForUser(c.Request.Context(), email)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list interests"})
		return
	}

	c.JSON(http.StatusOK, results)
}

type updateInterestStatusRequest struct {
	Status models.InterestStatus `json:"status" binding:"required"`
}

// UpdateInterestStatus handles PATCH /interests/status/:interestId.
func (h *RestInterestHandler) UpdateInterestStatus(c *gin.Context) {
	interestID, err := utils.ParseSixID(c.Param("interestId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interest ID format"})
		return
	}

	var req updateInterestStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	modified, err := h.interestService.UpdateInterestStatus(ctx, interestID, req.Status, middleware.CallerEmail(c))
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Interest not found"})
		case errors.Is(err, services.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the crop owner can update interest status"})
		case errors.Is(err, services.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "Interest is not pending"})
		case errors.Is(err, services.ErrInsufficientQuantity):
			c.JSON(http.StatusConflict, gin.H{"error": "Crop does not have enough quantity left"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		}
		return
	}

	if modified {
		h.notifyBuyer(ctx, interestID)
	}

	c.JSON(http.StatusOK, gin.H{"modified": modified})
}

// notifyBuyer enqueues the decision notification for the interest's buyer.
// Best effort, same as notifyOwner.
func (h *RestInterestHandler) notifyBuyer(ctx context.Context, interestID utils.SixID) {
	if h.taskClient == nil {
		return
	}
	interest, err := h.interestService.FindInterestByID(ctx, interestID)
	if err != nil {
		log.Printf("Failed to load interest %s for buyer notification: %v", interestID.String(), err)
		return
	}
	crop, err := h.cropService.FindCropByID(ctx, interest.CropID)
	if err != nil {
		log.Printf("Failed to load crop %s for buyer notification: %v", interest.CropID.String(), err)
		return
	}
	task, err := tasks.NewInterestDecidedTask(tasks.InterestDecidedPayload{
		CropName:   crop.Name,
		BuyerName:  interest.UserName,
		BuyerEmail: interest.UserEmail,
		Status:     string(interest.Status),
		Quantity:   interest.Quantity,
	})
	if err != nil {
		log.Printf("Failed to build buyer notification task: %v", err)
		return
	}
	if _, err := h.taskClient.Enqueue(task, asynq.Queue("default")); err != nil {
		log.Printf("Failed to enqueue buyer notification: %v", err)
	}
}
