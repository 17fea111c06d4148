package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/muzammelhussain/krishi-link-server/internal/api/handlers"
	"github.com/muzammelhussain/krishi-link-server/internal/api/middleware"
	"github.com/muzammelhussain/krishi-link-server/internal/config"
	"github.com/muzammelhussain/krishi-link-server/internal/services"
)

// SetupRouter configures and returns the main Gin engine. The route shapes
// match the public API contract: /users, /products, /interests, /my-interests.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient) *gin.Engine {
	userService := services.NewUserService(db)
	cropService := services.NewCropService(db, cfg, rdb)
	interestService := services.NewInterestService(db, cfg, rdb)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	userHandler := handlers.NewRestUserHandler(userService)
	cropHandler := handlers.NewRestCropHandler(cropService)
	interestHandler := handlers.NewRestInterestHandler(interestService, cropService, taskClient)

	// Public routes
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.POST("/users", userHandler.CreateUser)
	r.GET("/users/:email", userHandler.GetUserByEmail)
	r.PUT("/users/:email", userHandler.UpdateUserByEmail)

	r.GET("/products", cropHandler.SearchCrops)
	r.GET("/products/byOwner/:email", cropHandler.GetCropsByOwner)
	r.GET("/products/:id", cropHandler.GetCropByID)

	// Authenticated routes: token verification supplies the caller email.
	authRequired := r.Group("/")
	authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
	{
		authRequired.POST("/products", cropHandler.CreateCrop)
		authRequired.PUT("/products/:id", cropHandler.UpdateCrop)
		authRequired.DELETE("/products/:id", cropHandler.DeleteCrop)

		authRequired.POST("/interests", interestHandler.SubmitInterest)
		authRequired.GET("/my-interests/:email", interestHandler.MyInterests)
		authRequired.PATCH("/interests/status/:interestId", interestHandler.UpdateInterestStatus)
	}

	return r
}
