package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/muzammelhussain/krishi-link-server/internal/db"
	"github.com/muzammelhussain/krishi-link-server/internal/models"
)

// IUserService defines the interface for user profile operations.
type IUserService interface {
	CreateUser(ctx context.Context, name, email, phone, address, photoURL string) (*models.User, bool, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateByEmail(ctx context.Context, email string, updates map[string]interface{}) (*models.User, error)
}

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(database *mongo.Database) IUserService {
	return &userService{db: database}
}

// CreateUser inserts a profile unless the email is already registered. The
// second return value reports whether a new document was created; an existing
// profile is returned unchanged. The unique email index makes this a single
// atomic insert rather than a find-then-insert pair.
func (s *userService) CreateUser(ctx context.Context, name, email, phone, address, photoURL string) (*models.User, bool, error) {
	collection := s.db.Collection(db.UsersCollection)
	now := time.Now().UTC()

	user := &models.User{
		Name:      name,
		Email:     email,
		Phone:     phone,
		Address:   address,
		PhotoURL:  photoURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	operation := func() error {
		user.GenIDIfEmpty()
		_, insertErr := collection.InsertOne(ctx, user)
		return insertErr
	}

	err := operation()
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			existing, findErr := s.FindByEmail(ctx, email)
			if findErr != nil {
				return nil, false, fmt.Errorf("user %s exists but could not be loaded: %w", email, findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert user %s: %w", email, err)
	}

	return user, true, nil
}

// FindByEmail fetches a profile. Returns mongo.ErrNoDocuments if absent.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// UpdateByEmail applies profile updates and returns the updated document.
// The email itself and the ID are not updatable.
func (s *userService) UpdateByEmail(ctx context.Context, email string, updates map[string]interface{}) (*models.User, error) {
	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "name", "phone", "address", "photo_url":
			allowedUpdates[key] = value
		default:
			return nil, fmt.Errorf("field '%s' cannot be updated via UpdateByEmail: %w", key, ErrInvalidUpdate)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("no updatable fields provided: %w", ErrInvalidUpdate)
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err := s.db.Collection(db.UsersCollection).FindOneAndUpdate(ctx, bson.M{"email": email}, bson.M{"$set": allowedUpdates}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update user %s: %w", email, err)
	}
	return &updated, nil
}
