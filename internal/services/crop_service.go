package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/muzammelhussain/krishi-link-server/internal/config"
	"github.com/muzammelhussain/krishi-link-server/internal/db"
	"github.com/muzammelhussain/krishi-link-server/internal/models"
	"github.com/muzammelhussain/krishi-link-server/internal/utils"
)

// ICropService defines the interface for crop listing operations.
type ICropService interface {
	CreateCrop(ctx context.Context, owner models.CropOwner, name, cropType, location string, quantity float64, unit string, price float64, details string) (*models.Crop, error)
	FindCropByID(ctx context.Context, cropID utils.SixID) (*models.Crop, error)
	SearchCrops(ctx context.Context, search string) ([]models.Crop, error)
	FindCropsByOwner(ctx context.Context, ownerEmail string) ([]models.Crop, error)
	UpdateCrop(ctx context.Context, cropID utils.SixID, ownerEmail string, updates map[string]interface{}) (*models.Crop, error)
	DeleteCrop(ctx context.Context, cropID utils.SixID, ownerEmail string) error
}

// cropService implements ICropService. The Redis client is optional; when nil,
// search results are simply not cached.
type cropService struct {
	db  *mongo.Database
	cfg *config.Config
	rdb *redis.Client
}

// NewCropService creates a new CropService.
func NewCropService(database *mongo.Database, cfg *config.Config, rdb *redis.Client) ICropService {
	return &cropService{db: database, cfg: cfg, rdb: rdb}
}

const cropSearchGenKey = "crops:search:gen"

// searchCacheKey folds a generation counter into the key so mutations
// invalidate the whole search cache with a single INCR.
func (s *cropService) searchCacheKey(ctx context.Context, search string) string {
	gen, err := s.rdb.Get(ctx, cropSearchGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return ""
	}
	return fmt.Sprintf("crops:search:g%d:%s", gen, search)
}

// bumpCropSearchGen invalidates the whole crop search cache. It is shared with
// the interest workflow, whose accepted transition also mutates a crop.
func bumpCropSearchGen(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		return
	}
	if err := rdb.Incr(ctx, cropSearchGenKey).Err(); err != nil {
		log.Printf("Failed to bump crop search cache generation: %v", err)
	}
}

// CreateCrop inserts a new crop listing.
func (s *cropService) CreateCrop(ctx context.Context, owner models.CropOwner, name, cropType, location string, quantity float64, unit string, price float64, details string) (*models.Crop, error) {
	collection := s.db.Collection(db.CropsCollection)
	now := time.Now().UTC()

	crop := &models.Crop{
		Owner:     owner,
		Name:      name,
		Type:      cropType,
		Location:  location,
		Quantity:  quantity,
		Unit:      unit,
		Price:     price,
		Details:   details,
		CreatedAt: now,
		UpdatedAt: now,
	}

	operation := func() error {
		crop.GenID()
		_, insertErr := collection.InsertOne(ctx, crop)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert crop for owner %s after multiple retries: %w", owner.OwnerEmail, err)
	}

	bumpCropSearchGen(ctx, s.rdb)
	return crop, nil
}

// FindCropByID finds a crop by its ID. Returns mongo.ErrNoDocuments if absent.
func (s *cropService) FindCropByID(ctx context.Context, cropID utils.SixID) (*models.Crop, error) {
	var crop models.Crop
	err := s.db.Collection(db.CropsCollection).FindOne(ctx, bson.M{"_id": cropID}).Decode(&crop)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding crop by ID %s: %w", cropID.String(), err)
	}
	return &crop, nil
}

// SearchCrops lists crops whose name, type or location matches the search term
// case-insensitively. An empty term lists everything. Results are served from
// the Redis read-through cache when available.
func (s *cropService) SearchCrops(ctx context.Context, search string) ([]models.Crop, error) {
	var cacheKey string
	if s.rdb != nil {
		cacheKey = s.searchCacheKey(ctx, search)
		if cacheKey != "" {
			if cached, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
				var crops []models.Crop
				if err := json.Unmarshal(cached, &crops); err == nil {
					return crops, nil
				}
				// Corrupt cache entry; fall through to the database.
				log.Printf("Failed to decode cached crop search for key %s: dropping entry", cacheKey)
				s.rdb.Del(ctx, cacheKey)
			}
		}
	}

	filter := bson.M{}
	if search != "" {
		regex := bson.M{"$regex": search, "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"name": regex},
			bson.M{"type": regex},
			bson.M{"location": regex},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.CropsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search crops: %w", err)
	}
	defer cursor.Close(ctx)

	crops := make([]models.Crop, 0)
	if err = cursor.All(ctx, &crops); err != nil {
		return nil, fmt.Errorf("failed to decode crop search results: %w", err)
	}

	if s.rdb != nil && cacheKey != "" {
		if data, err := json.Marshal(crops); err == nil {
			if err := s.rdb.Set(ctx, cacheKey, data, s.cfg.GetCacheTTL).Err(); err != nil {
				log.Printf("Failed to cache crop search results: %v", err)
			}
		}
	}

	return crops, nil
}

// FindCropsByOwner lists all crops owned by the given email.
func (s *cropService) FindCropsByOwner(ctx context.Context, ownerEmail string) ([]models.Crop, error) {
	filter := bson.M{"owner.owner_email": ownerEmail}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.CropsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query crops for owner %s: %w", ownerEmail, err)
	}
	defer cursor.Close(ctx)

	crops := make([]models.Crop, 0)
	if err = cursor.All(ctx, &crops); err != nil {
		return nil, fmt.Errorf("failed to decode crops for owner %s: %w", ownerEmail, err)
	}
	return crops, nil
}

// UpdateCrop updates descriptive fields of a crop owned by the caller.
// Ownership and interests are not updatable here; quantity adjustments from
// accepted interests go through the interest workflow.
func (s *cropService) UpdateCrop(ctx context.Context, cropID utils.SixID, ownerEmail string, updates map[string]interface{}) (*models.Crop, error) {
	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "quantity":
			q, ok := value.(float64)
			if !ok {
				return nil, fmt.Errorf("quantity must be a number: %w", ErrInvalidUpdate)
			}
			if q < 0 {
				return nil, fmt.Errorf("quantity cannot be negative: %w", ErrInvalidUpdate)
			}
			allowedUpdates[key] = q
		case "name", "type", "location", "unit", "price", "details":
			allowedUpdates[key] = value
		default:
			return nil, fmt.Errorf("field '%s' cannot be updated via UpdateCrop: %w", key, ErrInvalidUpdate)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("no updatable fields provided: %w", ErrInvalidUpdate)
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{"_id": cropID, "owner.owner_email": ownerEmail}
	update := bson.M{"$set": allowedUpdates}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Crop
	err := s.db.Collection(db.CropsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.classifyOwnerMiss(ctx, cropID)
		}
		return nil, fmt.Errorf("failed to update crop %s: %w", cropID.String(), err)
	}

	bumpCropSearchGen(ctx, s.rdb)
	return &updated, nil
}

// DeleteCrop removes a crop owned by the caller.
func (s *cropService) DeleteCrop(ctx context.Context, cropID utils.SixID, ownerEmail string) error {
	filter := bson.M{"_id": cropID, "owner.owner_email": ownerEmail}
	result, err := s.db.Collection(db.CropsCollection).DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete crop %s: %w", cropID.String(), err)
	}
	if result.DeletedCount == 0 {
		return s.classifyOwnerMiss(ctx, cropID)
	}

	bumpCropSearchGen(ctx, s.rdb)
	return nil
}

// classifyOwnerMiss distinguishes a missing crop from an ownership mismatch
// after an owner-scoped write matched nothing.
func (s *cropService) classifyOwnerMiss(ctx context.Context, cropID utils.SixID) error {
	var crop models.Crop
	err := s.db.Collection(db.CropsCollection).FindOne(ctx, bson.M{"_id": cropID}).Decode(&crop)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return mongo.ErrNoDocuments
	}
	if err != nil {
		return fmt.Errorf("error checking crop %s: %w", cropID.String(), err)
	}
	return ErrNotOwner
}
