package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
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

// ErrDuplicateInterest is returned when a user already has an interest on a crop.
var ErrDuplicateInterest = errors.New("an interest for this crop by this user already exists")

// ErrInvalidTransition is returned when an interest is not currently pending, or
// the requested status is not a terminal one.
var ErrInvalidTransition = errors.New("interest status can only move from pending to a terminal status")

// ErrInsufficientQuantity is returned when accepting an interest would drive the
// crop's available quantity below zero.
var ErrInsufficientQuantity = errors.New("crop has less quantity available than the interest requests")

// ErrNotOwner is returned when the caller is not the owner of the relevant crop.
var ErrNotOwner = errors.New("caller does not own this crop")

// ErrInvalidUpdate is returned when a generic update names a field that is not
// updatable, or carries a value that fails validation.
var ErrInvalidUpdate = errors.New("invalid update")

// IInterestService defines the interface for the interest lifecycle.
type IInterestService interface {
	SubmitInterest(ctx context.Context, cropID utils.SixID, userEmail, userName string, quantity float64, message string) (*models.Interest, *models.Crop, error)
	ListInterestsForUser(ctx context.Context, userEmail string) ([]models.MyInterest, error)
	UpdateInterestStatus(ctx context.Context, interestID utils.SixID, newStatus models.InterestStatus, callerEmail string) (bool, error)
	FindInterestByID(ctx context.Context, interestID utils.SixID) (*models.Interest, error)
}

// interestService implements IInterestService. The Redis client is optional;
// when nil, accepted transitions do not touch the search cache.
type interestService struct {
	db  *mongo.Database
	cfg *config.Config
	rdb *redis.Client
}

// NewInterestService creates a new InterestService.
func NewInterestService(database *mongo.Database, cfg *config.Config, rdb *redis.Client) IInterestService {
	return &interestService{db: database, cfg: cfg, rdb: rdb}
}

// isCropUserDuplicate reports whether err is a duplicate key error on the
// (crop_id, user_email) unique index, as opposed to an _id collision.
func isCropUserDuplicate(err error) bool {
	if !db.IsMongoDuplicateKeyError(err) {
		return false
	}
	return strings.Contains(err.Error(), "uniq_crop_user")
}

// SubmitInterest records a new pending interest against a crop. Duplicate
// prevention rides on the unique (crop_id, user_email) index, so creation is a
// single insert with no check-then-act window. The crop the existence check
// loaded is returned alongside so callers don't have to fetch it again.
func (s *interestService) SubmitInterest(ctx context.Context, cropID utils.SixID, userEmail, userName string, quantity float64, message string) (*models.Interest, *models.Crop, error) {
	cropColl := s.db.Collection(db.CropsCollection)
	var crop models.Crop
	if err := cropColl.FindOne(ctx, bson.M{"_id": cropID}).Decode(&crop); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, mongo.ErrNoDocuments
		}
		return nil, nil, fmt.Errorf("error finding crop %s: %w", cropID.String(), err)
	}

	now := time.Now().UTC()
	interest := &models.Interest{
		CropID:    cropID,
		UserEmail: userEmail,
		UserName:  userName,
		Quantity:  quantity,
		Message:   message,
		Status:    models.InterestStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	coll := s.db.Collection(db.InterestsCollection)
	operation := func() error {
		interest.GenID()
		_, insertErr := coll.InsertOne(ctx, interest)
		return insertErr
	}

	// Retry only _id collisions; a (crop_id, user_email) duplicate is a real
	// duplicate submission and must surface immediately.
	err := db.WithRetries(operation, db.DefaultMaxRetries, func(err error) bool {
		return db.IsMongoDuplicateKeyError(err) && !isCropUserDuplicate(err)
	})
	if err != nil {
		if isCropUserDuplicate(err) {
			return nil, nil, ErrDuplicateInterest
		}
		return nil, nil, fmt.Errorf("failed to insert interest for crop %s by %s: %w", cropID.String(), userEmail, err)
	}

	return interest, &crop, nil
}

// ListInterestsForUser returns the caller's interests joined with crop details,
// oldest first. No matches yields an empty slice, not an error.
func (s *interestService) ListInterestsForUser(ctx context.Context, userEmail string) ([]models.MyInterest, error) {
	coll := s.db.Collection(db.InterestsCollection)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{"user_email": userEmail}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query interests for %s: %w", userEmail, err)
	}
	defer cursor.Close(ctx)

	var interests []models.Interest
	if err = cursor.All(ctx, &interests); err != nil {
		return nil, fmt.Errorf("failed to decode interests for %s: %w", userEmail, err)
	}

	cropColl := s.db.Collection(db.CropsCollection)
	results := make([]models.MyInterest, 0, len(interests))
	for _, interest := range interests {
		var crop models.Crop
		err := cropColl.FindOne(ctx, bson.M{"_id": interest.CropID}).Decode(&crop)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				// Crop deleted after the interest was recorded; skip the orphan.
				log.Printf("Interest %s references missing crop %s, skipping", interest.ID.String(), interest.CropID.String())
				continue
			}
			return nil, fmt.Errorf("failed to load crop %s: %w", interest.CropID.String(), err)
		}
		results = append(results, models.MyInterest{
			ID:         interest.ID,
			CropID:     crop.ID,
			CropName:   crop.Name,
			OwnerName:  crop.Owner.OwnerName,
			OwnerEmail: crop.Owner.OwnerEmail,
			Quantity:   interest.Quantity,
			Message:    interest.Message,
			Status:     interest.Status,
		})
	}
	return results, nil
}

// FindInterestByID fetches a single interest. Returns mongo.ErrNoDocuments if absent.
func (s *interestService) FindInterestByID(ctx context.Context, interestID utils.SixID) (*models.Interest, error) {
	var interest models.Interest
	err := s.db.Collection(db.InterestsCollection).FindOne(ctx, bson.M{"_id": interestID}).Decode(&interest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding interest %s: %w", interestID.String(), err)
	}
	return &interest, nil
}

// UpdateInterestStatus moves a pending interest to a terminal status. Accepting
// also decrements the crop's quantity by the interest's quantity; the status
// write and the decrement run in one transaction so neither lands without the
// other, and a quantity shortfall aborts both. Only the crop owner may call it.
func (s *interestService) UpdateInterestStatus(ctx context.Context, interestID utils.SixID, newStatus models.InterestStatus, callerEmail string) (bool, error) {
	if !newStatus.IsTerminal() {
		return false, ErrInvalidTransition
	}

	interest, err := s.FindInterestByID(ctx, interestID)
	if err != nil {
		return false, err
	}

	cropColl := s.db.Collection(db.CropsCollection)
	var crop models.Crop
	if err := cropColl.FindOne(ctx, bson.M{"_id": interest.CropID}).Decode(&crop); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Interest outlived its crop; treat the whole lookup as not found.
			return false, mongo.ErrNoDocuments
		}
		return false, fmt.Errorf("error finding crop %s for interest %s: %w", interest.CropID.String(), interestID.String(), err)
	}
	if crop.Owner.OwnerEmail != callerEmail {
		return false, ErrNotOwner
	}

	session, err := s.db.Client().StartSession()
	if err != nil {
		return false, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	now := time.Now().UTC()
	interestColl := s.db.Collection(db.InterestsCollection)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// Guarded transition: only a currently-pending interest moves. This is
		// what makes re-acceptance (and its double decrement) impossible.
		filter := bson.M{"_id": interestID, "status": models.InterestStatusPending}
		update := bson.M{"$set": bson.M{"status": newStatus, "updated_at": now}}
		res := interestColl.FindOneAndUpdate(sc, filter, update)
		if res.Err() != nil {
			if errors.Is(res.Err(), mongo.ErrNoDocuments) {
				// The interest exists (checked above), so it is already terminal.
				return nil, ErrInvalidTransition
			}
			return nil, fmt.Errorf("failed to update interest %s: %w", interestID.String(), res.Err())
		}

		if newStatus == models.InterestStatusAccepted {
			cropFilter := bson.M{
				"_id":      interest.CropID,
				"quantity": bson.M{"$gte": interest.Quantity},
			}
			cropUpdate := bson.M{
				"$inc": bson.M{"quantity": -interest.Quantity},
				"$set": bson.M{"updated_at": now},
			}
			result, err := cropColl.UpdateOne(sc, cropFilter, cropUpdate)
			if err != nil {
				return nil, fmt.Errorf("failed to decrement quantity on crop %s: %w", interest.CropID.String(), err)
			}
			if result.MatchedCount == 0 {
				// Not enough quantity left (or crop vanished); abort so the
				// status write above rolls back too.
				return nil, ErrInsufficientQuantity
			}
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrInsufficientQuantity) {
			return false, err
		}
		return false, fmt.Errorf("interest status transaction failed: %w", err)
	}

	if newStatus == models.InterestStatusAccepted {
		// The committed decrement is a crop mutation; cached searches must not
		// keep serving the pre-accept quantity.
		bumpCropSearchGen(ctx, s.rdb)
	}
	return true, nil
}
