package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/muzammelhussain/krishi-link-server/internal/config"
	"github.com/muzammelhussain/krishi-link-server/internal/db"
	"github.com/muzammelhussain/krishi-link-server/internal/models"
	"github.com/muzammelhussain/krishi-link-server/internal/utils"
)

func setupTestDBInterest(t *testing.T, dbName string) *mongo.Database {
	database := utils.SetupTestDB(t, dbName, db.InterestsCollection, db.CropsCollection, db.UsersCollection)
	// Duplicate prevention relies on the unique (crop_id, user_email) index.
	err := db.EnsureIndexes(context.Background(), database)
	require.NoError(t, err)
	return database
}

func createTestCrop(t *testing.T, database *mongo.Database, quantity float64) *models.Crop {
	cfg := &config.Config{}
	cropSvc := NewCropService(database, cfg, nil)
	owner := models.CropOwner{OwnerName: "Farm Owner", OwnerEmail: "owner@example.com"}
	crop, err := cropSvc.CreateCrop(context.Background(), owner, "Basmati Rice", "grain", "Dinajpur", quantity, "kg", 52.5, "Aromatic long-grain rice")
	require.NoError(t, err)
	return crop
}

func TestInterestService_SubmitInterest(t *testing.T) {
	database := setupTestDBInterest(t, "testdb_interest_service_submit")
	cfg := &config.Config{}
	svc := NewInterestService(database, cfg, nil)
	ctx := context.Background()

	crop := createTestCrop(t, database, 100)

	interest, loadedCrop, err := svc.SubmitInterest(ctx, crop.ID, "buyer@example.com", "Buyer One", 20, "Need 20kg for my shop")
	assert.NoError(t, err)
	assert.NotNil(t, interest)
	assert.Equal(t, models.InterestStatusPending, interest.Status)
	assert.Equal(t, crop.ID, interest.CropID)
	// The crop loaded by the existence check comes back with the interest.
	require.NotNil(t, loadedCrop)
	assert.Equal(t, crop.Name, loadedCrop.Name)
	assert.Equal(t, "owner@example.com", loadedCrop.Owner.OwnerEmail)

	// Same user, same crop: rejected as a duplicate.
	dup, _, err := svc.SubmitInterest(ctx, crop.ID, "buyer@example.com", "Buyer One", 5, "Changed my mind, 5kg")
	assert.ErrorIs(t, err, ErrDuplicateInterest)
	assert.Nil(t, dup)

	// A different user on the same crop is fine.
	other, _, err := svc.SubmitInterest(ctx, crop.ID, "buyer2@example.com", "Buyer Two", 10, "")
	assert.NoError(t, err)
	assert.NotNil(t, other)

	// Unknown crop
	_, _, err = svc.SubmitInterest(ctx, utils.NewSixID(), "buyer@example.com", "Buyer One", 1, "")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestInterestService_ListInterestsForUser(t *testing.T) {
	database := setupTestDBInterest(t, "testdb_interest_service_list")
	cfg := &config.Config{}
	svc := NewInterestService(database, cfg, nil)
	ctx := context.Background()

	// No interests yet: empty slice, not an error.
	results, err := svc.ListInterestsForUser(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.NotNil(t, results)
	assert.Len(t, results, 0)

	cropA := createTestCrop(t, database, 50)
	cropB := createTestCrop(t, database, 80)

	_, _, err = svc.SubmitInterest(ctx, cropA.ID, "buyer@example.com", "Buyer", 10, "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, _, err = svc.SubmitInterest(ctx, cropB.ID, "buyer@example.com", "Buyer", 15, "second")
	require.NoError(t, err)
	// Someone else's interest must not leak into the list.
	_, _, err = svc.SubmitInterest(ctx, cropA.ID, "other@example.com", "Other", 5, "")
	require.NoError(t, err)

	results, err = svc.ListInterestsForUser(ctx, "buyer@example.com")
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, cropA.ID, results[0].CropID)
	assert.Equal(t, cropB.ID, results[1].CropID)
	assert.Equal(t, "owner@example.com", results[0].OwnerEmail)
	assert.Equal(t, models.InterestStatusPending, results[0].Status)
}

func TestInterestService_AcceptDecrementsQuantity(t *testing.T) {
	database := setupTestDBInterest(t, "testdb_interest_service_accept")
	cfg := &config.Config{}
	svc := NewInterestService(database, cfg, nil)
	cropSvc := NewCropService(database, cfg, nil)
	ctx := context.Background()

	crop := createTestCrop(t, database, 100)
	interest, _, err := svc.SubmitInterest(ctx, crop.ID, "buyer@example.com", "Buyer", 30, "")
	require.NoError(t, err)

	ok, err := svc.UpdateInterestStatus(ctx, interest.ID, models.InterestStatusAccepted, "owner@example.com")
	assert.NoError(t, err)
	assert.True(t, ok)

	updated, err := cropSvc.FindCropByID(ctx, crop.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(70), updated.Quantity)

	moved, err := svc.FindInterestByID(ctx, interest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InterestStatusAccepted, moved.Status)

	// Accepting again must fail and must not decrement a second time.
	ok, err = svc.UpdateInterestStatus(ctx, interest.ID, models.InterestStatusAccepted, "owner@example.com")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, ok)

	again, err := cropSvc.FindCropByID(ctx, crop.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(70), again.Quantity)
}

func TestInterestService_RejectLeavesQuantity(t *testing.T) {
	database := setupTestDBInterest(t, "testdb_interest_service_reject")
	cfg := &config.Config{}
	svc := NewInterestService(database, cfg, nil)
	cropSvc := NewCropService(database, cfg, nil)
	ctx := context.Background()

	crop := createTestCrop(t, database, 100)
	interest, _, err := svc.SubmitInterest(ctx, crop.ID, "buyer@example.com", "Buyer", 30, "")
	require.NoError(t, err)

	ok, err := svc.UpdateInterestStatus(ctx, interest.ID, models.InterestStatusRejected, "owner@example.com")
	assert.NoError(t, err)
	assert.True(t, ok)

	updated, err := cropSvc.FindCropByID(ctx, crop.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), updated.Quantity)

	// Rejected is terminal too: no flipping back to accepted.
	_, err = svc.UpdateInterestStatus(ctx, interest.ID, models.InterestStatusAccepted, "owner@example.com")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInterestService_InsufficientQuantityAbortsBoth(t *testing.T) {
	database := setupTestDBInterest(t, "testdb_interest_service_shortfall")
	cfg := &config.Config{}
	svc := NewInterestService(database, cfg, nil)
	cropSvc := NewCropService(database, cfg, nil)
	ctx := context.Background()

	crop := createTestCrop(t, database, 10)
	interest, _, err := svc.SubmitInterest(ctx, crop.ID, "buyer@example.com", "Buyer", 25, "more than available")
	require.NoError(t, err)

	ok, err := svc.UpdateInterestStatus(ctx, interest.ID, models.InterestStatusAccepted, "owner@example.com")
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
	assert.False(t, ok)

	// The aborted transaction must leave the interest pending and the quantity intact.
	still, err := svc.FindInterestByID(ctx, interest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InterestStatusPending, still.Status)

	untouched, err := cropSvc.FindCropByID(ctx, crop.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(10), untouched.Quantity)

	// Rejecting the oversized interest still works.
	ok, err = svc.UpdateInterestStatus(ctx, interest.ID, models.InterestStatusRejected, "owner@example.com")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestInterestService_UpdateStatusGuards(t *testing.T) {
	database := setupTestDBInterest(t, "testdb_interest_service_guards")
	cfg := &config.Config{}
	svc := NewInterestService(database, cfg, nil)
	ctx := context.Background()

	crop := createTestCrop(t, database, 100)
	interest, _, err := svc.SubmitInterest(ctx, crop.ID, "buyer@example.com", "Buyer", 10, "")
	require.NoError(t, err)

	// Unknown interest
	_, err = svc.UpdateInterestStatus(ctx, utils.NewSixID(), models.InterestStatusAccepted, "owner@example.com")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	// Only the crop owner may decide.
	_, err = svc.UpdateInterestStatus(ctx, interest.ID, models.InterestStatusAccepted, "buyer@example.com")
	assert.ErrorIs(t, err, ErrNotOwner)

	// Pending is not a valid target status.
	_, err = svc.UpdateInterestStatus(ctx, interest.ID, models.InterestStatusPending, "owner@example.com")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInterestService_AcceptInvalidatesSearchCache(t *testing.T) {
	database := setupTestDBInterest(t, "testdb_interest_service_cachegen")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := &config.Config{GetCacheTTL: time.Minute}
	cropSvc := NewCropService(database, cfg, rdb)
	svc := NewInterestService(database, cfg, rdb)
	ctx := context.Background()

	owner := models.CropOwner{OwnerName: "Farm Owner", OwnerEmail: "owner@example.com"}
	crop, err := cropSvc.CreateCrop(ctx, owner, "Basmati Rice", "grain", "Dinajpur", 100, "kg", 52.5, "")
	require.NoError(t, err)

	// Prime the cache with the pre-accept quantity.
	before, err := cropSvc.SearchCrops(ctx, "")
	require.NoError(t, err)
	require.Len(t, before, 1)
	require.Equal(t, float64(100), before[0].Quantity)

	genBefore, err := rdb.Get(ctx, "crops:search:gen").Int64()
	require.NoError(t, err)

	interest, _, err := svc.SubmitInterest(ctx, crop.ID, "buyer@example.com", "Buyer", 30, "")
	require.NoError(t, err)

	ok, err := svc.UpdateInterestStatus(ctx, interest.ID, models.InterestStatusAccepted, "owner@example.com")
	require.NoError(t, err)
	require.True(t, ok)

	// The accepted decrement mutates the crop, so the search generation moves
	// and cached searches stop serving the stale quantity.
	genAfter, err := rdb.Get(ctx, "crops:search:gen").Int64()
	require.NoError(t, err)
	assert.Equal(t, genBefore+1, genAfter)

	after, err := cropSvc.SearchCrops(ctx, "")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, float64(70), after[0].Quantity)
}
