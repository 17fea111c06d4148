package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names used across the service.
const (
	CropsCollection     = "products"
	UsersCollection     = "users"
	InterestsCollection = "interests"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	fmt.Println("Successfully connected to MongoDB!")

	return client, db, nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	fmt.Println("MongoDB connection closed.")
	return nil
}

// EnsureIndexes creates the indexes the service relies on. The unique
// (crop_id, user_email) index is what makes duplicate interest submission a
// single atomic insert rather than a check-then-act sequence.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	interestIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "crop_id", Value: 1}, {Key: "user_email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_crop_user"),
		},
		{
			Keys:    bson.D{{Key: "user_email", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("user_email_created"),
		},
	}
	if _, err := db.Collection(InterestsCollection).Indexes().CreateMany(ctx, interestIndexes); err != nil {
		return fmt.Errorf("failed to create interest indexes: %w", err)
	}

	if _, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	}); err != nil {
		return fmt.Errorf("failed to create user email index: %w", err)
	}

	if _, err := db.Collection(CropsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner.owner_email", Value: 1}},
		Options: options.Index().SetName("owner_email"),
	}); err != nil {
		return fmt.Errorf("failed to create crop owner index: %w", err)
	}

	return nil
}
