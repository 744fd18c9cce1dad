package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/qr-attendance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AttemptsCollectionName is the collection that stores the journal.
const AttemptsCollectionName = "attempts"

// ConnectMongo connects to MongoDB and pings it.
func ConnectMongo(uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// MongoCollection wraps a MongoDB collection for attempt journal operations.
type MongoCollection struct {
	Collection *mongo.Collection
}

// NewMongoCollection returns the attempts collection of the named database.
func NewMongoCollection(client *mongo.Client, dbName string) *MongoCollection {
	return &MongoCollection{Collection: client.Database(dbName).Collection(AttemptsCollectionName)}
}

// InsertAttempt appends an attempt to the journal.
func (c *MongoCollection) InsertAttempt(ctx context.Context, attempt models.Attempt) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if attempt.ID.IsZero() {
		attempt.ID = primitive.NewObjectID()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	_, err := c.Collection.InsertOne(ctx, attempt)
	return err
}

// RecentAttempts returns the newest attempts first, optionally for one employee.
func (c *MongoCollection) RecentAttempts(ctx context.Context, employeeID string, limit int64) ([]models.Attempt, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	filter := bson.M{}
	if employeeID != "" {
		filter["employee_id"] = employeeID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := c.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	attempts := []models.Attempt{}
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}
