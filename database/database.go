package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social/logging"
)

const (
	postsCollection = "posts"
	usersCollection = "users"
)

// MongoStore is the document store adapter backed by MongoDB. It owns the
// posts and social-users collections.
type MongoStore struct {
	client  *mongo.Client
	posts   *mongo.Collection
	users   *mongo.Collection
	timeout time.Duration
}

// MongoOptions configures Connect.
type MongoOptions struct {
	URI              string
	Database         string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// Connect opens a client, pings the primary and returns the store.
func Connect(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(opts.Database)
	return &MongoStore{
		client:  client,
		posts:   db.Collection(postsCollection),
		users:   db.Collection(usersCollection),
		timeout: opts.OperationTimeout,
	}, nil
}

// ConnectWithRetry calls Connect up to attempts times, waiting delay between
// failures.
func ConnectWithRetry(ctx context.Context, opts MongoOptions, attempts int, delay time.Duration) (*MongoStore, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		store, err := Connect(ctx, opts)
		if err == nil {
			return store, nil
		}
		lastErr = err
		logging.Warn().Err(err).Int("attempt", i).Int("attempts", attempts).Msg("MongoDB connection attempt failed")

		if i == attempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("mongo unreachable after %d attempts: %w", attempts, lastErr)
}

// EnsureIndexes creates the indexes the feed queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	return s.exec(ctx, "ensure_indexes", func(ctx context.Context) error {
		_, err := s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "author_user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
			{Keys: bson.D{{Key: "tags", Value: 1}}},
		})
		return err
	})
}

// Ping checks the connection to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.exec(ctx, "ping", func(ctx context.Context) error {
		return s.client.Ping(ctx, nil)
	})
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return err
	}
	logging.Info().Msg("Disconnected from MongoDB")
	return nil
}
