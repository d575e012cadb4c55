package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/schoolwatch-hk/schoolwatch/config"
	"github.com/schoolwatch-hk/schoolwatch/models"
)

type MongoClient struct {
	Client *mongo.Client
	DB     *mongo.Database
	cfg    *config.MongoConfig
}

func NewMongoClient(ctx context.Context, cfg *config.MongoConfig) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoClient{
		Client: client,
		DB:     client.Database(cfg.DBName),
		cfg:    cfg,
	}, nil
}

// EnsureIndexes creates the lookup indexes the pipeline depends on. The
// unique announcements index enforces at most one row per (school, URL).
func (m *MongoClient) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.snapshots().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "url", Value: 1}, {Key: "fetched_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create snapshot index: %w", err)
	}

	_, err = m.announcements().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create announcement index: %w", err)
	}
	return nil
}

func (m *MongoClient) InsertSnapshot(ctx context.Context, snap *models.PageSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := m.snapshots().InsertOne(ctx, snap); err != nil {
		return fmt.Errorf("failed to insert page snapshot: %w", err)
	}
	return nil
}

// LatestSnapshotHash returns the content hash of the most recent snapshot
// for the (school, URL) pair, or "" when no prior snapshot exists.
func (m *MongoClient) LatestSnapshotHash(ctx context.Context, schoolID int64, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var snap models.PageSnapshot
	err := m.snapshots().FindOne(ctx,
		bson.M{"school_id": schoolID, "url": url},
		options.FindOne().SetSort(bson.D{{Key: "fetched_at", Value: -1}}),
	).Decode(&snap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return snap.ContentHash, nil
}

func (m *MongoClient) AnnouncementBySchoolAndURL(ctx context.Context, schoolID int64, url string) (*models.Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var a models.Announcement
	err := m.announcements().FindOne(ctx, bson.M{"school_id": schoolID, "url": url}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load announcement: %w", err)
	}
	return &a, nil
}

func (m *MongoClient) AnnouncementByID(ctx context.Context, id primitive.ObjectID) (*models.Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var a models.Announcement
	err := m.announcements().FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load announcement: %w", err)
	}
	return &a, nil
}

// UpsertAnnouncement inserts or replaces the announcement row keyed by
// (school, URL). The caller resolves FirstSeenAt, which never regresses.
func (m *MongoClient) UpsertAnnouncement(ctx context.Context, a *models.Announcement) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := m.announcements().UpdateOne(ctx,
		bson.M{"school_id": a.SchoolID, "url": a.URL},
		bson.M{"$set": bson.M{
			"title":         a.Title,
			"content_text":  a.ContentText,
			"content_hash":  a.ContentHash,
			"first_seen_at": a.FirstSeenAt,
			"last_seen_at":  a.LastSeenAt,
			"change_type":   a.ChangeType,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert announcement: %w", err)
	}
	return nil
}

// TouchAnnouncement refreshes only last-seen metadata, leaving content,
// title and hash untouched.
func (m *MongoClient) TouchAnnouncement(ctx context.Context, id primitive.ObjectID, lastSeenAt time.Time, change models.ChangeType) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := m.announcements().UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"last_seen_at": lastSeenAt,
		"change_type":  change,
	}})
	if err != nil {
		return fmt.Errorf("failed to touch announcement: %w", err)
	}
	return nil
}

func (m *MongoClient) snapshots() *mongo.Collection {
	return m.DB.Collection(m.cfg.SnapshotColl)
}

func (m *MongoClient) announcements() *mongo.Collection {
	return m.DB.Collection(m.cfg.AnnounceColl)
}

func (m *MongoClient) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}
