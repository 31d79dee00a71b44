package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	RoomsCollection = "rooms"

	DefaultMongoDatabase     = "roomDB"
	DefaultConnectionTimeout = 20 * time.Second
)

type MongoConfig struct {
	URI               string
	Database          string
	ConnectionTimeout time.Duration
}

// roomDocument is the persisted shape. ExpiresAt is nil for rooms that never expire.
type roomDocument struct {
	RoomID             string     `bson:"roomId"`
	PasswordHash       []byte     `bson:"passwordHash,omitempty"`
	CreatedAt          time.Time  `bson:"createdAt"`
	LifetimeSeconds    int64      `bson:"lifetimeSeconds"`
	ExpiresAt          *time.Time `bson:"expiresAt"`
	Layout             string     `bson:"layout"`
	UpvoteEnabled      bool       `bson:"upvoteEnabled"`
	RateLimit          int        `bson:"rateLimit"`
	MaxMessageDuration int        `bson:"maxMessageDuration"`
}

func toDocument(r *domain.Room) roomDocument {
	doc := roomDocument{
		RoomID:             string(r.ID),
		PasswordHash:       r.PasswordHash,
		CreatedAt:          r.CreatedAt.UTC(),
		LifetimeSeconds:    r.LifetimeSeconds,
		Layout:             r.Layout,
		UpvoteEnabled:      r.UpvoteEnabled,
		RateLimit:          r.RateLimit,
		MaxMessageDuration: r.MaxMessageDuration,
	}
	if at, ok := r.ExpiresAt(); ok {
		at = at.UTC()
		doc.ExpiresAt = &at
	}
	return doc
}

func (d roomDocument) toRoom() *domain.Room {
	r := &domain.Room{
		ID:                 domain.RoomID(d.RoomID),
		CreatedAt:          time.UnixMilli(d.CreatedAt.UnixMilli()),
		LifetimeSeconds:    d.LifetimeSeconds,
		Layout:             d.Layout,
		UpvoteEnabled:      d.UpvoteEnabled,
		RateLimit:          d.RateLimit,
		MaxMessageDuration: d.MaxMessageDuration,
	}
	if len(d.PasswordHash) > 0 {
		r.PasswordHash = d.PasswordHash
	}
	return r
}

// MongoStore relies on a unique index over roomId for the unique-insert guarantee.
type MongoStore struct {
	client *mongo.Client
	rooms  *mongo.Collection
}

func NewMongoStore(ctx context.Context, cfg *MongoConfig) (*MongoStore, error) {
	if cfg == nil || cfg.URI == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectionTimeout).
		SetConnectTimeout(cfg.ConnectionTimeout)

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	rooms := client.Database(cfg.Database).Collection(RoomsCollection)
	_, err = rooms.Indexes().CreateMany(connectCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "roomId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create room indexes: %w", err)
	}

	log.Info().Str("module", "storage.mongo").Str("database", cfg.Database).Msg("connected")
	return &MongoStore{client: client, rooms: rooms}, nil
}

func expiredFilter(now time.Time) bson.M {
	return bson.M{"expiresAt": bson.M{"$ne": nil, "$lte": now.UTC()}}
}

func (s *MongoStore) Insert(ctx context.Context, room *domain.Room) error {
	filter := expiredFilter(room.CreatedAt)
	filter["roomId"] = string(room.ID)
	if _, err := s.rooms.DeleteOne(ctx, filter); err != nil {
		return err
	}
	if _, err := s.rooms.InsertOne(ctx, toDocument(room)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateRoom
		}
		return err
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var doc roomDocument
	err := s.rooms.FindOne(ctx, bson.M{"roomId": string(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return doc.toRoom(), nil
}

func (s *MongoStore) Delete(ctx context.Context, id domain.RoomID) error {
	res, err := s.rooms.DeleteOne(ctx, bson.M{"roomId": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *MongoStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.rooms.DeleteMany(ctx, expiredFilter(now))
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.client.Disconnect(disconnectCtx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}
