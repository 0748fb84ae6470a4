package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/openalbum/albumd/album"
)

const mongoConnectTimeout = 5 * time.Second

// NewMongoClient connects to the document store and verifies connectivity
// before returning.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("storage: failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("storage: mongo ping failed: %w", err)
	}
	log.Printf("storage: connected to document store")
	return client, nil
}

// AlbumStore implements album.DocumentStore over a mongo collection. The
// underlying client is borrowed; the store never disconnects it.
type AlbumStore struct {
	db   *mongo.Database
	coll *mongo.Collection
}

func NewAlbumStore(db *mongo.Database, collection string) *AlbumStore {
	return &AlbumStore{db: db, coll: db.Collection(collection)}
}

// FindOne decodes a single matching document into out, honoring an optional
// projection. Missing documents map to album.ErrNotFound.
func (s *AlbumStore) FindOne(ctx context.Context, filter, projection, out interface{}) error {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}
	err := s.coll.FindOne(ctx, filter, opts).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return album.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("storage: findOne failed: %w", err)
	}
	return nil
}

// Aggregate runs a pipeline and decodes all results into out.
func (s *AlbumStore) Aggregate(ctx context.Context, pipeline, out interface{}) error {
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("storage: aggregate failed: %w", err)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("storage: aggregate decode failed: %w", err)
	}
	return nil
}

func (s *AlbumStore) InsertOne(ctx context.Context, doc interface{}) error {
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("storage: insertOne failed: %w", err)
	}
	return nil
}

// UpdateOne applies an update, optionally upserting, and reports the write
// counters so callers can detect silent no-ops.
func (s *AlbumStore) UpdateOne(ctx context.Context, filter, update interface{}, upsert bool) (album.UpdateResult, error) {
	opts := options.Update().SetUpsert(upsert)
	res, err := s.coll.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return album.UpdateResult{}, fmt.Errorf("storage: updateOne failed: %w", err)
	}
	return album.UpdateResult{
		Matched:  res.MatchedCount,
		Modified: res.ModifiedCount,
		Upserted: res.UpsertedCount,
	}, nil
}

func (s *AlbumStore) DeleteOne(ctx context.Context, filter interface{}) error {
	if _, err := s.coll.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("storage: deleteOne failed: %w", err)
	}
	return nil
}

// FindInView reads all matching documents from a precomputed view collection.
func (s *AlbumStore) FindInView(ctx context.Context, view string, filter, out interface{}) error {
	cursor, err := s.db.Collection(view).Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("storage: view %s read failed: %w", view, err)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("storage: view %s decode failed: %w", view, err)
	}
	return nil
}
