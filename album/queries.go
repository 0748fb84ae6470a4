package album

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PublicAlbumsView is the precomputed view collection enumerating owners with
// at least one public album. Its materialization is an external concern.
const PublicAlbumsView = "users_with_public_albums"

const defaultRecentCount = 10

// rehydrate wraps a found document into an initialized Album. Rehydrated
// albums never re-derive files from disk.
func rehydrate(ctx context.Context, doc Document, docs DocumentStore, stream RecencyStream) (*Album, error) {
	a := FromDocument(doc, docs, stream)
	if err := a.Init(ctx, InitOptions{SkipMetadata: true, SkipSizes: true}); err != nil {
		return nil, err
	}
	return a, nil
}

// lookupOne runs a single-document lookup. Not-found and lookup errors are
// both reported as ErrNotFound; callers cannot distinguish them.
func lookupOne(ctx context.Context, docs DocumentStore, stream RecencyStream, filter bson.M) (*Album, error) {
	if docs == nil {
		return nil, errors.New("album: lookup requires a document store")
	}
	var doc Document
	if err := docs.FindOne(ctx, filter, nil, &doc); err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("album: lookup %v failed: %v", filter, err)
		}
		return nil, ErrNotFound
	}
	return rehydrate(ctx, doc, docs, stream)
}

// GetByID fetches one album by its identifier. A malformed id is reported as
// not found.
func GetByID(ctx context.Context, docs DocumentStore, stream RecencyStream, id string) (*Album, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return lookupOne(ctx, docs, stream, bson.M{"_id": oid})
}

// GetByName fetches one album by its display name.
func GetByName(ctx context.Context, docs DocumentStore, stream RecencyStream, name string) (*Album, error) {
	return lookupOne(ctx, docs, stream, bson.M{"name": name})
}

// GetBySlug fetches one album by its slug.
func GetBySlug(ctx context.Context, docs DocumentStore, stream RecencyStream, slug string) (*Album, error) {
	return lookupOne(ctx, docs, stream, bson.M{"slug": slug})
}

// ImageList projects only the image list of one album, additionally filtered
// by owner: a caller cannot read another owner's list through this path.
func ImageList(ctx context.Context, docs DocumentStore, id, owner string) ([]ImageDescriptor, error) {
	if docs == nil {
		return nil, errors.New("album: image list requires a document store")
	}
	if id == "" {
		return nil, errors.New("album: image list requires an album id")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc Document
	filter := bson.M{"_id": oid, "creator": owner}
	projection := bson.M{"images": 1}
	if err := docs.FindOne(ctx, filter, projection, &doc); err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("album: image list lookup for %s failed: %v", id, err)
		}
		return nil, ErrNotFound
	}
	return doc.Images, nil
}

// BucketAlbum is the reduced per-album projection inside a listing bucket.
type BucketAlbum struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Public      bool               `bson:"public" json:"public"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Slug        string             `bson:"slug" json:"slug"`
}

// Bucket groups one owner's albums by visibility. Key is false for the
// private bucket and "public" for the public one (boundary-bucket semantics).
type Bucket struct {
	Key    interface{}   `bson:"_id" json:"key"`
	Count  int           `bson:"count" json:"count"`
	Albums []BucketAlbum `bson:"albums" json:"albums"`
}

// IsPublic reports whether this is the public bucket.
func (b Bucket) IsPublic() bool {
	_, isBoundary := b.Key.(bool)
	return !isBoundary
}

// List aggregates all of one owner's albums into public/private buckets, each
// carrying a count and a reduced projection per album.
func List(ctx context.Context, docs DocumentStore, owner string) ([]Bucket, error) {
	if docs == nil {
		return nil, errors.New("album: list requires a document store")
	}

	pipeline := mongoListPipeline(owner)
	var buckets []Bucket
	if err := docs.Aggregate(ctx, pipeline, &buckets); err != nil {
		return nil, fmt.Errorf("album: list for %q failed: %w", owner, err)
	}
	return buckets, nil
}

// mongoListPipeline buckets an owner's albums on the public field: documents
// with public=false land in the false boundary bucket, the rest in the
// "public" default bucket.
func mongoListPipeline(owner string) []bson.M {
	return []bson.M{
		{"$match": bson.M{"creator": owner}},
		{"$bucket": bson.M{
			"groupBy":    "$public",
			"boundaries": bson.A{false, true},
			"default":    "public",
			"output": bson.M{
				"count": bson.M{"$sum": 1},
				"albums": bson.M{"$push": bson.M{
					"_id":         "$_id",
					"public":      "$public",
					"name":        "$name",
					"description": "$description",
					"slug":        "$slug",
				}},
			},
		}},
	}
}

// RecentlyAdded reads the newest entries from the recency stream, newest
// first. Corrupt payloads are logged and skipped.
func RecentlyAdded(ctx context.Context, stream RecencyStream, count int64) ([]StreamEntry, error) {
	if stream == nil {
		return nil, errors.New("album: recently-added requires a stream")
	}
	if count <= 0 {
		count = defaultRecentCount
	}

	payloads, err := stream.Recent(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("album: recency read failed: %w", err)
	}

	entries := make([]StreamEntry, 0, len(payloads))
	for _, payload := range payloads {
		var entry StreamEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			log.Printf("album: skipping corrupt stream entry: %v", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PublicAuthor is one row of the public-albums view.
type PublicAuthor struct {
	Owner string `bson:"_id" json:"owner"`
	Count int    `bson:"count" json:"count"`
}

// UsersWithPublicAlbums reads the precomputed view of owners holding at least
// one public album.
func UsersWithPublicAlbums(ctx context.Context, docs DocumentStore) ([]PublicAuthor, error) {
	if docs == nil {
		return nil, errors.New("album: author listing requires a document store")
	}
	var authors []PublicAuthor
	if err := docs.FindInView(ctx, PublicAlbumsView, bson.M{}, &authors); err != nil {
		return nil, fmt.Errorf("album: author listing failed: %w", err)
	}
	return authors, nil
}
