package album

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openalbum/albumd/media"
)

// ImageDescriptor is the per-image record carried in an album document:
// derived variant paths plus the editable metadata fields.
type ImageDescriptor struct {
	Name        string   `bson:"name" json:"name"`
	URL         string   `bson:"url" json:"url"`
	Big         string   `bson:"big,omitempty" json:"big,omitempty"`
	Med         string   `bson:"med,omitempty" json:"med,omitempty"`
	Sml         string   `bson:"sml,omitempty" json:"sml,omitempty"`
	Thumbnail   string   `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Title       string   `bson:"title,omitempty" json:"title,omitempty"`
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
	Keywords    []string `bson:"keywords,omitempty" json:"keywords,omitempty"`
	Creator     string   `bson:"creator,omitempty" json:"creator,omitempty"`
	Hide        bool     `bson:"hide" json:"hide"`

	// set after rotation; the variants are stale until regenerated
	needsResize bool

	// composite size reported by the metadata extractor; zero when the
	// extraction had no dimensions and the file must be probed instead
	srcWidth, srcHeight int
}

// Document is the persisted album record.
type Document struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Dir          string             `bson:"dir" json:"dir"`
	Slug         string             `bson:"slug" json:"slug"`
	ImageURL     string             `bson:"imageUrl" json:"imageUrl"`
	Creator      string             `bson:"creator" json:"creator"`
	Name         string             `bson:"name" json:"name"`
	URL          string             `bson:"url" json:"url"`
	PreviewImage string             `bson:"previewImage,omitempty" json:"previewImage,omitempty"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Keywords     []string           `bson:"keywords" json:"keywords"`
	Public       bool               `bson:"public" json:"public"`
	Images       []ImageDescriptor  `bson:"images" json:"images"`
	StreamID     string             `bson:"streamId,omitempty" json:"streamId,omitempty"`
	PostID       string             `bson:"post_id,omitempty" json:"post_id,omitempty"`
}

// StreamEntry is the compact recency-feed payload, JSON-encoded into a single
// stream field.
type StreamEntry struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	Access      string `json:"access"`
	Preview     string `json:"preview,omitempty"`
	Description string `json:"description,omitempty"`
}

// UpdateResult carries the write counters the save protocol inspects.
type UpdateResult struct {
	Matched  int64
	Modified int64
	Upserted int64
}

// DocumentStore is the borrowed document-store connection. Implementations
// translate their native not-found condition to ErrNotFound.
type DocumentStore interface {
	FindOne(ctx context.Context, filter, projection, out interface{}) error
	Aggregate(ctx context.Context, pipeline, out interface{}) error
	InsertOne(ctx context.Context, doc interface{}) error
	UpdateOne(ctx context.Context, filter, update interface{}, upsert bool) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}) error
	// FindInView reads from a precomputed view collection maintained outside
	// this package.
	FindInView(ctx context.Context, view string, filter, out interface{}) error
}

// RecencyStream is the borrowed cache-stream connection holding the
// "recently added" feed.
type RecencyStream interface {
	// Add appends a payload and returns the new entry id.
	Add(ctx context.Context, payload []byte) (string, error)
	// Remove deletes an entry by id; removing an absent entry is not an error.
	Remove(ctx context.Context, entryID string) error
	// Recent returns up to count payloads, newest first.
	Recent(ctx context.Context, count int64) ([][]byte, error)
}

// ImageProcessor is the image-manipulation collaborator the pipeline drives.
// media.Processor is the production implementation.
type ImageProcessor interface {
	Dimensions(path string) (int, int, error)
	Convert(src, dst string) error
	Resize(src, dst string, g media.Geometry) error
	Thumbnail(src, dst string, g media.Geometry) error
	Rotate(path string, degrees int) error
}
