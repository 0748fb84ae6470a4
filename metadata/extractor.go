package metadata

import "context"

// Record is one structured per-image extraction result: the tag values the
// album pipeline cares about plus any embedded preview payload.
type Record struct {
	FileName    string   `json:"file_name"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Creator     string   `json:"creator,omitempty"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`

	// Thumbnail holds the embedded preview bytes when the source carries one.
	Thumbnail []byte `json:"-"`
}

// Extractor is the metadata collaborator driven by the album pipeline.
// Implementations must return one Record per readable image and tolerate
// files without embedded metadata.
type Extractor interface {
	// ExtractDir extracts records for every image file in dir, in natural
	// name order.
	ExtractDir(ctx context.Context, dir string) ([]Record, error)
	// ExtractFile extracts a record for a single image file.
	ExtractFile(ctx context.Context, path string) (Record, error)
	// WriteTags persists user-edited tag values for a file so later
	// extractions see them.
	WriteTags(ctx context.Context, path string, tags map[string]string) error
}
