package album

import (
	"os"

	"github.com/openalbum/albumd/metadata"
)

// Config is the explicit, typed construction input for an Album. Callers
// holding legacy free-form maps normalize them once through NormalizeConfig
// at the boundary.
type Config struct {
	ID       string
	RootDir  string
	AlbumDir string

	// URL fragments; derived from AlbumDir during Init when empty.
	URL      string
	ImageURL string

	Name        string
	Slug        string
	Owner       string
	Description string
	Keywords    []string
	Images      []ImageDescriptor
	Public      bool
	PostID      string
	StreamID    string

	// DBName names the target database for legacy-map callers; the document
	// store handle is already database-scoped, so this is informational.
	DBName string

	// New marks a first-time album whose images must be derived from disk.
	New bool

	// Borrowed collaborators; the album never manages their lifecycle.
	Docs      DocumentStore
	Stream    RecencyStream
	Extractor metadata.Extractor
	Processor ImageProcessor
}

// legacy alias chains, checked in order; first present key wins
var (
	idAliases       = []string{"albumId", "album_id", "id"}
	dirAliases      = []string{"albumDir", "album_dir", "dir", "path"}
	urlAliases      = []string{"albumUrl", "album_url", "url"}
	imageURLAliases = []string{"albumImageUrl", "imageUrl", "image_url"}
	keywordAliases  = []string{"albumKeywords", "keywords"}
	imageAliases    = []string{"albumImages", "images"}
	ownerAliases    = []string{"owner", "creator", "user"}
)

// NormalizeConfig maps a legacy free-form configuration map onto the typed
// Config. Every field falls back through its alias chain, then (for the root
// directory) the ROOT_DIRECTORY environment default, then the zero value.
func NormalizeConfig(raw map[string]interface{}) Config {
	cfg := Config{
		ID:          firstString(raw, idAliases),
		RootDir:     stringValue(raw, "rootDir"),
		AlbumDir:    firstString(raw, dirAliases),
		URL:         firstString(raw, urlAliases),
		ImageURL:    firstString(raw, imageURLAliases),
		Name:        stringValue(raw, "name"),
		Slug:        stringValue(raw, "slug"),
		Owner:       firstString(raw, ownerAliases),
		Description: stringValue(raw, "description"),
		PostID:      stringValue(raw, "postId"),
		StreamID:    stringValue(raw, "streamId"),
		DBName:      stringValue(raw, "dbName"),
	}

	if cfg.RootDir == "" {
		cfg.RootDir = os.Getenv("ROOT_DIRECTORY")
	}
	if v, ok := raw["new"].(bool); ok {
		cfg.New = v
	}
	if v, ok := raw["public"].(bool); ok {
		cfg.Public = v
	}

	for _, key := range keywordAliases {
		if kw, ok := raw[key]; ok {
			cfg.Keywords = toStringSlice(kw)
			break
		}
	}
	for _, key := range imageAliases {
		if imgs, ok := raw[key].([]ImageDescriptor); ok {
			cfg.Images = imgs
			break
		}
	}

	if docs, ok := raw["mongo"].(DocumentStore); ok {
		cfg.Docs = docs
	} else if docs, ok := raw["db"].(DocumentStore); ok {
		cfg.Docs = docs
	} else if docs, ok := raw["collection"].(DocumentStore); ok {
		cfg.Docs = docs
	}
	if stream, ok := raw["redis"].(RecencyStream); ok {
		cfg.Stream = stream
	}
	return cfg
}

func firstString(raw map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v := stringValue(raw, key); v != "" {
			return v
		}
	}
	return ""
}

func stringValue(raw map[string]interface{}, key string) string {
	v, _ := raw[key].(string)
	return v
}

func toStringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
