package album

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openalbum/albumd/metadata"
)

// Album is the aggregate root for one photo gallery: a directory of images,
// their extracted metadata and generated size variants, and the persistence
// protocol that keeps the document store and the recency stream in sync.
//
// The document-store and stream handles are borrowed; the album never opens
// or closes them. The album exclusively owns its image list and keyword set.
type Album struct {
	id       primitive.ObjectID
	rootDir  string
	albumDir string

	url      string
	imageURL string

	name        string
	slug        string
	owner       string
	description string
	keywords    map[string]struct{}
	images      []ImageDescriptor
	public      bool
	postID      string
	streamID    string

	isNew       bool
	initialized bool

	docs      DocumentStore
	stream    RecencyStream
	extractor metadata.Extractor
	processor ImageProcessor
}

// InitOptions controls what Init derives. Rehydrated albums skip both the
// metadata extraction and the size generation.
type InitOptions struct {
	// Dir overrides the configured album directory.
	Dir string
	// SkipMetadata skips the batch metadata extraction.
	SkipMetadata bool
	// SkipSizes skips size-variant generation.
	SkipSizes bool
	// ForceThumbnails regenerates thumbnails even when one already exists.
	ForceThumbnails bool
}

// New builds an Album from a typed Config. No field is required here; Init
// enforces what a given use actually needs.
func New(cfg Config) *Album {
	a := &Album{
		rootDir:     cfg.RootDir,
		albumDir:    cfg.AlbumDir,
		url:         cfg.URL,
		imageURL:    cfg.ImageURL,
		name:        cfg.Name,
		slug:        cfg.Slug,
		owner:       cfg.Owner,
		description: cfg.Description,
		images:      cfg.Images,
		public:      cfg.Public,
		postID:      cfg.PostID,
		streamID:    cfg.StreamID,
		isNew:       cfg.New,
		keywords:    make(map[string]struct{}),
		docs:        cfg.Docs,
		stream:      cfg.Stream,
		extractor:   cfg.Extractor,
		processor:   cfg.Processor,
	}
	for _, kw := range cfg.Keywords {
		a.AddKeyword(kw)
	}
	if cfg.ID != "" {
		id, err := primitive.ObjectIDFromHex(cfg.ID)
		if err != nil {
			log.Printf("album: ignoring malformed album id %q: %v", cfg.ID, err)
		} else {
			a.id = id
		}
	}
	if a.slug == "" && a.name != "" {
		a.slug = Slugify(a.name)
	}
	return a
}

// FromDocument rehydrates an Album from its stored document. The caller
// should Init with SkipMetadata and SkipSizes; files are never re-derived
// from disk for a rehydrated album.
func FromDocument(doc Document, docs DocumentStore, stream RecencyStream) *Album {
	a := New(Config{
		RootDir:     filepath.Dir(doc.Dir),
		AlbumDir:    doc.Dir,
		URL:         doc.URL,
		ImageURL:    doc.ImageURL,
		Name:        doc.Name,
		Slug:        doc.Slug,
		Owner:       doc.Creator,
		Description: doc.Description,
		Keywords:    doc.Keywords,
		Images:      doc.Images,
		Public:      doc.Public,
		PostID:      doc.PostID,
		StreamID:    doc.StreamID,
		Docs:        docs,
		Stream:      stream,
	})
	a.id = doc.ID
	return a
}

// Init resolves the directory layout, derives public URLs, and (unless
// skipped) runs the metadata and size pipeline. Failures abort initialization
// wrapped in InitError; a partially initialized album must not be used.
//
// Init is idempotent with respect to an already-populated image list: images
// supplied at construction (e.g. from a stored document) are kept as-is.
// Init must not be called concurrently on one instance.
func (a *Album) Init(ctx context.Context, opts InitOptions) error {
	if opts.Dir != "" {
		a.albumDir = opts.Dir
	}

	if _, err := EnsureRoot(a.rootDir); err != nil {
		return &InitError{Err: err}
	}

	resolved, err := ResolveAlbumDir(a.rootDir, a.albumDir)
	if err != nil {
		return &InitError{Err: err}
	}
	a.albumDir = resolved

	albumURL, imageURL, err := DeriveURLs(a.albumDir)
	if err != nil {
		// only fatal when nothing was explicitly supplied: without a marker
		// and without a caller-provided URL there is no public-facing path
		if a.url == "" && a.imageURL == "" {
			return &InitError{Err: err}
		}
	} else {
		if a.url == "" {
			a.url = albumURL
		}
		if a.imageURL == "" {
			a.imageURL = imageURL
		}
	}

	if len(a.images) == 0 && !opts.SkipMetadata {
		images, err := a.runPipeline(ctx, opts)
		if err != nil {
			return &InitError{Err: err}
		}
		a.images = images
	}

	a.initialized = true
	return nil
}

// accessors

func (a *Album) ID() string {
	if a.id.IsZero() {
		return ""
	}
	return a.id.Hex()
}

func (a *Album) RootDir() string     { return a.rootDir }
func (a *Album) Dir() string         { return a.albumDir }
func (a *Album) URL() string         { return a.url }
func (a *Album) ImageURL() string    { return a.imageURL }
func (a *Album) Name() string        { return a.name }
func (a *Album) Slug() string        { return a.slug }
func (a *Album) Owner() string       { return a.owner }
func (a *Album) Description() string { return a.description }
func (a *Album) Public() bool        { return a.public }
func (a *Album) PostID() string      { return a.postID }
func (a *Album) StreamID() string    { return a.streamID }

// NumberOfImages is kept in sync with the image list by construction.
func (a *Album) NumberOfImages() int { return len(a.images) }

// Images returns a read projection of the image list.
func (a *Album) Images() []ImageDescriptor {
	out := make([]ImageDescriptor, len(a.images))
	copy(out, a.images)
	return out
}

// Keywords returns the keyword set as a sorted list.
func (a *Album) Keywords() []string {
	out := make([]string, 0, len(a.keywords))
	for kw := range a.keywords {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// mutators

// SetRootDir is the only way to move an album's root, and is rejected once
// the directory layout has been resolved.
func (a *Album) SetRootDir(path string) error {
	if a.initialized {
		return &PathError{Root: a.rootDir, Reason: "cannot change root after initialization"}
	}
	a.rootDir = path
	return nil
}

func (a *Album) SetName(name string) {
	a.name = name
	if a.slug == "" {
		a.slug = Slugify(name)
	}
}

func (a *Album) SetSlug(slug string)        { a.slug = slug }
func (a *Album) SetOwner(owner string)      { a.owner = owner }
func (a *Album) SetDescription(desc string) { a.description = desc }
func (a *Album) SetPublic(public bool)      { a.public = public }
func (a *Album) SetPostID(postID string)    { a.postID = postID }

func (a *Album) AddKeyword(kw string) {
	if kw = strings.TrimSpace(kw); kw != "" {
		a.keywords[kw] = struct{}{}
	}
}

func (a *Album) RemoveKeyword(kw string) {
	delete(a.keywords, strings.TrimSpace(kw))
}

// Document builds the persisted projection of the album.
func (a *Album) Document() Document {
	return Document{
		ID:           a.id,
		Dir:          a.albumDir,
		Slug:         a.slug,
		ImageURL:     a.imageURL,
		Creator:      a.owner,
		Name:         a.name,
		URL:          a.url,
		PreviewImage: a.previewImage(),
		Description:  a.description,
		Keywords:     a.Keywords(),
		Public:       a.public,
		Images:       a.Images(),
		StreamID:     a.streamID,
		PostID:       a.postID,
	}
}

// previewImage is the small variant of the first non-hidden image.
func (a *Album) previewImage() string {
	for _, img := range a.images {
		if img.Hide {
			continue
		}
		if img.Sml != "" {
			return img.Sml
		}
		return img.URL
	}
	return ""
}

// AddImage extracts metadata for one new file in the album directory, appends
// its descriptor, optionally generates size variants for it, and persists the
// whole album.
func (a *Album) AddImage(ctx context.Context, fileName string, skipSizes bool) (*SaveResult, error) {
	if a.extractor == nil {
		return nil, &PipelineError{Image: fileName, Err: errors.New("no metadata extractor configured")}
	}

	rec, err := a.extractor.ExtractFile(ctx, filepath.Join(a.albumDir, fileName))
	if err != nil {
		return nil, &PipelineError{Image: fileName, Err: fmt.Errorf("metadata extraction failed: %w", err)}
	}

	desc := a.descriptorFromRecord(fileName, rec)
	a.writeEmbeddedThumbnail(&desc, rec.Thumbnail)

	if !skipSizes && a.processor != nil {
		if err := a.generateSizes(&desc, false); err != nil {
			return nil, err
		}
	}

	a.images = append(a.images, desc)
	return a.Save(ctx)
}

// ImagePatch is a partial image update; nil pointer fields are left alone.
type ImagePatch struct {
	Name        string
	Title       *string
	Description *string
	Keywords    *[]string
	Hide        *bool
	// Rotate is a signed degree count; non-zero triggers an in-place rotation
	// and variant regeneration.
	Rotate int
}

// UpdateImageResult lists which UpdateImage sub-steps failed. Sub-step
// failures do not prevent the save attempt.
type UpdateImageResult struct {
	MetadataErr error
	ResizeErr   error
	Save        *SaveResult
}

// UpdateImage merges a partial patch into the matching descriptor, writes the
// metadata edits back to the file, optionally rotates and regenerates size
// variants, then persists. Per-sub-step failures are reported in the result
// rather than aborting.
func (a *Album) UpdateImage(ctx context.Context, patch ImagePatch, forceThumbnailRebuild bool) (*UpdateImageResult, error) {
	idx := a.findImage(patch.Name)
	if idx < 0 {
		return nil, fmt.Errorf("album: image %q: %w", patch.Name, ErrNotFound)
	}
	desc := &a.images[idx]
	result := &UpdateImageResult{}

	tags := map[string]string{}
	if patch.Title != nil {
		desc.Title = *patch.Title
		tags["title"] = *patch.Title
	}
	if patch.Description != nil {
		desc.Description = *patch.Description
		tags["description"] = *patch.Description
	}
	if patch.Keywords != nil {
		desc.Keywords = append([]string(nil), (*patch.Keywords)...)
		tags["keywords"] = strings.Join(*patch.Keywords, ", ")
	}
	if patch.Hide != nil {
		desc.Hide = *patch.Hide
	}

	if len(tags) > 0 && a.extractor != nil {
		if err := a.extractor.WriteTags(ctx, filepath.Join(a.albumDir, desc.Name), tags); err != nil {
			log.Printf("album: metadata write-back failed for %s: %v", desc.Name, err)
			result.MetadataErr = err
		}
	}

	if patch.Rotate != 0 && a.processor != nil {
		if err := a.processor.Rotate(filepath.Join(a.albumDir, desc.Name), patch.Rotate); err != nil {
			log.Printf("album: rotation failed for %s: %v", desc.Name, err)
			result.ResizeErr = err
		} else {
			desc.needsResize = true
		}
	}

	if (desc.needsResize || forceThumbnailRebuild) && result.ResizeErr == nil && a.processor != nil {
		if err := a.generateSizes(desc, forceThumbnailRebuild); err != nil {
			log.Printf("album: variant regeneration failed for %s: %v", desc.Name, err)
			result.ResizeErr = err
		}
	}

	saved, err := a.Save(ctx)
	result.Save = saved
	return result, err
}

// DeleteImage removes every on-disk file sharing the image's base name (the
// original plus all generated variants and sidecars), drops the descriptor,
// and persists.
func (a *Album) DeleteImage(ctx context.Context, name string) error {
	idx := a.findImage(name)
	if idx < 0 {
		return fmt.Errorf("album: image %q: %w", name, ErrNotFound)
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	entries, err := os.ReadDir(a.albumDir)
	if err != nil {
		return fmt.Errorf("album: failed to read %s: %w", a.albumDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), base) {
			continue
		}
		target := filepath.Join(a.albumDir, entry.Name())
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("album: failed to remove %s: %w", target, err)
		}
	}

	a.images = append(a.images[:idx], a.images[idx+1:]...)

	result, err := a.Save(ctx)
	if err != nil {
		return err
	}
	if !result.OK() {
		return &PersistenceError{Op: "save after image delete", Err: errors.New("no document matched")}
	}
	return nil
}

// DeleteAlbum removes the stream entry, the album directory tree, and the
// stored document. All three are attempted independently; the returned error
// aggregates whichever steps failed.
func (a *Album) DeleteAlbum(ctx context.Context) error {
	var errs []error

	if a.stream != nil && a.streamID != "" {
		if err := a.stream.Remove(ctx, a.streamID); err != nil {
			log.Printf("album: failed to remove stream entry %s: %v", a.streamID, err)
			errs = append(errs, fmt.Errorf("stream entry: %w", err))
		} else {
			a.streamID = ""
		}
	}

	if a.albumDir != "" {
		if err := os.RemoveAll(a.albumDir); err != nil {
			log.Printf("album: failed to remove directory %s: %v", a.albumDir, err)
			errs = append(errs, fmt.Errorf("directory tree: %w", err))
		}
	}

	if a.docs != nil && !a.id.IsZero() {
		if err := a.docs.DeleteOne(ctx, bson.M{"_id": a.id}); err != nil {
			log.Printf("album: failed to delete document %s: %v", a.id.Hex(), err)
			errs = append(errs, fmt.Errorf("document: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RegenerateSizes re-runs size generation for a single image and persists.
// Used by the background regeneration workers after rotations.
func (a *Album) RegenerateSizes(ctx context.Context, imageName string, forceThumbnail bool) error {
	idx := a.findImage(imageName)
	if idx < 0 {
		return fmt.Errorf("album: image %q: %w", imageName, ErrNotFound)
	}
	if a.processor == nil {
		return &PipelineError{Image: imageName, Err: errors.New("no image processor configured")}
	}
	if err := a.generateSizes(&a.images[idx], forceThumbnail); err != nil {
		return err
	}
	_, err := a.Save(ctx)
	return err
}

// AttachPipeline supplies the metadata and image-processing collaborators to
// a rehydrated album so image mutations can run.
func (a *Album) AttachPipeline(extractor metadata.Extractor, processor ImageProcessor) {
	a.extractor = extractor
	a.processor = processor
}

func (a *Album) findImage(name string) int {
	for i := range a.images {
		if a.images[i].Name == name {
			return i
		}
	}
	return -1
}
