package album_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openalbum/albumd/album"
	"github.com/openalbum/albumd/media"
	"github.com/openalbum/albumd/metadata"
)

// shared fakes for the album package tests

type docStoreCall struct {
	Filter interface{}
	Update interface{}
	Upsert bool
}

type fakeDocStore struct {
	findDoc   *album.Document
	findErr   error
	insertErr error
	updateRes album.UpdateResult
	updateErr error

	inserted   []interface{}
	updates    []docStoreCall
	deletes    []interface{}
	lastFilter interface{}
	lastProj   interface{}

	buckets []album.Bucket
	authors []album.PublicAuthor
	aggErr  error
	viewErr error
}

func (f *fakeDocStore) FindOne(_ context.Context, filter, projection, out interface{}) error {
	f.lastFilter = filter
	f.lastProj = projection
	if f.findErr != nil {
		return f.findErr
	}
	if f.findDoc == nil {
		return album.ErrNotFound
	}
	*out.(*album.Document) = *f.findDoc
	return nil
}

func (f *fakeDocStore) Aggregate(_ context.Context, pipeline, out interface{}) error {
	f.lastFilter = pipeline
	if f.aggErr != nil {
		return f.aggErr
	}
	*out.(*[]album.Bucket) = f.buckets
	return nil
}

func (f *fakeDocStore) InsertOne(_ context.Context, doc interface{}) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, doc)
	return nil
}

func (f *fakeDocStore) UpdateOne(_ context.Context, filter, update interface{}, upsert bool) (album.UpdateResult, error) {
	f.updates = append(f.updates, docStoreCall{Filter: filter, Update: update, Upsert: upsert})
	if f.updateErr != nil {
		return album.UpdateResult{}, f.updateErr
	}
	return f.updateRes, nil
}

func (f *fakeDocStore) DeleteOne(_ context.Context, filter interface{}) error {
	f.deletes = append(f.deletes, filter)
	return nil
}

func (f *fakeDocStore) FindInView(_ context.Context, view string, filter, out interface{}) error {
	if f.viewErr != nil {
		return f.viewErr
	}
	*out.(*[]album.PublicAuthor) = f.authors
	return nil
}

type streamEntry struct {
	id      string
	payload []byte
}

type fakeStream struct {
	entries   []streamEntry
	nextID    int
	addErr    error
	removeErr error
	recentErr error
}

func (f *fakeStream) Add(_ context.Context, payload []byte) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.nextID++
	id := fmt.Sprintf("%d-0", f.nextID)
	f.entries = append(f.entries, streamEntry{id: id, payload: payload})
	return id, nil
}

func (f *fakeStream) Remove(_ context.Context, entryID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.id != entryID {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

func (f *fakeStream) Recent(_ context.Context, count int64) ([][]byte, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	var out [][]byte
	for i := len(f.entries) - 1; i >= 0 && int64(len(out)) < count; i-- {
		out = append(out, f.entries[i].payload)
	}
	return out, nil
}

type fakeExtractor struct {
	dirRecords  []metadata.Record
	dirErr      error
	fileRecords map[string]metadata.Record
	fileErr     error
	writeErr    error
	written     map[string]map[string]string
}

func (f *fakeExtractor) ExtractDir(_ context.Context, dir string) ([]metadata.Record, error) {
	return f.dirRecords, f.dirErr
}

func (f *fakeExtractor) ExtractFile(_ context.Context, path string) (metadata.Record, error) {
	if f.fileErr != nil {
		return metadata.Record{}, f.fileErr
	}
	name := filepath.Base(path)
	if rec, ok := f.fileRecords[name]; ok {
		return rec, nil
	}
	return metadata.Record{FileName: name}, nil
}

func (f *fakeExtractor) WriteTags(_ context.Context, path string, tags map[string]string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.written == nil {
		f.written = map[string]map[string]string{}
	}
	f.written[filepath.Base(path)] = tags
	return nil
}

type fakeProcessor struct {
	dims        map[string][2]int
	failGeom    string
	writeFiles  bool
	resizeCalls []string
	rotations   map[string]int
}

func (f *fakeProcessor) Dimensions(path string) (int, int, error) {
	if d, ok := f.dims[filepath.Base(path)]; ok {
		return d[0], d[1], nil
	}
	return 800, 600, nil
}

func (f *fakeProcessor) Convert(src, dst string) error {
	if f.writeFiles {
		return os.WriteFile(dst, []byte("converted"), 0644)
	}
	return nil
}

func (f *fakeProcessor) Resize(src, dst string, g media.Geometry) error {
	if f.failGeom != "" && g.String() == f.failGeom {
		return fmt.Errorf("resize to %s failed", g)
	}
	f.resizeCalls = append(f.resizeCalls, filepath.Base(dst))
	if f.writeFiles {
		return os.WriteFile(dst, []byte("variant"), 0644)
	}
	return nil
}

func (f *fakeProcessor) Thumbnail(src, dst string, g media.Geometry) error {
	f.resizeCalls = append(f.resizeCalls, filepath.Base(dst))
	if f.writeFiles {
		return os.WriteFile(dst, []byte("thumb"), 0644)
	}
	return nil
}

func (f *fakeProcessor) Rotate(path string, degrees int) error {
	if f.rotations == nil {
		f.rotations = map[string]int{}
	}
	f.rotations[filepath.Base(path)] += degrees
	return nil
}

func newObjectID(t *testing.T) primitive.ObjectID {
	t.Helper()
	return primitive.NewObjectID()
}

// newTestAlbumDir creates <tmp>/public/albums/<name> with the given files and
// returns (rootDir, albumDir).
func newTestAlbumDir(t *testing.T, name string, files ...string) (string, string) {
	t.Helper()
	tmp := t.TempDir()
	root := filepath.Join(tmp, "public", "albums")
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("img"), 0644))
	}
	return root, dir
}

func TestInit_PopulatesDescriptorsFromDisk(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg")

	// metadata present for three of the five files
	extractor := &fakeExtractor{dirRecords: []metadata.Record{
		{FileName: "a.jpg", Title: "Alpha"},
		{FileName: "c.jpg", Title: "Gamma"},
		{FileName: "e.jpg", Title: "Epsilon"},
	}}

	a := album.New(album.Config{
		RootDir:   root,
		AlbumDir:  dir,
		Name:      "Summer",
		Owner:     "alice",
		Extractor: extractor,
		Processor: &fakeProcessor{},
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{}))

	images := a.Images()
	require.Len(t, images, 5)
	assert.Equal(t, 5, a.NumberOfImages())

	titled := 0
	for _, img := range images {
		if img.Title != "" {
			titled++
		} else {
			// defaults: creator falls back to the album owner
			assert.Equal(t, "alice", img.Creator)
		}
	}
	assert.Equal(t, 3, titled)
}

func TestInit_DerivesURLsFromPublicMarker(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")

	a := album.New(album.Config{
		RootDir: root, AlbumDir: dir, Owner: "alice",
		Extractor: &fakeExtractor{}, Processor: &fakeProcessor{},
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{}))

	assert.Equal(t, "summer", a.URL())
	assert.Equal(t, "albums/summer", a.ImageURL())
	assert.Equal(t, "/albums/summer/a.jpg", a.Images()[0].URL)
}

func TestInit_VariantFailureAbortsPipeline(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")

	// default 800x600 dims classify as landscape, so the small variant is 400x300
	a := album.New(album.Config{
		RootDir: root, AlbumDir: dir, Owner: "alice",
		Extractor: &fakeExtractor{},
		Processor: &fakeProcessor{failGeom: "400x300"},
	})
	err := a.Init(context.Background(), album.InitOptions{})
	require.Error(t, err)

	var pipeErr *album.PipelineError
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, "a.jpg", pipeErr.Image)
	assert.Equal(t, "400x300", pipeErr.Geometry)
	assert.Equal(t, 0, a.NumberOfImages())
}

func TestInit_ExtractedDimensionsDriveOrientation(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")

	// the extractor reports a portrait composite; the processor's own probe
	// would answer landscape, so portrait variants prove the record won
	extractor := &fakeExtractor{dirRecords: []metadata.Record{
		{FileName: "a.jpg", Width: 600, Height: 800},
	}}
	a := album.New(album.Config{
		RootDir: root, AlbumDir: dir, Owner: "alice",
		Extractor: extractor,
		Processor: &fakeProcessor{},
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{}))

	img := a.Images()[0]
	assert.Equal(t, "/albums/summer/a_900x1200.jpg", img.Big)
	assert.Equal(t, "/albums/summer/a_300x400.jpg", img.Sml)
}

func TestInit_VariantNamesDeriveFromOriginal(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "scan.bmp")

	// dimensions are read from the converted intermediate, portrait 600x800
	proc := &fakeProcessor{dims: map[string][2]int{"scan_converted.jpg": {600, 800}}}
	a := album.New(album.Config{
		RootDir: root, AlbumDir: dir, Owner: "alice",
		Extractor: &fakeExtractor{},
		Processor: proc,
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{}))

	require.Equal(t, 1, a.NumberOfImages())
	img := a.Images()[0]
	assert.Equal(t, "/albums/summer/scan_900x1200.jpg", img.Big)
	assert.Equal(t, "/albums/summer/scan_600x800.jpg", img.Med)
	assert.Equal(t, "/albums/summer/scan_300x400.jpg", img.Sml)
	assert.Equal(t, "/albums/summer/scan_thumbnail.bmp", img.Thumbnail)
	for _, fragment := range []string{img.Big, img.Med, img.Sml, img.Thumbnail} {
		assert.NotContains(t, fragment, "_converted")
	}
}

func TestInit_FailsWithoutMarkerOrExplicitURL(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "assets") // no "public" segment anywhere
	dir := filepath.Join(root, "summer")
	require.NoError(t, os.MkdirAll(dir, 0755))

	a := album.New(album.Config{RootDir: root, AlbumDir: dir})
	err := a.Init(context.Background(), album.InitOptions{})
	require.Error(t, err)

	var initErr *album.InitError
	require.ErrorAs(t, err, &initErr)
	var pathErr *album.PathError
	assert.ErrorAs(t, err, &pathErr)
}

func TestInit_ExplicitURLSurvivesMissingMarker(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "assets")
	dir := filepath.Join(root, "summer")
	require.NoError(t, os.MkdirAll(dir, 0755))

	a := album.New(album.Config{
		RootDir: root, AlbumDir: dir,
		URL: "summer", ImageURL: "gallery/summer",
		Extractor: &fakeExtractor{}, Processor: &fakeProcessor{},
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{}))
	assert.Equal(t, "gallery/summer", a.ImageURL())
}

func TestInit_KeepsSuppliedImages(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg", "b.jpg")

	supplied := []album.ImageDescriptor{{Name: "z.jpg", URL: "/albums/summer/z.jpg", Title: "Kept"}}
	a := album.New(album.Config{
		RootDir: root, AlbumDir: dir, Images: supplied,
		Extractor: &fakeExtractor{}, Processor: &fakeProcessor{},
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))

	// the supplied list wins; disk is not re-derived
	require.Len(t, a.Images(), 1)
	assert.Equal(t, "Kept", a.Images()[0].Title)
}

func TestInit_RejectsEscapingAlbumDir(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "public", "albums")
	require.NoError(t, os.MkdirAll(root, 0755))
	outside := filepath.Join(tmp, "elsewhere")

	a := album.New(album.Config{RootDir: root, AlbumDir: outside})
	err := a.Init(context.Background(), album.InitOptions{})
	var pathErr *album.PathError
	require.ErrorAs(t, err, &pathErr)
}

func TestRehydration_RoundTripsDocument(t *testing.T) {
	_, dir := newTestAlbumDir(t, "winter")

	id := newObjectID(t)
	doc := album.Document{
		ID:       id,
		Dir:      dir,
		Slug:     "winter",
		ImageURL: "albums/winter",
		Creator:  "alice",
		Name:     "Winter",
		URL:      "winter",
		Description: "cold one",
		Keywords: []string{"ice", "snow"},
		Public:   true,
		Images: []album.ImageDescriptor{
			{Name: "a.jpg", URL: "/albums/winter/a.jpg", Sml: "/albums/winter/a_400x300.jpg"},
		},
		StreamID:     "5-0",
		PreviewImage: "/albums/winter/a_400x300.jpg",
	}

	a := album.FromDocument(doc, &fakeDocStore{}, &fakeStream{})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))

	assert.Equal(t, doc, a.Document())
}

func TestAddImage_AppendsDescriptorAndSaves(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("img"), 0644))

	store := &fakeDocStore{updateRes: album.UpdateResult{Matched: 1, Modified: 1}}
	extractor := &fakeExtractor{fileRecords: map[string]metadata.Record{
		"b.jpg": {FileName: "b.jpg", Title: "Beta"},
	}}

	a := album.New(album.Config{
		ID:      newObjectID(t).Hex(),
		RootDir: root, AlbumDir: dir, Owner: "alice",
		Images:    []album.ImageDescriptor{{Name: "a.jpg", URL: "/albums/summer/a.jpg"}},
		Docs:      store,
		Extractor: extractor,
		Processor: &fakeProcessor{},
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))

	before := a.NumberOfImages()
	result, err := a.AddImage(context.Background(), "b.jpg", true)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, before+1, a.NumberOfImages())
	assert.Equal(t, "b.jpg", a.Images()[before].Name)
	assert.Equal(t, "Beta", a.Images()[before].Title)
}

func TestAddImage_ExtractionFailureIsFatal(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")

	a := album.New(album.Config{
		RootDir: root, AlbumDir: dir,
		Docs:      &fakeDocStore{},
		Extractor: &fakeExtractor{fileErr: fmt.Errorf("exiftool exploded")},
		Processor: &fakeProcessor{},
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))

	_, err := a.AddImage(context.Background(), "a.jpg", true)
	var pipeErr *album.PipelineError
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, "a.jpg", pipeErr.Image)
}

func TestUpdateImage_ReportsPartialFailures(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")

	store := &fakeDocStore{updateRes: album.UpdateResult{Matched: 1}}
	extractor := &fakeExtractor{writeErr: fmt.Errorf("write-back refused")}

	a := album.New(album.Config{
		ID:      newObjectID(t).Hex(),
		RootDir: root, AlbumDir: dir, Owner: "alice",
		Images:    []album.ImageDescriptor{{Name: "a.jpg"}},
		Docs:      store,
		Extractor: extractor,
		Processor: &fakeProcessor{},
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))

	title := "New Title"
	result, err := a.UpdateImage(context.Background(), album.ImagePatch{Name: "a.jpg", Title: &title}, false)
	require.NoError(t, err)

	// metadata write failed but the save still went through
	assert.Error(t, result.MetadataErr)
	require.NotNil(t, result.Save)
	assert.True(t, result.Save.OK())
	assert.Equal(t, "New Title", a.Images()[0].Title)
}

func TestUpdateImage_RotationTriggersRegeneration(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")

	store := &fakeDocStore{updateRes: album.UpdateResult{Matched: 1}}
	proc := &fakeProcessor{}

	a := album.New(album.Config{
		ID:      newObjectID(t).Hex(),
		RootDir: root, AlbumDir: dir,
		Images:    []album.ImageDescriptor{{Name: "a.jpg"}},
		Docs:      store,
		Extractor: &fakeExtractor{},
		Processor: proc,
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))

	result, err := a.UpdateImage(context.Background(), album.ImagePatch{Name: "a.jpg", Rotate: 90}, false)
	require.NoError(t, err)
	assert.NoError(t, result.ResizeErr)
	assert.Equal(t, 90, proc.rotations["a.jpg"])
	assert.NotEmpty(t, proc.resizeCalls)
}

func TestUpdateImage_UnknownImage(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")

	a := album.New(album.Config{
		RootDir: root, AlbumDir: dir,
		Docs:      &fakeDocStore{},
		Extractor: &fakeExtractor{},
		Processor: &fakeProcessor{},
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))

	_, err := a.UpdateImage(context.Background(), album.ImagePatch{Name: "nope.jpg"}, false)
	assert.ErrorIs(t, err, album.ErrNotFound)
}

func TestDeleteImage_RemovesFilesByPrefix(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer",
		"a.jpg", "a_1200x900.jpg", "a_400x300.jpg", "a_thumbnail.jpg", "b.jpg")

	store := &fakeDocStore{updateRes: album.UpdateResult{Matched: 1, Modified: 1}}
	a := album.New(album.Config{
		ID:      newObjectID(t).Hex(),
		RootDir: root, AlbumDir: dir,
		Images: []album.ImageDescriptor{{Name: "a.jpg"}, {Name: "b.jpg"}},
		Docs:   store,
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))

	require.NoError(t, a.DeleteImage(context.Background(), "a.jpg"))

	assert.Equal(t, 1, a.NumberOfImages())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.jpg", entries[0].Name())
}

func TestDeleteAlbum_AggregatesBestEffortFailures(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")

	store := &fakeDocStore{}
	stream := &fakeStream{removeErr: fmt.Errorf("stream down")}

	a := album.New(album.Config{
		ID:      newObjectID(t).Hex(),
		RootDir: root, AlbumDir: dir,
		StreamID: "3-0",
		Docs:     store,
		Stream:   stream,
	})
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))

	err := a.DeleteAlbum(context.Background())
	require.Error(t, err) // stream removal failed

	// the later steps still ran
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
	assert.Len(t, store.deletes, 1)
}

func TestSetRootDir_RejectedAfterInit(t *testing.T) {
	root, dir := newTestAlbumDir(t, "summer", "a.jpg")

	a := album.New(album.Config{
		RootDir: root, AlbumDir: dir,
		Extractor: &fakeExtractor{}, Processor: &fakeProcessor{},
	})
	require.NoError(t, a.SetRootDir(root))
	require.NoError(t, a.Init(context.Background(), album.InitOptions{SkipMetadata: true, SkipSizes: true}))
	assert.Error(t, a.SetRootDir(filepath.Join(root, "other")))
}

func TestKeywords_BehaveAsSet(t *testing.T) {
	a := album.New(album.Config{Keywords: []string{"sea", "sun", "sea", "  "}})
	assert.Equal(t, []string{"sea", "sun"}, a.Keywords())

	a.AddKeyword("beach")
	a.AddKeyword("beach")
	a.RemoveKeyword("sun")
	assert.Equal(t, []string{"beach", "sea"}, a.Keywords())
}

func TestNew_DerivesSlugFromName(t *testing.T) {
	a := album.New(album.Config{Name: "Été à Paris 2024"})
	assert.Equal(t, "ete-a-paris-2024", a.Slug())
}
