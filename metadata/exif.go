package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/openalbum/albumd/media"
)

const sidecarSuffix = ".meta.json"

// ExifExtractor implements Extractor on top of goexif. EXIF tags are
// read-only, so user edits are persisted in a JSON sidecar next to the image
// and overlaid on top of the embedded values during extraction.
type ExifExtractor struct{}

func NewExifExtractor() *ExifExtractor {
	return &ExifExtractor{}
}

// ExtractDir extracts one record per image file in dir. Unreadable files are
// logged and skipped; the caller falls back to defaults for missing records.
func (e *ExifExtractor) ExtractDir(ctx context.Context, dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// generated variants and thumbnails are not album sources
		if !media.IsRasterImage(entry.Name()) || media.IsGeneratedName(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	natsort.Sort(names)

	records := make([]Record, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := e.ExtractFile(ctx, filepath.Join(dir, name))
		if err != nil {
			log.Printf("metadata: failed to extract %s: %v. Skipping.", name, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ExtractFile reads dimensions, EXIF tags, any embedded JPEG thumbnail, and
// sidecar overrides for one file.
func (e *ExifExtractor) ExtractFile(_ context.Context, path string) (Record, error) {
	rec := Record{FileName: filepath.Base(path)}

	file, err := os.Open(path)
	if err != nil {
		return rec, fmt.Errorf("metadata: failed to open %s: %w", path, err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err == nil {
		rec.Width = cfg.Width
		rec.Height = cfg.Height
	} else {
		log.Printf("metadata: could not decode dimensions of %s: %v", path, err)
	}

	if _, err := file.Seek(0, 0); err != nil {
		return rec, fmt.Errorf("metadata: failed to seek %s: %w", path, err)
	}

	exifData, err := exif.Decode(file)
	if err == nil {
		rec.Title = getString(exifData, exif.ImageDescription)
		rec.Description = getString(exifData, exif.UserComment)
		rec.Creator = getString(exifData, exif.Artist)
		if thumb, err := exifData.JpegThumbnail(); err == nil && len(thumb) > 0 {
			rec.Thumbnail = thumb
		}
	} else {
		// not fatal, file might just lack EXIF data
		log.Printf("metadata: no EXIF data in %s: %v", path, err)
	}

	e.applySidecar(path, &rec)
	return rec, nil
}

// WriteTags stores edited tag values in the file's sidecar, merging with any
// values written earlier.
func (e *ExifExtractor) WriteTags(_ context.Context, path string, tags map[string]string) error {
	sidecar := path + sidecarSuffix

	existing := map[string]string{}
	if data, err := os.ReadFile(sidecar); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			log.Printf("metadata: discarding corrupt sidecar %s: %v", sidecar, err)
			existing = map[string]string{}
		}
	}
	for k, v := range tags {
		existing[k] = v
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: failed to encode sidecar for %s: %w", path, err)
	}
	if err := os.WriteFile(sidecar, data, 0644); err != nil {
		return fmt.Errorf("metadata: failed to write sidecar %s: %w", sidecar, err)
	}
	return nil
}

// applySidecar overlays previously written tag edits onto the record.
func (e *ExifExtractor) applySidecar(path string, rec *Record) {
	data, err := os.ReadFile(path + sidecarSuffix)
	if err != nil {
		return
	}
	tags := map[string]string{}
	if err := json.Unmarshal(data, &tags); err != nil {
		log.Printf("metadata: ignoring corrupt sidecar for %s: %v", path, err)
		return
	}
	if v, ok := tags["title"]; ok {
		rec.Title = v
	}
	if v, ok := tags["description"]; ok {
		rec.Description = v
	}
	if v, ok := tags["creator"]; ok {
		rec.Creator = v
	}
	if v, ok := tags["keywords"]; ok {
		rec.Keywords = splitKeywords(v)
	}
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return ""
	}
	val, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimRight(val, "\x00")
}

func splitKeywords(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
