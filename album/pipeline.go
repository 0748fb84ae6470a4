package album

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/facette/natsort"

	"github.com/openalbum/albumd/media"
	"github.com/openalbum/albumd/metadata"
)

// runPipeline turns the album directory's raw file listing into an ordered
// list of image descriptors: one batch metadata extraction over the whole
// directory, then a sequential per-image size-generation pass. Size
// generation is deliberately sequential to bound memory and keep the
// descriptor order stable.
func (a *Album) runPipeline(ctx context.Context, opts InitOptions) ([]ImageDescriptor, error) {
	files, err := a.listSourceFiles()
	if err != nil {
		return nil, err
	}

	byName := map[string]metadata.Record{}
	if a.extractor != nil {
		records, err := a.extractor.ExtractDir(ctx, a.albumDir)
		if err != nil {
			return nil, &PipelineError{Image: a.albumDir, Err: fmt.Errorf("batch extraction failed: %w", err)}
		}
		for _, rec := range records {
			byName[rec.FileName] = rec
		}
	}

	descriptors := make([]ImageDescriptor, 0, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := byName[name] // zero Record when extraction had nothing: defaults apply
		desc := a.descriptorFromRecord(name, rec)
		a.writeEmbeddedThumbnail(&desc, rec.Thumbnail)
		descriptors = append(descriptors, desc)
	}

	if !opts.SkipSizes && a.processor != nil {
		for i := range descriptors {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := a.generateSizes(&descriptors[i], opts.ForceThumbnails); err != nil {
				return nil, err
			}
		}
	}

	return descriptors, nil
}

// listSourceFiles returns the album's original image files in natural name
// order, excluding generated variants and thumbnails.
func (a *Album) listSourceFiles() ([]string, error) {
	entries, err := os.ReadDir(a.albumDir)
	if err != nil {
		return nil, fmt.Errorf("album: failed to read directory %s: %w", a.albumDir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !media.IsRasterImage(name) || media.IsGeneratedName(name) {
			continue
		}
		names = append(names, name)
	}
	natsort.Sort(names)
	return names, nil
}

// descriptorFromRecord builds a descriptor from an extracted record, falling
// back to defaults for anything the record lacks. The default creator is the
// album owner.
func (a *Album) descriptorFromRecord(name string, rec metadata.Record) ImageDescriptor {
	desc := ImageDescriptor{
		Name:        name,
		URL:         a.imageFragment(name),
		Title:       rec.Title,
		Description: rec.Description,
		Keywords:    rec.Keywords,
		Creator:     rec.Creator,
		srcWidth:    rec.Width,
		srcHeight:   rec.Height,
	}
	if desc.Creator == "" {
		desc.Creator = a.owner
	}
	return desc
}

// writeEmbeddedThumbnail persists an embedded preview payload next to the
// source image. Failure is logged and the image proceeds without one.
func (a *Album) writeEmbeddedThumbnail(desc *ImageDescriptor, payload []byte) {
	if len(payload) == 0 || desc.Thumbnail != "" {
		return
	}
	thumbPath := media.ThumbnailPath(filepath.Join(a.albumDir, desc.Name))
	if err := os.WriteFile(thumbPath, payload, 0644); err != nil {
		log.Printf("pipeline: failed to write embedded thumbnail for %s: %v", desc.Name, err)
		return
	}
	desc.Thumbnail = a.imageFragment(filepath.Base(thumbPath))
}

// generateSizes produces the big/med/sml variants for one image and, when
// missing or forced, its thumbnail. Any processor failure is fatal for the
// pipeline run and identifies the image and geometry.
func (a *Album) generateSizes(desc *ImageDescriptor, forceThumbnail bool) error {
	src := filepath.Join(a.albumDir, desc.Name)

	// normalize non-raster sources to JPEG before resizing; the conversion is
	// an intermediate, variant names still derive from the original
	readPath := src
	if !media.IsNormalizedRaster(desc.Name) {
		converted := media.VariantPath(src, "converted")
		if err := a.processor.Convert(src, converted); err != nil {
			return &PipelineError{Image: desc.Name, Err: err}
		}
		readPath = converted
	}

	// trust the extractor's composite size when it reported one; a rotation
	// invalidates it, so stale descriptors probe the file again
	width, height := desc.srcWidth, desc.srcHeight
	if width <= 0 || height <= 0 || desc.needsResize {
		var err error
		width, height, err = a.processor.Dimensions(readPath)
		if err != nil {
			return &PipelineError{Image: desc.Name, Err: err}
		}
		desc.srcWidth, desc.srcHeight = width, height
	}

	sizes := media.SizesFor(media.Classify(width, height))
	variants := []struct {
		geometry media.Geometry
		target   *string
	}{
		{sizes.Big, &desc.Big},
		{sizes.Med, &desc.Med},
		{sizes.Sml, &desc.Sml},
	}
	for _, v := range variants {
		dst := media.VariantPath(src, v.geometry)
		if err := a.processor.Resize(readPath, dst, v.geometry); err != nil {
			return &PipelineError{Image: desc.Name, Geometry: v.geometry.String(), Err: err}
		}
		*v.target = a.imageFragment(filepath.Base(dst))
	}

	if desc.Thumbnail == "" || forceThumbnail || desc.needsResize {
		dst := media.ThumbnailPath(src)
		if err := a.processor.Thumbnail(readPath, dst, media.ThumbnailGeometry); err != nil {
			return &PipelineError{Image: desc.Name, Geometry: media.ThumbnailGeometry.String(), Err: err}
		}
		desc.Thumbnail = a.imageFragment(filepath.Base(dst))
	}

	desc.needsResize = false
	return nil
}

// imageFragment derives the public path fragment for a file in this album.
func (a *Album) imageFragment(name string) string {
	base := a.imageURL
	if base == "" {
		base = a.url
	}
	return "/" + path.Join(base, name)
}
