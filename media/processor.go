package media

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	VariantJpegQuality   = 85
	ThumbnailJpegQuality = 80
	VariantFileExtension = ".jpg"
)

// Processor handles the image transformations the album pipeline needs:
// geometry reads, format conversion, bounded resizes, thumbnailing, rotation.
// All outputs are written next to the source file.
type Processor struct {
	quality int
}

func NewProcessor() *Processor {
	return &Processor{quality: VariantJpegQuality}
}

// Dimensions reports the pixel geometry of an image file without decoding the
// full raster.
func (p *Processor) Dimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("processor: failed to open %s: %w", path, err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("processor: failed to decode config of %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Convert re-encodes src as JPEG at dst. Used to normalize non-raster sources
// before variant generation.
func (p *Processor) Convert(src, dst string) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("processor: failed to open %s for conversion: %w", src, err)
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(p.quality)); err != nil {
		return fmt.Errorf("processor: failed to save converted image %s: %w", dst, err)
	}
	return nil
}

// Resize writes a copy of src fitted inside the geometry's bounding box to dst.
// aspect ratio is preserved; imaging.Fit never exceeds either bound
func (p *Processor) Resize(src, dst string, g Geometry) error {
	maxW, maxH, err := g.Bounds()
	if err != nil {
		return err
	}

	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("processor: failed to open %s: %w", src, err)
	}

	resized := imaging.Fit(img, maxW, maxH, imaging.Lanczos)
	if err := imaging.Save(resized, dst, imaging.JPEGQuality(p.quality)); err != nil {
		return fmt.Errorf("processor: failed to save %s variant %s: %w", g, dst, err)
	}
	return nil
}

// Thumbnail generates the fixed small variant at dst. Re-encoding through
// imaging drops all embedded metadata, which doubles as the strip step.
func (p *Processor) Thumbnail(src, dst string, g Geometry) error {
	maxW, maxH, err := g.Bounds()
	if err != nil {
		return err
	}

	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("processor: failed to open %s for thumbnail: %w", src, err)
	}

	thumb := imaging.Fit(img, maxW, maxH, imaging.Lanczos)
	if err := imaging.Save(thumb, dst, imaging.JPEGQuality(ThumbnailJpegQuality)); err != nil {
		return fmt.Errorf("processor: failed to save thumbnail %s: %w", dst, err)
	}
	return nil
}

// Rotate rewrites the image in place, rotated counter-clockwise by the signed
// degree count. Right-angle rotations are lossless dimension swaps; arbitrary
// angles fill the exposed corners with black.
func (p *Processor) Rotate(path string, degrees int) error {
	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("processor: failed to open %s for rotation: %w", path, err)
	}

	norm := ((degrees % 360) + 360) % 360
	var rotated *image.NRGBA
	switch norm {
	case 0:
		return nil
	case 90:
		rotated = imaging.Rotate90(img)
	case 180:
		rotated = imaging.Rotate180(img)
	case 270:
		rotated = imaging.Rotate270(img)
	default:
		rotated = imaging.Rotate(img, float64(norm), color.Black)
	}

	if err := imaging.Save(rotated, path, imaging.JPEGQuality(p.quality)); err != nil {
		return fmt.Errorf("processor: failed to save rotated image %s: %w", path, err)
	}
	log.Printf("processor: rotated %s by %d degrees", filepath.Base(path), degrees)
	return nil
}

// VariantPath derives the on-disk path for a generated size variant, following
// the <name>_<geometry>.jpg convention alongside the original.
func VariantPath(originalPath string, g Geometry) string {
	base := strings.TrimSuffix(originalPath, filepath.Ext(originalPath))
	return fmt.Sprintf("%s_%s%s", base, g, VariantFileExtension)
}

// ThumbnailPath derives the on-disk path for an image's thumbnail, following
// the <name>_thumbnail.<ext> convention.
func ThumbnailPath(originalPath string) string {
	ext := filepath.Ext(originalPath)
	base := strings.TrimSuffix(originalPath, ext)
	if ext == "" {
		ext = VariantFileExtension
	}
	return fmt.Sprintf("%s_thumbnail%s", base, ext)
}
