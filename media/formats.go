package media

import (
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
)

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// extensions already in the normalized raster set; everything else is
// converted to JPEG before variant generation
var normalizedRasterExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// IsNormalizedRaster reports whether the file is already JPEG or PNG and can
// skip the conversion step.
func IsNormalizedRaster(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return normalizedRasterExtensions[ext]
}

// IsGeneratedName reports whether a file name matches the generated-output
// conventions (<base>_<WxH>.jpg variants, <base>_thumbnail.<ext>,
// <base>_converted.jpg) and so is not an album source image.
func IsGeneratedName(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndexByte(base, '_')
	if idx < 0 {
		return false
	}
	suffix := base[idx+1:]
	if suffix == "thumbnail" || suffix == "converted" {
		return true
	}
	w, h, ok := strings.Cut(suffix, "x")
	if !ok || w == "" || h == "" {
		return false
	}
	for _, r := range w + h {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
