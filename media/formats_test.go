package media_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openalbum/albumd/media"
)

func TestIsRasterImage(t *testing.T) {
	assert.True(t, media.IsRasterImage("photo.jpg"))
	assert.True(t, media.IsRasterImage("photo.JPEG"))
	assert.True(t, media.IsRasterImage("scan.tiff"))
	assert.True(t, media.IsRasterImage("anim.gif"))
	assert.False(t, media.IsRasterImage("clip.mp4"))
	assert.False(t, media.IsRasterImage("notes.txt"))
	assert.False(t, media.IsRasterImage("photo"))
}

func TestIsNormalizedRaster(t *testing.T) {
	assert.True(t, media.IsNormalizedRaster("photo.jpg"))
	assert.True(t, media.IsNormalizedRaster("photo.png"))
	assert.False(t, media.IsNormalizedRaster("scan.tiff"))
	assert.False(t, media.IsNormalizedRaster("photo.bmp"))
}

func TestIsGeneratedName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"photo_400x300.jpg", true},
		{"photo_1200x900.jpg", true},
		{"photo_thumbnail.jpg", true},
		{"photo_converted.jpg", true},
		{"photo.jpg", false},
		{"my_photo.jpg", false},
		{"photo_4x.jpg", false},
		{"photo_x300.jpg", false},
		{"photo_axb.jpg", false},
		{"family_2024.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, media.IsGeneratedName(tt.name))
		})
	}
}

func TestVariantPath(t *testing.T) {
	assert.Equal(t, "/a/b/photo_800x600.jpg", media.VariantPath("/a/b/photo.png", "800x600"))
	assert.Equal(t, "/a/b/photo_converted.jpg", media.VariantPath("/a/b/photo.tiff", "converted"))
}

func TestThumbnailPath(t *testing.T) {
	assert.Equal(t, "/a/b/photo_thumbnail.png", media.ThumbnailPath("/a/b/photo.png"))
	assert.Equal(t, "/a/b/photo_thumbnail.jpg", media.ThumbnailPath("/a/b/photo"))
}
