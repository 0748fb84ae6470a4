package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Geometry is a bounding-box specification like "900x900". Resizes targeting a
// geometry preserve aspect ratio and never exceed either bound.
type Geometry string

// ThumbnailGeometry is the fixed target for generated thumbnails.
const ThumbnailGeometry Geometry = "200x200"

// Bounds parses the geometry into its width and height limits.
func (g Geometry) Bounds() (int, int, error) {
	parts := strings.SplitN(string(g), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid geometry %q: expected WIDTHxHEIGHT", string(g))
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid geometry %q: bad width: %w", string(g), err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid geometry %q: bad height: %w", string(g), err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid geometry %q: bounds must be positive", string(g))
	}
	return w, h, nil
}

func (g Geometry) String() string { return string(g) }

// Orientation classifies an image by its pixel geometry.
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

// Classify returns Landscape only when width strictly exceeds height; square
// images count as portrait.
func Classify(width, height int) Orientation {
	if width > height {
		return Landscape
	}
	return Portrait
}

// SizeSet names the three standard variant geometries for one orientation.
type SizeSet struct {
	Big Geometry
	Med Geometry
	Sml Geometry
}

var (
	landscapeSizes = SizeSet{Big: "1200x900", Med: "800x600", Sml: "400x300"}
	portraitSizes  = SizeSet{Big: "900x1200", Med: "600x800", Sml: "300x400"}
)

// SizesFor picks the variant geometries for an orientation.
func SizesFor(o Orientation) SizeSet {
	if o == Landscape {
		return landscapeSizes
	}
	return portraitSizes
}
