package album_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openalbum/albumd/album"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Summer", "summer"},
		{"spaces become hyphens", "Summer In Norway", "summer-in-norway"},
		{"accents stripped", "Été à Paris", "ete-a-paris"},
		{"punctuation collapses", "Rock & Roll!!", "rock-roll"},
		{"digits preserved", "Trip 2024", "trip-2024"},
		{"leading and trailing junk trimmed", "  --Hello--  ", "hello"},
		{"consecutive separators collapse", "a___b...c", "a-b-c"},
		{"empty", "", ""},
		{"only symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, album.Slugify(tt.in))
		})
	}
}
