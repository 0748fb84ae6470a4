package album_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openalbum/albumd/album"
)

func TestResolveAlbumDir(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "srv", "public", "albums")

	tests := []struct {
		name     string
		albumDir string
		want     string
		wantErr  bool
	}{
		{
			name:     "bare name resolves under root",
			albumDir: "summer",
			want:     filepath.Join(root, "summer"),
		},
		{
			name:     "absolute descendant accepted",
			albumDir: filepath.Join(root, "nested", "summer"),
			want:     filepath.Join(root, "nested", "summer"),
		},
		{
			name:     "dot segments are canonicalized",
			albumDir: filepath.Join(root, "nested", "..", "summer"),
			want:     filepath.Join(root, "summer"),
		},
		{
			name:     "root itself rejected",
			albumDir: root,
			wantErr:  true,
		},
		{
			name:     "relative escape rejected",
			albumDir: filepath.Join("..", "etc"),
			wantErr:  true,
		},
		{
			name:     "absolute path outside root rejected",
			albumDir: filepath.Join(string(filepath.Separator), "etc", "passwd"),
			wantErr:  true,
		},
		{
			name:     "sibling with shared prefix rejected",
			albumDir: root + "-other",
			wantErr:  true,
		},
		{
			name:    "empty album dir rejected",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := album.ResolveAlbumDir(root, tt.albumDir)
			if tt.wantErr {
				var pathErr *album.PathError
				require.ErrorAs(t, err, &pathErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAlbumDir_RequiresRoot(t *testing.T) {
	_, err := album.ResolveAlbumDir("", "summer")
	var pathErr *album.PathError
	require.ErrorAs(t, err, &pathErr)
}

func TestEnsureRoot(t *testing.T) {
	tmp := t.TempDir()

	existed, err := album.EnsureRoot(tmp)
	require.NoError(t, err)
	assert.True(t, existed)

	fresh := filepath.Join(tmp, "a", "b", "albums")
	existed, err = album.EnsureRoot(fresh)
	require.NoError(t, err)
	assert.False(t, existed)

	info, err := os.Stat(fresh)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureRoot_RejectsFile(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := album.EnsureRoot(file)
	var pathErr *album.PathError
	require.ErrorAs(t, err, &pathErr)
}

func TestDeriveURLs(t *testing.T) {
	tests := []struct {
		name         string
		dir          string
		wantAlbum    string
		wantImageURL string
		wantErr      bool
	}{
		{
			name:         "marker mid-path",
			dir:          filepath.Join("srv", "public", "albums", "summer"),
			wantAlbum:    "summer",
			wantImageURL: "albums/summer",
		},
		{
			name:         "marker directly above album",
			dir:          filepath.Join("public", "summer"),
			wantAlbum:    "summer",
			wantImageURL: "summer",
		},
		{
			name:    "no marker",
			dir:     filepath.Join("srv", "assets", "summer"),
			wantErr: true,
		},
		{
			name:      "album itself named public does not count as marker",
			dir:       filepath.Join("srv", "assets", "public"),
			wantErr:   true,
			wantAlbum: "public",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			albumURL, imageURL, err := album.DeriveURLs(tt.dir)
			if tt.wantErr {
				var pathErr *album.PathError
				require.ErrorAs(t, err, &pathErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlbum, albumURL)
			assert.Equal(t, tt.wantImageURL, imageURL)
		})
	}
}
