package album

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// publicMarker is the fixed assets-root segment; everything after it in an
// album directory path is publicly addressable.
const publicMarker = "public"

// ResolveAlbumDir canonicalizes albumDir and verifies it is a descendant of
// rootDir. A bare directory name is resolved relative to rootDir.
func ResolveAlbumDir(rootDir, albumDir string) (string, error) {
	if rootDir == "" {
		return "", &PathError{Dir: albumDir, Reason: "root directory not set"}
	}
	if albumDir == "" {
		return "", &PathError{Root: rootDir, Reason: "album directory not set"}
	}

	root := filepath.Clean(rootDir)
	dir := albumDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", &PathError{Root: rootDir, Dir: albumDir, Reason: fmt.Sprintf("not expressible under root: %v", err)}
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PathError{Root: rootDir, Dir: albumDir, Reason: "escapes the album root"}
	}
	return dir, nil
}

// EnsureRoot checks that the album root exists, creating the directory tree
// when absent. It reports whether the root already existed.
func EnsureRoot(rootDir string) (bool, error) {
	if rootDir == "" {
		return false, &PathError{Reason: "root directory not set"}
	}
	info, err := os.Stat(rootDir)
	if err == nil {
		if !info.IsDir() {
			return false, &PathError{Root: rootDir, Reason: "exists but is not a directory"}
		}
		return true, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("album: failed to stat root %s: %w", rootDir, err)
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return false, fmt.Errorf("album: failed to create root %s: %w", rootDir, err)
	}
	return false, nil
}

// DeriveURLs computes the public path fragments for an album directory. The
// album URL is the last path segment; the image URL is everything after the
// public assets marker. Fails when the marker is absent, since no
// public-facing path can be constructed.
func DeriveURLs(albumDir string) (albumURL, imageURL string, err error) {
	segments := strings.Split(filepath.ToSlash(filepath.Clean(albumDir)), "/")
	if len(segments) == 0 || segments[len(segments)-1] == "" {
		return "", "", &PathError{Dir: albumDir, Reason: "no usable path segments"}
	}
	albumURL = segments[len(segments)-1]

	for i, seg := range segments[:len(segments)-1] {
		if seg == publicMarker {
			imageURL = strings.Join(segments[i+1:], "/")
			return albumURL, imageURL, nil
		}
	}
	return "", "", &PathError{Dir: albumDir, Reason: fmt.Sprintf("no %q marker segment in path", publicMarker)}
}
