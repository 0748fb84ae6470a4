package media

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// UnpackArchive extracts a ZIP archive into destDir and returns the directory
// holding the extracted entries. Archives that wrap their files in a single
// top-level directory unpack to that directory; flat archives unpack into a
// directory named after the archive. When rename is non-empty the resulting
// directory is renamed to it.
func UnpackArchive(archivePath, destDir, rename string) (string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("archive: failed to open %s: %w", archivePath, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("archive: failed to create destination %s: %w", destDir, err)
	}

	archiveBase := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	topLevel := commonTopLevelDir(reader.File)

	extractRoot := destDir
	resultDir := filepath.Join(destDir, archiveBase)
	if topLevel != "" {
		resultDir = filepath.Join(destDir, topLevel)
	} else {
		extractRoot = resultDir
		if err := os.MkdirAll(extractRoot, 0755); err != nil {
			return "", fmt.Errorf("archive: failed to create %s: %w", extractRoot, err)
		}
	}

	extracted := 0
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := extractEntry(entry, extractRoot); err != nil {
			log.Printf("archive: failed to extract %s: %v. Skipping.", entry.Name, err)
			continue
		}
		extracted++
	}
	if extracted == 0 {
		return "", fmt.Errorf("archive: no files extracted from %s", archivePath)
	}

	if rename != "" && rename != filepath.Base(resultDir) {
		renamed := filepath.Join(destDir, rename)
		if err := os.Rename(resultDir, renamed); err != nil {
			return "", fmt.Errorf("archive: failed to rename %s to %s: %w", resultDir, renamed, err)
		}
		resultDir = renamed
	}

	log.Printf("archive: extracted %d file(s) from %s to %s", extracted, archivePath, resultDir)
	return resultDir, nil
}

// commonTopLevelDir returns the single directory prefix shared by every entry,
// or "" when entries live at the archive root or under mixed prefixes.
func commonTopLevelDir(files []*zip.File) string {
	top := ""
	for _, f := range files {
		name := filepath.ToSlash(f.Name)
		idx := strings.IndexByte(name, '/')
		if idx < 0 {
			return ""
		}
		prefix := name[:idx]
		if top == "" {
			top = prefix
		} else if top != prefix {
			return ""
		}
	}
	return top
}

func extractEntry(entry *zip.File, destDir string) error {
	// reject traversal before touching the filesystem
	cleanName := filepath.Clean(filepath.FromSlash(entry.Name))
	if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
		return fmt.Errorf("illegal entry path %q", entry.Name)
	}

	targetPath := filepath.Join(destDir, cleanName)
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", targetPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(targetPath)
		return fmt.Errorf("failed to write %s: %w", targetPath, err)
	}
	return nil
}
