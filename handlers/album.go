package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openalbum/albumd/album"
	"github.com/openalbum/albumd/config"
	"github.com/openalbum/albumd/media"
	"github.com/openalbum/albumd/metadata"
	"github.com/openalbum/albumd/workers"
)

// AlbumHandler exposes the album query set and lifecycle operations over
// HTTP. All store and pipeline collaborators are borrowed.
type AlbumHandler struct {
	Cfg       config.Config
	Docs      album.DocumentStore
	Stream    album.RecencyStream
	Extractor metadata.Extractor
	Processor album.ImageProcessor
	Resizer   *workers.ResizePool
}

// getAlbumByIdentifier resolves an identifier as an album id first, then as a
// slug.
func (ah *AlbumHandler) getAlbumByIdentifier(r *http.Request, identifier string) (*album.Album, error) {
	a, err := album.GetByID(r.Context(), ah.Docs, ah.Stream, identifier)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, album.ErrNotFound) {
		return nil, err
	}
	return album.GetBySlug(r.Context(), ah.Docs, ah.Stream, identifier)
}

type createAlbumRequest struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Dir         string   `json:"dir"`
	Owner       string   `json:"owner"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Public      bool     `json:"public"`
	PostID      string   `json:"post_id"`
}

func (ah *AlbumHandler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req createAlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.Name == "" || req.Dir == "" || req.Owner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: name, dir, and owner"})
		return
	}

	a := album.New(album.Config{
		RootDir:     ah.Cfg.RootDirectory,
		AlbumDir:    req.Dir,
		Name:        req.Name,
		Slug:        req.Slug,
		Owner:       req.Owner,
		Description: req.Description,
		Keywords:    req.Keywords,
		Public:      req.Public,
		PostID:      req.PostID,
		New:         true,
		Docs:        ah.Docs,
		Stream:      ah.Stream,
		Extractor:   ah.Extractor,
		Processor:   ah.Processor,
	})

	if err := a.Init(r.Context(), album.InitOptions{}); err != nil {
		var pathErr *album.PathError
		if errors.As(err, &pathErr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": pathErr.Error()})
			return
		}
		log.Printf("Error initializing album '%s': %v", req.Name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to initialize album"})
		return
	}

	result, err := a.Save(r.Context())
	if err != nil || !result.OK() {
		log.Printf("Error saving album '%s': %v", req.Name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save album"})
		return
	}
	writeJSON(w, http.StatusCreated, a.Document())
}

// ImportAlbum accepts a multipart ZIP upload, unpacks it under the album
// root, and creates an album from the extracted directory.
func (ah *AlbumHandler) ImportAlbum(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(256 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart body: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("archive")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing archive file"})
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	owner := r.FormValue("owner")
	if name == "" || owner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: name and owner"})
		return
	}
	public := r.FormValue("public") == "true"

	if err := os.MkdirAll(ah.Cfg.ArchiveStagingPath, 0755); err != nil {
		log.Printf("Error creating staging directory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to stage archive"})
		return
	}
	stagingUUID, _ := uuid.NewRandom()
	stagedPath := filepath.Join(ah.Cfg.ArchiveStagingPath, fmt.Sprintf("import_%s_%s", stagingUUID.String()[:8], filepath.Base(header.Filename)))
	staged, err := os.Create(stagedPath)
	if err != nil {
		log.Printf("Error staging archive %s: %v", stagedPath, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to stage archive"})
		return
	}
	if _, err := io.Copy(staged, file); err != nil {
		staged.Close()
		os.Remove(stagedPath)
		log.Printf("Error writing staged archive %s: %v", stagedPath, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to stage archive"})
		return
	}
	staged.Close()
	defer os.Remove(stagedPath)

	slug := album.Slugify(name)
	extractedDir, err := media.UnpackArchive(stagedPath, ah.Cfg.RootDirectory, slug)
	if err != nil {
		log.Printf("Error unpacking archive %s: %v", stagedPath, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to unpack archive"})
		return
	}

	a := album.New(album.Config{
		RootDir:     ah.Cfg.RootDirectory,
		AlbumDir:    extractedDir,
		Name:        name,
		Slug:        slug,
		Owner:       owner,
		Description: r.FormValue("description"),
		Public:      public,
		New:         true,
		Docs:        ah.Docs,
		Stream:      ah.Stream,
		Extractor:   ah.Extractor,
		Processor:   ah.Processor,
	})
	if err := a.Init(r.Context(), album.InitOptions{}); err != nil {
		log.Printf("Error initializing imported album '%s': %v", name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to initialize imported album"})
		return
	}
	result, err := a.Save(r.Context())
	if err != nil || !result.OK() {
		log.Printf("Error saving imported album '%s': %v", name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save imported album"})
		return
	}
	writeJSON(w, http.StatusCreated, a.Document())
}

func (ah *AlbumHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required query parameter: owner"})
		return
	}
	buckets, err := album.List(r.Context(), ah.Docs, owner)
	if err != nil {
		log.Printf("Error listing albums for %s: %v", owner, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list albums"})
		return
	}
	if buckets == nil {
		buckets = []album.Bucket{}
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (ah *AlbumHandler) RecentlyAdded(w http.ResponseWriter, r *http.Request) {
	count := int64(0)
	if v := r.URL.Query().Get("count"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			count = parsed
		}
	}
	entries, err := album.RecentlyAdded(r.Context(), ah.Stream, count)
	if err != nil {
		log.Printf("Error reading recency stream: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read recent albums"})
		return
	}
	if entries == nil {
		entries = []album.StreamEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (ah *AlbumHandler) PublicAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := album.UsersWithPublicAlbums(r.Context(), ah.Docs)
	if err != nil {
		log.Printf("Error reading public authors view: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list public authors"})
		return
	}
	if authors == nil {
		authors = []album.PublicAuthor{}
	}
	writeJSON(w, http.StatusOK, authors)
}

func (ah *AlbumHandler) GetAlbum(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "album_identifier")
	a, err := ah.getAlbumByIdentifier(r, identifier)
	if err != nil {
		if errors.Is(err, album.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "album_not_found", "Album not found")
		} else {
			log.Printf("Error getting album '%s': %v", identifier, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve album"})
		}
		return
	}
	writeJSON(w, http.StatusOK, a.Document())
}

type updateAlbumRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Public      *bool     `json:"public"`
	Keywords    *[]string `json:"keywords"`
	PostID      *string   `json:"post_id"`
}

func (ah *AlbumHandler) UpdateAlbum(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "album_identifier")
	a, err := ah.getAlbumByIdentifier(r, identifier)
	if err != nil {
		WriteAPIError(w, http.StatusNotFound, "album_not_found", "Album not found")
		return
	}

	var req updateAlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.Name != nil {
		a.SetName(*req.Name)
	}
	if req.Description != nil {
		a.SetDescription(*req.Description)
	}
	if req.Public != nil {
		a.SetPublic(*req.Public)
	}
	if req.PostID != nil {
		a.SetPostID(*req.PostID)
	}
	if req.Keywords != nil {
		for _, kw := range a.Keywords() {
			a.RemoveKeyword(kw)
		}
		for _, kw := range *req.Keywords {
			a.AddKeyword(kw)
		}
	}

	result, err := a.Save(r.Context())
	if err != nil {
		log.Printf("Error saving album '%s': %v", identifier, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save album"})
		return
	}
	if !result.OK() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Album save matched no document"})
		return
	}
	writeJSON(w, http.StatusOK, a.Document())
}

func (ah *AlbumHandler) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "album_identifier")
	a, err := ah.getAlbumByIdentifier(r, identifier)
	if err != nil {
		WriteAPIError(w, http.StatusNotFound, "album_not_found", "Album not found")
		return
	}
	if err := a.DeleteAlbum(r.Context()); err != nil {
		log.Printf("Error deleting album '%s': %v", identifier, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Album deletion partially failed: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Album deleted"})
}

func (ah *AlbumHandler) GetAlbumImages(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "album_identifier")
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required query parameter: owner"})
		return
	}
	images, err := album.ImageList(r.Context(), ah.Docs, identifier, owner)
	if err != nil {
		if errors.Is(err, album.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "album_not_found", "Album not found for owner")
		} else {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, images)
}

type addImageRequest struct {
	FileName  string `json:"file_name"`
	SkipSizes bool   `json:"skip_sizes"`
}

func (ah *AlbumHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "album_identifier")
	a, err := ah.getAlbumByIdentifier(r, identifier)
	if err != nil {
		WriteAPIError(w, http.StatusNotFound, "album_not_found", "Album not found")
		return
	}
	a.AttachPipeline(ah.Extractor, ah.Processor)

	var req addImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: file_name"})
		return
	}

	result, err := a.AddImage(r.Context(), req.FileName, req.SkipSizes)
	if err != nil {
		log.Printf("Error adding image %s to album '%s': %v", req.FileName, identifier, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to add image"})
		return
	}
	if !result.OK() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Album save matched no document"})
		return
	}
	writeJSON(w, http.StatusCreated, a.Document())
}

type updateImageRequest struct {
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Keywords       *[]string `json:"keywords"`
	Hide           *bool     `json:"hide"`
	Rotate         int       `json:"rotate"`
	ForceThumbnail bool      `json:"force_thumbnail"`
}

func (ah *AlbumHandler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "album_identifier")
	imageName := chi.URLParam(r, "image_name")

	a, err := ah.getAlbumByIdentifier(r, identifier)
	if err != nil {
		WriteAPIError(w, http.StatusNotFound, "album_not_found", "Album not found")
		return
	}
	a.AttachPipeline(ah.Extractor, ah.Processor)

	var req updateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}

	patch := album.ImagePatch{
		Name:        imageName,
		Title:       req.Title,
		Description: req.Description,
		Keywords:    req.Keywords,
		Hide:        req.Hide,
		Rotate:      req.Rotate,
	}
	result, err := a.UpdateImage(r.Context(), patch, req.ForceThumbnail)
	if err != nil {
		if errors.Is(err, album.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "image_not_found", "Image not found")
			return
		}
		log.Printf("Error updating image %s in album '%s': %v", imageName, identifier, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update image"})
		return
	}

	if result.Save != nil && !result.Save.OK() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Album save matched no document"})
		return
	}

	resp := map[string]interface{}{"album": a.Document()}
	if result.MetadataErr != nil {
		resp["metadata_error"] = result.MetadataErr.Error()
	}
	if result.ResizeErr != nil {
		resp["resize_error"] = result.ResizeErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// RegenerateImage queues background variant regeneration for one image.
func (ah *AlbumHandler) RegenerateImage(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "album_identifier")
	imageName := chi.URLParam(r, "image_name")

	a, err := ah.getAlbumByIdentifier(r, identifier)
	if err != nil {
		WriteAPIError(w, http.StatusNotFound, "album_not_found", "Album not found")
		return
	}
	a.AttachPipeline(ah.Extractor, ah.Processor)

	force := r.URL.Query().Get("force") == "true"
	queued := ah.Resizer.QueueJob(workers.ResizeJob{Album: a, ImageName: imageName, ForceThumbnail: force})
	if !queued {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Regeneration already pending or queue full"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Regeneration queued"})
}

func (ah *AlbumHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "album_identifier")
	imageName := chi.URLParam(r, "image_name")

	a, err := ah.getAlbumByIdentifier(r, identifier)
	if err != nil {
		WriteAPIError(w, http.StatusNotFound, "album_not_found", "Album not found")
		return
	}

	if err := a.DeleteImage(r.Context(), imageName); err != nil {
		if errors.Is(err, album.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "image_not_found", "Image not found")
			return
		}
		log.Printf("Error deleting image %s from album '%s': %v", imageName, identifier, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete image"})
		return
	}
	writeJSON(w, http.StatusOK, a.Document())
}
