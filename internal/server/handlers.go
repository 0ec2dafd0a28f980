package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/weedbot/console/internal/models"
	"github.com/weedbot/console/internal/observability"
)

// GalleryHandler serves the gallery API.
type GalleryHandler struct {
	store  *Store
	tags   TagRepo
	thumbs *Thumbnailer
	hub    *Hub
	log    *observability.Logger
}

// NewGalleryHandler creates a handler over the given store and tag repo.
func NewGalleryHandler(store *Store, tags TagRepo, thumbs *Thumbnailer, hub *Hub) *GalleryHandler {
	return &GalleryHandler{
		store:  store,
		tags:   tags,
		thumbs: thumbs,
		hub:    hub,
		log:    observability.GetLogger(),
	}
}

// Routes mounts the gallery API onto r.
func (h *GalleryHandler) Routes(r chi.Router) {
	r.Get("/images", h.List)
	r.Get("/image/{filename}", h.GetImage)
	r.Get("/thumbnail/{filename}", h.GetThumbnail)
	r.Delete("/delete/{filename}", h.DeleteOne)
	r.Post("/delete-selected", h.DeleteSelected)
	r.Post("/tag-images", h.TagImages)
	r.Post("/download-selected", h.DownloadSelected)
	r.Get("/download_all", h.DownloadAll)
	r.Post("/clear", h.Clear)
	r.Get("/events", h.hub.ServeWS)
}

// List returns every stored image, newest first, with tags merged in.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "gallery.list")
	defer span.End()

	images, totalSize, err := h.store.List()
	if err != nil {
		observability.RecordError(span, err)
		h.log.WithContext(ctx).Errorf("list images: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to read image directory.")
		return
	}

	tags, err := h.tags.All(ctx)
	if err != nil {
		// Tag state is secondary; the listing still works without it.
		h.log.WithContext(ctx).Warnf("load tags: %v", err)
	}
	for i := range images {
		images[i].Tags = tags[images[i].Filename]
		images[i].URL = "/api/gallery/image/" + images[i].Filename
	}

	h.respondJSON(w, http.StatusOK, models.ListResponse{
		Images:      images,
		Count:       len(images),
		TotalSizeMB: float64(totalSize) / (1024 * 1024),
	})
}

// GetImage serves the raw image bytes.
func (h *GalleryHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.Path(chi.URLParam(r, "filename"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.store.Exists(chi.URLParam(r, "filename")) {
		h.respondError(w, http.StatusNotFound, "Image not found.")
		return
	}
	http.ServeFile(w, r, path)
}

// GetThumbnail serves a downscaled JPEG preview.
func (h *GalleryHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	path, err := h.store.Path(filename)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.store.Exists(filename) {
		h.respondError(w, http.StatusNotFound, "Image not found.")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "max-age=3600")
	if err := h.thumbs.Render(w, path); err != nil {
		// Headers are out by now; log is all that is left.
		h.log.Errorf("thumbnail %s: %v", filename, err)
	}
}

// DeleteOne deletes a single image. 404 when it is already gone.
func (h *GalleryHandler) DeleteOne(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "gallery.delete")
	defer span.End()

	filename := chi.URLParam(r, "filename")
	if err := h.store.Delete(filename); err != nil {
		if errors.Is(err, models.ErrImageNotFound) {
			h.respondError(w, http.StatusNotFound, "Image not found.")
			return
		}
		observability.RecordError(span, err)
		h.respondError(w, http.StatusInternalServerError, "Failed to delete image.")
		return
	}

	if err := h.tags.Remove(ctx, []string{filename}); err != nil {
		h.log.WithContext(ctx).Warnf("remove tags for %s: %v", filename, err)
	}
	h.hub.BroadcastChange("delete", []string{filename})
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "filename": filename})
}

// DeleteSelected deletes a batch, reporting failures item by item.
func (h *GalleryHandler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "gallery.delete_selected")
	defer span.End()

	var req models.BulkFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if len(req.Files) == 0 {
		h.respondError(w, http.StatusBadRequest, "No files specified.")
		return
	}

	deleted, failures := h.store.DeleteMany(req.Files)
	span.SetAttributes(observability.FileCount(len(deleted)))

	if len(deleted) > 0 {
		if err := h.tags.Remove(ctx, deleted); err != nil {
			h.log.WithContext(ctx).Warnf("remove tags: %v", err)
		}
		h.hub.BroadcastChange("delete", deleted)
	}

	h.log.WithContext(ctx).Infof("bulk delete: %d deleted, %d failed", len(deleted), len(failures))
	h.respondJSON(w, http.StatusOK, models.DeleteResult{
		Deleted:  len(deleted),
		Failures: failures,
	})
}

// TagImages applies a tag to a batch of images.
func (h *GalleryHandler) TagImages(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "gallery.tag_images")
	defer span.End()

	var req models.TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if len(req.Files) == 0 {
		h.respondError(w, http.StatusBadRequest, "No files specified.")
		return
	}
	if req.Tag == "" {
		h.respondError(w, http.StatusBadRequest, "Tag must not be empty.")
		return
	}

	// Only tag files that actually exist; a tag row for a phantom file
	// would never be visible and never cleaned up.
	existing := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		if h.store.Exists(f) {
			existing = append(existing, f)
		}
	}

	tagged, err := h.tags.Apply(ctx, existing, req.Tag)
	if err != nil {
		observability.RecordError(span, err)
		h.log.WithContext(ctx).Errorf("apply tag: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to store tags.")
		return
	}

	h.hub.BroadcastChange("tag", existing)
	h.respondJSON(w, http.StatusOK, models.TagResult{Tagged: tagged})
}

// DownloadSelected streams a zip of the requested files.
func (h *GalleryHandler) DownloadSelected(w http.ResponseWriter, r *http.Request) {
	var req models.BulkFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if len(req.Files) == 0 {
		h.respondError(w, http.StatusBadRequest, "No files specified.")
		return
	}
	h.serveZip(w, r, req.Files)
}

// DownloadAll streams a zip of the whole gallery.
func (h *GalleryHandler) DownloadAll(w http.ResponseWriter, r *http.Request) {
	h.serveZip(w, r, nil)
}

func (h *GalleryHandler) serveZip(w http.ResponseWriter, r *http.Request, filenames []string) {
	_, span := observability.StartSpan(r.Context(), "gallery.download",
		observability.FileCount(len(filenames)))
	defer span.End()

	exists := 0
	for _, f := range filenames {
		if h.store.Exists(f) {
			exists++
		}
	}
	if len(filenames) > 0 && exists == 0 {
		h.respondError(w, http.StatusNotFound, "None of the requested images exist.")
		return
	}

	name := fmt.Sprintf("weedbot_images_%s.zip", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	added, err := h.store.WriteZip(w, filenames)
	if err != nil {
		observability.RecordError(span, err)
		h.log.Errorf("write archive: %v", err)
		return
	}
	span.SetAttributes(observability.FileCount(added))
}

// Clear deletes every image.
func (h *GalleryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "gallery.clear")
	defer span.End()

	removed, err := h.store.Clear()
	if err != nil {
		observability.RecordError(span, err)
		h.respondError(w, http.StatusInternalServerError, "Failed to clear gallery.")
		return
	}

	if err := h.tags.Remove(ctx, removed); err != nil {
		h.log.WithContext(ctx).Warnf("remove tags: %v", err)
	}
	h.hub.BroadcastChange("clear", nil)
	h.log.WithContext(ctx).Infof("gallery cleared: %d images", len(removed))
	h.respondJSON(w, http.StatusOK, models.ClearResult{Deleted: len(removed)})
}

func (h *GalleryHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *GalleryHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
