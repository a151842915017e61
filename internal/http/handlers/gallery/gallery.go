package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/alumni-connect/gallery-service/internal/http/middleware"
	galleryService "github.com/alumni-connect/gallery-service/internal/services/gallery"
	galleryTypes "github.com/alumni-connect/gallery-service/internal/types/gallery"
	"github.com/alumni-connect/gallery-service/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

type GalleryHandlers struct {
	service     *galleryService.Service
	validate    *validator.Validate
	maxFileSize int64
	maxFiles    int
}

// NewGalleryHandlers creates the gallery HTTP handlers
func NewGalleryHandlers(service *galleryService.Service, maxFileSize int64, maxFiles int) *GalleryHandlers {
	return &GalleryHandlers{
		service:     service,
		validate:    validator.New(),
		maxFileSize: maxFileSize,
		maxFiles:    maxFiles,
	}
}

// RegisterRoutes mounts the gallery routes on mux. Upload routes go through
// the rate limiter, moderation routes require an admin.
func (h *GalleryHandlers) RegisterRoutes(mux *http.ServeMux, rl *middleware.RateLimitConfig) {
	mux.Handle("POST /gallery/uploadSingle", rl.RateLimitedHandler(middleware.ActionUpload, h.UploadSingle()))
	mux.Handle("POST /gallery/uploadAlbum", rl.RateLimitedHandler(middleware.ActionUpload, h.UploadAlbum()))

	mux.HandleFunc("GET /gallery/photos", h.ListPhotos())
	mux.HandleFunc("GET /gallery/albums", h.ListAlbums())
	mux.HandleFunc("GET /gallery/album/{albumName}", h.ListAlbumPhotos())

	mux.HandleFunc("DELETE /gallery/photo", middleware.RequireAdmin(h.DeletePhoto()))
	mux.HandleFunc("PATCH /gallery/validate/{id}", middleware.RequireAdmin(h.ValidatePhoto()))
	mux.HandleFunc("POST /gallery/validate/{id}", middleware.RequireAdmin(h.ValidatePhoto()))
	mux.HandleFunc("POST /gallery/validateBulk", middleware.RequireAdmin(h.ValidateBulk()))
	mux.HandleFunc("DELETE /gallery/unvalidated", middleware.RequireAdmin(h.DeleteUnvalidated()))
	mux.HandleFunc("DELETE /gallery/album/{albumName}", middleware.RequireAdmin(h.DeleteAlbum()))
	mux.HandleFunc("GET /gallery/stats", middleware.RequireAdmin(h.Stats()))
}

// RegisterBlobRoutes serves stored images at the paths used by src
func (h *GalleryHandlers) RegisterBlobRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /"+galleryTypes.UncategorizedDir+"/{file}", h.ServePhoto())
	mux.HandleFunc("GET /"+galleryTypes.AlbumsDir+"/{album}/{file}", h.ServePhoto())
}

// writeError maps gallery errors onto statuses. Storage failures are
// logged and answered with fallback.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var verr *galleryService.ValidationError
	switch {
	case errors.As(err, &verr):
		response.WriteJSON(w, http.StatusBadRequest, response.ErrorMessage(verr.Msg))
	case errors.Is(err, galleryService.ErrNotFound):
		response.WriteJSON(w, http.StatusNotFound, response.ErrorMessage("Not found"))
	default:
		slog.Error(fallback, slog.String("error", err.Error()))
		response.WriteJSON(w, http.StatusInternalServerError, response.ErrorMessage(fallback))
	}
}

// parseMultipart bounds the body and parses the form. A request that is not
// multipart at all is left without a form so the service reports the
// missing file.
func (h *GalleryHandlers) parseMultipart(w http.ResponseWriter, r *http.Request, files int) bool {
	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize*int64(files)+multipartMemory)
	}

	err := r.ParseMultipartForm(multipartMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.WriteJSON(w, http.StatusRequestEntityTooLarge, response.ErrorMessage("Upload too large."))
		return false
	}

	response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid multipart body: %w", err)))
	return false
}

func toFile(fh *multipart.FileHeader) *galleryService.File {
	return &galleryService.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func formFiles(r *http.Request, fields ...string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	var out []*multipart.FileHeader
	for _, field := range fields {
		out = append(out, r.MultipartForm.File[field]...)
	}
	return out
}

func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errors.New("request body cannot be empty")
	}
	return err
}

// UploadSingle handles a single photo upload
// @Summary Upload one photo
// @Description Stores one image in the uncategorized bucket, or in an album when the album field is set. The photo awaits moderation.
// @Tags gallery
// @Accept mpfd
// @Produce json
// @Param photo formData file true "Image file"
// @Param caption formData string false "Caption"
// @Param album formData string false "Album name"
// @Success 201 {object} galleryTypes.UploadSingleResponse
// @Failure 400 {object} response.Response "Missing or invalid file"
// @Failure 413 {object} response.Response "Upload too large"
// @Failure 429 {object} response.Response "Rate limited"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /gallery/uploadSingle [post]
func (h *GalleryHandlers) UploadSingle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.parseMultipart(w, r, 1) {
			return
		}

		var file *galleryService.File
		if files := formFiles(r, "photo"); len(files) > 0 {
			file = toFile(files[0])
		}

		photo, err := h.service.UploadSingle(r.Context(), file,
			r.FormValue("caption"), galleryTypes.StringPtr(r.FormValue("album")))
		if err != nil {
			writeError(w, err, "Upload failed.")
			return
		}

		response.WriteJSON(w, http.StatusCreated, galleryTypes.UploadSingleResponse{
			Message: "Uploaded & recorded!",
			File: galleryTypes.PhotoFile{
				ID:       photo.ID,
				Filename: photo.Filename,
				Src:      photo.Src,
				Caption:  photo.Caption,
			},
		})
	}
}

// UploadAlbum handles an album batch upload
// @Summary Upload an album
// @Description Stores every file under albums/<album>/ and records them in one batch
// @Tags gallery
// @Accept mpfd
// @Produce json
// @Param album formData string true "Album name"
// @Param photos formData file true "Image files"
// @Success 201 {object} galleryTypes.MessageResponse
// @Failure 400 {object} response.Response "Missing album or files"
// @Failure 413 {object} response.Response "Upload too large"
// @Failure 429 {object} response.Response "Rate limited"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /gallery/uploadAlbum [post]
func (h *GalleryHandlers) UploadAlbum() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := h.maxFiles
		if limit <= 0 {
			limit = 1
		}
		if !h.parseMultipart(w, r, limit) {
			return
		}

		headers := formFiles(r, "photos", "photos[]")
		if h.maxFiles > 0 && len(headers) > h.maxFiles {
			response.WriteJSON(w, http.StatusBadRequest, response.ErrorMessage(
				fmt.Sprintf("At most %d files per album upload.", h.maxFiles)))
			return
		}

		files := make([]*galleryService.File, 0, len(headers))
		for _, fh := range headers {
			files = append(files, toFile(fh))
		}

		album := strings.TrimSpace(r.FormValue("album"))
		count, err := h.service.UploadAlbum(r.Context(), album, files)
		if err != nil {
			writeError(w, err, "Album upload failed.")
			return
		}

		response.WriteJSON(w, http.StatusCreated, galleryTypes.MessageResponse{
			Message: fmt.Sprintf("Saved %d to %q", count, album),
		})
	}
}

// ListPhotos returns gallery photos newest first
// @Summary List photos
// @Description Public callers must ask for validated=true. Listing pending or all photos requires an admin.
// @Tags gallery
// @Produce json
// @Param validated query bool false "Filter by moderation state"
// @Success 200 {object} galleryTypes.PhotosResponse
// @Failure 400 {object} response.Response "Invalid filter"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /gallery/photos [get]
func (h *GalleryHandlers) ListPhotos() http.HandlerFunc {
	list := func(validated *bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			photos, err := h.service.ListPhotos(r.Context(), validated)
			if err != nil {
				writeError(w, err, "Server error")
				return
			}
			response.WriteJSON(w, http.StatusOK, galleryTypes.PhotosResponse{Photos: photos})
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var validated *bool
		if raw := r.URL.Query().Get("validated"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				response.WriteJSON(w, http.StatusBadRequest, response.ErrorMessage("validated must be true or false"))
				return
			}
			validated = &v
		}

		if validated != nil && *validated {
			list(validated)(w, r)
			return
		}
		middleware.RequireAdmin(list(validated))(w, r)
	}
}

// ListAlbums returns one summary per album
// @Summary List albums
// @Tags gallery
// @Produce json
// @Success 200 {object} galleryTypes.AlbumsResponse
// @Failure 500 {object} response.Response "Internal server error"
// @Router /gallery/albums [get]
func (h *GalleryHandlers) ListAlbums() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		albums, err := h.service.ListAlbums(r.Context())
		if err != nil {
			writeError(w, err, "Server error")
			return
		}
		response.WriteJSON(w, http.StatusOK, galleryTypes.AlbumsResponse{Albums: albums})
	}
}

// ListAlbumPhotos returns the photos of one album
// @Summary List album photos
// @Tags gallery
// @Produce json
// @Param albumName path string true "Album name"
// @Success 200 {object} galleryTypes.AlbumPhotosResponse
// @Failure 500 {object} response.Response "Internal server error"
// @Router /gallery/album/{albumName} [get]
func (h *GalleryHandlers) ListAlbumPhotos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		album := r.PathValue("albumName")

		photos, err := h.service.ListAlbumPhotos(r.Context(), album)
		if err != nil {
			writeError(w, err, "Server error")
			return
		}
		response.WriteJSON(w, http.StatusOK, galleryTypes.AlbumPhotosResponse{Album: album, Photos: photos})
	}
}

// DeletePhoto removes one photo from disk and the database
// @Summary Delete a photo
// @Tags moderation
// @Accept json
// @Produce json
// @Param request body galleryTypes.DeletePhotoRequest true "Photo to delete"
// @Success 200 {object} galleryTypes.MessageResponse
// @Failure 400 {object} response.Response "Bad request"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /gallery/photo [delete]
func (h *GalleryHandlers) DeletePhoto() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req galleryTypes.DeletePhotoRequest
		if err := decodeBody(r, &req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}
		if err := h.validate.Struct(req); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := h.service.DeletePhoto(r.Context(), req.Filename, req.Album); err != nil {
			writeError(w, err, "Delete failed.")
			return
		}
		response.WriteJSON(w, http.StatusOK, galleryTypes.MessageResponse{Message: "Deleted from disk & DB."})
	}
}

// ValidatePhoto approves one photo
// @Summary Validate a photo
// @Tags moderation
// @Produce json
// @Param id path string true "Photo ID"
// @Success 200 {object} galleryTypes.ValidateResponse
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 404 {object} response.Response "Not found"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /gallery/validate/{id} [patch]
// @Router /gallery/validate/{id} [post]
func (h *GalleryHandlers) ValidatePhoto() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if err := h.service.ValidatePhoto(r.Context(), id); err != nil {
			writeError(w, err, "Validation failed")
			return
		}
		response.WriteJSON(w, http.StatusOK, galleryTypes.ValidateResponse{Message: "Validated", ID: id})
	}
}

// ValidateBulk approves several photos at once
// @Summary Validate photos in bulk
// @Tags moderation
// @Accept json
// @Produce json
// @Param request body galleryTypes.ValidateBulkRequest true "Photo IDs"
// @Success 200 {object} galleryTypes.ValidateBulkResponse
// @Failure 400 {object} response.Response "No IDs provided"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /gallery/validateBulk [post]
func (h *GalleryHandlers) ValidateBulk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req galleryTypes.ValidateBulkRequest
		if err := decodeBody(r, &req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.ErrorMessage("No IDs provided."))
			return
		}
		if err := h.validate.Struct(req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.ErrorMessage("No IDs provided."))
			return
		}

		matched, err := h.service.ValidateBulk(r.Context(), req.IDs)
		if err != nil {
			writeError(w, err, "Bulk validation failed")
			return
		}
		response.WriteJSON(w, http.StatusOK, galleryTypes.ValidateBulkResponse{
			Message: "Bulk validated",
			IDs:     req.IDs,
			Matched: matched,
		})
	}
}

// DeleteUnvalidated drops every pending photo record
// @Summary Delete unvalidated photos
// @Description Removes the records only; files stay on disk until the janitor sweeps them
// @Tags moderation
// @Produce json
// @Success 200 {object} galleryTypes.DeleteCountResponse
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /gallery/unvalidated [delete]
func (h *GalleryHandlers) DeleteUnvalidated() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := h.service.DeleteUnvalidated(r.Context())
		if err != nil {
			writeError(w, err, "Server error")
			return
		}
		response.WriteJSON(w, http.StatusOK, galleryTypes.DeleteCountResponse{
			Message:      "Deleted unvalidated photos",
			DeletedCount: deleted,
		})
	}
}

// DeleteAlbum removes an album's files and records
// @Summary Delete an album
// @Tags moderation
// @Produce json
// @Param albumName path string true "Album name"
// @Success 200 {object} galleryTypes.DeleteCountResponse
// @Failure 400 {object} response.Response "Invalid album name"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /gallery/album/{albumName} [delete]
func (h *GalleryHandlers) DeleteAlbum() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		album := r.PathValue("albumName")

		deleted, err := h.service.DeleteAlbum(r.Context(), album)
		if err != nil {
			writeError(w, err, "Failed to delete album")
			return
		}
		response.WriteJSON(w, http.StatusOK, galleryTypes.DeleteCountResponse{
			Message:      fmt.Sprintf("Deleted album %q (%d photos)", album, deleted),
			DeletedCount: deleted,
		})
	}
}

// Stats reports moderation counters for the admin dashboard
// @Summary Gallery statistics
// @Tags moderation
// @Produce json
// @Success 200 {object} response.Response{data=galleryTypes.Stats}
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /gallery/stats [get]
func (h *GalleryHandlers) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.service.Stats(r.Context())
		if err != nil {
			writeError(w, err, "Server error")
			return
		}
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Stats retrieved", stats))
	}
}

// ServePhoto streams a stored image
func (h *GalleryHandlers) ServePhoto() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.PathValue("file")
		album := galleryTypes.StringPtr(r.PathValue("album"))

		rc, err := h.service.OpenPhoto(r.Context(), filename, album)
		if err != nil {
			if errors.Is(err, galleryService.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			writeError(w, err, "Server error")
			return
		}
		defer rc.Close()

		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, filename, time.Time{}, rs)
			return
		}

		if ct := mime.TypeByExtension(path.Ext(filename)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if _, err := io.Copy(w, rc); err != nil {
			slog.Warn("Failed to stream photo", slog.String("file", filename), slog.String("error", err.Error()))
		}
	}
}
