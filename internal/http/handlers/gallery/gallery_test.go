package gallery

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/alumni-connect/gallery-service/internal/blob/fs"
	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/http/middleware"
	galleryService "github.com/alumni-connect/gallery-service/internal/services/gallery"
	"github.com/alumni-connect/gallery-service/internal/storage/memory"
	galleryTypes "github.com/alumni-connect/gallery-service/internal/types/gallery"
	"github.com/alumni-connect/gallery-service/internal/utils/jwt"
)

type upload struct {
	field       string
	filename    string
	contentType string
	body        string
}

func newTestServer(t *testing.T, auth config.Auth) http.Handler {
	t.Helper()

	blobs, err := fs.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create blob store: %v", err)
	}
	svc := galleryService.NewService(memory.NewMemory(), blobs, galleryService.Options{MaxFileSize: 1 << 20})
	h := NewGalleryHandlers(svc, 1<<20, 5)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux, middleware.NewRateLimitConfig(nil, config.RateLimit{}))
	h.RegisterBlobRoutes(mux)

	return middleware.Authenticate(auth)(mux)
}

func multipartRequest(t *testing.T, url string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		header.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("Failed to create part: %v", err)
		}
		part.Write([]byte(f.body))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rr.Body.String(), err)
	}
}

func jpeg(name string) upload {
	return upload{field: "photo", filename: name, contentType: "image/jpeg", body: "jpeg-" + name}
}

func TestUploadSingleAndServe(t *testing.T) {
	srv := newTestServer(t, config.Auth{})

	rr := serve(srv, multipartRequest(t, "/gallery/uploadSingle", map[string]string{"caption": "Hello"}, jpeg("a.jpg")))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp galleryTypes.UploadSingleResponse
	decode(t, rr, &resp)
	if resp.Message != "Uploaded & recorded!" || resp.File.Caption != "Hello" {
		t.Fatalf("Unexpected response %+v", resp)
	}
	if resp.File.Src != "/allPhotos/"+resp.File.Filename {
		t.Fatalf("Unexpected src %s", resp.File.Src)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, resp.File.Src, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 serving the photo, got %d", rr.Code)
	}
	if rr.Body.String() != "jpeg-a.jpg" {
		t.Fatalf("Unexpected photo bytes %q", rr.Body.String())
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/allPhotos/missing.jpg", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rr.Code)
	}
}

func TestUploadSingle_Errors(t *testing.T) {
	srv := newTestServer(t, config.Auth{})

	rr := serve(srv, multipartRequest(t, "/gallery/uploadSingle", map[string]string{"caption": "x"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	var body struct {
		Message string `json:"message"`
	}
	decode(t, rr, &body)
	if body.Message != "No file uploaded." {
		t.Fatalf("Unexpected message %q", body.Message)
	}

	text := upload{field: "photo", filename: "notes.txt", contentType: "text/plain", body: "hi"}
	rr = serve(srv, multipartRequest(t, "/gallery/uploadSingle", nil, text))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for non-image, got %d", rr.Code)
	}
}

func TestAlbumLifecycle(t *testing.T) {
	srv := newTestServer(t, config.Auth{})

	files := []upload{
		{field: "photos", filename: "1.jpg", contentType: "image/jpeg", body: "1"},
		{field: "photos", filename: "2.jpg", contentType: "image/jpeg", body: "2"},
		{field: "photos[]", filename: "3.png", contentType: "image/png", body: "3"},
	}
	rr := serve(srv, multipartRequest(t, "/gallery/uploadAlbum", map[string]string{"album": "Reunion2024"}, files...))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var msg galleryTypes.MessageResponse
	decode(t, rr, &msg)
	if msg.Message != `Saved 3 to "Reunion2024"` {
		t.Fatalf("Unexpected message %q", msg.Message)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/gallery/albums", nil))
	var albums galleryTypes.AlbumsResponse
	decode(t, rr, &albums)
	if len(albums.Albums) != 1 || albums.Albums[0].AlbumName != "Reunion2024" || albums.Albums[0].TotalPhotos != 3 {
		t.Fatalf("Unexpected albums %+v", albums)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/gallery/album/Reunion2024", nil))
	var albumPhotos galleryTypes.AlbumPhotosResponse
	decode(t, rr, &albumPhotos)
	if albumPhotos.Album != "Reunion2024" || len(albumPhotos.Photos) != 3 {
		t.Fatalf("Unexpected album photos %+v", albumPhotos)
	}

	ids, _ := json.Marshal(map[string][]string{"ids": {albumPhotos.Photos[0].ID, albumPhotos.Photos[1].ID}})
	rr = serve(srv, jsonRequest(http.MethodPost, "/gallery/validateBulk", string(ids)))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/gallery/photos?validated=true", nil))
	var validated galleryTypes.PhotosResponse
	decode(t, rr, &validated)
	if len(validated.Photos) != 2 {
		t.Fatalf("Expected 2 validated photos, got %d", len(validated.Photos))
	}

	rr = serve(srv, httptest.NewRequest(http.MethodDelete, "/gallery/album/Reunion2024", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var deleted galleryTypes.DeleteCountResponse
	decode(t, rr, &deleted)
	if deleted.DeletedCount != 3 {
		t.Fatalf("Expected 3 deleted, got %d", deleted.DeletedCount)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/gallery/albums", nil))
	albums = galleryTypes.AlbumsResponse{}
	decode(t, rr, &albums)
	if len(albums.Albums) != 0 {
		t.Fatalf("Expected no albums, got %+v", albums.Albums)
	}
}

func TestUploadAlbum_Errors(t *testing.T) {
	srv := newTestServer(t, config.Auth{})

	rr := serve(srv, multipartRequest(t, "/gallery/uploadAlbum", nil, upload{field: "photos", filename: "1.jpg", contentType: "image/jpeg", body: "1"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without album, got %d", rr.Code)
	}

	rr = serve(srv, multipartRequest(t, "/gallery/uploadAlbum", map[string]string{"album": "Trip"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without files, got %d", rr.Code)
	}

	var many []upload
	for i := 0; i < 6; i++ {
		many = append(many, upload{field: "photos", filename: "x.jpg", contentType: "image/jpeg", body: "x"})
	}
	rr = serve(srv, multipartRequest(t, "/gallery/uploadAlbum", map[string]string{"album": "Trip"}, many...))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for too many files, got %d", rr.Code)
	}
}

func TestModerationRoutes(t *testing.T) {
	srv := newTestServer(t, config.Auth{})

	rr := serve(srv, multipartRequest(t, "/gallery/uploadSingle", nil, jpeg("a.jpg")))
	var up galleryTypes.UploadSingleResponse
	decode(t, rr, &up)
	serve(srv, multipartRequest(t, "/gallery/uploadSingle", nil, jpeg("b.jpg")))

	rr = serve(srv, httptest.NewRequest(http.MethodPatch, "/gallery/validate/"+up.File.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var v galleryTypes.ValidateResponse
	decode(t, rr, &v)
	if v.ID != up.File.ID || v.Message != "Validated" {
		t.Fatalf("Unexpected response %+v", v)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodPost, "/gallery/validate/does-not-exist", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rr.Code)
	}

	rr = serve(srv, jsonRequest(http.MethodPost, "/gallery/validateBulk", `{"ids":[]}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for empty ids, got %d", rr.Code)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/gallery/stats", nil))
	var stats struct {
		Data galleryTypes.Stats `json:"data"`
	}
	decode(t, rr, &stats)
	if stats.Data.Total != 2 || stats.Data.Validated != 1 || stats.Data.Pending != 1 {
		t.Fatalf("Unexpected stats %+v", stats.Data)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodDelete, "/gallery/unvalidated", nil))
	var purged galleryTypes.DeleteCountResponse
	decode(t, rr, &purged)
	if purged.DeletedCount != 1 {
		t.Fatalf("Expected 1 purged, got %d", purged.DeletedCount)
	}

	body := `{"filename":"` + up.File.Filename + `"}`
	for i := 0; i < 2; i++ {
		rr = serve(srv, jsonRequest(http.MethodDelete, "/gallery/photo", body))
		if rr.Code != http.StatusOK {
			t.Fatalf("Delete %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/gallery/photos", nil))
	var all galleryTypes.PhotosResponse
	decode(t, rr, &all)
	if len(all.Photos) != 0 {
		t.Fatalf("Expected no photos, got %d", len(all.Photos))
	}

	rr = serve(srv, jsonRequest(http.MethodDelete, "/gallery/photo", `{}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without filename, got %d", rr.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	auth := config.Auth{JWTSecret: "secret", AdminRoles: []string{"Admin"}}
	srv := newTestServer(t, auth)

	rr := serve(srv, httptest.NewRequest(http.MethodDelete, "/gallery/unvalidated", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rr.Code)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/gallery/photos", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 listing pending photos anonymously, got %d", rr.Code)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/gallery/photos?validated=true", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected public listing to pass, got %d", rr.Code)
	}

	alumni, _ := jwt.CreateToken("u1", "Alumni", "secret")
	req := httptest.NewRequest(http.MethodDelete, "/gallery/unvalidated", nil)
	req.Header.Set("Authorization", "Bearer "+alumni)
	if rr := serve(srv, req); rr.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rr.Code)
	}

	admin, _ := jwt.CreateToken("u2", "Admin", "secret")
	req = httptest.NewRequest(http.MethodDelete, "/gallery/unvalidated", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	if rr := serve(srv, req); rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
}

func TestListPhotos_BadFilter(t *testing.T) {
	srv := newTestServer(t, config.Auth{})

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/gallery/photos?validated=maybe", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
}
