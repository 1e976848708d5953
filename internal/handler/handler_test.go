package handler

import (
	"bytes"
	"encoding/json"
	"html/template"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"imagebox/internal/config"
	"imagebox/internal/middleware"
	"imagebox/internal/repository"
	"imagebox/internal/service"
)

var testFormats = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.UploadDir = t.TempDir()
	cfg.App.MaxUploadSize = 10 << 20
	cfg.App.AllowedFormats = testFormats

	log := zap.NewNop()
	repo, err := repository.NewDiskRepository(cfg.App.UploadDir, cfg.App.AllowedFormats, log)
	if err != nil {
		t.Fatalf("NewDiskRepository: %v", err)
	}
	svc := service.NewImageService(repo, service.NewValidator(cfg.App.MaxUploadSize, cfg.App.AllowedFormats), log)
	h := NewHandler(svc, cfg, log)

	router := gin.New()
	router.SetHTMLTemplate(template.Must(template.ParseGlob("../../web/templates/*")))

	router.GET("/", h.Dashboard)
	router.GET("/dashboard", h.Dashboard)
	router.GET("/health", h.HealthCheck)
	router.POST("/upload", h.UploadImage)
	router.DELETE("/image/:filename", h.DeleteImage)
	router.POST("/delete", h.DeleteBatch)
	router.GET("/api/images", h.ListImages)

	uploads := router.Group("/uploads", middleware.CacheControl(time.Hour))
	uploads.Static("/", cfg.App.UploadDir)

	return router
}

func pngUpload(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a form with one file part carrying an explicit
// Content-Type, which mime/multipart's CreateFormFile cannot set.
func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("part.Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("writer.Close: %v", err)
	}

	return body, w.FormDataContentType()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body *bytes.Buffer, contentType string) (int, map[string]any) {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, w.Body.String())
	}
	return w.Code, parsed
}

func TestUploadListDeleteLifecycle(t *testing.T) {
	router := newTestRouter(t)
	data := pngUpload(t)

	body, ct := multipartBody(t, "image", "pic.PNG", "image/png", data)
	code, resp := doJSON(t, router, http.MethodPost, "/upload", body, ct)

	if code != http.StatusCreated {
		t.Fatalf("upload: got %d, want 201: %v", code, resp)
	}
	if resp["success"] != true {
		t.Errorf("upload success: got %v", resp["success"])
	}
	filename, _ := resp["filename"].(string)
	if !strings.HasSuffix(filename, ".png") {
		t.Errorf("filename %q does not end in .png", filename)
	}
	if int64(resp["size"].(float64)) != int64(len(data)) {
		t.Errorf("size: got %v, want %d", resp["size"], len(data))
	}
	if resp["mimetype"] != "image/png" {
		t.Errorf("mimetype: got %v", resp["mimetype"])
	}
	if resp["url"] != "/uploads/"+filename {
		t.Errorf("url: got %v", resp["url"])
	}

	// The returned URL must resolve to the stored bytes.
	fetch := httptest.NewRequest(http.MethodGet, resp["url"].(string), nil)
	fw := httptest.NewRecorder()
	router.ServeHTTP(fw, fetch)
	if fw.Code != http.StatusOK {
		t.Fatalf("fetch %v: got %d, want 200", resp["url"], fw.Code)
	}
	if fw.Body.Len() != len(data) {
		t.Errorf("fetched size: got %d, want %d", fw.Body.Len(), len(data))
	}
	if cc := fw.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age") {
		t.Errorf("static response lacks cache header: %q", cc)
	}

	code, resp = doJSON(t, router, http.MethodGet, "/api/images", nil, "")
	if code != http.StatusOK || resp["count"].(float64) != 1 {
		t.Fatalf("list after upload: code %d, resp %v", code, resp)
	}

	code, resp = doJSON(t, router, http.MethodDelete, "/image/"+filename, nil, "")
	if code != http.StatusOK || resp["success"] != true {
		t.Fatalf("delete: code %d, resp %v", code, resp)
	}

	code, resp = doJSON(t, router, http.MethodGet, "/api/images", nil, "")
	if code != http.StatusOK || resp["count"].(float64) != 0 {
		t.Fatalf("list after delete: code %d, resp %v", code, resp)
	}
}

func TestUploadMissingFile(t *testing.T) {
	router := newTestRouter(t)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	w.Close()

	code, resp := doJSON(t, router, http.MethodPost, "/upload", body, w.FormDataContentType())
	if code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", code)
	}
	if _, ok := resp["error"]; !ok {
		t.Errorf("missing error field: %v", resp)
	}
}

func TestUploadDisallowedType(t *testing.T) {
	router := newTestRouter(t)

	body, ct := multipartBody(t, "image", "report.pdf", "application/pdf", []byte("%PDF-1.4"))
	code, resp := doJSON(t, router, http.MethodPost, "/upload", body, ct)

	if code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", code)
	}
	if _, ok := resp["allowedTypes"]; !ok {
		t.Errorf("rejection lacks allowedTypes: %v", resp)
	}
}

func TestUploadDisguisedPayload(t *testing.T) {
	router := newTestRouter(t)

	body, ct := multipartBody(t, "image", "pic.png", "image/png", []byte("definitely not a png"))
	code, resp := doJSON(t, router, http.MethodPost, "/upload", body, ct)

	if code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %v", code, resp)
	}

	// Nothing may remain in the store after a content rejection.
	code, resp = doJSON(t, router, http.MethodGet, "/api/images", nil, "")
	if code != http.StatusOK || resp["count"].(float64) != 0 {
		t.Errorf("store not empty after rejection: %v", resp)
	}
}

func TestDeleteInvalidFilename(t *testing.T) {
	router := newTestRouter(t)

	code, _ := doJSON(t, router, http.MethodDelete, "/image/bad%20name.png", nil, "")
	if code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", code)
	}
}

func TestDeleteMissingImage(t *testing.T) {
	router := newTestRouter(t)

	code, _ := doJSON(t, router, http.MethodDelete, "/image/1700000000000-7.png", nil, "")
	if code != http.StatusNotFound {
		t.Errorf("got %d, want 404", code)
	}
}

func TestBatchDeleteEmptyList(t *testing.T) {
	router := newTestRouter(t)

	body := bytes.NewBufferString(`{"imagesToDelete": []}`)
	code, _ := doJSON(t, router, http.MethodPost, "/delete", body, "application/json")
	if code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", code)
	}
}

func TestBatchDeletePartialSuccess(t *testing.T) {
	router := newTestRouter(t)

	upBody, ct := multipartBody(t, "image", "pic.png", "image/png", pngUpload(t))
	code, resp := doJSON(t, router, http.MethodPost, "/upload", upBody, ct)
	if code != http.StatusCreated {
		t.Fatalf("upload: got %d", code)
	}
	existing := resp["filename"].(string)

	payload, _ := json.Marshal(map[string]any{
		"imagesToDelete": []string{existing, "../traversal.png", "1700000000000-9.png"},
	})
	code, resp = doJSON(t, router, http.MethodPost, "/delete", bytes.NewBuffer(payload), "application/json")

	if code != http.StatusOK {
		t.Fatalf("got %d, want 200: %v", code, resp)
	}
	if resp["success"] != true {
		t.Errorf("success: got %v", resp["success"])
	}
	if resp["deleted"].(float64) != 1 || resp["total"].(float64) != 3 {
		t.Errorf("accounting: deleted %v of %v", resp["deleted"], resp["total"])
	}
	details, ok := resp["details"].([]any)
	if !ok || len(details) != 3 {
		t.Fatalf("details: got %v", resp["details"])
	}
}

func TestBatchDeleteTotalFailure(t *testing.T) {
	router := newTestRouter(t)

	body := bytes.NewBufferString(`{"imagesToDelete": ["missing-1.png", "missing-2.png"]}`)
	code, resp := doJSON(t, router, http.MethodPost, "/delete", body, "application/json")

	if code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %v", code, resp)
	}
	if resp["success"] != false {
		t.Errorf("success: got %v", resp["success"])
	}
	if _, ok := resp["details"]; !ok {
		t.Errorf("total failure lacks details: %v", resp)
	}
}

func TestDashboardEmptyState(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No images uploaded yet") {
		t.Errorf("empty state message missing")
	}
	if !strings.Contains(w.Body.String(), "0 image(s) stored") {
		t.Errorf("image count missing")
	}
}

func TestDashboardEscapesBanner(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/?error=%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Errorf("banner echoed unescaped script")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("escaped banner value not rendered")
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)

	code, resp := doJSON(t, router, http.MethodGet, "/health", nil, "")
	if code != http.StatusOK {
		t.Fatalf("got %d, want 200", code)
	}
	if resp["status"] != "ok" {
		t.Errorf("status: got %v", resp["status"])
	}
	for _, key := range []string{"timestamp", "uptime"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("missing %q field", key)
		}
	}
}
