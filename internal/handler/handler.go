package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"imagebox/internal/config"
	"imagebox/internal/domain"
	"imagebox/internal/repository"
	"imagebox/internal/service"
)

// Slack for multipart boundaries and form fields on top of the file
// size ceiling enforced by the validator.
const multipartOverhead = 1 << 20

type Handler struct {
	service   service.ImageService
	cfg       *config.Config
	log       *zap.Logger
	startedAt time.Time
}

func NewHandler(service service.ImageService, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		cfg:       cfg,
		log:       log,
		startedAt: time.Now(),
	}
}

func (h *Handler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.App.MaxUploadSize+multipartOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("File exceeds the %d MiB size limit", h.cfg.App.MaxUploadSize>>20),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}

	src, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		h.log.Error("Failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	image, err := h.service.Upload(c.Request.Context(), data, file.Filename, file.Header.Get("Content-Type"))
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":        verr.Reason,
				"allowedTypes": verr.Allowed,
			})
			return
		}
		h.log.Error("Failed to store image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"filename": image.Name,
		"url":      image.URL,
		"size":     image.Size,
		"mimetype": image.ContentType,
	})
}

func (h *Handler) DeleteImage(c *gin.Context) {
	name := c.Param("filename")

	switch err := h.service.Delete(c.Request.Context(), name); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, repository.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filename"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
	default:
		h.log.Error("Failed to delete image",
			zap.String("name", name),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete image"})
	}
}

type batchDeleteRequest struct {
	ImagesToDelete []string `json:"imagesToDelete"`
}

func (h *Handler) DeleteBatch(c *gin.Context) {
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.ImagesToDelete) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No images to delete"})
		return
	}

	result := h.service.DeleteBatch(c.Request.Context(), req.ImagesToDelete)

	status := http.StatusOK
	if result.Deleted == 0 {
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{
		"success": result.Deleted > 0,
		"deleted": result.Deleted,
		"total":   result.Total,
		"details": result.Details,
	})
}

func (h *Handler) Dashboard(c *gin.Context) {
	images, err := h.service.List(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list images", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list images"})
		return
	}

	// success/error banners come from query parameters; the template
	// escapes them, so a crafted value renders as text.
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Images":  images,
		"Count":   len(images),
		"Success": c.Query("success"),
		"Error":   c.Query("error"),
	})
}

func (h *Handler) ListImages(c *gin.Context) {
	images, err := h.service.List(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list images", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list images"})
		return
	}

	if images == nil {
		images = []domain.StoredImage{}
	}

	c.JSON(http.StatusOK, gin.H{"images": images, "count": len(images)})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    int64(time.Since(h.startedAt).Seconds()),
	})
}
