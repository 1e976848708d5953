package service

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"imagebox/internal/domain"
	"imagebox/internal/repository"
)

const urlPrefix = "/uploads/"

type ImageService interface {
	Upload(ctx context.Context, data []byte, filename, declaredType string) (*domain.StoredImage, error)
	List(ctx context.Context) ([]domain.StoredImage, error)
	Delete(ctx context.Context, name string) error
	DeleteBatch(ctx context.Context, names []string) *domain.BatchDeleteResult
}

type imageService struct {
	repo      repository.ImageRepository
	validator *Validator
	log       *zap.Logger
}

func NewImageService(repo repository.ImageRepository, validator *Validator, log *zap.Logger) ImageService {
	return &imageService{
		repo:      repo,
		validator: validator,
		log:       log,
	}
}

// Upload runs the intake pipeline: header validation, write, content
// validation. The content check runs after the write; when it fails the
// stored file is removed before the error is reported, so a rejected
// upload never leaves a file behind.
func (s *imageService) Upload(ctx context.Context, data []byte, filename, declaredType string) (*domain.StoredImage, error) {
	if verr := s.validator.ValidateHeader(filename, declaredType, int64(len(data))); verr != nil {
		return nil, verr
	}

	ext := filepath.Ext(filename)
	name, err := s.repo.Save(ctx, data, ext)
	if err != nil {
		return nil, err
	}

	if verr := s.validator.ValidateContent(data); verr != nil {
		if derr := s.repo.Delete(ctx, name); derr != nil && !errors.Is(derr, repository.ErrNotFound) {
			s.log.Error("Failed to remove rejected upload",
				zap.String("name", name),
				zap.Error(derr))
		}
		s.log.Warn("Upload rejected by content check",
			zap.String("original_name", filename),
			zap.String("reason", verr.Reason))
		return nil, verr
	}

	image := &domain.StoredImage{
		Name:        name,
		URL:         urlPrefix + name,
		Size:        int64(len(data)),
		ContentType: mime.TypeByExtension(strings.ToLower(ext)),
		ModTime:     time.Now(),
	}

	s.log.Info("Image uploaded successfully",
		zap.String("name", name),
		zap.String("original_name", filename),
		zap.Int64("size", image.Size))

	return image, nil
}

func (s *imageService) List(ctx context.Context) ([]domain.StoredImage, error) {
	images, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range images {
		images[i].URL = urlPrefix + images[i].Name
	}

	return images, nil
}

func (s *imageService) Delete(ctx context.Context, name string) error {
	return s.repo.Delete(ctx, name)
}

// DeleteBatch removes each named file independently. One item's failure
// never aborts the rest; the caller reconciles partial success from the
// per-item details.
func (s *imageService) DeleteBatch(ctx context.Context, names []string) *domain.BatchDeleteResult {
	result := &domain.BatchDeleteResult{
		Total:   len(names),
		Details: make([]domain.DeleteDetail, 0, len(names)),
	}

	for _, name := range names {
		detail := domain.DeleteDetail{Filename: name}

		switch err := s.repo.Delete(ctx, name); {
		case err == nil:
			detail.Status = domain.DeleteStatusDeleted
			result.Deleted++
		case errors.Is(err, repository.ErrInvalidName):
			detail.Status = domain.DeleteStatusInvalid
			detail.Message = "filename contains disallowed characters"
		case errors.Is(err, repository.ErrNotFound):
			detail.Status = domain.DeleteStatusNotFound
			detail.Message = "no such image"
		default:
			detail.Status = domain.DeleteStatusError
			detail.Message = "failed to delete image"
			s.log.Error("Batch delete item failed",
				zap.String("name", name),
				zap.Error(err))
		}

		result.Details = append(result.Details, detail)
	}

	return result
}
