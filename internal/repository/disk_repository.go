package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"imagebox/internal/domain"
)

var (
	ErrNotFound    = errors.New("image not found")
	ErrInvalidName = errors.New("invalid image name")
)

// Accepts only word characters, hyphens and dots. Checked before any
// path is built, so traversal sequences like "../" never reach the
// filesystem.
var safeName = regexp.MustCompile(`^[\w.-]+$`)

type ImageRepository interface {
	Save(ctx context.Context, data []byte, ext string) (string, error)
	List(ctx context.Context) ([]domain.StoredImage, error)
	Delete(ctx context.Context, name string) error
}

type diskRepository struct {
	dir         string
	allowedExts map[string]struct{}
	log         *zap.Logger
}

func NewDiskRepository(dir string, allowedExts []string, log *zap.Logger) (ImageRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}

	exts := make(map[string]struct{}, len(allowedExts))
	for _, ext := range allowedExts {
		exts[strings.ToLower(ext)] = struct{}{}
	}

	log.Info("Disk repository ready", zap.String("dir", dir))

	return &diskRepository{
		dir:         dir,
		allowedExts: exts,
		log:         log,
	}, nil
}

// generateName combines a millisecond timestamp with a random integer
// so concurrent saves do not collide.
func generateName(ext string) string {
	return fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.Int63(), strings.ToLower(ext))
}

func (r *diskRepository) Save(ctx context.Context, data []byte, ext string) (string, error) {
	name := generateName(ext)
	path := filepath.Join(r.dir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		r.log.Error("Failed to write file",
			zap.String("path", path),
			zap.Error(err))
		return "", err
	}

	r.log.Info("File stored",
		zap.String("name", name),
		zap.Int("size", len(data)))

	return name, nil
}

// List returns stored images sorted by modification time, most recent
// first. Entries with equal modification times keep directory
// enumeration order, which is not deterministic.
func (r *diskRepository) List(ctx context.Context) ([]domain.StoredImage, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.log.Error("Failed to read storage directory",
			zap.String("dir", r.dir),
			zap.Error(err))
		return nil, err
	}

	images := make([]domain.StoredImage, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := r.allowedExts[ext]; !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			r.log.Warn("Skipping unreadable entry",
				zap.String("name", entry.Name()),
				zap.Error(err))
			continue
		}

		images = append(images, domain.StoredImage{
			Name:        entry.Name(),
			Size:        info.Size(),
			ContentType: mime.TypeByExtension(ext),
			ModTime:     info.ModTime(),
		})
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].ModTime.After(images[j].ModTime)
	})

	return images, nil
}

func (r *diskRepository) Delete(ctx context.Context, name string) error {
	if name == "." || name == ".." || !safeName.MatchString(name) {
		return ErrInvalidName
	}

	path := filepath.Join(r.dir, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		r.log.Error("Failed to delete file",
			zap.String("path", path),
			zap.Error(err))
		return err
	}

	r.log.Info("File deleted", zap.String("name", name))

	return nil
}
