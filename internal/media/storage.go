// Package media stores uploaded recipe images and their thumbnails on disk.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const thumbnailSuffix = ".thumbnail"

var (
	ErrUnsupportedType = errors.New("image must be a png or jpeg file")
	ErrInvalidName     = errors.New("invalid image file name")
	ErrNotFound        = errors.New("image not found")
	ErrEmpty           = errors.New("image data cannot be empty")
)

var (
	namePattern       = regexp.MustCompile(`^[a-z0-9]{32}\.[a-z]{3,4}(\.thumbnail)?$`)
	allowedExtensions = map[string]string{
		"png":  "png",
		"jpg":  "jpeg",
		"jpeg": "jpeg",
	}
)

// Storage manages image files under a single directory.
// Safe for concurrent use.
type Storage struct {
	basePath  string
	thumbSize int
	mu        sync.RWMutex
}

// NewStorage creates basePath if needed. thumbSize bounds the longest edge
// of generated thumbnails.
func NewStorage(basePath string, thumbSize int) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if thumbSize <= 0 {
		thumbSize = DefaultThumbnailSize
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Storage{basePath: basePath, thumbSize: thumbSize}, nil
}

// ValidName reports whether name looks like a file this package generated.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ThumbnailName returns the thumbnail file name for an image.
func ThumbnailName(name string) string {
	return name + thumbnailSuffix
}

// Extension returns the lowercased extension of filename when it is one of
// png, jpg or jpeg.
func Extension(filename string) (string, bool) {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return "", false
	}
	ext := strings.ToLower(filename[i+1:])
	_, ok := allowedExtensions[ext]
	return ext, ok
}

// Save validates an upload by extension and decoded content, writes it under
// a fresh random name and generates its thumbnail. It returns the new name.
func (s *Storage) Save(filename string, r io.Reader) (string, error) {
	ext, ok := Extension(filename)
	if !ok {
		return "", ErrUnsupportedType
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil || format != allowedExtensions[ext] {
		return "", ErrUnsupportedType
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext

	thumb, err := encodeThumbnail(img, format, s.thumbSize)
	if err != nil {
		return "", fmt.Errorf("failed to build thumbnail: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.WriteFile(s.path(ThumbnailName(name)), thumb, 0o644); err != nil {
		_ = os.Remove(s.path(name))
		return "", fmt.Errorf("failed to write thumbnail file: %w", err)
	}

	return name, nil
}

// Open returns the absolute path of a stored file after validating its name.
func (s *Storage) Open(name string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.path(name)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to stat image: %w", err)
	}
	return p, nil
}

// Exists reports whether name is stored.
func (s *Storage) Exists(name string) bool {
	_, err := s.Open(name)
	return err == nil
}

// Delete removes an image and its thumbnail. Missing files are not an error.
func (s *Storage) Delete(name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, p := range []string{s.path(name), s.path(ThumbnailName(name))} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to delete image files: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Storage) path(name string) string {
	return filepath.Join(s.basePath, name)
}
