// Package imagestore validates uploaded images and persists them to the
// content directory served under the /uploads/ path prefix.
package imagestore

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mpetrenko/geotaglog/internal/models"
)

// URLPrefix is the public path prefix uploaded images are served under.
const URLPrefix = "/uploads/"

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// FileStore writes validated images into a single directory.
type FileStore struct {
	dir string
}

// New creates the content directory when missing and returns a FileStore
// over it.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("error creating the uploads directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Dir returns the content directory the store writes to.
func (store *FileStore) Dir() string {
	return store.dir
}

// Allowed reports whether both the filename extension and the declared
// content type are on the jpeg/jpg/png allow-list. Checking both is a
// guard against spoofed Content-Type headers; neither check alone is
// trusted.
func Allowed(filename, contentType string) bool {
	extension := strings.ToLower(filepath.Ext(filename))
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))

	return allowedExtensions[extension] && allowedContentTypes[mediaType]
}

func storedName(originalName string) string {
	// Millisecond timestamp plus the original base name; the pair is
	// collision-resistant enough for a single content directory.
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(originalName))
}

// Save validates the uploaded part and writes it under a generated
// unique filename, returning the relative URL of the stored image.
func (store *FileStore) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	if !Allowed(header.Filename, header.Header.Get("Content-Type")) {
		return "", fmt.Errorf("%q: %w", header.Filename, models.ErrUnsupportedMediaType)
	}

	name := storedName(header.Filename)

	target, err := os.Create(filepath.Join(store.dir, name))
	if err != nil {
		return "", fmt.Errorf("error creating the image file: %w", err)
	}
	defer target.Close()

	if _, err := io.Copy(target, file); err != nil {
		return "", fmt.Errorf("error writing the image file: %w", err)
	}

	return URLPrefix + name, nil
}

// Remove deletes a stored image given its relative URL. Unknown names
// are reported so the caller can log them.
func (store *FileStore) Remove(relativeURL string) error {
	name := filepath.Base(strings.TrimPrefix(relativeURL, URLPrefix))
	if name == "" || name == "." {
		return fmt.Errorf("%q: not a stored image reference", relativeURL)
	}

	return os.Remove(filepath.Join(store.dir, name))
}
