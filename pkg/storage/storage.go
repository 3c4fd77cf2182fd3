package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"opsuite/pkg/apperr"
)

const MaxUploadSize = 10 << 20

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

type Object struct {
	Key         string `json:"object_key" bson:"object_key"`
	URL         string `json:"url" bson:"url"`
	FileName    string `json:"file_name" bson:"file_name"`
	ContentType string `json:"content_type" bson:"content_type"`
	Size        int64  `json:"size" bson:"size"`
}

// Store keeps uploaded files.
type Store interface {
	Put(ctx context.Context, prefix, filename, contentType string, r io.Reader, size int64) (*Object, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

// ValidateUpload enforces the size limit and the document/image whitelist.
func ValidateUpload(filename, contentType string, size int64) error {
	if filename == "" {
		return fmt.Errorf("%w: file is required", apperr.ErrValidation)
	}
	if size <= 0 || size > MaxUploadSize {
		return fmt.Errorf("%w: file size must be between 1 byte and %d MB", apperr.ErrValidation, MaxUploadSize>>20)
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !allowedTypes[ct] {
		return fmt.Errorf("%w: unsupported file type %q", apperr.ErrValidation, contentType)
	}
	return nil
}

// ObjectKey builds prefix/<uuid>_<basename>.
func ObjectKey(prefix, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r == '?' || r == '#' || r == '%' {
			return '_'
		}
		return r
	}, base)
	return strings.Trim(prefix, "/") + "/" + uuid.NewString() + "_" + base
}
