package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/config"
)

// Storage is a blob store scoped to a single bucket. Available reports the
// result of the bucket check performed at start-up.
type Storage interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Available() bool
}

func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "supabase":
		s := NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket)
		s.EnsureBucket(ctx)
		return s, nil
	case "s3":
		return NewS3Storage(ctx, cfg)
	case "local":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewKey builds the object key for an uploaded file:
// <owner>/<8 random hex chars>_<base filename>.
func NewKey(ownerID uuid.UUID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return fmt.Sprintf("%s/%s_%s", ownerID, uuid.NewString()[:8], name)
}
