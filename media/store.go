package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// Extension maps a MIME type to a file extension, ".bin" when unknown.
func Extension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	if ext, ok := extensions[strings.TrimSpace(strings.ToLower(base))]; ok {
		return ext
	}
	return ".bin"
}

// DirStore writes media into a local directory and serves it under BaseURL.
type DirStore struct {
	Dir     string
	BaseURL string
}

func NewDirStore(dir, baseURL string) (*DirStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("media dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DirStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *DirStore) Save(ctx context.Context, name, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	file := filepath.Base(name) + Extension(mimeType)
	if err := os.WriteFile(filepath.Join(s.Dir, file), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", file, err)
	}
	return s.BaseURL + "/" + file, nil
}
