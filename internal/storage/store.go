// Package storage publishes generated media and returns public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"
)

// ObjectStore is a durable store that returns a publicly resolvable URL for
// each object it accepts.
type ObjectStore interface {
	Name() string
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Reader is implemented by stores that can hand stored objects back.
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ErrNotFound is returned by Get for keys that were never stored.
var ErrNotFound = errors.New("storage: object not found")

// AssetKey builds the object key for one generated asset:
// generations/2026/03/01/<request id>/<kind>.<ext>.
func AssetKey(requestID, kind, contentType string, at time.Time) string {
	return path.Join(
		"generations",
		at.UTC().Format("2006/01/02"),
		requestID,
		kind+Extension(contentType),
	)
}

// Extension returns the preferred file extension for a content type.
func Extension(contentType string) string {
	base, _, _ := mime.ParseMediaType(contentType)
	switch base {
	case "audio/mpeg":
		return ".mp3"
	case "video/mp4":
		return ".mp4"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func publicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	escaped := strings.Join(segments, "/")
	if base == "" {
		return "/" + escaped
	}
	return fmt.Sprintf("%s/%s", base, escaped)
}
