// Package assets stores downloaded image payloads so that build-db can embed
// images without fetching them again. Payloads are addressed by an opaque
// reference returned from Put.
package assets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/poiesic/newsrag/core"
)

var (
	// ErrAssetNotFound indicates no payload exists for a reference.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrInvalidKey indicates an empty or unsafe asset key.
	ErrInvalidKey = errors.New("invalid asset key")
)

// Store persists image payloads.
type Store interface {
	// Put stores data under key and returns a reference for Get.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get returns the payload stored under ref.
	Get(ctx context.Context, ref string) ([]byte, error)

	// Exists reports whether a payload is stored under ref.
	Exists(ctx context.Context, ref string) (bool, error)
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// KeyFor derives a stable asset key from an image URL.
func KeyFor(imageURL, contentType string) string {
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".bin"
		if u, err := url.Parse(imageURL); err == nil {
			if e := strings.ToLower(path.Ext(u.Path)); e != "" && len(e) <= 5 {
				ext = e
			}
		}
	}
	return fmt.Sprintf("%016x%s", uint64(core.IDFromContent(imageURL)), ext)
}

func validKey(key string) bool {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return false
	}
	return true
}
