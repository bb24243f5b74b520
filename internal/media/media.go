// Package media loads caller images from disk and settles their media type.
package media

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
)

var (
	ErrTooLarge    = errors.New("image too large")
	ErrUnsupported = errors.New("unsupported image type")
)

// imageExts maps file extensions to MIME types for supported image formats.
var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// LoadFile reads an image from disk. The media type comes from the file
// extension, or from the content when the extension is unknown. An empty
// file yields an Image with no data.
func LoadFile(path string, maxBytes int64) (ctxpkg.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ctxpkg.Image{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ctxpkg.Image{}, fmt.Errorf("%s is a directory", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return ctxpkg.Image{}, fmt.Errorf("%s: %.1f MB: %w", filepath.Base(path), float64(info.Size())/(1024*1024), ErrTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ctxpkg.Image{}, fmt.Errorf("read image %s: %w", path, err)
	}
	if len(data) == 0 {
		return ctxpkg.Image{}, nil
	}

	if mediaType, ok := imageExts[strings.ToLower(filepath.Ext(path))]; ok {
		return ctxpkg.Image{Data: data, MediaType: mediaType}, nil
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return ctxpkg.Image{Data: data, MediaType: sniffed}, nil
	}
	return ctxpkg.Image{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
}

// ResolveType returns the media type to send for an uploaded image. A
// declared type is kept unless it is blank or generic, in which case the
// content is sniffed; anything still unknown becomes ctxpkg.DefaultMediaType.
func ResolveType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if len(data) > 0 {
		if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	return ctxpkg.DefaultMediaType
}
