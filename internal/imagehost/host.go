// Package imagehost uploads post images to an external host and reports the
// hosted URL with the image dimensions.
package imagehost

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"inkpress/internal/models"
)

// Host accepts an uploaded binary and returns where it now lives.
type Host interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (*models.Image, error)
}

// Dimensions decodes only the image header. Formats without a registered
// decoder report 0x0.
func Dimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func extension(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
