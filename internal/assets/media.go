package assets

import (
	"bytes"
	"image"
	"mime"
	"net/http"
	"strings"

	// Decoders registered for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultExtension is used when neither the MIME hint nor the payload
// identifies the type.
const DefaultExtension = ".bin"

var extensions = map[string]string{
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/jpg":                ".jpg",
	"image/gif":                ".gif",
	"image/bmp":                ".bmp",
	"image/x-ms-bmp":           ".bmp",
	"image/tiff":               ".tiff",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"image/x-emf":              ".emf",
	"image/emf":                ".emf",
	"image/x-wmf":              ".wmf",
	"image/wmf":                ".wmf",
	"application/pdf":          ".pdf",
	"application/octet-stream": "",
}

// Extension picks a file extension for a payload. A type recognised from
// the bytes wins over the MIME hint; the hint only decides for payloads
// that cannot be sniffed.
func Extension(mimeType string, data []byte) (ext, resolved string) {
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if ext := extensions[sniffed]; ext != "" {
		return ext, sniffed
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		if ext := extensions[strings.ToLower(mt)]; ext != "" {
			return ext, strings.ToLower(mt)
		}
	}
	return DefaultExtension, "application/octet-stream"
}

// Dimensions returns the pixel size of raster payloads the registered
// decoders understand, or zeros.
func Dimensions(data []byte) (width, height int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
