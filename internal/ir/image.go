package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrEmptyResource is returned when a resource has no payload.
var ErrEmptyResource = errors.New("resource has no payload")

// ImageBlock represents an image reference in the document.
type ImageBlock struct {
	Ref     *ResourceRef `json:"ref,omitempty"`
	Path    string       `json:"path,omitempty"`    // link target once exported
	Alt     string       `json:"alt,omitempty"`     // alt text
	Caption string       `json:"caption,omitempty"` // image caption
	Width   int          `json:"width,omitempty"`   // width in pixels
	Height  int          `json:"height,omitempty"`  // height in pixels
	Missing bool         `json:"missing,omitempty"` // payload could not be exported
}

// NewImage creates a new image block backed by ref.
func NewImage(ref *ResourceRef) *ImageBlock {
	return &ImageBlock{
		Ref: ref,
	}
}

// SetDimensions sets the width and height of the image.
func (img *ImageBlock) SetDimensions(width, height int) {
	img.Width = width
	img.Height = height
}

// HasData returns true if the image has a payload to export.
func (img *ImageBlock) HasData() bool {
	return img.Ref != nil && img.Ref.HasData()
}

// Block wraps the image in a Block.
func (img *ImageBlock) Block() Block {
	return Block{Type: BlockTypeImage, Image: img}
}

// ResourceRef points at a binary payload embedded in the source document.
// The payload is held in memory or in a temporary file owned by the adapter.
// The content hash is computed at most once and is safe for concurrent use.
type ResourceRef struct {
	ID       string `json:"id"`
	MIMEType string `json:"mime_type,omitempty"`
	Name     string `json:"name,omitempty"` // original file name
	Data     []byte `json:"-"`
	TempPath string `json:"-"`

	once sync.Once
	hash string
	err  error
}

// NewResource creates a resource from an in-memory payload.
func NewResource(id, mimeType string, data []byte) *ResourceRef {
	return &ResourceRef{ID: id, MIMEType: mimeType, Data: data}
}

// HasData reports whether the resource points at a payload.
func (r *ResourceRef) HasData() bool {
	return len(r.Data) > 0 || r.TempPath != ""
}

// Payload returns the resource bytes.
func (r *ResourceRef) Payload() ([]byte, error) {
	if len(r.Data) > 0 {
		return r.Data, nil
	}
	if r.TempPath == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyResource, r.ID)
	}
	data, err := os.ReadFile(r.TempPath)
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", r.ID, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyResource, r.ID)
	}
	return data, nil
}

// ContentID returns the lowercase hex SHA-256 of the payload.
func (r *ResourceRef) ContentID() (string, error) {
	r.once.Do(func() {
		data, err := r.Payload()
		if err != nil {
			r.err = err
			return
		}
		sum := sha256.Sum256(data)
		r.hash = hex.EncodeToString(sum[:])
	})
	return r.hash, r.err
}
