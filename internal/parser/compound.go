package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
)

// OLE stream names that identify what a compound file holds.
const (
	streamEncryptedPackage = "EncryptedPackage"
	streamEncryptionInfo   = "EncryptionInfo"
	streamWordDocument     = "WordDocument"
)

// InspectCompound walks the directory of an OLE compound file and explains
// why it cannot be converted: an encrypted OOXML package or a legacy binary
// Word document. Other compound files are unsupported.
func InspectCompound(r io.ReaderAt) error {
	doc, err := mscfb.New(r)
	if err != nil {
		return fmt.Errorf("%w: unreadable compound file: %v", ErrUnsupportedFormat, err)
	}

	var streams []string
	for _, entry := range doc.File {
		streams = append(streams, strings.Join(append(entry.Path, entry.Name), "/"))
		switch entry.Name {
		case streamEncryptedPackage, streamEncryptionInfo:
			return ErrEncrypted
		case streamWordDocument:
			return ErrLegacyWord
		}
	}
	return fmt.Errorf("%w: compound file with streams %s", ErrUnsupportedFormat, strings.Join(streams, ", "))
}
