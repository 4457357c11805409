package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"

	"github.com/roboco-io/chaptermd/internal/ir"
)

// DocumentID derives a stable identifier from the source name and the
// normalized content, including resource payload hashes. Identical input
// yields the same id on every run.
func DocumentID(doc *ir.Document) string {
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(doc.Content)
	for _, ref := range doc.Resources {
		if id, err := ref.ContentID(); err == nil {
			h.Write([]byte(id))
		}
	}
	key := "chaptermd:document:" + strings.TrimSpace(doc.Metadata.Source) + ":" + hex.EncodeToString(h.Sum(nil))

	uid, err := hashid.NewUUID(key, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		uid = uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
	}
	return uid.String()
}
