package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator mints durable node identifiers. Implementations must guarantee
// global uniqueness; an identifier assigned to a node is never regenerated.
type Generator interface {
	EntityID() string
}

// UUIDGenerator mints random v4 UUIDs.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) EntityID() string {
	return uuid.New().String()
}

// SourceID derives a stable document identifier from the source type and the
// first kilobyte of content, so re-uploading the same document maps to the
// same SourceDocument node.
func SourceID(content, sourceType string) string {
	sample := content
	if len(sample) > 1000 {
		sample = sample[:1000]
	}
	sum := sha256.Sum256([]byte(sourceType + ":" + sample))
	return hex.EncodeToString(sum[:])[:16]
}

// DocumentID prefixes a SourceID for use as the SourceDocument node key.
func DocumentID(sourceID string) string {
	return "DOC_" + sourceID
}

// ChunkID builds a chunk identifier scoped to its source document.
func ChunkID(sourceID string, seq int) string {
	sum := sha256.Sum256([]byte(sourceID))
	return fmt.Sprintf("C_%s_%04d", hex.EncodeToString(sum[:])[:6], seq)
}

// AssertionID derives a deterministic identifier for an assertion so the
// same (predicate, subject, object, source) tuple never creates duplicates.
func AssertionID(predicate, subjectID, objectID, sourceID string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{predicate, subjectID, objectID, sourceID}, "_")))
	return "A_" + hex.EncodeToString(sum[:])[:12]
}
