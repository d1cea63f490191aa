package chunk

import "github.com/clinigraph/trellis/internal/ids"

// Chunk is one window of document text handed to the extractor.
type Chunk struct {
	ChunkID string `json:"chunk_id"`
	Seq     int    `json:"seq"`
	Text    string `json:"text"`
}

// Chunker splits document text into overlapping character windows. Sizes are
// expressed in approximate tokens (1 token ~ 4 characters).
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1500
	}
	if overlap < 0 {
		overlap = 200
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split chunks the text in document order. Windows are measured in runes so
// a multi-byte character never straddles a chunk boundary. Chunk ids are
// scoped to the source document.
func (c *Chunker) Split(sourceID, text string) []Chunk {
	chunkRunes := c.Size * 4
	overlapRunes := c.Overlap * 4

	runes := []rune(text)
	var chunks []Chunk
	start := 0
	seq := 1
	for start < len(runes) {
		end := start + chunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			ChunkID: ids.ChunkID(sourceID, seq),
			Seq:     seq,
			Text:    string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
		start = end - overlapRunes
		seq++
	}
	return chunks
}
