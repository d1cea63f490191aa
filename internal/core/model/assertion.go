package model

// RawAssertion is a relationship assertion as the extractor emits it, with
// chunk-local references of the form "type[index]".
type RawAssertion struct {
	Predicate  string         `json:"predicate"`
	SubjectRef string         `json:"subject_ref"`
	ObjectRef  string         `json:"object_ref"`
	Properties map[string]any `json:"properties,omitempty"`
	Confidence float64        `json:"confidence"`
}

// Assertion is a consolidated assertion after cross-chunk merging. Subject
// and object are indices into the document-global entity list; Evidence
// lists the chunk ids the assertion was extracted from.
type Assertion struct {
	Predicate  string         `json:"predicate"`
	SubjectRef int            `json:"subject_ref"`
	ObjectRef  int            `json:"object_ref"`
	Properties map[string]any `json:"properties,omitempty"`
	Evidence   []string       `json:"evidence"`
	Confidence float64        `json:"confidence"`
}

// ChunkExtraction is the output of the extraction adapter for one chunk.
type ChunkExtraction struct {
	ChunkID    string                  `json:"chunk_id"`
	Entities   map[EntityType][]Entity `json:"entities"`
	Assertions []RawAssertion          `json:"assertions"`
}

// NumEntities counts the entities across all types of one extraction.
func (c *ChunkExtraction) NumEntities() int {
	n := 0
	for _, list := range c.Entities {
		n += len(list)
	}
	return n
}
