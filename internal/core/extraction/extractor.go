package extraction

import (
	"context"
	"fmt"
	"log"

	"github.com/clinigraph/trellis/internal/chunk"
	"github.com/clinigraph/trellis/internal/core/common"
	"github.com/clinigraph/trellis/internal/core/model"
	"github.com/clinigraph/trellis/internal/llm"
)

// Extractor wraps the external LLM extractor for one text chunk. Its output
// contract is the only thing the pipeline relies on; the model itself is a
// black box.
type Extractor struct {
	LLM    llm.LLMClient
	Prompt string
}

func NewExtractor(llmClient llm.LLMClient, prompt string) *Extractor {
	return &Extractor{
		LLM:    llmClient,
		Prompt: prompt,
	}
}

// PriorContext carries the instance entities seen in earlier chunks so the
// extractor can reference them instead of inventing fresh ones.
type PriorContext struct {
	Patient   string
	Encounter string
	Clinician string
}

func (p *PriorContext) section() string {
	if p == nil || (p.Patient == "" && p.Encounter == "" && p.Clinician == "") {
		return ""
	}
	s := "\n## PREVIOUS CONTEXT (entities from earlier chunks):\n"
	if p.Patient != "" {
		s += fmt.Sprintf("- Patient: %s\n", p.Patient)
	}
	if p.Encounter != "" {
		s += fmt.Sprintf("- Encounter: %s\n", p.Encounter)
	}
	if p.Clinician != "" {
		s += fmt.Sprintf("- Clinician: %s\n", p.Clinician)
	}
	s += "\nREFERENCE these entities if they appear in the current text chunk.\n"
	return s
}

// rawExtraction mirrors the JSON shape the extractor is prompted to return.
type rawExtraction struct {
	Entities   map[string][]map[string]any `json:"entities"`
	Assertions []model.RawAssertion        `json:"assertions"`
}

// ExtractChunk runs the extractor over one chunk and validates its output
// against the closed entity-type set. A malformed or failed extraction is
// treated as an empty one; the rest of the document still proceeds.
func (e *Extractor) ExtractChunk(ctx context.Context, ck chunk.Chunk, prior *PriorContext) model.ChunkExtraction {
	out := model.ChunkExtraction{
		ChunkID:  ck.ChunkID,
		Entities: map[model.EntityType][]model.Entity{},
	}

	prompt := fmt.Sprintf(e.Prompt, prior.section(), ck.Text)
	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		log.Printf("extraction failed for chunk %s: %v", ck.ChunkID, err)
		return out
	}

	raw, err := common.ParseJSON[rawExtraction](response)
	if err != nil {
		log.Printf("unparseable extraction for chunk %s: %v", ck.ChunkID, err)
		return out
	}

	for typeName, attrsList := range raw.Entities {
		t := model.EntityType(typeName)
		if !t.Valid() {
			log.Printf("chunk %s: dropping entities of unknown type %q", ck.ChunkID, typeName)
			continue
		}
		for i, attrs := range attrsList {
			// LocalRef keeps the extractor's original index even when
			// earlier siblings are dropped, so assertion references
			// stay resolvable.
			norm, ok := model.Normalize(t, attrs)
			if !ok {
				log.Printf("chunk %s: dropping malformed %s entity at index %d", ck.ChunkID, typeName, i)
				continue
			}
			out.Entities[t] = append(out.Entities[t], model.Entity{
				Type:       t,
				Attributes: norm,
				LocalRef:   fmt.Sprintf("%s[%d]", typeName, i),
			})
		}
	}

	for _, ra := range raw.Assertions {
		if _, _, err := model.ParseLocalRef(ra.SubjectRef); err != nil {
			log.Printf("chunk %s: dropping assertion %s: %v", ck.ChunkID, ra.Predicate, err)
			continue
		}
		if _, _, err := model.ParseLocalRef(ra.ObjectRef); err != nil {
			log.Printf("chunk %s: dropping assertion %s: %v", ck.ChunkID, ra.Predicate, err)
			continue
		}
		out.Assertions = append(out.Assertions, ra)
	}
	return out
}
