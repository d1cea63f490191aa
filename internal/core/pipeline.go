package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/clinigraph/trellis/internal/chunk"
	"github.com/clinigraph/trellis/internal/config"
	"github.com/clinigraph/trellis/internal/core/extraction"
	"github.com/clinigraph/trellis/internal/core/merge"
	"github.com/clinigraph/trellis/internal/core/model"
	"github.com/clinigraph/trellis/internal/core/plan"
	"github.com/clinigraph/trellis/internal/core/resolve"
	"github.com/clinigraph/trellis/internal/core/writer"
	"github.com/clinigraph/trellis/internal/driver"
	"github.com/clinigraph/trellis/internal/ids"
	"github.com/clinigraph/trellis/internal/llm"
)

// Pipeline runs the full ingestion for one document: chunk -> extract ->
// merge -> resolve -> plan -> write. Documents are independent units of
// work; a Pipeline is safe to share across concurrently ingested documents
// because all per-document state lives in the merger created per call.
type Pipeline struct {
	Driver    driver.GraphDriver
	Extractor *extraction.Extractor
	Resolver  *resolve.Resolver
	Planner   *plan.Planner
	Writer    *writer.Writer
	Chunker   *chunk.Chunker
}

func NewPipeline(d driver.GraphDriver, llmClient llm.LLMClient, cfg *config.Config) *Pipeline {
	gen := ids.NewUUIDGenerator()
	return &Pipeline{
		Driver:    d,
		Extractor: extraction.NewExtractor(llmClient, cfg.Extraction.Document),
		Resolver:  resolve.NewResolver(d, gen, cfg.Pipeline.MatchThreshold, cfg.Pipeline.AbstainThreshold),
		Planner:   plan.NewPlanner(),
		Writer:    writer.NewWriter(d, cfg.Pipeline.BatchSize),
		Chunker:   chunk.NewChunker(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap),
	}
}

func (p *Pipeline) BuildIndices(ctx context.Context) error {
	return p.Driver.BuildIndices(ctx)
}

// Document is the programmatic ingestion input.
type Document struct {
	SourceID   string `json:"source_id"`
	SourceType string `json:"source_type"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// IngestResult is the structured outcome of one document run. Item-level
// failures are absorbed into the writer results' error lists; only a
// document that cannot be planned at all returns an error.
type IngestResult struct {
	SourceID      string        `json:"source_id"`
	Chunks        int           `json:"chunks"`
	Entities      int           `json:"entities"`
	Assertions    int           `json:"assertions"`
	Abstained     int           `json:"abstained"`
	Nodes         writer.Result `json:"nodes"`
	Relationships writer.Result `json:"relationships"`
}

func (p *Pipeline) IngestDocument(ctx context.Context, doc Document) (*IngestResult, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("document has no content")
	}
	if doc.SourceID == "" {
		doc.SourceID = ids.SourceID(doc.Content, doc.SourceType)
	}

	merged, chunks := p.extractAll(ctx, doc)

	resolutions, err := p.Resolver.ResolveAll(ctx, merged.Order)
	if err != nil {
		return nil, fmt.Errorf("resolution failed for document %s: %w", doc.SourceID, err)
	}

	abstained := 0
	for _, r := range resolutions {
		if r.Decision == model.DecisionAbstain {
			abstained++
		}
	}

	upserts := p.Planner.Plan(resolutions, merged.Assertions, &plan.Source{
		ID:    doc.SourceID,
		Type:  doc.SourceType,
		Title: doc.Title,
	})

	nodeRes := p.Writer.UpsertNodes(ctx, upserts.Nodes)
	relRes := p.Writer.UpsertRelationships(ctx, upserts.Relationships)

	return &IngestResult{
		SourceID:      doc.SourceID,
		Chunks:        chunks,
		Entities:      len(merged.Order),
		Assertions:    len(merged.Assertions),
		Abstained:     abstained,
		Nodes:         nodeRes,
		Relationships: relRes,
	}, nil
}

// Extract runs chunking, extraction and merging without touching the store,
// for callers that want the consolidated view of a document.
func (p *Pipeline) Extract(ctx context.Context, doc Document) (merge.Result, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return merge.Result{}, fmt.Errorf("document has no content")
	}
	if doc.SourceID == "" {
		doc.SourceID = ids.SourceID(doc.Content, doc.SourceType)
	}

	merged, _ := p.extractAll(ctx, doc)
	return merged, nil
}

// extractAll chunks the document and runs extraction in chunk order, carrying
// the prior context forward, then merges into the document-global view. It
// returns the merged result and the number of chunks processed.
func (p *Pipeline) extractAll(ctx context.Context, doc Document) (merge.Result, int) {
	chunks := p.Chunker.Split(doc.SourceID, doc.Content)

	extractions := make([]model.ChunkExtraction, 0, len(chunks))
	var prior *extraction.PriorContext
	for _, ck := range chunks {
		ex := p.Extractor.ExtractChunk(ctx, ck, prior)
		log.Printf("chunk %s: %d entities, %d assertions", ck.ChunkID, ex.NumEntities(), len(ex.Assertions))
		extractions = append(extractions, ex)
		prior = carryContext(prior, ex)
	}

	return merge.NewMerger().Merge(extractions), len(chunks)
}

// carryContext remembers the most recently seen patient, encounter and
// clinician so later chunks reference them instead of re-inventing them.
func carryContext(prior *extraction.PriorContext, ex model.ChunkExtraction) *extraction.PriorContext {
	next := extraction.PriorContext{}
	if prior != nil {
		next = *prior
	}
	if list := ex.Entities[model.TypePatient]; len(list) > 0 {
		if name := list[len(list)-1].StringAttr("name"); name != "" {
			next.Patient = name
		}
	}
	if list := ex.Entities[model.TypeEncounter]; len(list) > 0 {
		e := list[len(list)-1]
		desc := strings.TrimSpace(e.StringAttr("date") + " " + e.StringAttr("dept"))
		if desc != "" {
			next.Encounter = desc
		}
	}
	if list := ex.Entities[model.TypeClinician]; len(list) > 0 {
		if name := list[len(list)-1].StringAttr("name"); name != "" {
			next.Clinician = name
		}
	}
	if next == (extraction.PriorContext{}) {
		return prior
	}
	return &next
}
