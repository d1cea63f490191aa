package merge

import (
	"fmt"
	"log"
	"strings"

	"github.com/clinigraph/trellis/internal/core/model"
)

// Result is the document-global view produced from per-chunk extractions.
// Order lists every distinct entity in discovery order; an assertion's
// subject/object refs index into it. Entities groups the same pointers by
// type for callers that want the per-type view.
type Result struct {
	Entities   map[model.EntityType][]*model.Entity
	Order      []*model.Entity
	Assertions []model.Assertion
}

// Merger deduplicates entities across the chunks of one document and
// rewrites chunk-local references into the document-global space. One Merger
// serves one document; instances hold no cross-document state.
type Merger struct {
	tables map[model.EntityType]map[string]int
	result Result
}

func NewMerger() *Merger {
	return &Merger{
		tables: map[model.EntityType]map[string]int{},
		result: Result{Entities: map[model.EntityType][]*model.Entity{}},
	}
}

// Merge consumes the extractions of one document in chunk order.
func (m *Merger) Merge(chunks []model.ChunkExtraction) Result {
	var rewritten []model.Assertion
	for _, ck := range chunks {
		refs := m.mergeEntities(ck)
		rewritten = append(rewritten, m.rewriteAssertions(ck, refs)...)
	}
	m.result.Assertions = consolidate(rewritten)
	return m.result
}

// mergeEntities folds one chunk's entities into the running per-type tables
// and returns the chunk's local-ref -> global-index map.
func (m *Merger) mergeEntities(ck model.ChunkExtraction) map[string]int {
	refs := make(map[string]int)
	for _, t := range model.AllEntityTypes() {
		table, ok := m.tables[t]
		if !ok {
			table = map[string]int{}
			m.tables[t] = table
		}
		for _, ent := range ck.Entities[t] {
			key := dedupeKey(&ent)
			if key != "" {
				if global, seen := table[key]; seen {
					refs[ent.LocalRef] = global
					continue
				}
			}
			e := ent
			e.GlobalRef = len(m.result.Order)
			m.result.Order = append(m.result.Order, &e)
			m.result.Entities[t] = append(m.result.Entities[t], &e)
			refs[ent.LocalRef] = e.GlobalRef
			if key != "" {
				table[key] = e.GlobalRef
			}
		}
	}
	return refs
}

// rewriteAssertions maps one chunk's assertion references into the global
// space. Assertions touching a reference the chunk never produced are
// dropped, never propagated.
func (m *Merger) rewriteAssertions(ck model.ChunkExtraction, refs map[string]int) []model.Assertion {
	var out []model.Assertion
	for _, ra := range ck.Assertions {
		subj, ok := refs[strings.TrimSpace(ra.SubjectRef)]
		if !ok {
			log.Printf("chunk %s: dropping assertion %s with dangling subject %q", ck.ChunkID, ra.Predicate, ra.SubjectRef)
			continue
		}
		obj, ok := refs[strings.TrimSpace(ra.ObjectRef)]
		if !ok {
			log.Printf("chunk %s: dropping assertion %s with dangling object %q", ck.ChunkID, ra.Predicate, ra.ObjectRef)
			continue
		}
		out = append(out, model.Assertion{
			Predicate:  ra.Predicate,
			SubjectRef: subj,
			ObjectRef:  obj,
			Properties: ra.Properties,
			Evidence:   []string{ck.ChunkID},
			Confidence: ra.Confidence,
		})
	}
	return out
}

// consolidate collapses assertions sharing (predicate, subject, object),
// unioning evidence and folding confidence as the running average with each
// duplicate in encounter order.
func consolidate(assertions []model.Assertion) []model.Assertion {
	index := map[string]int{}
	var out []model.Assertion
	for _, a := range assertions {
		key := fmt.Sprintf("%s:%d:%d", a.Predicate, a.SubjectRef, a.ObjectRef)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, a)
			continue
		}
		out[i].Evidence = unionEvidence(out[i].Evidence, a.Evidence)
		out[i].Confidence = (out[i].Confidence + a.Confidence) / 2
	}
	return out
}

func unionEvidence(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range incoming {
		if !seen[id] {
			existing = append(existing, id)
			seen[id] = true
		}
	}
	return existing
}

// dedupeKey computes the type-specific identity of an entity within one
// document. Catalog entities key on (code, system) when both are present,
// otherwise on name; instance entities key on their defining-attribute
// tuple. An empty key means the entity can never match another.
func dedupeKey(e *model.Entity) string {
	if e.Type.IsCatalog() {
		code := strings.ToLower(strings.TrimSpace(e.StringAttr("code")))
		system := strings.ToLower(strings.TrimSpace(e.StringAttr("system")))
		if code != "" && system != "" {
			return "code:" + code + "|" + system
		}
		if name := strings.ToLower(strings.TrimSpace(e.StringAttr("name"))); name != "" {
			return "name:" + name
		}
		return ""
	}

	parts := make([]string, 0, 2)
	empty := true
	for _, attr := range e.Type.DefiningAttributes() {
		v := strings.ToLower(strings.TrimSpace(e.StringAttr(attr)))
		if v != "" {
			empty = false
		}
		parts = append(parts, v)
	}
	if empty {
		return ""
	}
	return strings.Join(parts, "|")
}
