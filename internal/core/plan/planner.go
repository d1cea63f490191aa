package plan

import (
	"log"

	"github.com/clinigraph/trellis/internal/core/model"
	"github.com/clinigraph/trellis/internal/ids"
)

// Source identifies the document an ingestion run came from; when present,
// the plan carries a SourceDocument node and EXTRACTED_FROM provenance
// relationships for audit.
type Source struct {
	ID    string
	Type  string
	Title string
}

func (s *Source) nodeKey() string {
	return ids.DocumentID(s.ID)
}

// Planner turns resolutions and consolidated assertions into a declarative,
// idempotent upsert plan. It holds no state between documents.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

// Plan builds the write set. Assertion refs are positional indices into the
// resolutions slice; any assertion touching an abstained (or out-of-range)
// resolution is excluded rather than failing the document.
func (p *Planner) Plan(resolutions []model.Resolution, assertions []model.Assertion, src *Source) model.UpsertPlan {
	var plan model.UpsertPlan

	seen := map[string]bool{}
	for _, res := range resolutions {
		if res.Decision == model.DecisionAbstain {
			continue
		}
		label := res.Entity.Type.Label()
		if seen[label+"|"+res.TargetID] {
			// Two document entities resolved to the same persisted
			// node; one merge statement is enough.
			continue
		}
		seen[label+"|"+res.TargetID] = true

		props := make(map[string]any, len(res.Entity.Attributes)+1)
		for k, v := range res.Entity.Attributes {
			props[k] = v
		}
		props["uuid"] = res.TargetID

		plan.Nodes = append(plan.Nodes, model.NodeUpsert{
			Label:      label,
			Key:        res.TargetID,
			Properties: props,
		})
	}

	for _, a := range assertions {
		subject, ok := placedResolution(resolutions, a.SubjectRef)
		if !ok {
			log.Printf("excluding assertion %s: subject ref %d has no placed resolution", a.Predicate, a.SubjectRef)
			continue
		}
		object, ok := placedResolution(resolutions, a.ObjectRef)
		if !ok {
			log.Printf("excluding assertion %s: object ref %d has no placed resolution", a.Predicate, a.ObjectRef)
			continue
		}

		props := make(map[string]any, len(a.Properties)+4)
		for k, v := range a.Properties {
			props[k] = v
		}
		props["confidence"] = a.Confidence
		if len(a.Evidence) > 0 {
			props["chunks"] = a.Evidence
		}
		sourceID := ""
		if src != nil {
			sourceID = src.ID
			props["source_id"] = sourceID
		}
		// Same (predicate, subject, object, source) tuple, same identifier:
		// re-ingestion refreshes the relationship instead of duplicating it.
		props["uuid"] = ids.AssertionID(a.Predicate, subject.TargetID, object.TargetID, sourceID)

		plan.Relationships = append(plan.Relationships, model.RelationshipUpsert{
			Type:       a.Predicate,
			FromID:     subject.TargetID,
			ToID:       object.TargetID,
			Properties: props,
		})
	}

	if src != nil {
		plan.Nodes = append(plan.Nodes, model.NodeUpsert{
			Label: "SourceDocument",
			Key:   src.nodeKey(),
			Properties: map[string]any{
				"uuid":        src.nodeKey(),
				"source_id":   src.ID,
				"source_type": src.Type,
				"title":       src.Title,
			},
		})
		for _, n := range plan.Nodes {
			if n.Label == "SourceDocument" {
				continue
			}
			plan.Relationships = append(plan.Relationships, model.RelationshipUpsert{
				Type:   "EXTRACTED_FROM",
				FromID: n.Key,
				ToID:   src.nodeKey(),
				Properties: map[string]any{
					"source_id": src.ID,
				},
			})
		}
	}

	return plan
}

// placedResolution returns the resolution an assertion reference points at,
// provided it produced a node (decision new or match).
func placedResolution(resolutions []model.Resolution, ref int) (model.Resolution, bool) {
	if ref < 0 || ref >= len(resolutions) {
		return model.Resolution{}, false
	}
	res := resolutions[ref]
	if res.Decision == model.DecisionAbstain || res.TargetID == "" {
		return model.Resolution{}, false
	}
	return res, true
}
