package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinigraph/trellis/internal/core/model"
	"github.com/clinigraph/trellis/internal/ids"
)

func testResolutions() []model.Resolution {
	return []model.Resolution{
		{
			Entity:   &model.Entity{Type: model.TypeEncounter, Attributes: map[string]any{"date": "2025-09-13", "dept": "ER"}},
			Decision: model.DecisionNew,
			TargetID: "enc-1",
			Score:    1.0,
		},
		{
			Entity:   &model.Entity{Type: model.TypeSymptom, Attributes: map[string]any{"name": "fever", "code": "386661006", "system": "SNOMED"}},
			Decision: model.DecisionMatch,
			TargetID: "sym-existing",
			Score:    1.0,
		},
		{
			Entity:         &model.Entity{Type: model.TypeDisease, Attributes: map[string]any{"code": "J10", "system": "ICD10"}},
			Decision:       model.DecisionAbstain,
			Score:          0.6,
			PotentialMatch: "dis-maybe",
		},
	}
}

func TestPlanIncludesOnlyPlacedResolutions(t *testing.T) {
	p := NewPlanner()

	plan := p.Plan(testResolutions(), nil, nil)

	require.Len(t, plan.Nodes, 2)
	assert.Equal(t, "Encounter", plan.Nodes[0].Label)
	assert.Equal(t, "enc-1", plan.Nodes[0].Key)
	assert.Equal(t, "enc-1", plan.Nodes[0].Properties["uuid"])
	assert.Equal(t, "Symptom", plan.Nodes[1].Label)
	assert.Equal(t, "sym-existing", plan.Nodes[1].Key)
}

func TestPlanExcludesAssertionsTouchingAbstain(t *testing.T) {
	p := NewPlanner()

	assertions := []model.Assertion{
		{Predicate: "HAS_SYMPTOM", SubjectRef: 0, ObjectRef: 1, Confidence: 1.0, Evidence: []string{"C1"}},
		{Predicate: "DIAGNOSED_AS", SubjectRef: 0, ObjectRef: 2, Confidence: 0.9, Evidence: []string{"C1"}},
	}

	plan := p.Plan(testResolutions(), assertions, nil)

	require.Len(t, plan.Relationships, 1)
	rel := plan.Relationships[0]
	assert.Equal(t, "HAS_SYMPTOM", rel.Type)
	assert.Equal(t, "enc-1", rel.FromID)
	assert.Equal(t, "sym-existing", rel.ToID)
}

func TestPlanDropsOutOfRangeReferences(t *testing.T) {
	p := NewPlanner()

	assertions := []model.Assertion{
		{Predicate: "HAS_SYMPTOM", SubjectRef: 0, ObjectRef: 42, Confidence: 1.0},
		{Predicate: "HAS_SYMPTOM", SubjectRef: -1, ObjectRef: 1, Confidence: 1.0},
	}

	plan := p.Plan(testResolutions(), assertions, nil)

	assert.Empty(t, plan.Relationships)
}

func TestPlanRelationshipProperties(t *testing.T) {
	p := NewPlanner()

	assertions := []model.Assertion{
		{
			Predicate:  "HAS_SYMPTOM",
			SubjectRef: 0,
			ObjectRef:  1,
			Properties: map[string]any{"negation": true, "onset": "2025-09-12"},
			Evidence:   []string{"C1", "C2"},
			Confidence: 0.75,
		},
	}

	plan := p.Plan(testResolutions(), assertions, &Source{ID: "abc123", Type: "PDF", Title: "note"})

	var rel *model.RelationshipUpsert
	for i := range plan.Relationships {
		if plan.Relationships[i].Type == "HAS_SYMPTOM" {
			rel = &plan.Relationships[i]
		}
	}
	require.NotNil(t, rel)
	assert.Equal(t, 0.75, rel.Properties["confidence"])
	assert.Equal(t, true, rel.Properties["negation"])
	assert.Equal(t, []string{"C1", "C2"}, rel.Properties["chunks"])
	assert.Equal(t, "abc123", rel.Properties["source_id"])
	assert.Equal(t, ids.AssertionID("HAS_SYMPTOM", "enc-1", "sym-existing", "abc123"), rel.Properties["uuid"])
}

func TestPlanProvenance(t *testing.T) {
	p := NewPlanner()

	plan := p.Plan(testResolutions(), nil, &Source{ID: "abc123", Type: "EMR", Title: "visit note"})

	// SourceDocument node plus an EXTRACTED_FROM edge per entity node.
	var doc *model.NodeUpsert
	for i := range plan.Nodes {
		if plan.Nodes[i].Label == "SourceDocument" {
			doc = &plan.Nodes[i]
		}
	}
	require.NotNil(t, doc)
	assert.Equal(t, "DOC_abc123", doc.Key)
	assert.Equal(t, "abc123", doc.Properties["source_id"])

	extracted := 0
	for _, rel := range plan.Relationships {
		if rel.Type == "EXTRACTED_FROM" {
			extracted++
			assert.Equal(t, "DOC_abc123", rel.ToID)
		}
	}
	assert.Equal(t, 2, extracted)
}

func TestPlanNodeKeysUniquePerLabel(t *testing.T) {
	p := NewPlanner()

	shared := &model.Entity{Type: model.TypeSymptom, Attributes: map[string]any{"name": "fever"}}
	resolutions := []model.Resolution{
		{Entity: shared, Decision: model.DecisionMatch, TargetID: "sym-1", Score: 1.0},
		{Entity: shared, Decision: model.DecisionMatch, TargetID: "sym-1", Score: 1.0},
	}

	plan := p.Plan(resolutions, nil, nil)

	assert.Len(t, plan.Nodes, 1)
}
