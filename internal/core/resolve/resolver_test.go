package resolve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinigraph/trellis/internal/core/model"
)

func newTestResolver(d *MockDriver) *Resolver {
	return NewResolver(d, &SequenceGenerator{prefix: "id-"}, 0.8, 0.5)
}

func TestResolveInstanceAlwaysNew(t *testing.T) {
	mockDriver := &MockDriver{}
	r := newTestResolver(mockDriver)

	e := &model.Entity{
		Type:       model.TypePatient,
		Attributes: map[string]any{"name": "John Doe", "dob": "1980-01-15"},
	}

	res, err := r.Resolve(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, model.DecisionNew, res.Decision)
	assert.Equal(t, "id-1", res.TargetID)
	assert.Equal(t, 1.0, res.Score)
	// No store lookup for instance entities.
	assert.Empty(t, mockDriver.Queries)
}

func TestResolveCatalogNoCandidates(t *testing.T) {
	mockDriver := &MockDriver{}
	r := newTestResolver(mockDriver)

	e := &model.Entity{
		Type:       model.TypeDisease,
		Attributes: map[string]any{"code": "J10", "system": "ICD10", "name": "Influenza"},
	}

	res, err := r.Resolve(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, model.DecisionNew, res.Decision)
	assert.Equal(t, 1.0, res.Score)
	assert.NotEmpty(t, res.TargetID)
	// All three lookups were tried before giving up.
	assert.Len(t, mockDriver.Queries, 3)
}

func TestResolveCatalogExactMatch(t *testing.T) {
	mockDriver := &MockDriver{
		Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
			return neo4j.EagerResult{Records: []*neo4j.Record{
				candidateRecord("existing-1", map[string]interface{}{
					"uuid": "existing-1", "code": "J10", "system": "ICD10", "name": "Influenza",
				}),
			}}, nil
		},
	}
	r := newTestResolver(mockDriver)

	e := &model.Entity{
		Type:       model.TypeDisease,
		Attributes: map[string]any{"code": "J10", "system": "ICD10", "name": "Influenza"},
	}

	res, err := r.Resolve(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, model.DecisionMatch, res.Decision)
	assert.Equal(t, "existing-1", res.TargetID)
	assert.Greater(t, res.Score, 0.8)

	// Lookup stopped at the (code, system) query.
	require.Len(t, mockDriver.Queries, 1)
	assert.Contains(t, mockDriver.Queries[0], ":Disease")
	assert.Equal(t, "J10", mockDriver.Params[0]["code"])
	assert.Equal(t, "ICD10", mockDriver.Params[0]["system"])
}

func TestResolveCatalogAbstainCarriesPotentialMatch(t *testing.T) {
	// Candidate agrees on one of two shared fields: score 0.5 < s <= 0.8
	// cannot be reached with equality alone, so use substring agreement:
	// name "fever" vs "high fever" (0.5) and code equal (1.0) -> 0.75.
	mockDriver := &MockDriver{
		Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
			return neo4j.EagerResult{Records: []*neo4j.Record{
				candidateRecord("maybe-1", map[string]interface{}{
					"uuid": "maybe-1", "code": "386661006", "name": "high fever",
				}),
			}}, nil
		},
	}
	r := newTestResolver(mockDriver)

	e := &model.Entity{
		Type:       model.TypeSymptom,
		Attributes: map[string]any{"code": "386661006", "name": "fever"},
	}

	res, err := r.Resolve(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, model.DecisionAbstain, res.Decision)
	assert.Empty(t, res.TargetID)
	assert.Equal(t, "maybe-1", res.PotentialMatch)
	assert.InDelta(t, 0.75, res.Score, 1e-9)
}

func TestResolveCatalogLowScoreIsNew(t *testing.T) {
	mockDriver := &MockDriver{
		Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
			return neo4j.EagerResult{Records: []*neo4j.Record{
				candidateRecord("far-1", map[string]interface{}{
					"uuid": "far-1", "name": "completely different", "code": "999",
				}),
			}}, nil
		},
	}
	r := newTestResolver(mockDriver)

	e := &model.Entity{
		Type:       model.TypeSymptom,
		Attributes: map[string]any{"name": "fever", "code": "386661006"},
	}

	res, err := r.Resolve(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, model.DecisionNew, res.Decision)
	assert.NotEmpty(t, res.TargetID)
	// A low-confidence new records the distance to the nearest candidate.
	assert.Equal(t, 1.0, res.Score)
}

func TestResolvePicksHighestScoringCandidate(t *testing.T) {
	mockDriver := &MockDriver{
		Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
			return neo4j.EagerResult{Records: []*neo4j.Record{
				candidateRecord("weak", map[string]interface{}{"uuid": "weak", "code": "X", "name": "other"}),
				candidateRecord("strong", map[string]interface{}{"uuid": "strong", "code": "J10", "system": "ICD10", "name": "Influenza"}),
			}}, nil
		},
	}
	r := newTestResolver(mockDriver)

	e := &model.Entity{
		Type:       model.TypeDisease,
		Attributes: map[string]any{"code": "J10", "system": "ICD10", "name": "Influenza"},
	}

	res, err := r.Resolve(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, model.DecisionMatch, res.Decision)
	assert.Equal(t, "strong", res.TargetID)
}

func TestResolveStoreErrorPropagates(t *testing.T) {
	mockDriver := &MockDriver{
		Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
			return neo4j.EagerResult{}, errors.New("connection refused")
		},
	}
	r := newTestResolver(mockDriver)

	e := &model.Entity{
		Type:       model.TypeDisease,
		Attributes: map[string]any{"code": "J10", "system": "ICD10"},
	}

	_, err := r.Resolve(context.Background(), e)

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "catalog lookup"))
}

func TestResolveAllIsPositional(t *testing.T) {
	mockDriver := &MockDriver{}
	r := newTestResolver(mockDriver)

	entities := []*model.Entity{
		{Type: model.TypePatient, Attributes: map[string]any{"name": "John Doe"}},
		{Type: model.TypeSymptom, Attributes: map[string]any{"name": "fever"}},
	}

	resolutions, err := r.ResolveAll(context.Background(), entities)

	require.NoError(t, err)
	require.Len(t, resolutions, 2)
	assert.Same(t, entities[0], resolutions[0].Entity)
	assert.Same(t, entities[1], resolutions[1].Entity)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity(
		map[string]any{"code": "J10", "name": "Influenza"},
		map[string]any{"code": "J10", "name": "Influenza"},
	))
	assert.Equal(t, 0.5, similarity(
		map[string]any{"name": "fever"},
		map[string]any{"name": "High Fever"},
	))
	assert.Equal(t, 0.0, similarity(
		map[string]any{"name": "fever"},
		map[string]any{"name": "nausea"},
	))
	// Bookkeeping props never count as agreement.
	assert.Equal(t, 0.0, similarity(
		map[string]any{"uuid": "a", "name": "fever"},
		map[string]any{"uuid": "a", "name": "nausea"},
	))
}
