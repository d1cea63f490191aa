package core

import (
	"context"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// MockDriver answers catalog lookups with no candidates and acknowledges
// batch upserts with one "created" row per item, unless a Handler overrides
// it.
type MockDriver struct {
	Handler func(query string, params map[string]interface{}) (neo4j.EagerResult, error)
	Queries []string
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Queries = append(m.Queries, query)
	if m.Handler != nil {
		return m.Handler(query, params)
	}
	if batch, ok := params["nodes"].([]map[string]any); ok {
		return createdRecords(len(batch)), nil
	}
	if batch, ok := params["rels"].([]map[string]any); ok {
		return createdRecords(len(batch)), nil
	}
	return neo4j.EagerResult{}, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *MockDriver) Close(ctx context.Context) error { return nil }

func createdRecords(n int) neo4j.EagerResult {
	records := make([]*neo4j.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, &neo4j.Record{
			Keys:   []string{"op", "key"},
			Values: []any{"created", "k"},
		})
	}
	return neo4j.EagerResult{Records: records}
}

func isCatalogLookup(query string) bool {
	return strings.Contains(query, "RETURN n.uuid AS uuid")
}
