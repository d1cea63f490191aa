package writer

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// MockDriver records every query and delegates to Handler so tests can shape
// per-batch responses.
type MockDriver struct {
	Handler func(query string, params map[string]interface{}) (neo4j.EagerResult, error)
	Queries []string
	Params  []map[string]interface{}
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Queries = append(m.Queries, query)
	m.Params = append(m.Params, params)
	if m.Handler != nil {
		return m.Handler(query, params)
	}
	return neo4j.EagerResult{}, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *MockDriver) Close(ctx context.Context) error { return nil }

// opRecords builds one result row per item with the given op value, matching
// the RETURN shape of the batch upsert queries.
func opRecords(op string, n int) neo4j.EagerResult {
	records := make([]*neo4j.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, &neo4j.Record{
			Keys:   []string{"op", "key"},
			Values: []any{op, "k"},
		})
	}
	return neo4j.EagerResult{Records: records}
}
