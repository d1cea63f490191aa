package resolve

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

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

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

// candidateRecord builds an EagerResult row shaped like the catalog lookup
// queries return.
func candidateRecord(uuid string, props map[string]interface{}) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"uuid", "props"},
		Values: []interface{}{uuid, props},
	}
}

type SequenceGenerator struct {
	prefix string
	n      int
}

func (g *SequenceGenerator) EntityID() string {
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}
