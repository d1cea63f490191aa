package driver

import (
	"context"
	"fmt"
	"log"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Neo4jDriver struct {
	Driver neo4j.DriverWithContext
}

func NewNeo4jDriver(uri, username, password string) (*Neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}

	log.Println("Connected to graph store")
	return &Neo4jDriver{Driver: driver}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

// BuildIndices creates the uuid indices for every node label the writer is
// allowed to produce, plus the catalog lookup indices the resolver queries.
func (d *Neo4jDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX IF NOT EXISTS FOR (n:Patient) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Encounter) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Clinician) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:TestResult) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Symptom) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Disease) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Test) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Medication) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Procedure) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Guideline) ON (n.uuid);",
		"CREATE INDEX IF NOT EXISTS FOR (n:SourceDocument) ON (n.uuid);",

		// Catalog resolution lookups.
		"CREATE INDEX IF NOT EXISTS FOR (n:Symptom) ON (n.code);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Disease) ON (n.code);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Test) ON (n.code);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Medication) ON (n.code);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Procedure) ON (n.code);",
	}

	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			log.Printf("Warning: failed to create index '%s': %v", q, err)
			// Continue, as index might already exist
		}
	}

	return nil
}
