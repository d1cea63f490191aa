package model

// NodeUpsert is one idempotent merge-by-key node operation. Key is the
// node's durable identifier, stored under the "uuid" property.
type NodeUpsert struct {
	Label      string         `json:"label"`
	Key        string         `json:"key"`
	Properties map[string]any `json:"properties"`
}

// RelationshipUpsert is one idempotent merge operation between two nodes
// identified by their durable identifiers.
type RelationshipUpsert struct {
	Type       string         `json:"type"`
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	Properties map[string]any `json:"properties"`
}

// UpsertPlan is the declarative write set for one document. Applying the
// same plan twice must not create additional nodes or relationships.
type UpsertPlan struct {
	Nodes         []NodeUpsert         `json:"nodes"`
	Relationships []RelationshipUpsert `json:"relationships"`
}
