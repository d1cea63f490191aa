package driver

// Catalog lookup queries used by the resolver, in priority order. The %s
// placeholder is the node label; callers must only substitute labels from
// the closed entity-type set; all data values travel as bound parameters.
const (
	FindCatalogByCodeSystemQuery = `
		MATCH (n:%s)
		WHERE n.code = $code AND n.system = $system
		RETURN n.uuid AS uuid, properties(n) AS props
	`

	FindCatalogByCodeQuery = `
		MATCH (n:%s)
		WHERE n.code = $code
		RETURN n.uuid AS uuid, properties(n) AS props
	`

	FindCatalogByNameQuery = `
		MATCH (n:%s)
		WHERE toLower(n.name) = toLower($name)
		RETURN n.uuid AS uuid, properties(n) AS props
	`
)

// Batched merge statements used by the writer. The %s placeholder is a
// whitelisted label or relationship type. Created-vs-updated is derived from
// the update counter: a node or relationship that has only ever been created
// carries update_count = 0.
const (
	UpsertNodeBatchQuery = `
		UNWIND $nodes AS node
		MERGE (n:%s {uuid: node.key})
		ON CREATE SET
			n = node.properties,
			n.uuid = node.key,
			n.created_at = datetime(),
			n.update_count = 0
		ON MATCH SET
			n += node.properties,
			n.updated_at = datetime(),
			n.update_count = coalesce(n.update_count, 0) + 1
		RETURN
			CASE WHEN n.update_count = 0 THEN 'created' ELSE 'updated' END AS op,
			n.uuid AS key
	`

	UpsertRelationshipBatchQuery = `
		UNWIND $rels AS rel
		MATCH (from {uuid: rel.from_id})
		MATCH (to {uuid: rel.to_id})
		MERGE (from)-[r:%s]->(to)
		ON CREATE SET
			r = rel.properties,
			r.created_at = datetime(),
			r.update_count = 0
		ON MATCH SET
			r += rel.properties,
			r.updated_at = datetime(),
			r.update_count = coalesce(r.update_count, 0) + 1
		RETURN
			CASE WHEN r.update_count = 0 THEN 'created' ELSE 'updated' END AS op,
			rel.from_id AS key
	`
)
