package driver

// IndexQueries are run once before an export.
var IndexQueries = []string{
	"CREATE INDEX ON :Entity(graph);",
	"CREATE INDEX ON :Entity(id);",
	"CREATE INDEX ON :Rule(graph);",
	"CREATE INDEX ON :Run(run_id);",
}

const (
	SaveRunQuery = `
		MERGE (r:Run {run_id: $run_id})
		SET r.pair = $pair,
			r.ratio = $ratio,
			r.started_at = $started_at,
			r.duration_ms = $duration_ms
		RETURN r.run_id AS run_id
	`

	// Entities are keyed by graph ("<pair>/<side>") and id.
	SaveEntitiesQuery = `
		UNWIND $rows AS row
		MERGE (n:Entity {graph: $graph, id: row.id})
		SET n.name = row.name,
			n.language = $language
		RETURN count(n) AS saved
	`

	SaveTriplesQuery = `
		UNWIND $rows AS row
		MATCH (h:Entity {graph: $graph, id: row.head})
		MATCH (t:Entity {graph: $graph, id: row.tail})
		MERGE (h)-[e:RELATES_TO {relation: row.relation}]->(t)
		SET e.name = row.name,
			e.confidence = row.confidence,
			e.provenance = row.provenance,
			e.run_id = $run_id
		RETURN count(e) AS saved
	`

	SaveRulesQuery = `
		UNWIND $rows AS row
		MERGE (r:Rule {graph: $graph, key: row.key})
		SET r.text = row.text,
			r.confidence = row.confidence,
			r.transferred = row.transferred,
			r.run_id = $run_id
		RETURN count(r) AS saved
	`

	CountTriplesQuery = `
		MATCH (:Entity {graph: $graph})-[e:RELATES_TO]->(:Entity {graph: $graph})
		RETURN count(e) AS triples
	`

	DeleteGraphQuery = `
		MATCH (n {graph: $graph})
		DETACH DELETE n
	`
)
