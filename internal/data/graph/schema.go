package graph

// FullTextIndex is the index SearchWines queries.
const FullTextIndex = "searchText"

type SchemaStatement struct {
	Name   string
	Cypher string
}

// SchemaStatements are idempotent and safe to run on every start.
func SchemaStatements() []SchemaStatement {
	return []SchemaStatement{
		{"wine_id_unique", `CREATE CONSTRAINT wine_id_unique IF NOT EXISTS FOR (w:Wine) REQUIRE w.id IS UNIQUE`},
		{"country_name_unique", `CREATE CONSTRAINT country_name_unique IF NOT EXISTS FOR (c:Country) REQUIRE c.name IS UNIQUE`},
		{"province_name_idx", `CREATE INDEX province_name_idx IF NOT EXISTS FOR (p:Province) ON (p.name)`},
		{"person_name_idx", `CREATE INDEX person_name_idx IF NOT EXISTS FOR (p:Person) ON (p.name)`},
		{FullTextIndex, `CREATE FULLTEXT INDEX ` + FullTextIndex + ` IF NOT EXISTS FOR (w:Wine) ON EACH [w.title, w.description, w.variety]`},
	}
}
