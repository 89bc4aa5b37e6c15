package graph

import "fmt"

type Statement struct {
	Cypher string
	Params map[string]any
}

// CompilePlan turns a plan into UNWIND statements: every node group first, then
// every edge group. Labels and property names were validated by the plan.
func CompilePlan(p *Plan) []Statement {
	var out []Statement
	for _, g := range p.NodeGroups() {
		rows := make([]map[string]any, 0, len(g.Rows))
		for _, r := range g.Rows {
			rows = append(rows, map[string]any{"key": r.Key, "props": r.Props})
		}
		out = append(out, Statement{
			Cypher: fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {%s: row.key})
SET n += row.props
`, g.Label, g.KeyProp),
			Params: map[string]any{"rows": rows},
		})
	}
	for _, g := range p.EdgeGroups() {
		rows := make([]map[string]any, 0, len(g.Rows))
		for _, r := range g.Rows {
			rows = append(rows, map[string]any{"from": r.From, "to": r.To})
		}
		out = append(out, Statement{
			Cypher: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a:%s {%s: row.from})
MATCH (b:%s {%s: row.to})
MERGE (a)-[:%s]->(b)
`, g.FromLabel, g.FromKeyProp, g.ToLabel, g.ToKeyProp, g.Type),
			Params: map[string]any{"rows": rows},
		})
	}
	return out
}
