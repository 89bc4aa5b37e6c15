package graph

import (
	"errors"
	"fmt"
	"regexp"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrForeignRef is returned when an edge names a node that was not merged by the
// same plan.
var ErrForeignRef = errors.New("graph: node ref not merged in this plan")

// NodeRef identifies a node merged into a Plan. The only way to get one is
// Plan.MergeNode, so an edge can never be planned ahead of its endpoints.
type NodeRef struct {
	plan    *Plan
	label   string
	keyProp string
	key     any
}

func (r NodeRef) Label() string { return r.label }
func (r NodeRef) Key() any      { return r.key }

// NodeRow is one node merge: the natural key and the attributes to overwrite.
// A nil attribute value clears the property.
type NodeRow struct {
	Key   any
	Props map[string]any
}

type NodeGroup struct {
	Label   string
	KeyProp string
	Rows    []NodeRow
}

type EdgeRow struct {
	From any
	To   any
}

type EdgeGroup struct {
	FromLabel   string
	FromKeyProp string
	Type        string
	ToLabel     string
	ToKeyProp   string
	Rows        []EdgeRow
}

type edgeKind struct {
	fromLabel, fromKeyProp, relType, toLabel, toKeyProp string
}

// Plan collects node and edge merges for one transaction. Repeated merges of the
// same node collapse into one row (attributes merged, later values win) and
// repeated edges collapse into one. Groups keep first-seen order; all node groups
// are applied before any edge group.
type Plan struct {
	nodeOrder []string
	nodes     map[string]*nodeGroup
	edgeOrder []edgeKind
	edges     map[edgeKind]*edgeGroup
}

type nodeGroup struct {
	keyProp string
	order   []any
	rows    map[any]map[string]any
}

type edgeGroup struct {
	rows []EdgeRow
	seen map[[2]any]struct{}
}

func NewPlan() *Plan {
	return &Plan{
		nodes: make(map[string]*nodeGroup),
		edges: make(map[edgeKind]*edgeGroup),
	}
}

// MergeNode plans a create-or-update of the node with the given natural key. Keys
// must be comparable scalars (string, int64, ...). It panics on an invalid label or
// key property name, or when a label is merged under two different key properties;
// those are programming errors.
func (p *Plan) MergeNode(label, keyProp string, key any, attrs map[string]any) NodeRef {
	mustIdent(label)
	mustIdent(keyProp)
	g, ok := p.nodes[label]
	if !ok {
		g = &nodeGroup{keyProp: keyProp, rows: make(map[any]map[string]any)}
		p.nodes[label] = g
		p.nodeOrder = append(p.nodeOrder, label)
	} else if g.keyProp != keyProp {
		panic(fmt.Sprintf("graph: label %s merged by %s and %s", label, g.keyProp, keyProp))
	}
	props, ok := g.rows[key]
	if !ok {
		props = make(map[string]any, len(attrs))
		g.rows[key] = props
		g.order = append(g.order, key)
	}
	for k, v := range attrs {
		mustIdent(k)
		props[k] = v
	}
	return NodeRef{plan: p, label: label, keyProp: keyProp, key: key}
}

// MergeEdge plans a create-if-missing of (from)-[relType]->(to).
func (p *Plan) MergeEdge(from NodeRef, relType string, to NodeRef) error {
	if from.plan != p || to.plan != p {
		return ErrForeignRef
	}
	if !identRe.MatchString(relType) {
		return fmt.Errorf("graph: invalid relationship type %q", relType)
	}
	k := edgeKind{from.label, from.keyProp, relType, to.label, to.keyProp}
	g, ok := p.edges[k]
	if !ok {
		g = &edgeGroup{seen: make(map[[2]any]struct{})}
		p.edges[k] = g
		p.edgeOrder = append(p.edgeOrder, k)
	}
	pair := [2]any{from.key, to.key}
	if _, dup := g.seen[pair]; dup {
		return nil
	}
	g.seen[pair] = struct{}{}
	g.rows = append(g.rows, EdgeRow{From: from.key, To: to.key})
	return nil
}

func (p *Plan) Empty() bool { return len(p.nodeOrder) == 0 }

func (p *Plan) NodeGroups() []NodeGroup {
	out := make([]NodeGroup, 0, len(p.nodeOrder))
	for _, label := range p.nodeOrder {
		g := p.nodes[label]
		rows := make([]NodeRow, 0, len(g.order))
		for _, key := range g.order {
			rows = append(rows, NodeRow{Key: key, Props: g.rows[key]})
		}
		out = append(out, NodeGroup{Label: label, KeyProp: g.keyProp, Rows: rows})
	}
	return out
}

func (p *Plan) EdgeGroups() []EdgeGroup {
	out := make([]EdgeGroup, 0, len(p.edgeOrder))
	for _, k := range p.edgeOrder {
		out = append(out, EdgeGroup{
			FromLabel:   k.fromLabel,
			FromKeyProp: k.fromKeyProp,
			Type:        k.relType,
			ToLabel:     k.toLabel,
			ToKeyProp:   k.toKeyProp,
			Rows:        p.edges[k].rows,
		})
	}
	return out
}

// Size returns the number of distinct nodes and edges in the plan.
func (p *Plan) Size() (nodes, edges int) {
	for _, g := range p.nodes {
		nodes += len(g.order)
	}
	for _, g := range p.edges {
		edges += len(g.rows)
	}
	return nodes, edges
}

func mustIdent(s string) {
	if !identRe.MatchString(s) {
		panic(fmt.Sprintf("graph: invalid identifier %q", s))
	}
}
