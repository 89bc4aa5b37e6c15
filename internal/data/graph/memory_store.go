package graph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/yungbote/winegraph/internal/domain"
)

// ErrMissingEndpoint mirrors the store refusing a relationship whose endpoint node
// does not exist.
var ErrMissingEndpoint = errors.New("graph: relationship endpoint does not exist")

// RejectFunc lets a caller veto a node merge, the way a store constraint would.
type RejectFunc func(label string, key any, props map[string]any) error

// MemoryStore is an in-process Store. Writes are serialized and copy-on-commit, so
// a failed Apply leaves no trace; reads see only committed state.
type MemoryStore struct {
	mu       sync.RWMutex
	state    *memState
	reject   RejectFunc
	schema   int
	sessions int
}

type memEdge struct {
	fromLabel string
	from      any
	relType   string
	toLabel   string
	to        any
}

type outKey struct {
	fromLabel string
	from      any
	relType   string
}

type memState struct {
	nodes map[string]map[any]map[string]any
	edges map[memEdge]struct{}
	out   map[outKey][]memEdge
}

func newMemState() *memState {
	return &memState{
		nodes: make(map[string]map[any]map[string]any),
		edges: make(map[memEdge]struct{}),
		out:   make(map[outKey][]memEdge),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for label, byKey := range s.nodes {
		cp := make(map[any]map[string]any, len(byKey))
		for k, props := range byKey {
			cp[k] = maps.Clone(props)
		}
		c.nodes[label] = cp
	}
	maps.Copy(c.edges, s.edges)
	for k, v := range s.out {
		c.out[k] = slices.Clone(v)
	}
	return c
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// SetRejectFunc installs (or clears, with nil) a node veto applied inside Apply.
func (m *MemoryStore) SetRejectFunc(fn RejectFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reject = fn
}

func (m *MemoryStore) OpenWriteSession(ctx context.Context) (WriteSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions++
	m.mu.Unlock()
	return &memSession{store: m}, nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }

// OpenSessions is the number of write sessions not yet closed.
func (m *MemoryStore) OpenSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions
}

// SchemaRuns counts EnsureSchema calls.
func (m *MemoryStore) SchemaRuns() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schema
}

func (m *MemoryStore) NodeCount(label string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.nodes[label])
}

func (m *MemoryStore) EdgeCount(relType string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for e := range m.state.edges {
		if e.relType == relType {
			n++
		}
	}
	return n
}

func (m *MemoryStore) HasEdge(fromLabel string, from any, relType, toLabel string, to any) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.state.edges[memEdge{fromLabel, from, relType, toLabel, to}]
	return ok
}

// Node returns a copy of a node's properties.
func (m *MemoryStore) Node(label string, key any) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	props, ok := m.state.nodes[label][key]
	if !ok {
		return nil, false
	}
	return maps.Clone(props), true
}

// Neighbors returns the keys reachable from a node over one relationship type.
func (m *MemoryStore) Neighbors(fromLabel string, from any, relType string) []any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []any
	for _, e := range m.state.out[outKey{fromLabel, from, relType}] {
		out = append(out, e.to)
	}
	return out
}

func (m *MemoryStore) apply(ctx context.Context, p *Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	for _, g := range p.NodeGroups() {
		byKey, ok := next.nodes[g.Label]
		if !ok {
			byKey = make(map[any]map[string]any)
			next.nodes[g.Label] = byKey
		}
		for _, row := range g.Rows {
			if m.reject != nil {
				if err := m.reject(g.Label, row.Key, row.Props); err != nil {
					return err
				}
			}
			props, ok := byKey[row.Key]
			if !ok {
				props = map[string]any{g.KeyProp: row.Key}
				byKey[row.Key] = props
			}
			for k, v := range row.Props {
				if v == nil {
					delete(props, k)
					continue
				}
				props[k] = v
			}
		}
	}
	for _, g := range p.EdgeGroups() {
		for _, row := range g.Rows {
			if _, ok := next.nodes[g.FromLabel][row.From]; !ok {
				return fmt.Errorf("%w: (%s %v)", ErrMissingEndpoint, g.FromLabel, row.From)
			}
			if _, ok := next.nodes[g.ToLabel][row.To]; !ok {
				return fmt.Errorf("%w: (%s %v)", ErrMissingEndpoint, g.ToLabel, row.To)
			}
			e := memEdge{g.FromLabel, row.From, g.Type, g.ToLabel, row.To}
			if _, dup := next.edges[e]; dup {
				continue
			}
			next.edges[e] = struct{}{}
			k := outKey{e.fromLabel, e.from, e.relType}
			next.out[k] = append(next.out[k], e)
		}
	}
	m.state = next
	return nil
}

type memSession struct {
	store  *MemoryStore
	closed bool
}

func (s *memSession) EnsureSchema(ctx context.Context) error {
	if s.closed {
		return errors.New("graph: session closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.store.mu.Lock()
	s.store.schema++
	s.store.mu.Unlock()
	return nil
}

func (s *memSession) Apply(ctx context.Context, p *Plan) error {
	if s.closed {
		return errors.New("graph: session closed")
	}
	if p == nil || p.Empty() {
		return nil
	}
	return s.store.apply(ctx, p)
}

func (s *memSession) Close(context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.store.mu.Lock()
	s.store.sessions--
	s.store.mu.Unlock()
	return nil
}

// Reads

func (m *MemoryStore) SearchWines(ctx context.Context, q SearchQuery) ([]domain.WineSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize(q.Terms)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.WineSummary
	for key, props := range m.state.nodes[domain.LabelWine] {
		price, ok := props["price"].(float64)
		if !ok || price > q.MaxPrice {
			continue
		}
		score := termScore(terms, props)
		if score == 0 {
			continue
		}
		w := m.summary(key, props)
		w.Score = score
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].WineID < out[j].WineID
	})
	return truncate(out, q.Limit), nil
}

func (m *MemoryStore) TopWinesByCountry(ctx context.Context, country string, limit int) ([]domain.WineSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.WineSummary
	for key, props := range m.state.nodes[domain.LabelWine] {
		if !strings.EqualFold(m.firstNeighbor(key, domain.RelIsFromCountry), country) {
			continue
		}
		out = append(out, m.summary(key, props))
	}
	sortByPoints(out)
	return truncate(out, limit), nil
}

func (m *MemoryStore) TopWinesByProvince(ctx context.Context, province string, limit int) ([]domain.WineSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.WineSummary
	for key, props := range m.state.nodes[domain.LabelWine] {
		p := m.firstNeighbor(key, domain.RelIsFromProvince)
		if p == "" || !strings.EqualFold(p, province) {
			continue
		}
		w := m.summary(key, props)
		w.Province = p
		out = append(out, w)
	}
	sortByPoints(out)
	return truncate(out, limit), nil
}

func (m *MemoryStore) MostWinesByVariety(ctx context.Context, country string, limit int) ([]domain.VarietyCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := map[string]int64{}
	for key, props := range m.state.nodes[domain.LabelWine] {
		v, ok := props["variety"].(string)
		if !ok || !strings.EqualFold(m.firstNeighbor(key, domain.RelIsFromCountry), country) {
			continue
		}
		counts[v]++
	}
	out := make([]domain.VarietyCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, domain.VarietyCount{Variety: v, WineCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WineCount != out[j].WineCount {
			return out[i].WineCount > out[j].WineCount
		}
		return out[i].Variety < out[j].Variety
	})
	return truncate(out, limit), nil
}

func (m *MemoryStore) GetWine(ctx context.Context, id int64) (*domain.WineDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	props, ok := m.state.nodes[domain.LabelWine][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	d := &domain.WineDetail{
		WineID:      id,
		Points:      int64Prop(props, "points"),
		Title:       stringProp(props, "title"),
		Description: stringProp(props, "description"),
		Variety:     stringProp(props, "variety"),
		Winery:      stringProp(props, "winery"),
		Vineyard:    stringProp(props, "vineyard"),
		Region1:     stringProp(props, "region_1"),
		Region2:     stringProp(props, "region_2"),
		Country:     m.firstNeighbor(id, domain.RelIsFromCountry),
		Province:    m.firstNeighbor(id, domain.RelIsFromProvince),
		TasterName:  m.firstNeighbor(id, domain.RelTastedBy),
	}
	if p, ok := props["price"].(float64); ok {
		d.Price = &p
	}
	if d.TasterName != "" {
		d.TasterTwitterHandle = stringProp(m.state.nodes[domain.LabelPerson][d.TasterName], "twitter_handle")
	}
	return d, nil
}

// firstNeighbor returns the name key of the node a wine links to. Caller holds mu.
func (m *MemoryStore) firstNeighbor(wineKey any, relType string) string {
	edges := m.state.out[outKey{domain.LabelWine, wineKey, relType}]
	if len(edges) == 0 {
		return ""
	}
	s, _ := edges[0].to.(string)
	return s
}

func (m *MemoryStore) summary(key any, props map[string]any) domain.WineSummary {
	id, _ := key.(int64)
	w := domain.WineSummary{
		Country:     m.firstNeighbor(key, domain.RelIsFromCountry),
		WineID:      id,
		Points:      int64Prop(props, "points"),
		Title:       stringProp(props, "title"),
		Description: stringProp(props, "description"),
		Variety:     stringProp(props, "variety"),
		Winery:      stringProp(props, "winery"),
	}
	if p, ok := props["price"].(float64); ok {
		w.Price = &p
	}
	return w
}

func sortByPoints(out []domain.WineSummary) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].WineID < out[j].WineID
	})
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func int64Prop(props map[string]any, key string) int64 {
	n, _ := props[key].(int64)
	return n
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// termScore is a term-frequency score over the full-text fields.
func termScore(terms []string, props map[string]any) float64 {
	if len(terms) == 0 {
		return 0
	}
	freq := map[string]int{}
	for _, f := range []string{"title", "description", "variety"} {
		for _, tok := range tokenize(stringProp(props, f)) {
			freq[tok]++
		}
	}
	score := 0.0
	for _, t := range slices.Compact(slices.Sorted(slices.Values(terms))) {
		score += float64(freq[t])
	}
	return score
}
