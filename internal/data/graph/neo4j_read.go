package graph

import (
	"context"
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/winegraph/internal/domain"
)

// Absent scalars come back from the store as sentinels so every row has the same
// field set: missing text is "" and a missing price is absentPrice.
const absentPrice = -1.0

const wineSummaryReturn = `
RETURN c.name AS country,
       wine.id AS wineID,
       wine.points AS points,
       wine.title AS title,
       coalesce(wine.description, "") AS description,
       coalesce(wine.price, -1.0) AS price,
       coalesce(wine.variety, "") AS variety,
       coalesce(wine.winery, "") AS winery`

var (
	searchWinesCypher = `
CALL db.index.fulltext.queryNodes("` + FullTextIndex + `", $terms) YIELD node AS wine, score
WITH DISTINCT wine, score
MATCH (wine)-[:IS_FROM_COUNTRY]->(c:Country)
WHERE wine.price <= $price` + wineSummaryReturn + `, score
ORDER BY score DESC, points DESC, wineID ASC
LIMIT $limit
`

	topByCountryCypher = `
MATCH (wine:Wine)-[:IS_FROM_COUNTRY]->(c:Country)
WHERE toLower(c.name) = toLower($country)` + wineSummaryReturn + `
ORDER BY points DESC, wineID ASC
LIMIT $limit
`

	topByProvinceCypher = `
MATCH (wine:Wine)-[:IS_FROM_PROVINCE]->(p:Province)
WHERE toLower(p.name) = toLower($province)
MATCH (wine)-[:IS_FROM_COUNTRY]->(c:Country)` + wineSummaryReturn + `, p.name AS province
ORDER BY points DESC, wineID ASC
LIMIT $limit
`

	mostByVarietyCypher = `
MATCH (wine:Wine)-[:IS_FROM_COUNTRY]->(c:Country)
WHERE toLower(c.name) = toLower($country) AND wine.variety IS NOT NULL
RETURN wine.variety AS variety, count(wine) AS wineCount
ORDER BY wineCount DESC, variety ASC
LIMIT $limit
`

	getWineCypher = `
MATCH (wine:Wine {id: $id})
OPTIONAL MATCH (wine)-[:TASTED_BY]->(t:Person)
OPTIONAL MATCH (wine)-[:IS_FROM_COUNTRY]->(c:Country)
OPTIONAL MATCH (wine)-[:IS_FROM_PROVINCE]->(p:Province)
RETURN wine.id AS wineID,
       wine.points AS points,
       wine.title AS title,
       coalesce(wine.description, "") AS description,
       coalesce(wine.price, -1.0) AS price,
       coalesce(wine.variety, "") AS variety,
       coalesce(wine.winery, "") AS winery,
       coalesce(wine.vineyard, "") AS vineyard,
       coalesce(wine.region_1, "") AS region_1,
       coalesce(wine.region_2, "") AS region_2,
       coalesce(c.name, "") AS country,
       coalesce(p.name, "") AS province,
       coalesce(t.name, "") AS taster_name,
       coalesce(t.twitter_handle, "") AS taster_twitter_handle
LIMIT 1
`
)

func (s *Neo4jStore) SearchWines(ctx context.Context, q SearchQuery) ([]domain.WineSummary, error) {
	recs, err := s.read(ctx, searchWinesCypher, map[string]any{
		"terms": EscapeLucene(q.Terms),
		"price": q.MaxPrice,
		"limit": int64(q.Limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.WineSummary, 0, len(recs))
	for _, r := range recs {
		w := summaryFromRecord(r)
		w.Score = getFloat(r, "score")
		out = append(out, w)
	}
	return out, nil
}

func (s *Neo4jStore) TopWinesByCountry(ctx context.Context, country string, limit int) ([]domain.WineSummary, error) {
	recs, err := s.read(ctx, topByCountryCypher, map[string]any{"country": country, "limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]domain.WineSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, summaryFromRecord(r))
	}
	return out, nil
}

func (s *Neo4jStore) TopWinesByProvince(ctx context.Context, province string, limit int) ([]domain.WineSummary, error) {
	recs, err := s.read(ctx, topByProvinceCypher, map[string]any{"province": province, "limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]domain.WineSummary, 0, len(recs))
	for _, r := range recs {
		w := summaryFromRecord(r)
		w.Province = getString(r, "province")
		out = append(out, w)
	}
	return out, nil
}

func (s *Neo4jStore) MostWinesByVariety(ctx context.Context, country string, limit int) ([]domain.VarietyCount, error) {
	recs, err := s.read(ctx, mostByVarietyCypher, map[string]any{"country": country, "limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]domain.VarietyCount, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.VarietyCount{Variety: getString(r, "variety"), WineCount: getInt(r, "wineCount")})
	}
	return out, nil
}

func (s *Neo4jStore) GetWine(ctx context.Context, id int64) (*domain.WineDetail, error) {
	recs, err := s.read(ctx, getWineCypher, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotFound
	}
	r := recs[0]
	return &domain.WineDetail{
		WineID:              getInt(r, "wineID"),
		Points:              getInt(r, "points"),
		Title:               getString(r, "title"),
		Description:         getString(r, "description"),
		Price:               priceOf(getFloat(r, "price")),
		Variety:             getString(r, "variety"),
		Winery:              getString(r, "winery"),
		Vineyard:            getString(r, "vineyard"),
		Region1:             getString(r, "region_1"),
		Region2:             getString(r, "region_2"),
		Country:             getString(r, "country"),
		Province:            getString(r, "province"),
		TasterName:          getString(r, "taster_name"),
		TasterTwitterHandle: getString(r, "taster_twitter_handle"),
	}, nil
}

func (s *Neo4jStore) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	if s.client.Driver == nil {
		return nil, errors.New("graph: neo4j driver closed")
	}
	session := s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.client.Database,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

func summaryFromRecord(r *neo4j.Record) domain.WineSummary {
	return domain.WineSummary{
		Country:     getString(r, "country"),
		WineID:      getInt(r, "wineID"),
		Points:      getInt(r, "points"),
		Title:       getString(r, "title"),
		Description: getString(r, "description"),
		Price:       priceOf(getFloat(r, "price")),
		Variety:     getString(r, "variety"),
		Winery:      getString(r, "winery"),
	}
}

func priceOf(v float64) *float64 {
	if v == absentPrice {
		return nil
	}
	return &v
}

func getString(r *neo4j.Record, key string) string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func getInt(r *neo4j.Record, key string) int64 {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func getFloat(r *neo4j.Record, key string) float64 {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	default:
		return 0
	}
}

var luceneReplacer = func() *strings.Replacer {
	special := []string{`\`, `+`, `-`, `&`, `|`, `!`, `(`, `)`, `{`, `}`, `[`, `]`, `^`, `"`, `~`, `*`, `?`, `:`, `/`}
	pairs := make([]string, 0, len(special)*2)
	for _, s := range special {
		pairs = append(pairs, s, `\`+s)
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeLucene quotes query-syntax characters so user terms are matched literally.
func EscapeLucene(terms string) string {
	return luceneReplacer.Replace(strings.TrimSpace(terms))
}
