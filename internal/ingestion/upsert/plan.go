package upsert

import (
	"github.com/yungbote/winegraph/internal/data/graph"
	"github.com/yungbote/winegraph/internal/domain"
)

const (
	keyID   = "id"
	keyName = "name"
)

// BuildPlan lays out the merges for a set of records:
//
//	(Wine {id})            always, with its scalar attributes
//	(Country {name})       always, linked by IS_FROM_COUNTRY
//	(Person {name})        when a taster is named, linked by TASTED_BY
//	(Province {name})      when a province is named, linked by IS_FROM_PROVINCE,
//	                       and IS_LOCATED_IN its country
//
// Later records win when two share an id.
func BuildPlan(records []domain.WineRecord) (*graph.Plan, error) {
	p := graph.NewPlan()
	for _, r := range records {
		if err := addRecord(p, r); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func addRecord(p *graph.Plan, r domain.WineRecord) error {
	wine := p.MergeNode(domain.LabelWine, keyID, r.ID, r.WineAttributes())

	country := r.Country
	if country == "" {
		country = domain.UnknownCountry
	}
	c := p.MergeNode(domain.LabelCountry, keyName, country, nil)
	if err := p.MergeEdge(wine, domain.RelIsFromCountry, c); err != nil {
		return err
	}

	if name, ok := r.TasterName.Get(); ok {
		person := p.MergeNode(domain.LabelPerson, keyName, name, map[string]any{
			"twitter_handle": r.TasterTwitterHandle.Any(),
		})
		if err := p.MergeEdge(wine, domain.RelTastedBy, person); err != nil {
			return err
		}
	}

	if name, ok := r.Province.Get(); ok {
		prov := p.MergeNode(domain.LabelProvince, keyName, name, nil)
		if err := p.MergeEdge(wine, domain.RelIsFromProvince, prov); err != nil {
			return err
		}
		if err := p.MergeEdge(prov, domain.RelIsLocatedIn, c); err != nil {
			return err
		}
	}
	return nil
}
