package domain

// WineRecord is a normalized review. It is built once by the normalizer and not
// mutated afterwards.
type WineRecord struct {
	ID      int64  `json:"id"`
	Points  int64  `json:"points"`
	Title   string `json:"title"`
	Country string `json:"country"`

	Description         Optional[string]  `json:"description"`
	Price               Optional[float64] `json:"price"`
	Variety             Optional[string]  `json:"variety"`
	Winery              Optional[string]  `json:"winery"`
	Province            Optional[string]  `json:"province"`
	Region1             Optional[string]  `json:"region_1"`
	Region2             Optional[string]  `json:"region_2"`
	TasterName          Optional[string]  `json:"taster_name"`
	TasterTwitterHandle Optional[string]  `json:"taster_twitter_handle"`
	Vineyard            Optional[string]  `json:"vineyard"`
}

// WineAttributes returns the scalar properties stored on the Wine node. Absent
// fields are present with a nil value so a re-merge clears stale attributes.
func (r WineRecord) WineAttributes() map[string]any {
	return map[string]any{
		"points":      r.Points,
		"title":       r.Title,
		"description": r.Description.Any(),
		"price":       r.Price.Any(),
		"variety":     r.Variety.Any(),
		"winery":      r.Winery.Any(),
		"vineyard":    r.Vineyard.Any(),
		"region_1":    r.Region1.Any(),
		"region_2":    r.Region2.Any(),
	}
}

// WineSummary is one row of a read query.
type WineSummary struct {
	Country     string   `json:"country"`
	Province    string   `json:"province,omitempty"`
	WineID      int64    `json:"wineID"`
	Points      int64    `json:"points"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Variety     string   `json:"variety"`
	Winery      string   `json:"winery"`
	Score       float64  `json:"-"`
}

// WineDetail is a single wine with the nodes it links to.
type WineDetail struct {
	WineID              int64    `json:"wineID"`
	Points              int64    `json:"points"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Price               *float64 `json:"price"`
	Variety             string   `json:"variety"`
	Winery              string   `json:"winery"`
	Vineyard            string   `json:"vineyard"`
	Region1             string   `json:"region_1"`
	Region2             string   `json:"region_2"`
	Country             string   `json:"country"`
	Province            string   `json:"province"`
	TasterName          string   `json:"taster_name"`
	TasterTwitterHandle string   `json:"taster_twitter_handle"`
}

type VarietyCount struct {
	Variety   string `json:"variety"`
	WineCount int64  `json:"wineCount"`
}
