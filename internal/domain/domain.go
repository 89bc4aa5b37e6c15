// Package domain holds the wine graph's record types, read models, ingestion
// reports and the error taxonomy shared by the pipeline and the query path.
package domain

// Graph labels and relationship types. Nodes are keyed by natural keys, never by
// store-generated ids.
const (
	LabelWine     = "Wine"
	LabelPerson   = "Person"
	LabelCountry  = "Country"
	LabelProvince = "Province"

	RelTastedBy       = "TASTED_BY"
	RelIsFromCountry  = "IS_FROM_COUNTRY"
	RelIsFromProvince = "IS_FROM_PROVINCE"
	RelIsLocatedIn    = "IS_LOCATED_IN"
)

// UnknownCountry stands in for a missing country so every wine stays reachable
// from a Country node.
const UnknownCountry = "Unknown"

// DefaultBatchSize is the chunk size used when none is configured.
const DefaultBatchSize = 10_000

// RawRecord is one decoded line of the bulk source. Numbers are json.Number when
// decoded by the NDJSON reader; no field is guaranteed to exist.
type RawRecord map[string]any


// SourceRecord is a RawRecord with its 1-based position in the source: the line
// for NDJSON, the element index for a JSON array. Line is 0 when unknown.
type SourceRecord struct {
	Line   int
	Fields RawRecord
}
