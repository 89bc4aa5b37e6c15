// Package normalize turns raw review records into domain.WineRecord values.
//
// Rules run in a fixed order: aliases are renamed (unknown keys dropped), the
// required fields are checked against the embedded JSON schema, numeric fields are
// coerced, null sentinels ("null", blank, JSON null) become absent, a missing
// country becomes domain.UnknownCountry, and every string is trimmed.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/yungbote/winegraph/internal/domain"
)

const (
	fieldID                  = "id"
	fieldPoints              = "points"
	fieldTitle               = "title"
	fieldDescription         = "description"
	fieldPrice               = "price"
	fieldVariety             = "variety"
	fieldWinery              = "winery"
	fieldCountry             = "country"
	fieldProvince            = "province"
	fieldRegion1             = "region_1"
	fieldRegion2             = "region_2"
	fieldTasterName          = "taster_name"
	fieldTasterTwitterHandle = "taster_twitter_handle"
	fieldVineyard            = "vineyard"
)

var canonicalFields = []string{
	fieldID, fieldPoints, fieldTitle, fieldDescription, fieldPrice, fieldVariety,
	fieldWinery, fieldCountry, fieldProvince, fieldRegion1, fieldRegion2,
	fieldTasterName, fieldTasterTwitterHandle, fieldVineyard,
}

// DefaultAliases maps source field names onto canonical ones.
var DefaultAliases = map[string]string{
	"designation": fieldVineyard,
}

type fieldState int

const (
	stateAbsent fieldState = iota
	stateNull
	statePresent
)

type Normalizer struct {
	aliases map[string]string
	schema  *gojsonschema.Schema
}

type Option func(*Normalizer)

// WithAlias adds a source → canonical rename.
func WithAlias(from, to string) Option {
	return func(n *Normalizer) { n.aliases[from] = to }
}

func New(opts ...Option) (*Normalizer, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	n := &Normalizer{aliases: make(map[string]string, len(DefaultAliases)), schema: schema}
	for k, v := range DefaultAliases {
		n.aliases[k] = v
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Normalize validates and coerces one raw record. It has no side effects.
func (n *Normalizer) Normalize(raw domain.RawRecord) (domain.WineRecord, error) {
	rec := n.rename(raw)
	recordID := describeID(rec[fieldID])

	if err := checkShape(n.schema, rec, recordID); err != nil {
		return domain.WineRecord{}, err
	}

	id, err := toInt64(rec[fieldID])
	if err != nil {
		return domain.WineRecord{}, &domain.ValidationError{RecordID: recordID, Field: fieldID, Reason: "not an integer", Err: err}
	}
	points, err := toInt64(rec[fieldPoints])
	if err != nil {
		return domain.WineRecord{}, &domain.ValidationError{RecordID: recordID, Field: fieldPoints, Reason: "not an integer", Err: err}
	}

	out := domain.WineRecord{ID: id, Points: points}

	var price domain.Optional[float64]
	if v, st := classify(rec, fieldPrice); st == statePresent {
		f, err := toFloat64(v)
		if err != nil {
			return domain.WineRecord{}, &domain.ValidationError{RecordID: recordID, Field: fieldPrice, Reason: "not a number", Err: err}
		}
		if f < 0 {
			return domain.WineRecord{}, &domain.ValidationError{RecordID: recordID, Field: fieldPrice, Reason: "must not be negative"}
		}
		price = domain.Some(f)
	}
	out.Price = price

	title, err := optionalString(rec, fieldTitle)
	if err != nil {
		return domain.WineRecord{}, withRecord(err, recordID)
	}
	t, ok := title.Get()
	if !ok {
		return domain.WineRecord{}, &domain.ValidationError{RecordID: recordID, Field: fieldTitle, Reason: "required field is empty"}
	}
	out.Title = t

	targets := []struct {
		field string
		dst   *domain.Optional[string]
	}{
		{fieldDescription, &out.Description},
		{fieldVariety, &out.Variety},
		{fieldWinery, &out.Winery},
		{fieldProvince, &out.Province},
		{fieldRegion1, &out.Region1},
		{fieldRegion2, &out.Region2},
		{fieldTasterName, &out.TasterName},
		{fieldTasterTwitterHandle, &out.TasterTwitterHandle},
		{fieldVineyard, &out.Vineyard},
	}
	for _, tgt := range targets {
		v, err := optionalString(rec, tgt.field)
		if err != nil {
			return domain.WineRecord{}, withRecord(err, recordID)
		}
		*tgt.dst = v
	}

	country, err := optionalString(rec, fieldCountry)
	if err != nil {
		return domain.WineRecord{}, withRecord(err, recordID)
	}
	out.Country = country.OrElse(domain.UnknownCountry)

	return out, nil
}

// NormalizeAll is the strict policy: the first invalid record aborts the call and
// nothing is returned. A repeated id is also a validation failure. The error is a
// *Failure naming the offending index.
func (n *Normalizer) NormalizeAll(raws []domain.RawRecord) ([]domain.WineRecord, error) {
	out := make([]domain.WineRecord, 0, len(raws))
	seen := make(map[int64]struct{}, len(raws))
	for i, raw := range raws {
		rec, err := n.Normalize(raw)
		if err != nil {
			return nil, &Failure{Index: i, Err: asValidation(err)}
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, &Failure{Index: i, Err: duplicateID(rec.ID)}
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}

// Failure is a rejected record. Index is the record's 0-based position in the
// input.
type Failure struct {
	Index int
	Err   *domain.ValidationError
}

func (f *Failure) Error() string { return fmt.Sprintf("record %d: %v", f.Index+1, f.Err) }

func (f *Failure) Unwrap() error { return f.Err }

// NormalizeEach is the skip policy: invalid records and later duplicates are
// reported and left out, valid ones keep their input order.
func (n *Normalizer) NormalizeEach(raws []domain.RawRecord) ([]domain.WineRecord, []Failure) {
	out := make([]domain.WineRecord, 0, len(raws))
	var failures []Failure
	seen := make(map[int64]struct{}, len(raws))
	for i, raw := range raws {
		rec, err := n.Normalize(raw)
		if err != nil {
			failures = append(failures, Failure{Index: i, Err: asValidation(err)})
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			failures = append(failures, Failure{Index: i, Err: duplicateID(rec.ID)})
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out, failures
}

func (n *Normalizer) rename(raw domain.RawRecord) map[string]any {
	rec := make(map[string]any, len(canonicalFields))
	for _, f := range canonicalFields {
		if v, ok := raw[f]; ok {
			rec[f] = v
		}
	}
	for from, to := range n.aliases {
		v, ok := raw[from]
		if !ok {
			continue
		}
		if _, st := classify(rec, to); st == statePresent {
			continue
		}
		rec[to] = v
	}
	return rec
}

func classify(rec map[string]any, field string) (any, fieldState) {
	v, ok := rec[field]
	if !ok {
		return nil, stateAbsent
	}
	if v == nil {
		return nil, stateNull
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" || s == "null" {
			return nil, stateNull
		}
	}
	return v, statePresent
}

func optionalString(rec map[string]any, field string) (domain.Optional[string], error) {
	v, st := classify(rec, field)
	if st != statePresent {
		return domain.None[string](), nil
	}
	s, ok := v.(string)
	if !ok {
		return domain.None[string](), &domain.ValidationError{Field: field, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return domain.Some(strings.TrimSpace(s)), nil
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return integral(f)
	case float64:
		return integral(t)
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q", t)
		}
		return integral(f)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func integral(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		x, err := t.Float64()
		if err != nil {
			return 0, err
		}
		f = x
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q", t)
		}
		f = x
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not finite", f)
	}
	return f, nil
}

func describeID(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return fmt.Sprint(t)
	}
}

func withRecord(err error, recordID string) error {
	if ve, ok := err.(*domain.ValidationError); ok && ve.RecordID == "" {
		ve.RecordID = recordID
	}
	return err
}

func asValidation(err error) *domain.ValidationError {
	if ve, ok := err.(*domain.ValidationError); ok {
		return ve
	}
	return &domain.ValidationError{Reason: "invalid record", Err: err}
}

func duplicateID(id int64) *domain.ValidationError {
	return &domain.ValidationError{RecordID: strconv.FormatInt(id, 10), Field: fieldID, Reason: "duplicate id in dataset"}
}
