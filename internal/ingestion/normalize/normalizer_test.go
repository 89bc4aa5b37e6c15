package normalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/winegraph/internal/domain"
)

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New()
	require.NoError(t, err)
	return n
}

func decode(t *testing.T, line string) domain.RawRecord {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()
	var raw domain.RawRecord
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func TestNormalizeHappyPath(t *testing.T) {
	n := newNormalizer(t)
	rec, err := n.Normalize(decode(t, `{"id":40825,"points":"90","title":"Castello San Donato in Perano 2009 Riserva (Chianti Classico)","country":"Italy","province":"Tuscany","taster_name":"Kerin O'Keefe"}`))
	require.NoError(t, err)

	assert.Equal(t, int64(40825), rec.ID)
	assert.Equal(t, int64(90), rec.Points)
	assert.Equal(t, "Castello San Donato in Perano 2009 Riserva (Chianti Classico)", rec.Title)
	assert.Equal(t, "Italy", rec.Country)
	assert.Equal(t, domain.Some("Tuscany"), rec.Province)
	assert.Equal(t, domain.Some("Kerin O'Keefe"), rec.TasterName)
	assert.False(t, rec.Price.IsSet())
	assert.False(t, rec.TasterTwitterHandle.IsSet())
}

func TestNormalizeCountryDefaults(t *testing.T) {
	n := newNormalizer(t)
	for _, line := range []string{
		`{"id":1,"points":90,"title":"X","country":null}`,
		`{"id":1,"points":90,"title":"X","country":"null"}`,
		`{"id":1,"points":90,"title":"X","country":"   "}`,
		`{"id":1,"points":90,"title":"X"}`,
	} {
		rec, err := n.Normalize(decode(t, line))
		require.NoError(t, err, line)
		assert.Equal(t, domain.UnknownCountry, rec.Country, line)
	}
}

func TestNormalizeMissingRequired(t *testing.T) {
	n := newNormalizer(t)
	cases := map[string]string{
		"id":     `{"points":90,"title":"X"}`,
		"points": `{"id":1,"title":"X"}`,
		"title":  `{"id":1,"points":90}`,
	}
	for field, line := range cases {
		_, err := n.Normalize(decode(t, line))
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve, field)
		assert.Equal(t, field, ve.Field)
	}
}

func TestNormalizeRejectsUntypeableValues(t *testing.T) {
	n := newNormalizer(t)
	for _, line := range []string{
		`{"id":"abc","points":90,"title":"X"}`,
		`{"id":1,"points":"ninety","title":"X"}`,
		`{"id":1,"points":90.5,"title":"X"}`,
		`{"id":1,"points":90,"title":"null"}`,
		`{"id":1,"points":90,"title":"  "}`,
		`{"id":1,"points":90,"title":7}`,
		`{"id":1,"points":90,"title":"X","price":"cheap"}`,
		`{"id":1,"points":90,"title":"X","price":-5}`,
		`{"id":1,"points":90,"title":"X","price":"-1.0"}`,
		`{"id":1,"points":90,"title":"X","winery":12}`,
		`{"id":true,"points":90,"title":"X"}`,
	} {
		_, err := n.Normalize(decode(t, line))
		assert.True(t, domain.IsValidation(err), line)
	}
}

func TestNormalizeCoercionAndCleanup(t *testing.T) {
	n := newNormalizer(t)
	rec, err := n.Normalize(decode(t, `{
		"id":" 12 ", "points":"88.0", "title":"  Quinta  ", "price":"15.5",
		"designation":" Reserve ", "region_1":"null", "region_2":null,
		"variety":" Red Blend ", "taster_twitter_handle":"@vossroger", "extra":"dropped"
	}`))
	require.NoError(t, err)

	assert.Equal(t, int64(12), rec.ID)
	assert.Equal(t, int64(88), rec.Points)
	assert.Equal(t, "Quinta", rec.Title)
	assert.Equal(t, domain.Some(15.5), rec.Price)
	assert.Equal(t, domain.Some("Reserve"), rec.Vineyard)
	assert.Equal(t, domain.Some("Red Blend"), rec.Variety)
	assert.Equal(t, domain.Some("@vossroger"), rec.TasterTwitterHandle)
	assert.False(t, rec.Region1.IsSet())
	assert.False(t, rec.Region2.IsSet())
}

func TestNormalizeCanonicalFieldWinsOverAlias(t *testing.T) {
	n := newNormalizer(t)
	rec, err := n.Normalize(decode(t, `{"id":1,"points":90,"title":"X","designation":"Alias","vineyard":"Canonical"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Some("Canonical"), rec.Vineyard)

	rec, err = n.Normalize(decode(t, `{"id":1,"points":90,"title":"X","designation":"Alias","vineyard":"null"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Some("Alias"), rec.Vineyard)
}

func TestNormalizeCustomAlias(t *testing.T) {
	n, err := New(WithAlias("taster", "taster_name"))
	require.NoError(t, err)
	rec, err := n.Normalize(domain.RawRecord{"id": 3, "points": 80, "title": "Y", "taster": "Anna Lee C. Iijima"})
	require.NoError(t, err)
	assert.Equal(t, domain.Some("Anna Lee C. Iijima"), rec.TasterName)
}

func TestNormalizeAllIsAtomic(t *testing.T) {
	n := newNormalizer(t)
	raws := []domain.RawRecord{
		{"id": 1, "points": 90, "title": "A"},
		{"points": 90, "title": "no id"},
		{"id": 3, "points": 90, "title": "C"},
	}
	out, err := n.NormalizeAll(raws)
	assert.Nil(t, out)
	assert.True(t, domain.IsValidation(err))
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, 1, f.Index)

	_, err = n.NormalizeAll([]domain.RawRecord{
		{"id": 1, "points": 90, "title": "A"},
		{"id": "1", "points": 91, "title": "A again"},
	})
	assert.True(t, domain.IsValidation(err))
	require.ErrorAs(t, err, &f)
	assert.Equal(t, 1, f.Index)
	assert.Equal(t, "1", f.Err.RecordID)
}

func TestNormalizeEachSkipsInvalid(t *testing.T) {
	n := newNormalizer(t)
	raws := []domain.RawRecord{
		{"id": 1, "points": 90, "title": "A"},
		{"points": 90, "title": "no id"},
		{"id": 3, "points": 90, "title": "C"},
		{"id": 1, "points": 70, "title": "dup"},
	}
	out, failures := n.NormalizeEach(raws)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(3), out[1].ID)
	require.Len(t, failures, 2)
	assert.Equal(t, 1, failures[0].Index)
	assert.Equal(t, 3, failures[1].Index)
	assert.Equal(t, "1", failures[1].Err.RecordID)
}
