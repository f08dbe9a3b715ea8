package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/model"
)

const berlin = `{
  "id": "Q64",
  "type": "item",
  "labels": {"en": {"language": "en", "value": "Berlin"}, "de": {"language": "de", "value": "Berlin"}},
  "descriptions": {"en": {"language": "en", "value": "capital of Germany"}},
  "aliases": {"en": [{"language": "en", "value": "Berlin, Germany"}], "de": [{"language": "de", "value": "Berlin, Germany"}, {"language": "de", "value": "Spree-Athen"}]},
  "claims": {
    "P31": [
      {"mainsnak": {"snaktype": "value", "property": "P31", "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": 515}}}},
      {"mainsnak": {"snaktype": "value", "property": "P31", "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": 1549591}}}}
    ],
    "P17": [{"mainsnak": {"snaktype": "value", "property": "P17", "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": 183}}}}],
    "P30": [{"mainsnak": {"snaktype": "value", "property": "P30", "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": 46}}}}],
    "P625": [
      {"mainsnak": {"snaktype": "value", "property": "P625", "datavalue": {"type": "globecoordinate", "value": {"latitude": 520.0, "longitude": 13.4}}}},
      {"mainsnak": {"snaktype": "value", "property": "P625", "datavalue": {"type": "globecoordinate", "value": {"latitude": 52.52, "longitude": 13.405}}}}
    ],
    "P1082": [
      {"mainsnak": {"snaktype": "value", "property": "P1082", "datavalue": {"type": "quantity", "value": {"amount": "+3469849"}}}},
      {"mainsnak": {"snaktype": "value", "property": "P1082", "datavalue": {"type": "quantity", "value": {"amount": "+3755251"}}}},
      {"mainsnak": {"snaktype": "value", "property": "P1082", "datavalue": {"type": "string", "value": "many"}}}
    ]
  },
  "sitelinks": {"enwiki": {"site": "enwiki", "title": "Berlin"}, "dewiki": {"site": "dewiki", "title": "Berlin"}}
}`

const adams = `{
  "id": "Q42",
  "type": "item",
  "labels": {"fr": {"language": "fr", "value": "Douglas Adams"}},
  "claims": {
    "P31": [{"mainsnak": {"snaktype": "value", "property": "P31", "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": 5}}}}],
    "P569": [{"mainsnak": {"snaktype": "value", "property": "P569", "datavalue": {"type": "time", "value": {"time": "+1952-03-11T00:00:00Z", "precision": 11}}}}],
    "P570": [{"mainsnak": {"snaktype": "value", "property": "P570", "datavalue": {"type": "string", "value": "2001"}}}],
    "P21": [{"mainsnak": {"snaktype": "value", "property": "P21", "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": 6581097}}}}],
    "P106": [
      {"mainsnak": {"snaktype": "value", "property": "P106", "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": 36180}}}},
      {"mainsnak": {"snaktype": "somevalue", "property": "P106"}},
      {"mainsnak": {"snaktype": "value", "property": "P106", "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": 214917}}}}
    ]
  }
}`

func item(t *testing.T, raw string) *model.Item {
	t.Helper()
	var it model.Item
	require.NoError(t, json.Unmarshal([]byte(raw), &it))
	return &it
}

func TestApply_Person(t *testing.T) {
	r := NewRegistry(Options{})
	rec := model.NewRecord("Q42", model.CategoryPerson, "run")
	r.Apply(item(t, adams), rec, nil)

	assert.Equal(t, "Douglas Adams", rec.Fields["norm_name"], "falls back to another language")
	assert.Equal(t, "1952-03-11", rec.Fields["date_birth"])
	assert.NotContains(t, rec.Fields, "date_death", "wrong value type is omitted")
	assert.Equal(t, "male", rec.Fields["gender"])
	assert.Equal(t, []string{"Q36180", "Q214917"}, rec.Fields["occupation"])
	assert.NotContains(t, rec.Fields, "alias")
	assert.NotContains(t, rec.Fields, "en_label")
}

func TestApply_Location(t *testing.T) {
	aux := NewAux()
	aux.Add("country", closure.NewSet(6256))
	aux.Add("settlement", closure.NewSet(486972, 515, 1549591))
	aux.Add("city", closure.NewSet(515, 1549591))

	rec := model.NewRecord("Q64", model.CategoryLocation, "run")
	NewRegistry(Options{}).Apply(item(t, berlin), rec, aux)

	assert.Equal(t, "Berlin", rec.Fields["norm_name"])
	assert.Equal(t, "capital of Germany", rec.Fields["en_description"])
	assert.Equal(t, "Berlin", rec.Fields["de_sitelink"])
	assert.Equal(t, 2, rec.Fields["sitelink_count"])
	assert.Equal(t, []string{"Q183"}, rec.Fields["in_country"])
	assert.Equal(t, []string{"Q46"}, rec.Fields["in_continent"])
	assert.Equal(t, []string{"settlement", "city"}, rec.Fields["location_type"])
	assert.Equal(t, GeoPoint{Type: "Point", Coordinates: [2]float64{13.405, 52.52}}, rec.Fields["coordinate"])
	assert.Equal(t, int64(3755251), rec.Fields["population"])
}

func TestApply_OtherCategoriesGetCommonFieldsOnly(t *testing.T) {
	rec := model.NewRecord("Q64", model.CategoryWork, "run")
	NewRegistry(Options{}).Apply(item(t, berlin), rec, nil)

	assert.Equal(t, "Berlin", rec.Fields["en_label"])
	assert.NotContains(t, rec.Fields, "population")
}

func TestPopulation_SkipsUnrepresentable(t *testing.T) {
	raw := `{"id": "Q1", "type": "item", "claims": {"P1082": [
		{"mainsnak": {"snaktype": "value", "property": "P1082", "datavalue": {"type": "quantity", "value": {"amount": "+1e30"}}}},
		{"mainsnak": {"snaktype": "value", "property": "P1082", "datavalue": {"type": "quantity", "value": {"amount": "NaN"}}}},
		{"mainsnak": {"snaktype": "value", "property": "P1082", "datavalue": {"type": "quantity", "value": {"amount": "-5"}}}},
		{"mainsnak": {"snaktype": "value", "property": "P1082", "datavalue": {"type": "quantity", "value": {"amount": "+1200"}}}}
	]}}`
	v, ok := Population(item(t, raw), nil)
	require.True(t, ok)
	assert.Equal(t, int64(1200), v)

	only := `{"id": "Q2", "type": "item", "claims": {"P1082": [
		{"mainsnak": {"snaktype": "value", "property": "P1082", "datavalue": {"type": "quantity", "value": {"amount": "+9.3e18"}}}}
	]}}`
	_, ok = Population(item(t, only), nil)
	assert.False(t, ok)
}

func TestAliases(t *testing.T) {
	v, ok := Aliases(item(t, berlin), nil)
	require.True(t, ok)
	assert.Equal(t, []string{"Berlin, Germany", "Spree-Athen"}, v)
}

func TestRegistry_Order(t *testing.T) {
	fields := func(r *Registry, c model.Category) []string {
		var out []string
		for _, e := range r.extractors[c] {
			out = append(out, e.Field)
		}
		return out
	}

	r := NewRegistry(Options{})
	assert.Equal(t, []string{"date_birth", "date_death", "gender", "occupation", "alias"}, fields(r, model.CategoryPerson))
	assert.Equal(t, []string{"event_location"}, fields(r, model.CategoryEvent))
	assert.Empty(t, fields(r, model.CategoryBrand))

	r = NewRegistry(Options{OfficialOpening: true})
	assert.Equal(t, []string{"date_of_official_opening", "event_location"}, fields(r, model.CategoryEvent))

	r.Register(model.CategoryBrand, "constant", func(*model.Item, *Aux) (any, bool) { return 1, true })
	rec := model.NewRecord("Q1", model.CategoryBrand, "run")
	r.Apply(&model.Item{ID: "Q1"}, rec, nil)
	assert.Equal(t, 1, rec.Fields["constant"])
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		time      string
		precision int
		want      string
		ok        bool
	}{
		{"+1952-03-11T00:00:00Z", 11, "1952-03-11", true},
		{"+1952-03-00T00:00:00Z", 11, "1952-03", true},
		{"+1952-03-11T00:00:00Z", 10, "1952-03", true},
		{"+1952-00-00T00:00:00Z", 9, "1952", true},
		{"+1900-00-00T00:00:00Z", 7, "1900", true},
		{"-0500-01-01T00:00:00Z", 9, "-0500", true},
		{"+0079-08-24T00:00:00Z", 11, "0079-08-24", true},
		{"garbage", 11, "", false},
		{"", 11, "", false},
	}
	for _, tt := range tests {
		got, ok := FormatTime(model.TimeValue{Time: tt.time, Precision: tt.precision})
		assert.Equal(t, tt.ok, ok, tt.time)
		assert.Equal(t, tt.want, got, tt.time)
	}
}

func TestNormalizeWebsite(t *testing.T) {
	assert.Equal(t, "https://www.example.org/About", NormalizeWebsite(" HTTPS://WWW.Example.ORG/About "))
	assert.Equal(t, "https://xn--mnchen-3ya.de/", NormalizeWebsite("https://münchen.de/"))
	assert.Equal(t, "http://example.org:8080", NormalizeWebsite("http://Example.org:8080"))
	assert.Equal(t, "example.org", NormalizeWebsite("example.org"))
	assert.Equal(t, "", NormalizeWebsite("  "))
}

func TestOfficialWebsite(t *testing.T) {
	it := &model.Item{Claims: map[string][]model.Statement{
		PropOfficialWebsite: {{Mainsnak: model.Snak{
			SnakType:  "value",
			Property:  PropOfficialWebsite,
			DataValue: &model.DataValue{Type: "string", Value: json.RawMessage(`"https://Wikimedia.org"`)},
		}}},
	}}
	v, ok := OfficialWebsite(it, nil)
	require.True(t, ok)
	assert.Equal(t, "https://wikimedia.org", v)

	_, ok = OfficialWebsite(&model.Item{}, nil)
	assert.False(t, ok)
}
