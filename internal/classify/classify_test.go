package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/extract"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

// memCorpus filters items in memory the way the stores do
type memCorpus struct {
	items   []*model.Item
	findErr error
	scanErr error
	closed  int
	filters []store.Filter
}

func (c *memCorpus) Find(_ context.Context, f store.Filter) (store.Cursor, error) {
	c.filters = append(c.filters, f)
	if c.findErr != nil {
		return nil, c.findErr
	}
	want := closure.NewSet(f.InstanceOf...)
	var hits []*model.Item
	for _, it := range c.items {
		if it.Type == f.Type && (f.InstanceOf == nil || want.Intersects(it.InstanceOf())) {
			hits = append(hits, it)
		}
	}
	return &memCursor{corpus: c, items: hits, pos: -1}, nil
}

func (c *memCorpus) LookupEdges(context.Context, []model.ClassID, closure.Direction) ([]model.ClassID, error) {
	return nil, nil
}

func (c *memCorpus) Ping(context.Context) error { return nil }
func (c *memCorpus) Close() error               { return nil }

type memCursor struct {
	corpus *memCorpus
	items  []*model.Item
	pos    int
}

func (c *memCursor) Next(context.Context) bool {
	c.pos++
	return c.pos < len(c.items)
}

func (c *memCursor) Item() *model.Item { return c.items[c.pos] }

func (c *memCursor) Err() error { return c.corpus.scanErr }

func (c *memCursor) Close() error {
	c.corpus.closed++
	return nil
}

func item(t *testing.T, id string, instanceOf ...int64) *model.Item {
	t.Helper()
	var claims []string
	for _, c := range instanceOf {
		claims = append(claims, fmt.Sprintf(
			`{"mainsnak": {"snaktype": "value", "property": "P31", "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": %d}}}}`, c))
	}
	doc := fmt.Sprintf(`{"id": %q, "type": "item", "labels": {"en": {"language": "en", "value": "name %s"}}, "claims": {"P31": [%s]}}`,
		id, id, strings.Join(claims, ","))
	var it model.Item
	require.NoError(t, json.Unmarshal([]byte(doc), &it))
	return &it
}

// hierarchy maps a class to its direct subclasses
type hierarchy map[model.ClassID][]model.ClassID

func (h hierarchy) source() closure.EdgeSource {
	var mu sync.Mutex
	return closure.EdgeSourceFunc(func(_ context.Context, ids []model.ClassID, _ closure.Direction) ([]model.ClassID, error) {
		mu.Lock()
		defer mu.Unlock()
		var out []model.ClassID
		for _, id := range ids {
			out = append(out, h[id]...)
		}
		return out, nil
	})
}

func geoHierarchy() hierarchy {
	return hierarchy{
		2221906: {486972, 2095001},
		486972:  {515},
		515:     {1549591},
		2095:    {2095001},
		6256:    {3624078},
	}
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	require.Len(t, table.Categories, len(model.AllCategories))

	for _, c := range model.AllCategories {
		_, ok := table.Spec(c)
		assert.True(t, ok, "missing %s", c)
	}

	loc, _ := table.Spec(model.CategoryLocation)
	assert.Equal(t, []model.ClassID{2221906}, loc.Seeds)
	assert.Equal(t, []model.ClassID{2095}, loc.Exclude)
	require.Len(t, loc.Auxiliary, 9)
	assert.Equal(t, "country", loc.Auxiliary[0].Name)
	assert.Equal(t, []model.ClassID{6256, 3624078, 1763527}, loc.Auxiliary[0].Seeds)

	per, _ := table.Spec(model.CategoryPerson)
	assert.Equal(t, []model.ClassID{5}, per.Fixed)
	assert.Empty(t, per.Seeds)
}

func TestParseTable_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown code": "categories:\n  - code: MISC\n    fixed: [1]\n",
		"duplicate":    "categories:\n  - code: PER\n    fixed: [5]\n  - code: PER\n    fixed: [6]\n",
		"empty":        "categories:\n  - code: PER\n",
		"aux seeds":    "categories:\n  - code: LOC\n    seeds: [1]\n    auxiliary:\n      - name: city\n",
		"aux repeat":   "categories:\n  - code: LOC\n    seeds: [1]\n    auxiliary:\n      - {name: city, seeds: [2]}\n      - {name: city, seeds: [3]}\n",
		"not yaml":     "categories: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTable([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
		})
	}
}

func TestLoadTable(t *testing.T) {
	table, err := LoadTable("")
	require.NoError(t, err)
	assert.Len(t, table.Categories, 10)

	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - code: WOA\n    fixed: [38672, 7725634]\n"), 0o644))
	table, err = LoadTable(path)
	require.NoError(t, err)
	woa, ok := table.Spec(model.CategoryWork)
	require.True(t, ok)
	assert.Equal(t, []model.ClassID{38672, 7725634}, woa.Fixed)
	_, ok = table.Spec(model.CategoryPerson)
	assert.False(t, ok)

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuilder_FixedOnly(t *testing.T) {
	calls := 0
	src := closure.EdgeSourceFunc(func(context.Context, []model.ClassID, closure.Direction) ([]model.ClassID, error) {
		calls++
		return nil, nil
	})
	b := NewBuilder(closure.NewResolver(src, nil), nil)

	m, err := b.Build(context.Background(), Spec{Code: model.CategoryPerson, Fixed: []model.ClassID{5}})
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "fixed ids are not expanded")
	assert.Equal(t, []model.ClassID{5}, m.IDs.Sorted())
	assert.Empty(t, m.Aux.Matching([]model.ClassID{5}))
}

func TestBuilder_ClosureWithExclusionAndAux(t *testing.T) {
	b := NewBuilder(closure.NewResolver(geoHierarchy().source(), nil), nil)
	spec := Spec{
		Code:    model.CategoryLocation,
		Seeds:   []model.ClassID{2221906},
		Exclude: []model.ClassID{2095},
		Auxiliary: []AuxSpec{
			{Name: "country", Seeds: []model.ClassID{6256}},
			{Name: "city", Seeds: []model.ClassID{515}},
		},
	}

	m, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, []model.ClassID{515, 486972, 1549591, 2221906}, m.IDs.Sorted())
	assert.False(t, m.IDs.Has(2095001), "food branch excluded")

	assert.Equal(t, []string{"country", "city"}, m.Aux.Matching([]model.ClassID{515, 6256}), "names keep insertion order")
	city, ok := m.Aux.Set("city")
	require.True(t, ok)
	assert.Equal(t, []model.ClassID{515, 1549591}, city.Sorted())
}

func TestBuilder_AuxFailureFailsBuild(t *testing.T) {
	boom := errors.New("endpoint down")
	src := closure.EdgeSourceFunc(func(_ context.Context, ids []model.ClassID, _ closure.Direction) ([]model.ClassID, error) {
		if ids[0] == 515 {
			return nil, boom
		}
		return nil, nil
	})
	b := NewBuilder(closure.NewResolver(src, nil), nil)

	_, err := b.Build(context.Background(), Spec{
		Code:      model.CategoryLocation,
		Seeds:     []model.ClassID{2221906},
		Auxiliary: []AuxSpec{{Name: "city", Seeds: []model.ClassID{515}}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrClosure))
	assert.True(t, errors.Is(err, boom))
}

func TestClassify_Intersects(t *testing.T) {
	corpus := &memCorpus{items: []*model.Item{
		item(t, "Q1", 5, 999), // one matching class is enough
		item(t, "Q2", 999),    // no match
		item(t, "Q3", 5),
	}}
	m := &Membership{Category: model.CategoryPerson, IDs: closure.NewSet(5)}
	c := NewClassifier(corpus, nil, "run-1", nil)

	var ids []string
	for rec, err := range c.Classify(context.Background(), m) {
		require.NoError(t, err)
		assert.Equal(t, model.CategoryPerson, rec.Category)
		assert.Equal(t, "run-1", rec.RunID)
		assert.Equal(t, "name "+rec.ID, rec.Fields["norm_name"])
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"Q1", "Q3"}, ids)
	assert.Equal(t, 1, corpus.closed)

	require.Len(t, corpus.filters, 1)
	assert.Equal(t, model.ItemType, corpus.filters[0].Type)
	assert.Equal(t, []model.ClassID{5}, corpus.filters[0].InstanceOf)
}

func TestClassify_AuxReachesExtractors(t *testing.T) {
	corpus := &memCorpus{items: []*model.Item{item(t, "Q64", 1549591)}}
	aux := extract.NewAux()
	aux.Add("city", closure.NewSet(515, 1549591))
	aux.Add("river", closure.NewSet(4022))
	m := &Membership{Category: model.CategoryLocation, IDs: closure.NewSet(515, 1549591), Aux: aux}

	var recs []*model.Record
	for rec, err := range NewClassifier(corpus, nil, "", nil).Classify(context.Background(), m) {
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"city"}, recs[0].Fields["location_type"])
}

func TestClassify_EarlyStopClosesCursor(t *testing.T) {
	corpus := &memCorpus{items: []*model.Item{item(t, "Q1", 5), item(t, "Q2", 5)}}
	m := &Membership{Category: model.CategoryPerson, IDs: closure.NewSet(5)}

	for range NewClassifier(corpus, nil, "", nil).Classify(context.Background(), m) {
		break
	}
	assert.Equal(t, 1, corpus.closed)
}

func TestClassify_Errors(t *testing.T) {
	m := &Membership{Category: model.CategoryPerson, IDs: closure.NewSet(5)}

	corpus := &memCorpus{findErr: errors.New("no cursor")}
	var errs []error
	for _, err := range NewClassifier(corpus, nil, "", nil).Classify(context.Background(), m) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no cursor")

	corpus = &memCorpus{items: []*model.Item{item(t, "Q1", 5)}, scanErr: errors.New("cursor lost")}
	var got []string
	errs = nil
	for rec, err := range NewClassifier(corpus, nil, "", nil).Classify(context.Background(), m) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, rec.ID)
	}
	assert.Equal(t, []string{"Q1"}, got)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "cursor lost")
	assert.Equal(t, 1, corpus.closed)
}

func TestClassify_EmptyMembershipSkipsScan(t *testing.T) {
	corpus := &memCorpus{items: []*model.Item{item(t, "Q1", 5)}}
	m := &Membership{Category: model.CategoryPerson, IDs: closure.NewSet()}

	n := 0
	for range NewClassifier(corpus, nil, "", nil).Classify(context.Background(), m) {
		n++
	}
	assert.Zero(t, n)
	assert.Empty(t, corpus.filters)
}
