package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
	"github.com/ppiankov/wikiner/internal/store/sqlite"
)

func claims(prop string, ids ...int64) string {
	var out []string
	for _, id := range ids {
		out = append(out, fmt.Sprintf(
			`{"mainsnak": {"snaktype": "value", "property": %q, "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": %d}}}}`,
			prop, id))
	}
	return "[" + strings.Join(out, ",") + "]"
}

// entityJSON renders a one-line dump entity
func entityJSON(id string, instanceOf, subclassOf []int64) string {
	return fmt.Sprintf(`{"id": %q, "type": "item", "labels": {"en": {"language": "en", "value": "label %s"}}, "claims": {"P31": %s, "P279": %s}}`,
		id, id, claims("P31", instanceOf...), claims("P279", subclassOf...))
}

func entity(t *testing.T, id string, instanceOf, subclassOf []int64) *model.Item {
	t.Helper()
	var it model.Item
	require.NoError(t, json.Unmarshal([]byte(entityJSON(id, instanceOf, subclassOf)), &it))
	return &it
}

func openStores(t *testing.T) (*sqlite.Corpus, *sqlite.Output) {
	t.Helper()
	cdb, err := sqlite.Open(sqlite.MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cdb.Close() })
	corpus, err := sqlite.NewCorpus(cdb, "items", nil)
	require.NoError(t, err)

	odb, err := sqlite.Open(sqlite.MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = odb.Close() })
	output, err := sqlite.NewOutput(odb, "entities", nil)
	require.NoError(t, err)

	return corpus, output
}

// geoStores loads the class hierarchy city < settlement < geographic
// location plus the given items
func geoStores(t *testing.T, items ...*model.Item) (*sqlite.Corpus, *sqlite.Output) {
	t.Helper()
	corpus, output := openStores(t)
	all := append([]*model.Item{
		entity(t, "Q486972", nil, []int64{2221906}),
		entity(t, "Q515", nil, []int64{486972}),
	}, items...)
	_, err := corpus.InsertItems(context.Background(), all)
	require.NoError(t, err)
	return corpus, output
}

func storedRecords(t *testing.T, out store.Output) map[string][]model.Category {
	t.Helper()
	m, err := BuildMapping(context.Background(), out)
	require.NoError(t, err)
	return m
}

// closeCounter counts cursor closes
type closeCounter struct {
	store.Corpus
	closes atomic.Int32
	finds  atomic.Int32
}

func (c *closeCounter) Find(ctx context.Context, f store.Filter) (store.Cursor, error) {
	c.finds.Add(1)
	cur, err := c.Corpus.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	return &countedCursor{Cursor: cur, closes: &c.closes}, nil
}

type countedCursor struct {
	store.Cursor
	closes *atomic.Int32
}

func (c *countedCursor) Close() error {
	c.closes.Add(1)
	return c.Cursor.Close()
}

// rejectingOutput rejects the first document of every batch of one category
type rejectingOutput struct {
	store.Output
	category model.Category
}

func (o *rejectingOutput) BulkInsert(ctx context.Context, records []*model.Record) (store.BulkResult, error) {
	if len(records) == 0 || records[0].Category != o.category {
		return o.Output.BulkInsert(ctx, records)
	}
	res, err := o.Output.BulkInsert(ctx, records[1:])
	if err != nil {
		return res, err
	}
	res.Errors = append([]store.DocumentError{{
		Index: 0, ID: records[0].ID, Code: "write", Err: fmt.Errorf("disk full"),
	}}, res.Errors...)
	return res, nil
}

// pingFailure makes Ping fail
type pingFailure struct {
	store.Output
}

func (pingFailure) Ping(context.Context) error { return fmt.Errorf("connection refused") }
