package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikiner/internal/model"
)

func openTestDB(t *testing.T) *Corpus {
	t.Helper()
	db, err := Open(MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c, err := NewCorpus(db, "items", nil)
	require.NoError(t, err)
	return c
}

func openTestOutput(t *testing.T) *Output {
	t.Helper()
	db, err := Open(MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	o, err := NewOutput(db, "entities", nil)
	require.NoError(t, err)
	return o
}

func entityClaim(prop string, ids ...int64) string {
	var out []string
	for _, id := range ids {
		out = append(out, fmt.Sprintf(
			`{"mainsnak": {"snaktype": "value", "property": %q, "datavalue": {"type": "wikibase-entityid", "value": {"numeric-id": %d, "id": "Q%d"}}}, "rank": "normal"}`,
			prop, id, id))
	}
	return "[" + strings.Join(out, ",") + "]"
}

func testItem(t *testing.T, id, typ string, instanceOf, subclassOf []int64) *model.Item {
	t.Helper()
	doc := fmt.Sprintf(`{"id": %q, "type": %q, "labels": {"en": {"language": "en", "value": "label %s"}}, "claims": {"P31": %s, "P279": %s}}`,
		id, typ, id, entityClaim("P31", instanceOf...), entityClaim("P279", subclassOf...))
	var it model.Item
	require.NoError(t, json.Unmarshal([]byte(doc), &it))
	return &it
}
