package pipeline

import (
	"context"
	"encoding/json"
	"io"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

// Mapping maps an item id to the categories it is classified under
type Mapping map[string][]model.Category

// BuildMapping reads every stored record into a Mapping
func BuildMapping(ctx context.Context, out store.Output) (Mapping, error) {
	m := make(Mapping)
	for rec, err := range out.Records(ctx, "") {
		if err != nil {
			return nil, errors.Wrap(err, "read records")
		}
		m[rec.ID] = append(m[rec.ID], rec.Category)
	}
	return m, nil
}

// Export writes the id to categories mapping as JSON and returns the number
// of ids written
func Export(ctx context.Context, out store.Output, w io.Writer) (int, error) {
	m, err := BuildMapping(ctx, out)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return 0, errors.Wrap(err, "encode mapping")
	}
	return len(m), nil
}
