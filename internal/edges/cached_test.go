package edges

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikiner/internal/cache"
	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
)

func TestCachedSource(t *testing.T) {
	calls := 0
	fail := false
	src := closure.EdgeSourceFunc(func(_ context.Context, ids []model.ClassID, _ closure.Direction) ([]model.ClassID, error) {
		calls++
		if fail {
			return nil, errors.New("down")
		}
		return []model.ClassID{ids[0] * 10}, nil
	})
	mem := cache.NewMemoryCache(time.Minute)
	cached := NewCachedSource(src, mem, nil)
	ctx := context.Background()

	got, err := cached.LookupEdges(ctx, []model.ClassID{2, 1}, closure.Backward)
	require.NoError(t, err)
	assert.Equal(t, []model.ClassID{20}, got)

	// same set in another order is a hit
	got, err = cached.LookupEdges(ctx, []model.ClassID{1, 2, 2}, closure.Backward)
	require.NoError(t, err)
	assert.Equal(t, []model.ClassID{20}, got)
	assert.Equal(t, 1, calls)

	// direction is part of the key
	_, err = cached.LookupEdges(ctx, []model.ClassID{1, 2}, closure.Forward)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	fail = true
	_, err = cached.LookupEdges(ctx, []model.ClassID{7}, closure.Backward)
	require.Error(t, err)
	fail = false
	got, err = cached.LookupEdges(ctx, []model.ClassID{7}, closure.Backward)
	require.NoError(t, err)
	assert.Equal(t, []model.ClassID{70}, got)
	assert.Equal(t, 4, calls)
	assert.Equal(t, int64(1), mem.Stats().Hits)
}
