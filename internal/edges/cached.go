package edges

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/cache"
	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/model"
)

// CachedSource memoises lookups of an underlying source. The same frontier
// asked twice (for example by overlapping category seeds) reaches the
// source once.
type CachedSource struct {
	source closure.EdgeSource
	cache  cache.Cache
	log    *zap.SugaredLogger
}

// NewCachedSource wraps source with c
func NewCachedSource(source closure.EdgeSource, c cache.Cache, log *zap.SugaredLogger) *CachedSource {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CachedSource{source: source, cache: c, log: log}
}

// LookupEdges serves from cache or delegates and stores the answer.
// Failed lookups are not cached.
func (c *CachedSource) LookupEdges(ctx context.Context, ids []model.ClassID, dir closure.Direction) ([]model.ClassID, error) {
	key := cache.NewKey(dir.String(), ids)
	if related, ok := c.cache.Get(key); ok {
		c.log.Debugw("edge lookup served from cache", "ids", len(ids), "related", len(related))
		return related, nil
	}

	related, err := c.source.LookupEdges(ctx, ids, dir)
	if err != nil {
		return nil, err
	}
	c.cache.Put(key, related)
	return related, nil
}
