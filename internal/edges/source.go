package edges

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/cache"
	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/util"
	"github.com/ppiankov/wikiner/internal/worker"
)

// NewSource assembles the edge source stack for cfg: the endpoint or the
// corpus side index with bounded retries, and an optional memo on top.
// The endpoint retries each chunk request on its own.
func NewSource(ctx context.Context, cfg *model.Config, corpus closure.EdgeSource, log *zap.SugaredLogger) (closure.EdgeSource, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var base closure.EdgeSource
	switch cfg.Edges.Source {
	case "sparql":
		client, err := util.NewHTTPClient(util.ClientOptions{
			Timeout:    cfg.Edges.Timeout,
			HTTPProxy:  cfg.Edges.HTTPProxy,
			HTTPSProxy: cfg.Edges.HTTPSProxy,
			UserAgent:  cfg.Edges.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		opts := []SPARQLOption{
			WithLimiter(worker.NewLimiter(cfg.Edges.RequestsPerSecond, cfg.Edges.Burst)),
			WithLogger(log),
			WithRetry(cfg.Edges.MaxAttempts, time.Second),
		}
		if cfg.Edges.RespectRobots {
			opts = append(opts, WithRobots(util.NewRobotsChecker(client, cfg.Edges.UserAgent)))
		}
		sparql := NewSPARQLSource(cfg.Edges, client, opts...)
		if err := sparql.Check(ctx); err != nil {
			return nil, err
		}
		base = sparql
	case "corpus":
		if corpus == nil {
			return nil, errors.NewInvalidConfig("edges.source corpus requires a corpus store")
		}
		base = closure.NewRetryingSource(corpus, cfg.Edges.MaxAttempts, log)
	default:
		return nil, errors.NewInvalidConfig("unknown edges.source %q", cfg.Edges.Source)
	}

	if cfg.Cache.Enabled {
		base = NewCachedSource(base, cache.NewMemoryCache(cfg.Cache.TTL), log)
	}

	return base, nil
}
