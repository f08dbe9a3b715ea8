package closure

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
)

var tracer = otel.Tracer("github.com/ppiankov/wikiner/internal/closure")

// ResolveError reports a closure that could not be completed. A partial
// closure is never returned alongside it.
type ResolveError struct {
	Seeds []model.ClassID
	Round int // traversal depth reached when the lookup failed
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve closure of %v: round %d: %v", e.Seeds, e.Round, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Is matches errors.ErrClosure
func (e *ResolveError) Is(target error) bool { return target == errors.ErrClosure }

// Resolver computes transitive closures of the subclass-of relation
type Resolver struct {
	source EdgeSource
	log    *zap.SugaredLogger
}

// NewResolver creates a resolver over source
func NewResolver(source EdgeSource, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{source: source, log: log}
}

// Resolve walks the relation breadth first from seeds. Every round issues
// one lookup for the whole frontier. Classes already seen are not expanded
// again, so cycles terminate. The result always contains the seeds.
func (r *Resolver) Resolve(ctx context.Context, seeds []model.ClassID, dir Direction) (Set, error) {
	ctx, span := tracer.Start(ctx, "closure.Resolve")
	defer span.End()
	span.SetAttributes(attribute.Int("seeds", len(seeds)), attribute.String("direction", dir.String()))

	result := NewSet()
	var frontier []model.ClassID
	for _, id := range seeds {
		if result.Add(id) {
			frontier = append(frontier, id)
		}
	}

	round := 0
	for len(frontier) > 0 {
		round++
		related, err := r.source.LookupEdges(ctx, frontier, dir)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "lookup failed")
			return nil, &ResolveError{Seeds: seeds, Round: round, Err: err}
		}

		var next []model.ClassID
		for _, id := range related {
			if result.Add(id) {
				next = append(next, id)
			}
		}
		r.log.Debugw("closure round", "round", round, "frontier", len(frontier), "new", len(next), "total", result.Len())
		frontier = next
	}

	span.SetAttributes(attribute.Int("size", result.Len()), attribute.Int("rounds", round))
	return result, nil
}

// ResolveExcluding resolves seeds and removes everything reachable from
// exclude. An empty exclude list returns the plain closure.
func (r *Resolver) ResolveExcluding(ctx context.Context, seeds, exclude []model.ClassID, dir Direction) (Set, error) {
	included, err := r.Resolve(ctx, seeds, dir)
	if err != nil {
		return nil, err
	}
	if len(exclude) == 0 {
		return included, nil
	}
	excluded, err := r.Resolve(ctx, exclude, dir)
	if err != nil {
		return nil, err
	}
	return included.Difference(excluded), nil
}
