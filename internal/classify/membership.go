package classify

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/extract"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

// auxConcurrency bounds parallel auxiliary closure resolutions per category
const auxConcurrency = 4

// Membership is the resolved predicate of one category
type Membership struct {
	Category model.Category
	IDs      closure.Set
	Aux      *extract.Aux
}

// Matches reports whether any instance-of class of it is in the membership set
func (m *Membership) Matches(it *model.Item) bool {
	return m.IDs.Intersects(it.InstanceOf())
}

// Filter returns the corpus filter selecting the category's candidates
func (m *Membership) Filter() store.Filter {
	return store.Filter{Type: model.ItemType, InstanceOf: m.IDs.Sorted()}
}

// Builder resolves memberships from table entries
type Builder struct {
	resolver *closure.Resolver
	log      *zap.SugaredLogger
}

// NewBuilder creates a Builder
func NewBuilder(resolver *closure.Resolver, log *zap.SugaredLogger) *Builder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Builder{resolver: resolver, log: log}
}

// Build resolves the membership set and the auxiliary closures of spec. Any
// closure failure fails the whole build; a partial set would under-classify.
func (b *Builder) Build(ctx context.Context, spec Spec) (*Membership, error) {
	ids := closure.NewSet(spec.Fixed...)
	if len(spec.Seeds) > 0 {
		resolved, err := b.resolver.ResolveExcluding(ctx, spec.Seeds, spec.Exclude, closure.Backward)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s membership", spec.Code)
		}
		ids = ids.Union(resolved)
	}

	aux, err := b.buildAux(ctx, spec)
	if err != nil {
		return nil, err
	}

	b.log.Infow("Membership resolved",
		"category", spec.Code,
		"fixed", len(spec.Fixed),
		"seeds", len(spec.Seeds),
		"classes", ids.Len(),
		"aux", len(spec.Auxiliary),
	)
	return &Membership{Category: spec.Code, IDs: ids, Aux: aux}, nil
}

func (b *Builder) buildAux(ctx context.Context, spec Spec) (*extract.Aux, error) {
	aux := extract.NewAux()
	if len(spec.Auxiliary) == 0 {
		return aux, nil
	}

	sets := make([]closure.Set, len(spec.Auxiliary))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(auxConcurrency)
	for i, a := range spec.Auxiliary {
		g.Go(func() error {
			set, err := b.resolver.Resolve(gctx, a.Seeds, closure.Backward)
			if err != nil {
				return errors.Wrapf(err, "resolve %s auxiliary closure %s", spec.Code, a.Name)
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, a := range spec.Auxiliary {
		aux.Add(a.Name, sets[i])
	}
	return aux, nil
}
