// Package classify turns the category table into membership predicates and
// streams the matching corpus items as enriched records.
package classify

import (
	"context"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/extract"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

var tracer = otel.Tracer("github.com/ppiankov/wikiner/internal/classify")

// Classifier scans the corpus for one category at a time
type Classifier struct {
	corpus   store.Corpus
	registry *extract.Registry
	runID    string
	log      *zap.SugaredLogger
}

// NewClassifier creates a Classifier. Records are stamped with runID.
func NewClassifier(corpus store.Corpus, registry *extract.Registry, runID string, log *zap.SugaredLogger) *Classifier {
	if registry == nil {
		registry = extract.NewRegistry(extract.Options{})
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Classifier{corpus: corpus, registry: registry, runID: runID, log: log}
}

// Classify issues one filtered scan for m and yields a record per matching
// item. The cursor is closed when iteration ends, including when the
// consumer stops early. A scan error is yielded once and ends the stream.
func (c *Classifier) Classify(ctx context.Context, m *Membership) iter.Seq2[*model.Record, error] {
	return func(yield func(*model.Record, error) bool) {
		ctx, span := tracer.Start(ctx, "classify.scan")
		span.SetAttributes(
			attribute.String("category", string(m.Category)),
			attribute.Int("classes", m.IDs.Len()),
		)
		defer span.End()

		if m.IDs.Len() == 0 {
			return
		}

		cur, err := c.corpus.Find(ctx, m.Filter())
		if err != nil {
			span.RecordError(err)
			yield(nil, errors.Wrapf(err, "scan corpus for %s", m.Category))
			return
		}
		defer func() {
			if cerr := cur.Close(); cerr != nil {
				c.log.Warnw("Failed to close corpus cursor", "category", m.Category, "error", cerr)
			}
		}()

		scanned := 0
		for cur.Next(ctx) {
			it := cur.Item()
			if it == nil || !m.Matches(it) {
				continue
			}
			scanned++
			if !yield(c.Record(it, m), nil) {
				span.SetAttributes(attribute.Int("scanned", scanned))
				return
			}
		}
		span.SetAttributes(attribute.Int("scanned", scanned))
		if err := cur.Err(); err != nil {
			span.RecordError(err)
			yield(nil, errors.Wrapf(err, "scan corpus for %s", m.Category))
		}
	}
}

// Record builds the enriched record of it under m's category
func (c *Classifier) Record(it *model.Item, m *Membership) *model.Record {
	rec := model.NewRecord(it.ID, m.Category, c.runID)
	c.registry.Apply(it, rec, m.Aux)
	return rec
}
