// Package store defines the corpus and output store contracts shared by the
// sqlite and postgres backends.
package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/model"
)

// Filter selects corpus items. Type is an equality match; InstanceOf
// matches items whose instance-of claims intersect it. A nil InstanceOf
// matches every item of Type.
type Filter struct {
	Type       string
	InstanceOf []model.ClassID
}

// Cursor streams items from a Find. It holds its connection until Close.
type Cursor interface {
	Next(ctx context.Context) bool
	Item() *model.Item
	Err() error
	Close() error
}

// Corpus is the read-only item source
type Corpus interface {
	Find(ctx context.Context, filter Filter) (Cursor, error)
	// LookupEdges answers subclass-of hops from the loaded claims
	LookupEdges(ctx context.Context, ids []model.ClassID, dir closure.Direction) ([]model.ClassID, error)
	Ping(ctx context.Context) error
	Close() error
}

// Loader populates a corpus
type Loader interface {
	InsertItems(ctx context.Context, items []*model.Item) (int, error)
	CreateCorpusIndexes(ctx context.Context) error
}

// Output is the classified record store
type Output interface {
	DeleteMany(ctx context.Context, category model.Category) (int64, error)
	// FindOne returns errors.ErrNotFound when no record has id under category
	FindOne(ctx context.Context, id string, category model.Category) (*model.Record, error)
	BulkInsert(ctx context.Context, records []*model.Record) (BulkResult, error)
	CreateIndex(ctx context.Context, field string, ascending bool) error
	// ExistingIDs returns the IDs already stored under category
	ExistingIDs(ctx context.Context, category model.Category) (map[string]struct{}, error)
	// Records iterates stored records, all categories when category is empty
	Records(ctx context.Context, category model.Category) iter.Seq2[*model.Record, error]
	Ping(ctx context.Context) error
	Close() error
}

// CodeDuplicateKey marks a document rejected because (id, category) exists
const CodeDuplicateKey = "duplicate_key"

// DocumentError is one rejected document of a bulk insert
type DocumentError struct {
	Index int    // position in the submitted slice
	ID    string // item id
	Code  string
	Err   error
}

func (e DocumentError) Error() string {
	return fmt.Sprintf("document %d (%s): %s: %v", e.Index, e.ID, e.Code, e.Err)
}

// BulkResult reports the outcome of a bulk insert. Documents not listed in
// Errors were committed.
type BulkResult struct {
	Inserted int
	Errors   []DocumentError
}

// Failed reports whether any document was rejected
func (r BulkResult) Failed() bool {
	return len(r.Errors) > 0
}

// Indexed output fields
const (
	IndexFieldID       = model.FieldID
	IndexFieldCategory = model.FieldCategory
)
