package closure

import (
	"context"
	"fmt"

	"github.com/ppiankov/wikiner/internal/model"
)

// Direction selects which way a subclass-of edge is followed
type Direction int

const (
	// Backward finds classes that declare the given classes as a superclass
	Backward Direction = iota
	// Forward finds the superclasses of the given classes
	Forward
)

func (d Direction) String() string {
	switch d {
	case Backward:
		return "backward"
	case Forward:
		return "forward"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// EdgeSource answers one hop of the subclass-of relation for a batch of
// classes. Implementations return related IDs in any order and may repeat.
type EdgeSource interface {
	LookupEdges(ctx context.Context, ids []model.ClassID, dir Direction) ([]model.ClassID, error)
}

// EdgeSourceFunc adapts a function to EdgeSource
type EdgeSourceFunc func(ctx context.Context, ids []model.ClassID, dir Direction) ([]model.ClassID, error)

// LookupEdges calls f
func (f EdgeSourceFunc) LookupEdges(ctx context.Context, ids []model.ClassID, dir Direction) ([]model.ClassID, error) {
	return f(ctx, ids, dir)
}
