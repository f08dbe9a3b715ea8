package closure

import (
	"slices"

	"github.com/ppiankov/wikiner/internal/model"
)

// Set is a set of class IDs
type Set map[model.ClassID]struct{}

// NewSet builds a set from ids
func NewSet(ids ...model.ClassID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether it was new
func (s Set) Add(id model.ClassID) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Has reports membership
func (s Set) Has(id model.ClassID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members
func (s Set) Len() int {
	return len(s)
}

// Intersects reports whether any of ids is a member
func (s Set) Intersects(ids []model.ClassID) bool {
	for _, id := range ids {
		if s.Has(id) {
			return true
		}
	}
	return false
}

// Union returns a new set holding members of s and every other set
func (s Set) Union(others ...Set) Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	for _, o := range others {
		for id := range o {
			out[id] = struct{}{}
		}
	}
	return out
}

// Difference returns a new set holding members of s not in other
func (s Set) Difference(other Set) Set {
	out := make(Set, len(s))
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in ascending order
func (s Set) Sorted() []model.ClassID {
	out := make([]model.ClassID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
