// Package extract holds the per-category attribute extractors. Every
// extractor is total: malformed or missing claims yield no value, never an
// error.
package extract

import (
	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/model"
)

// Func produces one optional field value from an item
type Func func(it *model.Item, aux *Aux) (any, bool)

// Extractor binds a Func to the record field it fills
type Extractor struct {
	Field string
	Fn    Func
}

// Aux carries named closures resolved once per category run, such as the
// location type closures
type Aux struct {
	names []string
	sets  map[string]closure.Set
}

// NewAux creates an empty Aux
func NewAux() *Aux {
	return &Aux{sets: make(map[string]closure.Set)}
}

// Add registers a named closure. Names keep their insertion order.
func (a *Aux) Add(name string, set closure.Set) {
	if _, ok := a.sets[name]; !ok {
		a.names = append(a.names, name)
	}
	a.sets[name] = set
}

// Set returns a named closure
func (a *Aux) Set(name string) (closure.Set, bool) {
	if a == nil {
		return nil, false
	}
	s, ok := a.sets[name]
	return s, ok
}

// Matching returns the names whose closure intersects ids
func (a *Aux) Matching(ids []model.ClassID) []string {
	if a == nil {
		return nil
	}
	var out []string
	for _, name := range a.names {
		if a.sets[name].Intersects(ids) {
			out = append(out, name)
		}
	}
	return out
}

// Options toggles optional extractors
type Options struct {
	OfficialOpening bool
}

// Registry maps categories to their ordered extractors
type Registry struct {
	extractors map[model.Category][]Extractor
}

// NewRegistry creates a registry with the built-in extractors
func NewRegistry(opts Options) *Registry {
	r := &Registry{extractors: make(map[model.Category][]Extractor)}

	registerPerson(r)
	registerLocation(r)
	registerOrganization(r)
	registerEvent(r, opts)

	return r
}

// Register appends an extractor for category
func (r *Registry) Register(c model.Category, field string, fn Func) {
	r.extractors[c] = append(r.extractors[c], Extractor{Field: field, Fn: fn})
}

// Apply fills rec with the common projection and then every extractor of
// its category in order. Extractors that produce nothing leave no field.
func (r *Registry) Apply(it *model.Item, rec *model.Record, aux *Aux) {
	Common(it, rec)
	for _, e := range r.extractors[rec.Category] {
		if v, ok := e.Fn(it, aux); ok {
			rec.Set(e.Field, v)
		}
	}
}
