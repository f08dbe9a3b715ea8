package model

import (
	"encoding/json"
	"strings"

	"github.com/ppiankov/wikiner/internal/errors"
)

// Category is one of the ten fixed named-entity classes
type Category string

const (
	CategoryPerson       Category = "PER"   // humans
	CategoryLocation     Category = "LOC"   // geographic locations
	CategoryOrganization Category = "ORG"   // organizations
	CategoryEvent        Category = "EVE"   // occurrences
	CategoryLanguage     Category = "ANG"   // languages
	CategoryBrand        Category = "DUC"   // brands
	CategoryFacility     Category = "FAC"   // facilities
	CategoryTime         Category = "TIMEX" // points and spans in time
	CategoryTitle        Category = "TTL"   // roles and titles
	CategoryWork         Category = "WOA"   // works of art
)

// AllCategories lists the categories in pipeline order
var AllCategories = []Category{
	CategoryPerson,
	CategoryLocation,
	CategoryOrganization,
	CategoryEvent,
	CategoryLanguage,
	CategoryBrand,
	CategoryFacility,
	CategoryTime,
	CategoryTitle,
	CategoryWork,
}

var categoryFlags = map[Category]string{
	CategoryPerson:       "person",
	CategoryLocation:     "location",
	CategoryOrganization: "organization",
	CategoryEvent:        "event",
	CategoryLanguage:     "language",
	CategoryBrand:        "brand",
	CategoryFacility:     "facility",
	CategoryTime:         "time",
	CategoryTitle:        "title",
	CategoryWork:         "work",
}

// Flag returns the search flag name that gates this category
func (c Category) Flag() string {
	return categoryFlags[c]
}

// Valid reports whether c is one of the fixed codes
func (c Category) Valid() bool {
	_, ok := categoryFlags[c]
	return ok
}

// ParseCategory accepts a code ("LOC") or a flag name ("location")
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if c := Category(strings.ToUpper(s)); c.Valid() {
		return c, nil
	}
	for c, flag := range categoryFlags {
		if strings.EqualFold(flag, s) {
			return c, nil
		}
	}
	return "", errors.Mark(errors.Newf("unknown category %q", s), errors.ErrInvalidConfig)
}

// Reserved document keys; extractors must not produce them
const (
	FieldID       = "id"
	FieldCategory = "neClass"
	FieldRunID    = "run_id"
)

// Record is a classified output document. Fields holds the common projection
// and the category-specific enrichment, flattened into one JSON object on write.
type Record struct {
	ID       string
	Category Category
	RunID    string
	Fields   map[string]any
}

// NewRecord creates an empty record for an item and category
func NewRecord(id string, category Category, runID string) *Record {
	return &Record{
		ID:       id,
		Category: category,
		RunID:    runID,
		Fields:   make(map[string]any),
	}
}

// Set stores a field value; reserved keys are ignored
func (r *Record) Set(key string, value any) {
	switch key {
	case FieldID, FieldCategory, FieldRunID:
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[key] = value
}

// MarshalJSON flattens the record into a single document
func (r *Record) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		doc[k] = v
	}
	doc[FieldID] = r.ID
	doc[FieldCategory] = string(r.Category)
	if r.RunID != "" {
		doc[FieldRunID] = r.RunID
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reverses MarshalJSON
func (r *Record) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	id, _ := doc[FieldID].(string)
	category, _ := doc[FieldCategory].(string)
	runID, _ := doc[FieldRunID].(string)
	delete(doc, FieldID)
	delete(doc, FieldCategory)
	delete(doc, FieldRunID)

	r.ID = id
	r.Category = Category(category)
	r.RunID = runID
	r.Fields = doc
	return nil
}
