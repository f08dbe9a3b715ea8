package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ppiankov/wikiner/internal/errors"
)

// Well-known property IDs used by classification
const (
	PropInstanceOf = "P31"
	PropSubclassOf = "P279"
)

// ItemType is the only entity type that participates in classification
const ItemType = "item"

// ClassID is the numeric part of a Wikidata entity ID (Q5 -> 5)
type ClassID int64

// String renders the ID in its Q-prefixed form
func (c ClassID) String() string {
	return "Q" + strconv.FormatInt(int64(c), 10)
}

// ParseClassID accepts "Q42", "q42" or "42"
func ParseClassID(s string) (ClassID, error) {
	digits := strings.TrimSpace(s)
	digits = strings.TrimPrefix(strings.TrimPrefix(digits, "Q"), "q")
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.Mark(errors.Newf("invalid class id %q", s), errors.ErrInvalidConfig)
	}
	return ClassID(n), nil
}

// Item is a raw corpus record in Wikidata JSON dump shape
type Item struct {
	ID           string                       `json:"id"`
	Type         string                       `json:"type"`
	Labels       map[string]MonolingualText   `json:"labels,omitempty"`
	Descriptions map[string]MonolingualText   `json:"descriptions,omitempty"`
	Aliases      map[string][]MonolingualText `json:"aliases,omitempty"`
	Claims       map[string][]Statement       `json:"claims,omitempty"`
	Sitelinks    map[string]Sitelink          `json:"sitelinks,omitempty"`
}

// MonolingualText is a language-tagged string (labels, descriptions, aliases)
type MonolingualText struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// Sitelink links an item to a page on a Wikimedia site
type Sitelink struct {
	Site  string `json:"site"`
	Title string `json:"title"`
}

// Statement is one claim for a property
type Statement struct {
	Mainsnak Snak   `json:"mainsnak"`
	Rank     string `json:"rank,omitempty"`
}

// Snak carries the value of a statement
type Snak struct {
	SnakType  string     `json:"snaktype"`
	Property  string     `json:"property"`
	DataType  string     `json:"datatype,omitempty"`
	DataValue *DataValue `json:"datavalue,omitempty"`
}

// DataValue is a typed value whose payload shape depends on Type
type DataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Values returns the non-deprecated data values of a property in claim order
func (it *Item) Values(property string) []*DataValue {
	return it.values(property, false)
}

func (it *Item) values(property string, withDeprecated bool) []*DataValue {
	if it == nil {
		return nil
	}
	var out []*DataValue
	for _, st := range it.Claims[property] {
		if st.Rank == "deprecated" && !withDeprecated {
			continue
		}
		if st.Mainsnak.SnakType != "" && st.Mainsnak.SnakType != "value" {
			continue
		}
		if st.Mainsnak.DataValue != nil {
			out = append(out, st.Mainsnak.DataValue)
		}
	}
	return out
}

// EntityIDs returns the referenced entity IDs of a property, deduplicated, in claim order.
// Deprecated statements are skipped.
func (it *Item) EntityIDs(property string) []ClassID {
	return entityIDs(it.values(property, false))
}

func entityIDs(values []*DataValue) []ClassID {
	var out []ClassID
	seen := make(map[ClassID]struct{})
	for _, dv := range values {
		id, ok := dv.EntityID()
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// InstanceOf returns the item's P31 classes. Membership matches every
// statement whatever its rank, deprecated ones included.
func (it *Item) InstanceOf() []ClassID {
	return entityIDs(it.values(PropInstanceOf, true))
}

// SubclassOf returns the item's P279 superclasses, all ranks included
func (it *Item) SubclassOf() []ClassID {
	return entityIDs(it.values(PropSubclassOf, true))
}

// NumericID returns the numeric part of the item ID, or false for non-Q IDs
func (it *Item) NumericID() (ClassID, bool) {
	if it == nil || !strings.HasPrefix(it.ID, "Q") {
		return 0, false
	}
	id, err := ParseClassID(it.ID)
	return id, err == nil
}

// Label returns the label in the given language
func (it *Item) Label(lang string) string {
	if it == nil {
		return ""
	}
	return it.Labels[lang].Value
}

// Description returns the description in the given language
func (it *Item) Description(lang string) string {
	if it == nil {
		return ""
	}
	return it.Descriptions[lang].Value
}

// SitelinkTitle returns the page title on the given site (e.g. "enwiki")
func (it *Item) SitelinkTitle(site string) string {
	if it == nil {
		return ""
	}
	return it.Sitelinks[site].Title
}

type entityValue struct {
	NumericID int64  `json:"numeric-id"`
	ID        string `json:"id"`
}

// EntityID decodes a wikibase-entityid value
func (dv *DataValue) EntityID() (ClassID, bool) {
	if dv == nil || dv.Type != "wikibase-entityid" {
		return 0, false
	}
	var v entityValue
	if err := json.Unmarshal(dv.Value, &v); err != nil {
		return 0, false
	}
	if v.NumericID > 0 {
		return ClassID(v.NumericID), true
	}
	if v.ID != "" && strings.HasPrefix(v.ID, "Q") {
		id, err := ParseClassID(v.ID)
		return id, err == nil
	}
	return 0, false
}

// String decodes a string value (urls, external ids)
func (dv *DataValue) String() (string, bool) {
	if dv == nil || dv.Type != "string" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(dv.Value, &s); err != nil {
		return "", false
	}
	return s, s != ""
}

// TimeValue is a decoded Wikidata time value
type TimeValue struct {
	Time      string `json:"time"`
	Precision int    `json:"precision"`
	Calendar  string `json:"calendarmodel,omitempty"`
}

// Time decodes a time value
func (dv *DataValue) Time() (TimeValue, bool) {
	var v TimeValue
	if dv == nil || dv.Type != "time" {
		return v, false
	}
	if err := json.Unmarshal(dv.Value, &v); err != nil {
		return v, false
	}
	return v, v.Time != ""
}

// Coordinate is a decoded globe coordinate
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinate decodes a globecoordinate value
func (dv *DataValue) Coordinate() (Coordinate, bool) {
	var v Coordinate
	if dv == nil || dv.Type != "globecoordinate" {
		return v, false
	}
	if err := json.Unmarshal(dv.Value, &v); err != nil {
		return v, false
	}
	return v, true
}

// Quantity decodes the amount of a quantity value
func (dv *DataValue) Quantity() (float64, bool) {
	if dv == nil || dv.Type != "quantity" {
		return 0, false
	}
	var v struct {
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(dv.Value, &v); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimPrefix(v.Amount, "+"), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
