package extract

import (
	"strings"

	"github.com/ppiankov/wikiner/internal/model"
)

// Wikidata time precisions
const (
	precisionMonth = 10
	precisionDay   = 11
)

// entityList returns the Q-ids referenced by property, in claim order
func entityList(prop string) Func {
	return func(it *model.Item, _ *Aux) (any, bool) {
		ids := it.EntityIDs(prop)
		if len(ids) == 0 {
			return nil, false
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = id.String()
		}
		return out, true
	}
}

// firstEntity returns the first Q-id referenced by property
func firstEntity(prop string) Func {
	return func(it *model.Item, _ *Aux) (any, bool) {
		ids := it.EntityIDs(prop)
		if len(ids) == 0 {
			return nil, false
		}
		return ids[0].String(), true
	}
}

// firstDate returns the first time value of property formatted to its precision
func firstDate(prop string) Func {
	return func(it *model.Item, _ *Aux) (any, bool) {
		for _, dv := range it.Values(prop) {
			tv, ok := dv.Time()
			if !ok {
				continue
			}
			if s, ok := FormatTime(tv); ok {
				return s, true
			}
		}
		return nil, false
	}
}

// FormatTime renders a Wikidata time value as YYYY, YYYY-MM or YYYY-MM-DD
// depending on precision. Years before the common era keep their minus sign.
// Precisions coarser than a year render the year.
func FormatTime(tv model.TimeValue) (string, bool) {
	raw := tv.Time
	if raw == "" {
		return "", false
	}
	sign := ""
	switch raw[0] {
	case '+':
		raw = raw[1:]
	case '-':
		sign = "-"
		raw = raw[1:]
	}
	date, _, _ := strings.Cut(raw, "T")
	parts := strings.Split(date, "-")
	if len(parts) != 3 || parts[0] == "" {
		return "", false
	}
	year := strings.TrimLeft(parts[0], "0")
	if year == "" {
		year = "0"
	}
	if len(year) < 4 {
		year = strings.Repeat("0", 4-len(year)) + year
	}
	year = sign + year

	switch {
	case tv.Precision >= precisionDay && parts[2] != "00":
		return year + "-" + parts[1] + "-" + parts[2], true
	case tv.Precision >= precisionMonth && parts[1] != "00":
		return year + "-" + parts[1], true
	default:
		return year, true
	}
}
