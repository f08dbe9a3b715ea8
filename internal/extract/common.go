package extract

import (
	"sort"

	"github.com/ppiankov/wikiner/internal/model"
)

// Common copies the fields every record carries regardless of category
func Common(it *model.Item, rec *model.Record) {
	if name := normName(it); name != "" {
		rec.Set("norm_name", name)
	}
	setString(rec, "en_label", it.Label("en"))
	setString(rec, "de_label", it.Label("de"))
	setString(rec, "en_description", it.Description("en"))
	setString(rec, "en_sitelink", it.SitelinkTitle("enwiki"))
	setString(rec, "de_sitelink", it.SitelinkTitle("dewiki"))
	if n := len(it.Sitelinks); n > 0 {
		rec.Set("sitelink_count", n)
	}
}

// normName prefers the English label, then the English sitelink, then the
// label of the alphabetically first language so output is stable.
func normName(it *model.Item) string {
	if l := it.Label("en"); l != "" {
		return l
	}
	if s := it.SitelinkTitle("enwiki"); s != "" {
		return s
	}
	langs := make([]string, 0, len(it.Labels))
	for lang := range it.Labels {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if v := it.Labels[lang].Value; v != "" {
			return v
		}
	}
	return ""
}

func setString(rec *model.Record, field, value string) {
	if value != "" {
		rec.Set(field, value)
	}
}
