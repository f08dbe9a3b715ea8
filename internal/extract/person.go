package extract

import (
	"github.com/ppiankov/wikiner/internal/model"
)

// Person properties
const (
	PropDateOfBirth = "P569"
	PropDateOfDeath = "P570"
	PropGender      = "P21"
	PropOccupation  = "P106"
)

var genders = map[model.ClassID]string{
	6581097: "male",
	6581072: "female",
	1097630: "intersex",
	1052281: "transgender female",
	2449503: "transgender male",
	48270:   "non-binary",
}

func registerPerson(r *Registry) {
	r.Register(model.CategoryPerson, "date_birth", firstDate(PropDateOfBirth))
	r.Register(model.CategoryPerson, "date_death", firstDate(PropDateOfDeath))
	r.Register(model.CategoryPerson, "gender", Gender)
	r.Register(model.CategoryPerson, "occupation", entityList(PropOccupation))
	r.Register(model.CategoryPerson, "alias", Aliases)
}

// Gender maps the first sex-or-gender claim to a name, falling back to its Q-id
func Gender(it *model.Item, _ *Aux) (any, bool) {
	ids := it.EntityIDs(PropGender)
	if len(ids) == 0 {
		return nil, false
	}
	if name, ok := genders[ids[0]]; ok {
		return name, true
	}
	return ids[0].String(), true
}

// Aliases returns the English and German aliases without duplicates
func Aliases(it *model.Item, _ *Aux) (any, bool) {
	seen := make(map[string]bool)
	var out []string
	for _, lang := range []string{"en", "de"} {
		for _, a := range it.Aliases[lang] {
			if a.Value == "" || seen[a.Value] {
				continue
			}
			seen[a.Value] = true
			out = append(out, a.Value)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
