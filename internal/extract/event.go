package extract

import "github.com/ppiankov/wikiner/internal/model"

// Event properties
const (
	PropLocation        = "P276"
	PropOfficialOpening = "P1619"
)

func registerEvent(r *Registry, opts Options) {
	if opts.OfficialOpening {
		r.Register(model.CategoryEvent, "date_of_official_opening", firstDate(PropOfficialOpening))
	}
	r.Register(model.CategoryEvent, "event_location", firstEntity(PropLocation))
}
