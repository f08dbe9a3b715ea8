package extract

import (
	"math"

	"github.com/ppiankov/wikiner/internal/model"
)

// Location properties
const (
	PropCountry    = "P17"
	PropContinent  = "P30"
	PropCoordinate = "P625"
	PropPopulation = "P1082"
)

func registerLocation(r *Registry) {
	r.Register(model.CategoryLocation, "in_country", entityList(PropCountry))
	r.Register(model.CategoryLocation, "in_continent", entityList(PropContinent))
	r.Register(model.CategoryLocation, "location_type", AuxTypes)
	r.Register(model.CategoryLocation, "coordinate", Coordinate)
	r.Register(model.CategoryLocation, "population", Population)
}

// AuxTypes lists the auxiliary closures the item's instance-of claims fall in
func AuxTypes(it *model.Item, aux *Aux) (any, bool) {
	names := aux.Matching(it.InstanceOf())
	if len(names) == 0 {
		return nil, false
	}
	return names, true
}

// GeoPoint is a GeoJSON point, longitude first
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Coordinate returns the first valid coordinate location as a GeoJSON point
func Coordinate(it *model.Item, _ *Aux) (any, bool) {
	for _, dv := range it.Values(PropCoordinate) {
		c, ok := dv.Coordinate()
		if !ok || math.Abs(c.Latitude) > 90 || math.Abs(c.Longitude) > 180 {
			continue
		}
		return GeoPoint{Type: "Point", Coordinates: [2]float64{c.Longitude, c.Latitude}}, true
	}
	return nil, false
}

// Population returns the largest stated population. Items often carry one
// statement per census, and the latest census is usually the largest.
func Population(it *model.Item, _ *Aux) (any, bool) {
	best := int64(-1)
	for _, dv := range it.Values(PropPopulation) {
		q, ok := dv.Quantity()
		// int64(q) is undefined past MaxInt64
		if !ok || !(q >= 0) || q >= math.MaxInt64 {
			continue
		}
		if n := int64(q); n > best {
			best = n
		}
	}
	if best < 0 {
		return nil, false
	}
	return best, true
}
