package planner

import (
	"strconv"

	"docquery-service/internal/domain"
	"docquery-service/internal/geo"
)

// Center keys are accepted by near searches and replaced by the bound keys.
const (
	KeyLat    = "lat"
	KeyLon    = "lon"
	KeyRadius = "radius"
)

// Prepare runs Normalize, Validate and Build.
func Prepare(desc *domain.Descriptor, params domain.Params, mapSearch bool) (*Validated, domain.Plan, error) {
	v, err := Validate(desc, Normalize(params, mapSearch))
	if err != nil {
		return nil, domain.Plan{}, err
	}
	return v, Build(v), nil
}

// WithBounds returns a copy of params where the center keys are removed and
// the bound keys describe box.
func WithBounds(params domain.Params, box geo.Box) domain.Params {
	out := params.Clone()
	delete(out, KeyLat)
	delete(out, KeyLon)
	delete(out, KeyRadius)
	out.Set(KeyLat1, formatCoord(box.MinLat))
	out.Set(KeyLon1, formatCoord(box.MinLon))
	out.Set(KeyLat2, formatCoord(box.MaxLat))
	out.Set(KeyLon2, formatCoord(box.MaxLon))
	return out
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
