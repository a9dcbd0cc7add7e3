// Package geo computes rectangular latitude/longitude bounds around a point.
//
// The bound is the technique described by Jan Matuschek
// (http://JanMatuschek.de/LatitudeLongitudeBoundingCoordinates): every point
// within the great-circle distance lies inside the returned rectangle.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
)

// EarthRadiusKm is the sphere radius used for angular distances.
const EarthRadiusKm = 6378.1

// ErrInvalidArgument is returned for a negative or non-finite radius.
var ErrInvalidArgument = errors.New("invalid argument")

var (
	minLatRad = degToRad(-90)
	maxLatRad = degToRad(90)
	minLonRad = degToRad(-180)
	maxLonRad = degToRad(180)
)

// Point is a coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Box is a lat/lon rectangle in degrees. When the rectangle crosses the
// antimeridian MinLon is greater than MaxLon.
type Box struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// BoundingBox returns the rectangle enclosing all points within radiusKm of
// center. If a pole lies inside the circle, latitudes are clamped to
// [-90, 90] and the longitude range covers the whole globe.
func BoundingBox(center Point, radiusKm float64) (Box, error) {
	if radiusKm < 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return Box{}, fmt.Errorf("radius %v km: %w", radiusKm, ErrInvalidArgument)
	}

	radDist := radiusKm / EarthRadiusKm
	radLat := degToRad(center.Lat)
	radLon := degToRad(center.Lon)

	minLat := radLat - radDist
	maxLat := radLat + radDist

	var minLon, maxLon float64
	if minLat > minLatRad && maxLat < maxLatRad {
		deltaLon := math.Asin(math.Sin(radDist) / math.Cos(radLat))
		minLon = radLon - deltaLon
		maxLon = radLon + deltaLon
		if minLon < minLonRad {
			minLon += 2 * math.Pi
		}
		if maxLon > maxLonRad {
			maxLon -= 2 * math.Pi
		}
	} else {
		minLat = math.Max(minLat, minLatRad)
		maxLat = math.Min(maxLat, maxLatRad)
		minLon = minLonRad
		maxLon = maxLonRad
	}

	return Box{
		MinLat: radToDeg(minLat),
		MinLon: radToDeg(minLon),
		MaxLat: radToDeg(maxLat),
		MaxLon: radToDeg(maxLon),
	}, nil
}

// Wrapped reports whether the box crosses the antimeridian.
func (b Box) Wrapped() bool {
	return b.MinLon > b.MaxLon
}

// Contains reports whether the point lies inside the box, borders included.
func (b Box) Contains(lat, lon float64) bool {
	for _, bounds := range b.bounds() {
		if bounds.OverlapsPoint(geom.XY, geom.Coord{lon, lat}) {
			return true
		}
	}
	return false
}

// bounds splits a wrapped box into its two halves on either side of the
// antimeridian. X is longitude, Y is latitude.
func (b Box) bounds() []*geom.Bounds {
	if !b.Wrapped() {
		return []*geom.Bounds{
			geom.NewBounds(geom.XY).Set(b.MinLon, b.MinLat, b.MaxLon, b.MaxLat),
		}
	}
	return []*geom.Bounds{
		geom.NewBounds(geom.XY).Set(b.MinLon, b.MinLat, 180, b.MaxLat),
		geom.NewBounds(geom.XY).Set(-180, b.MinLat, b.MaxLon, b.MaxLat),
	}
}

// Rectangle returns [[minLat, minLon], [maxLat, maxLon]].
func (b Box) Rectangle() [2][2]float64 {
	return [2][2]float64{{b.MinLat, b.MinLon}, {b.MaxLat, b.MaxLon}}
}

// String returns "minLon,minLat,maxLon,maxLat".
func (b Box) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180)
}

func radToDeg(rad float64) float64 {
	return (180 * rad) / math.Pi
}
