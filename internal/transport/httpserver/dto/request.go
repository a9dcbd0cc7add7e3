// Package dto provides Data Transfer Objects for HTTP requests and responses.
package dto

import "docquery-service/internal/geo"

// NearRequest holds the center of a near search. The remaining query
// parameters are passed to the search as they are.
type NearRequest struct {
	Lat    *float64 `query:"lat" validate:"required,latitude"`
	Lon    *float64 `query:"lon" validate:"required,longitude"`
	Radius *float64 `query:"radius" validate:"omitempty,gte=0"`
}

// Center returns the requested center point.
func (r *NearRequest) Center() geo.Point {
	return geo.Point{Lat: *r.Lat, Lon: *r.Lon}
}

// RadiusOr returns the requested radius, or def when none was given.
func (r *NearRequest) RadiusOr(def float64) float64 {
	if r.Radius == nil {
		return def
	}
	return *r.Radius
}
