// Package geo provides the distance helpers used to rank hospitals.
package geo

import (
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in degrees
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the haversine great-circle distance between two coordinates in kilometers
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * EarthRadiusKm
}

// Centroid returns the arithmetic mean of the points. An empty slice yields the zero point.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sum Point
	for _, p := range points {
		sum.Latitude += p.Latitude
		sum.Longitude += p.Longitude
	}
	n := float64(len(points))
	return Point{Latitude: sum.Latitude / n, Longitude: sum.Longitude / n}
}
