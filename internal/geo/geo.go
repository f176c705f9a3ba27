// Package geo is the distance gate for geofenced check-ins. It is advisory:
// the client compares its position against the coordinates carried in the
// session QR payload before submitting, and the server never re-validates.
package geo

import "math"

// earthRadiusM is the spherical-earth radius used by the Haversine formula.
const earthRadiusM = 6371000

// Coord is a WGS84 latitude/longitude pair in degrees.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceMeters returns the great-circle distance between two coordinates
// on a spherical earth.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// WithinFence reports whether the student is within maxMeters of the
// teacher. A non-positive maxMeters disables the fence and always passes.
func WithinFence(teacher, student Coord, maxMeters float64) bool {
	if maxMeters <= 0 {
		return true
	}
	return DistanceMeters(teacher.Lat, teacher.Lon, student.Lat, student.Lon) <= maxMeters
}
