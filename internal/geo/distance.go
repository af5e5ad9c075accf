// Package geo provides the geometric primitives used by the clustering
// engine: great-circle distance and a uniform grid index for radius queries.
//
// The package is deliberately dependency-free and holds no mutable state, so
// it is safe to use from concurrent requests without coordination.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = 6371.0

// kmPerDegreeLat is the approximate north-south span of one degree of
// latitude. Used to convert clustering radii into grid cell sizes.
const kmPerDegreeLat = 110.574

// kmPerDegreeLonEquator is the east-west span of one degree of longitude at
// the equator; it shrinks with cos(latitude) toward the poles.
const kmPerDegreeLonEquator = 111.320

// Distance returns the great-circle distance in kilometers between two
// coordinates using the Haversine formula.
//
// It is a pure function: identical coordinates yield exactly 0, and the
// argument to Asin is clamped so antipodal points cannot produce NaN from
// floating-point drift.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	if a < 0 {
		a = 0
	}
	root := math.Sqrt(a)
	if root > 1 {
		root = 1
	}
	return 2 * EarthRadiusKm * math.Asin(root)
}
