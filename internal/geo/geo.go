// Package geo holds the spherical distance math shared by the track stages.
package geo

import "math"

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Haversine calculates the great-circle distance between two points in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	lat1Rad := toRad(lat1)
	lat2Rad := toRad(lat2)
	deltaLat := toRad(lat2 - lat1)
	deltaLon := toRad(lon2 - lon1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Bearing computes the initial bearing from point 1 to point 2 in radians.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRad(lat1)
	lat2Rad := toRad(lat2)
	deltaLonRad := toRad(lon2 - lon1)

	y := math.Sin(deltaLonRad) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLonRad)

	return math.Atan2(y, x)
}

// DistanceToChord returns the distance in meters from point P to the chord
// A-B. When the projection of P falls before A or past B the distance to the
// nearer endpoint is used, and a degenerate chord (A == B) degrades to the
// distance to A.
func DistanceToChord(lat, lon, latA, lonA, latB, lonB float64) float64 {
	dAP := Haversine(latA, lonA, lat, lon)
	dAB := Haversine(latA, lonA, latB, lonB)
	if dAB == 0 || dAP == 0 {
		return dAP
	}

	theta13 := Bearing(latA, lonA, lat, lon)
	theta12 := Bearing(latA, lonA, latB, lonB)
	if math.Cos(theta13-theta12) < 0 {
		// behind A
		return dAP
	}

	d13 := dAP / EarthRadius
	dxt := math.Asin(math.Sin(d13) * math.Sin(theta13-theta12))

	// along-track distance from A
	cosRatio := math.Cos(d13) / math.Cos(dxt)
	cosRatio = math.Max(-1, math.Min(1, cosRatio))
	along := math.Acos(cosRatio) * EarthRadius
	if along > dAB {
		return Haversine(latB, lonB, lat, lon)
	}

	return math.Abs(dxt) * EarthRadius
}
