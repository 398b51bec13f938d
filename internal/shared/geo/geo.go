package geo

import "math"

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two coordinates
// in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// HaversineM returns the great-circle distance in meters.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineKm(lat1, lng1, lat2, lng2) * 1000
}

// Centroid returns the arithmetic mean of a set of coordinates. Fine for
// the cluster radii involved here; no spherical averaging needed.
func Centroid(lats, lngs []float64) (float64, float64) {
	if len(lats) == 0 || len(lats) != len(lngs) {
		return 0, 0
	}
	var sumLat, sumLng float64
	for i := range lats {
		sumLat += lats[i]
		sumLng += lngs[i]
	}
	n := float64(len(lats))
	return sumLat / n, sumLng / n
}
