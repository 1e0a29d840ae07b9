// Package geo implements the campus geofence: point-in-polygon tests over
// boundary rings ingested from KML.
package geo

// Point is a longitude/latitude pair. Rings from KML may carry altitude;
// it is dropped at parse time.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// epsilon keeps the crossing test's denominator non-zero when an edge is
// horizontal; such an edge then never registers a crossing.
const epsilon = 1e-12

// IsInside reports whether the point lies inside the ring using even-odd
// ray casting. The ring needs no explicit closing vertex. Rings with fewer
// than three vertices contain nothing.
func IsInside(lng, lat float64, ring []Point) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].Lng, ring[i].Lat
		xj, yj := ring[j].Lng, ring[j].Lat
		if (yi > lat) != (yj > lat) {
			x := (xj-xi)*(lat-yi)/(yj-yi+epsilon) + xi
			if lng < x {
				inside = !inside
			}
		}
	}
	return inside
}

// InsideAny reports whether the point is inside at least one of the rings.
// Degenerate rings are skipped.
func InsideAny(lng, lat float64, rings [][]Point) bool {
	for _, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		if IsInside(lng, lat, ring) {
			return true
		}
	}
	return false
}
