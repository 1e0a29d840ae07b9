package geo

import "testing"

var unitSquare = []Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}

func TestIsInside(t *testing.T) {
	triangle := []Point{{0, 0}, {4, 0}, {2, 4}}
	concave := []Point{{0, 0}, {4, 0}, {4, 4}, {2, 1}, {0, 4}} // notch at top

	tests := []struct {
		name     string
		lng, lat float64
		ring     []Point
		want     bool
	}{
		{name: "center of square", lng: 0.5, lat: 0.5, ring: unitSquare, want: true},
		{name: "far outside square", lng: 5, lat: 5, ring: unitSquare, want: false},
		{name: "outside left of square", lng: -0.5, lat: 0.5, ring: unitSquare, want: false},
		{name: "outside above square", lng: 0.5, lat: 1.5, ring: unitSquare, want: false},
		{name: "inside triangle", lng: 2, lat: 1, ring: triangle, want: true},
		{name: "outside triangle corner", lng: 3.8, lat: 3.8, ring: triangle, want: false},
		{name: "inside concave arm", lng: 0.5, lat: 3, ring: concave, want: true},
		{name: "inside concave notch is outside", lng: 2, lat: 2.5, ring: concave, want: false},
		{name: "two-point ring", lng: 0, lat: 0, ring: []Point{{0, 0}, {1, 1}}, want: false},
		{name: "empty ring", lng: 0, lat: 0, ring: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInside(tt.lng, tt.lat, tt.ring); got != tt.want {
				t.Errorf("IsInside(%v, %v) = %v, want %v", tt.lng, tt.lat, got, tt.want)
			}
		})
	}
}

// The verdict must survive rotating the ring's starting vertex and reversing
// its winding order.
func TestIsInsideRingOrderInvariance(t *testing.T) {
	points := []struct {
		lng, lat float64
		want     bool
	}{
		{0.5, 0.5, true},
		{0.01, 0.99, true},
		{1.5, 0.5, false},
		{-0.01, 0.5, false},
	}

	rotations := make([][]Point, 0, len(unitSquare))
	for r := 0; r < len(unitSquare); r++ {
		rot := append(append([]Point{}, unitSquare[r:]...), unitSquare[:r]...)
		rotations = append(rotations, rot)
	}
	for _, ring := range rotations {
		reversed := make([]Point, len(ring))
		for i, p := range ring {
			reversed[len(ring)-1-i] = p
		}
		for _, pt := range points {
			if got := IsInside(pt.lng, pt.lat, ring); got != pt.want {
				t.Errorf("rotated ring %v: IsInside(%v, %v) = %v, want %v", ring, pt.lng, pt.lat, got, pt.want)
			}
			if got := IsInside(pt.lng, pt.lat, reversed); got != pt.want {
				t.Errorf("reversed ring %v: IsInside(%v, %v) = %v, want %v", reversed, pt.lng, pt.lat, got, pt.want)
			}
		}
	}
}

func TestInsideAny(t *testing.T) {
	far := []Point{{10, 10}, {10, 11}, {11, 11}, {11, 10}}
	degenerate := []Point{{0, 0}, {1, 1}}

	if !InsideAny(0.5, 0.5, [][]Point{far, unitSquare}) {
		t.Error("point inside second ring should match")
	}
	if InsideAny(5, 5, [][]Point{far, unitSquare}) {
		t.Error("point outside all rings should not match")
	}
	if InsideAny(0.5, 0.5, [][]Point{degenerate}) {
		t.Error("degenerate ring must be skipped")
	}
	if InsideAny(0.5, 0.5, nil) {
		t.Error("no rings means outside")
	}
}
