package geo

import (
	"strings"
	"testing"
)

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Placemark>
      <name>North Campus</name>
      <Polygon>
        <outerBoundaryIs>
          <LinearRing>
            <coordinates>
              77.10,28.60,0 77.12,28.60,0 77.12,28.62,0 77.10,28.62,0 77.10,28.60,0
            </coordinates>
          </LinearRing>
        </outerBoundaryIs>
      </Polygon>
    </Placemark>
    <Placemark>
      <name></name>
      <Polygon>
        <outerBoundaryIs>
          <LinearRing>
            <coordinates>10.0,20.0 10.1,20.0 10.1,20.1</coordinates>
          </LinearRing>
        </outerBoundaryIs>
      </Polygon>
    </Placemark>
    <Placemark>
      <name>Marker only, no polygon</name>
    </Placemark>
  </Document>
</kml>`

func TestParseKML(t *testing.T) {
	campuses, err := ParseKML(strings.NewReader(sampleKML))
	if err != nil {
		t.Fatalf("ParseKML() error: %v", err)
	}
	if len(campuses) != 2 {
		t.Fatalf("got %d campuses, want 2", len(campuses))
	}
	if campuses[0].Name != "North Campus" {
		t.Errorf("name = %q, want North Campus", campuses[0].Name)
	}
	if len(campuses[0].Ring) != 5 {
		t.Errorf("ring length = %d, want 5", len(campuses[0].Ring))
	}
	if campuses[0].Ring[0].Lng != 77.10 || campuses[0].Ring[0].Lat != 28.60 {
		t.Errorf("first vertex = %+v, want 77.10,28.60", campuses[0].Ring[0])
	}
	if campuses[1].Name != "Unnamed Campus" {
		t.Errorf("empty name should default, got %q", campuses[1].Name)
	}
	// altitude-less tuples parse too
	if len(campuses[1].Ring) != 3 {
		t.Errorf("second ring length = %d, want 3", len(campuses[1].Ring))
	}
}

func TestParseKMLEmpty(t *testing.T) {
	_, err := ParseKML(strings.NewReader(`<kml><Document></Document></kml>`))
	if err == nil {
		t.Fatal("expected error for KML without placemarks")
	}
}

func TestParseKMLMalformed(t *testing.T) {
	_, err := ParseKML(strings.NewReader(`not xml at all`))
	if err == nil {
		t.Fatal("expected error for malformed XML")
	}
}
