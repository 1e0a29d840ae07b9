package geo

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Campus is a named boundary ring parsed from a KML Placemark.
type Campus struct {
	Name string
	Ring []Point
}

var errNoFeatures = errors.New("no campus placemarks found in KML")

type kmlDoc struct {
	Placemarks []kmlPlacemark `xml:"Document>Placemark"`
	// Some exports omit the Document wrapper.
	TopPlacemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name    string     `xml:"name"`
	Polygon kmlPolygon `xml:"Polygon"`
}

type kmlPolygon struct {
	Coordinates string `xml:"outerBoundaryIs>LinearRing>coordinates"`
}

// ParseKML extracts campus boundary rings from a KML document. Each
// Placemark with a polygon becomes one campus; placemarks without one are
// ignored. Coordinate triples are "lng,lat[,alt]" separated by whitespace.
func ParseKML(r io.Reader) ([]Campus, error) {
	var doc kmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	placemarks := doc.Placemarks
	if len(placemarks) == 0 {
		placemarks = doc.TopPlacemarks
	}

	var campuses []Campus
	for _, pm := range placemarks {
		ring := parseCoordinates(pm.Polygon.Coordinates)
		if len(ring) == 0 {
			continue
		}
		name := strings.TrimSpace(pm.Name)
		if name == "" {
			name = "Unnamed Campus"
		}
		campuses = append(campuses, Campus{Name: name, Ring: ring})
	}
	if len(campuses) == 0 {
		return nil, errNoFeatures
	}
	return campuses, nil
}

func parseCoordinates(raw string) []Point {
	var ring []Point
	for _, tuple := range strings.Fields(raw) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lng, err1 := strconv.ParseFloat(parts[0], 64)
		lat, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		ring = append(ring, Point{Lng: lng, Lat: lat})
	}
	return ring
}
