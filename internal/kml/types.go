package kml

import "encoding/xml"

const (
	// Namespace is the OGC KML 2.2 namespace written on output.
	Namespace = "http://www.opengis.net/kml/2.2"
	// GXNamespace holds the Google extensions (gx:Track, gx:MultiTrack).
	GXNamespace = "http://www.google.com/kml/ext/2.2"
)

// acceptedNamespaces lists the root namespaces the parser understands.
// An absent namespace is accepted as well.
var acceptedNamespaces = map[string]bool{
	Namespace:                         true,
	"http://earth.google.com/kml/2.0": true,
	"http://earth.google.com/kml/2.1": true,
	"http://earth.google.com/kml/2.2": true,
}

// Read side. Tags carry local names only so that any namespace prefix
// (including gx:) matches.

type placemarkType struct {
	Name          string             `xml:"name"`
	Description   string             `xml:"description"`
	TimeStamp     *timeStampType     `xml:"TimeStamp"`
	Point         *coordinatesType   `xml:"Point"`
	LineString    *coordinatesType   `xml:"LineString"`
	Polygon       *struct{}          `xml:"Polygon"`
	MultiGeometry *multiGeometryType `xml:"MultiGeometry"`
	Track         *gxTrackType       `xml:"Track"`
	MultiTrack    *gxMultiTrackType  `xml:"MultiTrack"`
}

type timeStampType struct {
	When string `xml:"when"`
}

type coordinatesType struct {
	Coordinates string `xml:"coordinates"`
}

type multiGeometryType struct {
	Points        []coordinatesType   `xml:"Point"`
	LineStrings   []coordinatesType   `xml:"LineString"`
	Polygons      []struct{}          `xml:"Polygon"`
	Tracks        []gxTrackType       `xml:"Track"`
	MultiGeometry []multiGeometryType `xml:"MultiGeometry"`
}

type gxTrackType struct {
	When   []string `xml:"when"`
	Coords []string `xml:"coord"`
}

type gxMultiTrackType struct {
	Tracks []gxTrackType `xml:"Track"`
}

// Write side. Prefixed names are emitted literally and bound by the
// xmlns:gx declaration on the root.

type outKML struct {
	XMLName  xml.Name    `xml:"kml"`
	XMLNS    string      `xml:"xmlns,attr"`
	XMLNSGX  string      `xml:"xmlns:gx,attr"`
	Document outDocument `xml:"Document"`
}

type outDocument struct {
	Name       string         `xml:"name,omitempty"`
	Placemarks []outPlacemark `xml:"Placemark"`
}

type outPlacemark struct {
	Name          string            `xml:"name,omitempty"`
	Description   string            `xml:"description,omitempty"`
	TimeStamp     *timeStampType    `xml:"TimeStamp,omitempty"`
	Point         *outGeometry      `xml:"Point,omitempty"`
	LineString    *outGeometry      `xml:"LineString,omitempty"`
	MultiGeometry *outMultiGeometry `xml:"MultiGeometry,omitempty"`
	Track         *outGXTrack       `xml:"gx:Track,omitempty"`
	MultiTrack    *outGXMultiTrack  `xml:"gx:MultiTrack,omitempty"`
}

type outGeometry struct {
	Tessellate   int    `xml:"tessellate,omitempty"`
	AltitudeMode string `xml:"altitudeMode,omitempty"`
	Coordinates  string `xml:"coordinates"`
}

type outMultiGeometry struct {
	LineStrings []outGeometry `xml:"LineString"`
}

type outGXTrack struct {
	AltitudeMode string   `xml:"altitudeMode,omitempty"`
	When         []string `xml:"when"`
	Coords       []string `xml:"gx:coord"`
}

type outGXMultiTrack struct {
	Tracks []outGXTrack `xml:"gx:Track"`
}
