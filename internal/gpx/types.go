package gpx

import (
	"encoding/xml"
)

const (
	// Namespace is the GPX 1.1 namespace written on output.
	Namespace      = "http://www.topografix.com/GPX/1/1"
	schemaLocation = "http://www.topografix.com/GPX/1/1 http://www.topografix.com/GPX/1/1/gpx.xsd"
	xsiNamespace   = "http://www.w3.org/2001/XMLSchema-instance"

	// Garmin extension namespaces declared when preserved extensions use them.
	gpxtpxNamespace = "http://www.garmin.com/xmlschemas/TrackPointExtension/v1"
	gpxxNamespace   = "http://www.garmin.com/xmlschemas/GpxExtensions/v3"

	// Creator is written into the creator attribute.
	Creator = "trackconv"
)

// RawXML preserves nested extension blocks without re-parsing them.
// We store the inner XML bytes verbatim so we can round-trip extensions
// emitted by other tools (Garmin, Strava, etc.).
type RawXML []byte

func (r RawXML) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if len(r) == 0 {
		return nil
	}

	type inner struct {
		Content string `xml:",innerxml"`
	}

	return e.EncodeElement(inner{Content: string(r)}, start)
}

func (r *RawXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type inner struct {
		Content string `xml:",innerxml"`
	}

	var data inner
	if err := d.DecodeElement(&data, &start); err != nil {
		return err
	}

	if len(data.Content) == 0 {
		*r = nil
		return nil
	}

	*r = append((*r)[:0], data.Content...)
	return nil
}

// wptType is shared by wpt, rtept and trkpt. Coordinates and elevation are
// kept as text so that a missing attribute is distinguishable from 0.
type wptType struct {
	Lat         *string `xml:"lat,attr"`
	Lon         *string `xml:"lon,attr"`
	Elevation   string  `xml:"ele,omitempty"`
	Time        string  `xml:"time,omitempty"`
	Name        string  `xml:"name,omitempty"`
	Description string  `xml:"desc,omitempty"`

	// Extensions (Garmin, Strava, etc.) - preserve as raw XML
	Extensions RawXML `xml:"extensions,omitempty"`
}

type trkType struct {
	Name        string       `xml:"name,omitempty"`
	Description string       `xml:"desc,omitempty"`
	Segments    []trksegType `xml:"trkseg"`
}

type trksegType struct {
	Points []wptType `xml:"trkpt"`
}

type rteType struct {
	Name        string    `xml:"name,omitempty"`
	Description string    `xml:"desc,omitempty"`
	Points      []wptType `xml:"rtept"`
}

type metadataType struct {
	Name        string `xml:"name,omitempty"`
	Description string `xml:"desc,omitempty"`
	Time        string `xml:"time,omitempty"`
}

// gpxType is the decoded document. GPX 1.0 puts name/desc directly under
// the root, GPX 1.1 moves them into <metadata>; both are read.
type gpxType struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`

	Metadata *metadataType `xml:"metadata"`
	Name     string        `xml:"name"`

	Waypoints []wptType `xml:"wpt"`
	Routes    []rteType `xml:"rte"`
	Tracks    []trkType `xml:"trk"`
}

// outGPX is the GPX 1.1 document written on output.
type outGPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`

	XMLNS    string `xml:"xmlns,attr"`
	XMLNSXSI string `xml:"xmlns:xsi,attr"`
	XSI      string `xml:"xsi:schemaLocation,attr"`

	// Garmin/Strava specific namespaces
	XMLNSGPXTPX string `xml:"xmlns:gpxtpx,attr,omitempty"`
	XMLNSGPXX   string `xml:"xmlns:gpxx,attr,omitempty"`

	Metadata  *metadataType `xml:"metadata,omitempty"`
	Waypoints []outPoint    `xml:"wpt"`
	Tracks    []outTrack    `xml:"trk"`
}

type outPoint struct {
	Lat         string `xml:"lat,attr"`
	Lon         string `xml:"lon,attr"`
	Elevation   string `xml:"ele,omitempty"`
	Time        string `xml:"time,omitempty"`
	Name        string `xml:"name,omitempty"`
	Description string `xml:"desc,omitempty"`
	Extensions  RawXML `xml:"extensions,omitempty"`
}

type outTrack struct {
	Name        string       `xml:"name,omitempty"`
	Description string       `xml:"desc,omitempty"`
	Segments    []outSegment `xml:"trkseg"`
}

type outSegment struct {
	Points []outPoint `xml:"trkpt"`
}
