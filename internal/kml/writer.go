package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/planbiir/trackconv/internal/track"
)

// WriteToWriter writes waypoints as Point placemarks followed by one
// placemark per track.
func WriteToWriter(doc *track.Document, w io.Writer) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", track.ErrWrite)
	}

	out := outKML{
		XMLNS:    Namespace,
		XMLNSGX:  GXNamespace,
		Document: outDocument{Name: doc.Name},
	}

	for _, wp := range doc.Waypoints {
		pm := outPlacemark{
			Name:        wp.Name,
			Description: wp.Description,
			Point:       &outGeometry{Coordinates: formatTuple(wp.Point)},
		}
		if wp.Point.Ele.Known() {
			pm.Point.AltitudeMode = "absolute"
		}
		if wp.Point.HasTime() {
			pm.TimeStamp = &timeStampType{When: formatTime(wp.Point.Time)}
		}
		out.Document.Placemarks = append(out.Document.Placemarks, pm)
	}

	for _, trk := range doc.Tracks {
		if len(trk.Segments) == 0 {
			continue
		}
		pm := outPlacemark{Name: trk.Name, Description: trk.Description}

		switch {
		case isFullyTimed(trk) && len(trk.Segments) == 1:
			gt := encodeGXTrack(trk.Segments[0])
			pm.Track = &gt
		case isFullyTimed(trk):
			mt := &outGXMultiTrack{}
			for _, seg := range trk.Segments {
				mt.Tracks = append(mt.Tracks, encodeGXTrack(seg))
			}
			pm.MultiTrack = mt
		case len(trk.Segments) == 1:
			ls := encodeLineString(trk.Segments[0])
			pm.LineString = &ls
		default:
			mg := &outMultiGeometry{}
			for _, seg := range trk.Segments {
				mg.LineStrings = append(mg.LineStrings, encodeLineString(seg))
			}
			pm.MultiGeometry = mg
		}
		out.Document.Placemarks = append(out.Document.Placemarks, pm)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("%w: failed to encode KML: %v", track.ErrWrite, err)
	}
	if err := encoder.Flush(); err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}
	return nil
}

// isFullyTimed reports whether gx:Track can carry the track without
// inventing a time or an altitude for any point.
func isFullyTimed(trk track.Track) bool {
	for _, seg := range trk.Segments {
		for _, p := range seg.Points {
			if !p.HasTime() || !p.Ele.Known() {
				return false
			}
		}
	}
	return true
}

func encodeGXTrack(seg track.Segment) outGXTrack {
	gt := outGXTrack{
		AltitudeMode: "absolute",
		When:         make([]string, 0, len(seg.Points)),
		Coords:       make([]string, 0, len(seg.Points)),
	}
	for _, p := range seg.Points {
		ele, _ := p.Ele.Value()
		gt.When = append(gt.When, formatTime(p.Time))
		gt.Coords = append(gt.Coords, formatFloat(p.Lon)+" "+formatFloat(p.Lat)+" "+formatFloat(ele))
	}
	return gt
}

func encodeLineString(seg track.Segment) outGeometry {
	tuples := make([]string, 0, len(seg.Points))
	anyElevation := false
	for _, p := range seg.Points {
		tuples = append(tuples, formatTuple(p))
		anyElevation = anyElevation || p.Ele.Known()
	}
	g := outGeometry{Tessellate: 1, Coordinates: strings.Join(tuples, " ")}
	if anyElevation {
		g.AltitudeMode = "absolute"
	}
	return g
}

// formatTuple writes "lon,lat" and appends the altitude only when known.
func formatTuple(p track.Point) string {
	s := formatFloat(p.Lon) + "," + formatFloat(p.Lat)
	if v, ok := p.Ele.Value(); ok {
		s += "," + formatFloat(v)
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
