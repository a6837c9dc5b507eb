package gpx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/planbiir/trackconv/internal/track"
)

// Codec reads and writes GPX documents.
type Codec struct{}

// Parse implements format.Codec.
func (Codec) Parse(data []byte) (*track.Document, error) {
	return ParseReader(bytes.NewReader(data))
}

// Write implements format.Codec.
func (Codec) Write(doc *track.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteToWriter(doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseReader parses GPX 1.0 or 1.1 from an io.Reader
func ParseReader(r io.Reader) (*track.Document, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	var gpxData gpxType
	if err := decoder.Decode(&gpxData); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty GPX document", track.ErrMalformedInput)
		}
		return nil, fmt.Errorf("%w: failed to parse GPX: %v", track.ErrMalformedInput, err)
	}

	switch strings.TrimSpace(gpxData.Version) {
	case "", "1.0", "1.1":
	default:
		return nil, fmt.Errorf("%w: GPX version %q", track.ErrUnsupportedVersion, gpxData.Version)
	}

	doc := &track.Document{Name: gpxData.Name}
	if gpxData.Metadata != nil && gpxData.Metadata.Name != "" {
		doc.Name = gpxData.Metadata.Name
	}

	for i, w := range gpxData.Waypoints {
		p, err := convertPoint(w)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		doc.Waypoints = append(doc.Waypoints, track.Waypoint{
			Name:        w.Name,
			Description: w.Description,
			Point:       p,
		})
	}

	for trackIdx, trk := range gpxData.Tracks {
		t := track.Track{Name: trk.Name, Description: trk.Description}
		for segIdx, seg := range trk.Segments {
			if len(seg.Points) == 0 {
				continue
			}
			s, err := convertSegment(seg.Points)
			if err != nil {
				return nil, fmt.Errorf("track %d segment %d: %w", trackIdx, segIdx, err)
			}
			t.Segments = append(t.Segments, s)
		}
		if len(t.Segments) > 0 {
			doc.Tracks = append(doc.Tracks, t)
		}
	}

	// Routes have no segment structure; each becomes a single-segment track.
	for routeIdx, rte := range gpxData.Routes {
		if len(rte.Points) == 0 {
			continue
		}
		s, err := convertSegment(rte.Points)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", routeIdx, err)
		}
		doc.Tracks = append(doc.Tracks, track.Track{
			Name:        rte.Name,
			Description: rte.Description,
			Segments:    []track.Segment{s},
		})
	}

	return doc, nil
}

func convertSegment(points []wptType) (track.Segment, error) {
	pts := make([]track.Point, 0, len(points))
	for ptIdx, w := range points {
		p, err := convertPoint(w)
		if err != nil {
			return track.Segment{}, fmt.Errorf("point %d: %w", ptIdx, err)
		}
		pts = append(pts, p)
	}
	return track.NewSegment(pts)
}

func convertPoint(w wptType) (track.Point, error) {
	if w.Lat == nil || w.Lon == nil {
		return track.Point{}, fmt.Errorf("%w: missing lat/lon attribute", track.ErrMalformedInput)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(*w.Lat), 64)
	if err != nil {
		return track.Point{}, fmt.Errorf("%w: bad latitude %q", track.ErrMalformedInput, *w.Lat)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(*w.Lon), 64)
	if err != nil {
		return track.Point{}, fmt.Errorf("%w: bad longitude %q", track.ErrMalformedInput, *w.Lon)
	}

	p, err := track.NewPoint(lat, lon)
	if err != nil {
		return track.Point{}, err
	}

	if ele := strings.TrimSpace(w.Elevation); ele != "" {
		v, err := strconv.ParseFloat(ele, 64)
		if err != nil {
			return track.Point{}, fmt.Errorf("%w: bad elevation %q", track.ErrMalformedInput, ele)
		}
		p = p.WithElevation(v)
	}
	if ts := strings.TrimSpace(w.Time); ts != "" {
		p = p.WithTime(parseTimeSafe(ts))
	}
	if len(w.Extensions) > 0 {
		p.Extensions = append([]byte(nil), w.Extensions...)
	}
	return p, nil
}

// parseTimeSafe tries multiple timestamp formats; unparseable values stay unknown.
func parseTimeSafe(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z07:00",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// WriteToWriter writes a document as GPX 1.1 to an io.Writer
func WriteToWriter(doc *track.Document, w io.Writer) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", track.ErrWrite)
	}

	out := outGPX{
		Version:  "1.1",
		Creator:  Creator,
		XMLNS:    Namespace,
		XMLNSXSI: xsiNamespace,
		XSI:      schemaLocation,
	}
	if doc.Name != "" {
		out.Metadata = &metadataType{Name: doc.Name}
	}

	for _, wp := range doc.Waypoints {
		p := encodePoint(wp.Point)
		p.Name = wp.Name
		p.Description = wp.Description
		out.Waypoints = append(out.Waypoints, p)
	}

	declareExtensionNamespaces(&out, doc)

	for _, trk := range doc.Tracks {
		t := outTrack{Name: trk.Name, Description: trk.Description}
		for _, seg := range trk.Segments {
			s := outSegment{Points: make([]outPoint, 0, len(seg.Points))}
			for _, p := range seg.Points {
				s.Points = append(s.Points, encodePoint(p))
			}
			t.Segments = append(t.Segments, s)
		}
		out.Tracks = append(out.Tracks, t)
	}

	// Write XML header
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("%w: failed to encode GPX: %v", track.ErrWrite, err)
	}
	if err := encoder.Flush(); err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}

	return nil
}

func encodePoint(p track.Point) outPoint {
	out := outPoint{
		Lat:        formatCoord(p.Lat),
		Lon:        formatCoord(p.Lon),
		Extensions: RawXML(p.Extensions),
	}
	if v, ok := p.Ele.Value(); ok {
		out.Elevation = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if p.HasTime() {
		out.Time = p.Time.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// declareExtensionNamespaces adds the Garmin prefixes to the root when a
// preserved extension block refers to them.
func declareExtensionNamespaces(out *outGPX, doc *track.Document) {
	check := func(ext []byte) {
		if len(ext) == 0 {
			return
		}
		if out.XMLNSGPXTPX == "" && bytes.Contains(ext, []byte("gpxtpx:")) {
			out.XMLNSGPXTPX = gpxtpxNamespace
		}
		if out.XMLNSGPXX == "" && bytes.Contains(ext, []byte("gpxx:")) {
			out.XMLNSGPXX = gpxxNamespace
		}
	}

	for _, wp := range doc.Waypoints {
		check(wp.Point.Extensions)
	}
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				check(p.Extensions)
			}
		}
	}
}

// formatCoord writes the shortest representation that round-trips the float64.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
