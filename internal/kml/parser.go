// Package kml reads and writes KML placemark documents, including the
// gx:Track extension used by GPS loggers.
package kml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/planbiir/trackconv/internal/track"
)

// Codec reads and writes KML documents.
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

// ParseReader walks Document and Folder containers in document order and
// converts every Placemark it meets.
func ParseReader(r io.Reader) (*track.Document, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	root, err := findRoot(decoder)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "kml" {
		return nil, fmt.Errorf("%w: expected <kml> root, got <%s>", track.ErrMalformedInput, root.Name.Local)
	}
	if ns := root.Name.Space; ns != "" && !acceptedNamespaces[ns] {
		return nil, fmt.Errorf("%w: KML namespace %q", track.ErrUnsupportedVersion, ns)
	}

	doc := &track.Document{}
	var stack []string
	placemarks := 0

	for {
		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: unexpected end of KML document", track.ErrMalformedInput)
			}
			return nil, fmt.Errorf("%w: failed to parse KML: %v", track.ErrMalformedInput, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Document", "Folder":
				stack = append(stack, t.Name.Local)
			case "name":
				// Only the outermost Document names the result.
				if len(stack) == 1 && stack[0] == "Document" && doc.Name == "" {
					var name string
					if err := decoder.DecodeElement(&name, &t); err != nil {
						return nil, fmt.Errorf("%w: %v", track.ErrMalformedInput, err)
					}
					doc.Name = strings.TrimSpace(name)
					continue
				}
				if err := decoder.Skip(); err != nil {
					return nil, fmt.Errorf("%w: %v", track.ErrMalformedInput, err)
				}
			case "Placemark":
				var pm placemarkType
				if err := decoder.DecodeElement(&pm, &t); err != nil {
					return nil, fmt.Errorf("%w: placemark %d: %v", track.ErrMalformedInput, placemarks, err)
				}
				if err := addPlacemark(doc, pm); err != nil {
					return nil, fmt.Errorf("placemark %d (%q): %w", placemarks, pm.Name, err)
				}
				placemarks++
			default:
				if err := decoder.Skip(); err != nil {
					return nil, fmt.Errorf("%w: %v", track.ErrMalformedInput, err)
				}
			}
		case xml.EndElement:
			if len(stack) == 0 {
				// </kml>
				return doc, nil
			}
			stack = stack[:len(stack)-1]
		}
	}
}

func findRoot(decoder *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, fmt.Errorf("%w: empty KML document", track.ErrMalformedInput)
			}
			return xml.StartElement{}, fmt.Errorf("%w: failed to parse KML: %v", track.ErrMalformedInput, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func addPlacemark(doc *track.Document, pm placemarkType) error {
	name := strings.TrimSpace(pm.Name)
	desc := strings.TrimSpace(pm.Description)
	found := false

	if pm.Point != nil {
		found = true
		p, err := parseSinglePoint(pm.Point.Coordinates)
		if err != nil {
			return err
		}
		if pm.TimeStamp != nil {
			p = p.WithTime(parseTimeSafe(pm.TimeStamp.When))
		}
		doc.Waypoints = append(doc.Waypoints, track.Waypoint{Name: name, Description: desc, Point: p})
	}

	var segments []track.Segment

	if pm.LineString != nil {
		found = true
		seg, err := parseLineString(pm.LineString.Coordinates)
		if err != nil {
			return err
		}
		segments = append(segments, seg)
	}

	if pm.MultiGeometry != nil {
		found = true
		segs, waypoints, err := flattenMultiGeometry(*pm.MultiGeometry, name, desc)
		if err != nil {
			return err
		}
		segments = append(segments, segs...)
		doc.Waypoints = append(doc.Waypoints, waypoints...)
	}

	if pm.Track != nil {
		found = true
		seg, err := parseGXTrack(*pm.Track)
		if err != nil {
			return err
		}
		segments = append(segments, seg)
	}

	if pm.MultiTrack != nil {
		found = true
		for i, gt := range pm.MultiTrack.Tracks {
			seg, err := parseGXTrack(gt)
			if err != nil {
				return fmt.Errorf("gx:Track %d: %w", i, err)
			}
			segments = append(segments, seg)
		}
	}

	if pm.Polygon != nil {
		// Areas have no track meaning.
		found = true
	}

	if !found {
		return fmt.Errorf("%w: placemark has no geometry", track.ErrMalformedInput)
	}

	if len(segments) > 0 {
		doc.Tracks = append(doc.Tracks, track.Track{Name: name, Description: desc, Segments: segments})
	}
	return nil
}

func flattenMultiGeometry(mg multiGeometryType, name, desc string) ([]track.Segment, []track.Waypoint, error) {
	var segments []track.Segment
	var waypoints []track.Waypoint

	for _, pt := range mg.Points {
		p, err := parseSinglePoint(pt.Coordinates)
		if err != nil {
			return nil, nil, err
		}
		waypoints = append(waypoints, track.Waypoint{Name: name, Description: desc, Point: p})
	}
	for i, ls := range mg.LineStrings {
		seg, err := parseLineString(ls.Coordinates)
		if err != nil {
			return nil, nil, fmt.Errorf("LineString %d: %w", i, err)
		}
		segments = append(segments, seg)
	}
	for i, gt := range mg.Tracks {
		seg, err := parseGXTrack(gt)
		if err != nil {
			return nil, nil, fmt.Errorf("gx:Track %d: %w", i, err)
		}
		segments = append(segments, seg)
	}
	for _, nested := range mg.MultiGeometry {
		segs, wps, err := flattenMultiGeometry(nested, name, desc)
		if err != nil {
			return nil, nil, err
		}
		segments = append(segments, segs...)
		waypoints = append(waypoints, wps...)
	}
	return segments, waypoints, nil
}

func parseSinglePoint(text string) (track.Point, error) {
	points, err := parseCoordinates(text)
	if err != nil {
		return track.Point{}, err
	}
	if len(points) == 0 {
		return track.Point{}, fmt.Errorf("%w: Point without coordinates", track.ErrMalformedInput)
	}
	return points[0], nil
}

func parseLineString(text string) (track.Segment, error) {
	points, err := parseCoordinates(text)
	if err != nil {
		return track.Segment{}, err
	}
	return track.NewSegment(points)
}

// commaSpace matches whitespace around tuple separators ("7.0, 46.0").
var commaSpace = regexp.MustCompile(`\s*,\s*`)

// parseCoordinates reads whitespace separated "lon,lat[,alt]" tuples.
func parseCoordinates(text string) ([]track.Point, error) {
	fields := strings.Fields(commaSpace.ReplaceAllString(text, ","))
	points := make([]track.Point, 0, len(fields))
	for _, tuple := range fields {
		parts := strings.Split(tuple, ",")
		p, err := parseTuple(parts)
		if err != nil {
			return nil, fmt.Errorf("coordinate %q: %w", tuple, err)
		}
		points = append(points, p)
	}
	return points, nil
}

// parseGXTrack pairs gx:coord ("lon lat alt") with when values by index.
// A missing or unparseable when leaves the point time unknown.
func parseGXTrack(gt gxTrackType) (track.Segment, error) {
	points := make([]track.Point, 0, len(gt.Coords))
	for i, c := range gt.Coords {
		p, err := parseTuple(strings.Fields(c))
		if err != nil {
			return track.Segment{}, fmt.Errorf("gx:coord %d: %w", i, err)
		}
		if i < len(gt.When) {
			p = p.WithTime(parseTimeSafe(gt.When[i]))
		}
		points = append(points, p)
	}
	return track.NewSegment(points)
}

func parseTuple(parts []string) (track.Point, error) {
	if len(parts) < 2 || len(parts) > 3 {
		return track.Point{}, fmt.Errorf("%w: expected lon,lat[,alt]", track.ErrMalformedInput)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return track.Point{}, fmt.Errorf("%w: bad longitude", track.ErrMalformedInput)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return track.Point{}, fmt.Errorf("%w: bad latitude", track.ErrMalformedInput)
	}
	p, err := track.NewPoint(lat, lon)
	if err != nil {
		return track.Point{}, err
	}
	if len(parts) == 3 {
		if alt := strings.TrimSpace(parts[2]); alt != "" {
			v, err := strconv.ParseFloat(alt, 64)
			if err != nil {
				return track.Point{}, fmt.Errorf("%w: bad altitude %q", track.ErrMalformedInput, alt)
			}
			p = p.WithElevation(v)
		}
	}
	return p, nil
}

// parseTimeSafe accepts the KML dateTime forms; anything else stays unknown.
func parseTimeSafe(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
