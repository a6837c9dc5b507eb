package gpx

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/planbiir/trackconv/internal/track"
)

func TestParseGPX(t *testing.T) {
	const gpxContent = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
	<metadata><name>Ride</name></metadata>
	<wpt lat="46.5" lon="7.5"><name>Hut</name><ele>2100</ele></wpt>
	<trk>
		<name>Test Track</name>
		<trkseg>
			<trkpt lat="46.0" lon="7.0">
				<ele>1000</ele>
				<time>2025-01-01T10:00:00Z</time>
			</trkpt>
			<trkpt lat="46.001" lon="7.001">
				<ele>1010</ele>
				<time>2025-01-01T10:00:10Z</time>
			</trkpt>
		</trkseg>
	</trk>
</gpx>`

	doc, err := ParseReader(strings.NewReader(gpxContent))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}

	if doc.Name != "Ride" {
		t.Errorf("Expected document name 'Ride', got %q", doc.Name)
	}
	if len(doc.Tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(doc.Tracks))
	}
	if doc.Tracks[0].Name != "Test Track" {
		t.Errorf("Expected track name 'Test Track', got %q", doc.Tracks[0].Name)
	}

	points := doc.Tracks[0].Segments[0].Points
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
	if points[0].Lat != 46.0 || points[0].Lon != 7.0 {
		t.Errorf("Unexpected first point: %v,%v", points[0].Lat, points[0].Lon)
	}
	if v, ok := points[0].Ele.Value(); !ok || v != 1000 {
		t.Errorf("Expected elevation 1000, got %v", points[0].Ele)
	}
	want := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	if !points[0].Time.Equal(want) {
		t.Errorf("Expected time %v, got %v", want, points[0].Time)
	}

	if len(doc.Waypoints) != 1 || doc.Waypoints[0].Name != "Hut" {
		t.Fatalf("Expected waypoint 'Hut', got %+v", doc.Waypoints)
	}
}

func TestParseMissingOptionalFields(t *testing.T) {
	const gpxContent = `<gpx version="1.1">
	<trk><trkseg>
		<trkpt lat="46.0" lon="7.0"/>
		<trkpt lat="46.001" lon="7.001"><time>not a time</time></trkpt>
	</trkseg></trk>
</gpx>`

	doc, err := ParseReader(strings.NewReader(gpxContent))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}

	for i, p := range doc.Tracks[0].Segments[0].Points {
		if p.Ele.Known() {
			t.Errorf("point %d: missing elevation must stay unknown, got %v", i, p.Ele)
		}
		if p.HasTime() {
			t.Errorf("point %d: expected unknown time, got %v", i, p.Time)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"empty", "", track.ErrMalformedInput},
		{"not xml", "hello", track.ErrMalformedInput},
		{"wrong root", `<kml></kml>`, track.ErrMalformedInput},
		{
			"missing lat",
			`<gpx version="1.1"><trk><trkseg><trkpt lon="7"/><trkpt lat="1" lon="7"/></trkseg></trk></gpx>`,
			track.ErrMalformedInput,
		},
		{
			"bad elevation",
			`<gpx version="1.1"><wpt lat="1" lon="7"><ele>high</ele></wpt></gpx>`,
			track.ErrMalformedInput,
		},
		{
			"out of range",
			`<gpx version="1.1"><wpt lat="91" lon="7"/></gpx>`,
			track.ErrMalformedInput,
		},
		{
			"single point segment",
			`<gpx version="1.1"><trk><trkseg><trkpt lat="1" lon="7"/></trkseg></trk></gpx>`,
			track.ErrDegenerateSegment,
		},
		{"version 2.0", `<gpx version="2.0"></gpx>`, track.ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReader(strings.NewReader(tt.content))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseGPX10(t *testing.T) {
	const gpxContent = `<?xml version="1.0" encoding="ISO-8859-1"?>
<gpx version="1.0" xmlns="http://www.topografix.com/GPX/1/0">
	<name>Z` + "\xfc" + `rich</name>
	<trk><trkseg>
		<trkpt lat="47.37" lon="8.54"/>
		<trkpt lat="47.38" lon="8.55"/>
	</trkseg></trk>
</gpx>`

	doc, err := ParseReader(strings.NewReader(gpxContent))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}
	if doc.Name != "Zürich" {
		t.Errorf("Expected name 'Zürich', got %q", doc.Name)
	}
}

func TestParseRoutesAndEmptySegments(t *testing.T) {
	const gpxContent = `<gpx version="1.1">
	<trk><name>Only empty</name><trkseg></trkseg></trk>
	<rte>
		<name>Planned</name>
		<rtept lat="46.0" lon="7.0"/>
		<rtept lat="46.1" lon="7.1"/>
		<rtept lat="46.2" lon="7.2"/>
	</rte>
</gpx>`

	doc, err := ParseReader(strings.NewReader(gpxContent))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}
	if len(doc.Tracks) != 1 {
		t.Fatalf("Expected only the route as a track, got %d tracks", len(doc.Tracks))
	}
	if doc.Tracks[0].Name != "Planned" || doc.Tracks[0].Segments[0].Len() != 3 {
		t.Errorf("Unexpected route track: %+v", doc.Tracks[0])
	}
}

func TestWriteRoundTrip(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 123000000, time.UTC)
	p1, _ := track.NewPoint(46.123456789, 7.987654321)
	p2, _ := track.NewPoint(-33.8688197, 151.2092955)
	p3, _ := track.NewPoint(0, 0)
	wp, _ := track.NewPoint(46.5, 7.5)

	doc := &track.Document{
		Name: "Round & trip",
		Tracks: []track.Track{{
			Name: "A",
			Segments: []track.Segment{
				{Points: []track.Point{p1.WithElevation(123.4).WithTime(base), p2}},
				{Points: []track.Point{p3, p1}},
			},
		}},
		Waypoints: []track.Waypoint{{Name: "Hut", Description: "warm", Point: wp.WithElevation(0)}},
	}

	data, err := Codec{}.Write(doc)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := string(data)
	for _, want := range []string{`version="1.1"`, `xmlns="` + Namespace + `"`, `xsi:schemaLocation=`, `creator="trackconv"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s", want)
		}
	}
	if strings.Index(out, "<wpt") > strings.Index(out, "<trk>") {
		t.Errorf("wpt must be written before trk")
	}

	got, err := Codec{}.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got.Name != doc.Name {
		t.Errorf("Expected name %q, got %q", doc.Name, got.Name)
	}
	if len(got.Tracks) != 1 || len(got.Tracks[0].Segments) != 2 {
		t.Fatalf("Unexpected structure: %+v", got)
	}

	for s, seg := range doc.Tracks[0].Segments {
		gotSeg := got.Tracks[0].Segments[s]
		if gotSeg.Len() != seg.Len() {
			t.Fatalf("segment %d: expected %d points, got %d", s, seg.Len(), gotSeg.Len())
		}
		for i, p := range seg.Points {
			q := gotSeg.Points[i]
			if !p.Equal(q, track.DefaultEpsilon) {
				t.Errorf("segment %d point %d: %v,%v != %v,%v", s, i, p.Lat, p.Lon, q.Lat, q.Lon)
			}
			if p.Ele.Known() != q.Ele.Known() {
				t.Errorf("segment %d point %d: elevation known mismatch", s, i)
			}
		}
	}

	first := got.Tracks[0].Segments[0].Points[0]
	if v, _ := first.Ele.Value(); math.Abs(v-123.4) > 1e-9 {
		t.Errorf("Expected elevation 123.4, got %v", v)
	}
	if !first.Time.Equal(base) {
		t.Errorf("Expected time %v, got %v", base, first.Time)
	}

	if len(got.Waypoints) != 1 || got.Waypoints[0].Description != "warm" {
		t.Fatalf("waypoint lost: %+v", got.Waypoints)
	}
	if v, ok := got.Waypoints[0].Point.Ele.Value(); !ok || v != 0 {
		t.Errorf("explicit 0m waypoint elevation must survive, got %v", got.Waypoints[0].Point.Ele)
	}
}

func TestWriteNilDocument(t *testing.T) {
	var buf strings.Builder
	if err := WriteToWriter(nil, &buf); !errors.Is(err, track.ErrWrite) {
		t.Errorf("expected ErrWrite, got %v", err)
	}
}

func TestParsePreservesExtensions(t *testing.T) {
	const gpxContent = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns:gpxtpx="http://www.garmin.com/xmlschemas/TrackPointExtension/v1">
	<trk>
		<trkseg>
			<trkpt lat="46.0" lon="7.0">
				<extensions>
					<gpxtpx:TrackPointExtension>
						<gpxtpx:hr>145</gpxtpx:hr>
					</gpxtpx:TrackPointExtension>
				</extensions>
			</trkpt>
			<trkpt lat="46.001" lon="7.001"/>
		</trkseg>
	</trk>
</gpx>`

	doc, err := ParseReader(strings.NewReader(gpxContent))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}

	point := doc.Tracks[0].Segments[0].Points[0]
	if len(point.Extensions) == 0 {
		t.Fatalf("expected extensions to be preserved")
	}

	// Ensure we can roundtrip without dropping the extensions block
	var buf strings.Builder
	if err := WriteToWriter(doc, &buf); err != nil {
		t.Fatalf("WriteToWriter failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "TrackPointExtension") {
		t.Fatalf("expected TrackPointExtension to appear in marshalled GPX")
	}
	if !strings.Contains(out, `xmlns:gpxtpx="`+gpxtpxNamespace+`"`) {
		t.Errorf("expected gpxtpx namespace declaration on the root")
	}
	if strings.Count(out, "<extensions>") != 1 {
		t.Errorf("points without extensions must not get an empty block")
	}

	again, err := ParseReader(strings.NewReader(out))
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if !strings.Contains(string(again.Tracks[0].Segments[0].Points[0].Extensions), "<gpxtpx:hr>145</gpxtpx:hr>") {
		t.Errorf("heart rate lost on second round trip")
	}
}
