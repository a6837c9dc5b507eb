package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/planbiir/trackconv/internal/format"
	"github.com/planbiir/trackconv/internal/pipeline"
	"github.com/planbiir/trackconv/internal/track"
)

var errUnsupportedMedia = errors.New("unsupported file type")

var contentTypes = map[format.Kind]string{
	format.GPX: "application/gpx+xml",
	format.KML: "application/vnd.google-earth.kml+xml",
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// handleConvert merges every uploaded "file" part in order, runs the
// pipeline and answers with the converted document.
//
//	POST /v1/convert?to=kml&min_distance=10&waypoints=false&elevation=true
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	target, err := format.ParseKind(q.Get("to"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	runner, err := s.runnerFor(q.Get("min_distance"), q.Get("waypoints"), q.Get("elevation"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: expected multipart/form-data: %v", track.ErrInvalidParameter, err))
		return
	}

	var docs []*track.Document
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: read upload: %w", track.ErrInvalidParameter, err))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		name := part.FileName()
		kind, err := format.KindFromPath(name)
		if err != nil {
			part.Close()
			s.writeError(w, fmt.Errorf("%w: %s", errUnsupportedMedia, name))
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: read %s: %w", track.ErrInvalidParameter, name, err))
			return
		}

		doc, err := format.Parse(data, kind)
		if err != nil {
			s.writeError(w, fmt.Errorf("%s: %w", name, err))
			return
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		s.writeError(w, fmt.Errorf("%w: no file parts in request", track.ErrEmptyInput))
		return
	}

	doc, rep, err := runner.Process(r.Context(), docs...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := format.Write(doc, target)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("converted",
		"files", len(docs),
		"to", target,
		"points_in", rep.Simplify.PointsIn,
		"points_out", rep.Simplify.PointsOut,
	)

	w.Header().Set("Content-Type", contentTypes[target])
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="converted%s"`, target.Ext()))
	w.Header().Set("X-Points-In", strconv.Itoa(rep.Simplify.PointsIn))
	w.Header().Set("X-Points-Out", strconv.Itoa(rep.Simplify.PointsOut))
	w.Write(out)
}

// runnerFor applies per-request overrides to the configured options.
func (s *Server) runnerFor(minDistance, waypoints, elevation string) (*pipeline.Runner, error) {
	if minDistance == "" && waypoints == "" && elevation == "" {
		return s.runner, nil
	}

	opts := s.runner.Options()
	if minDistance != "" {
		v, err := strconv.Atoi(minDistance)
		if err != nil {
			return nil, fmt.Errorf("%w: min_distance must be an integer", track.ErrInvalidParameter)
		}
		opts.MinDistanceMeters = v
	}
	if waypoints != "" {
		v, err := strconv.ParseBool(waypoints)
		if err != nil {
			return nil, fmt.Errorf("%w: waypoints must be a boolean", track.ErrInvalidParameter)
		}
		opts.ExtractWaypoints = v
	}
	if elevation != "" {
		v, err := strconv.ParseBool(elevation)
		if err != nil {
			return nil, fmt.Errorf("%w: elevation must be a boolean", track.ErrInvalidParameter)
		}
		opts.IncludeElevation = v
	}
	return s.runner.WithOptions(opts)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := track.KindOf(err)

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
		kind = "too_large"
	case errors.Is(err, errUnsupportedMedia):
		status = http.StatusUnsupportedMediaType
		kind = "unsupported_media_type"
	case errors.Is(err, track.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, track.ErrMalformedInput),
		errors.Is(err, track.ErrUnsupportedVersion),
		errors.Is(err, track.ErrEmptyInput):
		status = http.StatusUnprocessableEntity
	}

	if status >= 500 {
		s.log.Error("convert failed", "error", err)
	} else {
		s.log.Debug("convert rejected", "kind", kind, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Kind: kind})
}
