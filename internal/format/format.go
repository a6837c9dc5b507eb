// Package format selects a codec by format kind.
package format

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/planbiir/trackconv/internal/gpx"
	"github.com/planbiir/trackconv/internal/kml"
	"github.com/planbiir/trackconv/internal/track"
)

// Kind names a supported file format.
type Kind string

const (
	GPX Kind = "gpx"
	KML Kind = "kml"
)

// Codec converts between a file format and the track model.
type Codec interface {
	Parse(data []byte) (*track.Document, error)
	Write(doc *track.Document) ([]byte, error)
}

// ParseKind validates a user supplied format name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case GPX, KML:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", track.ErrInvalidParameter, s)
	}
}

// KindFromPath infers the format from the file extension.
func KindFromPath(path string) (Kind, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	k, err := ParseKind(ext)
	if err != nil {
		return "", fmt.Errorf("%w: unrecognised extension %q", track.ErrInvalidParameter, filepath.Ext(path))
	}
	return k, nil
}

// Ext returns the file extension including the dot.
func (k Kind) Ext() string { return "." + string(k) }

// Other returns the format a file of kind k converts to by default.
func (k Kind) Other() Kind {
	if k == GPX {
		return KML
	}
	return GPX
}

// For returns the codec of kind.
func For(kind Kind) (Codec, error) {
	switch kind {
	case GPX:
		return gpx.Codec{}, nil
	case KML:
		return kml.Codec{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", track.ErrInvalidParameter, kind)
	}
}

// Parse decodes data of the given kind.
func Parse(data []byte, kind Kind) (*track.Document, error) {
	c, err := For(kind)
	if err != nil {
		return nil, err
	}
	return c.Parse(data)
}

// Write encodes doc as kind.
func Write(doc *track.Document, kind Kind) ([]byte, error) {
	c, err := For(kind)
	if err != nil {
		return nil, err
	}
	return c.Write(doc)
}

// IsSupported reports whether path has a recognised extension.
func IsSupported(path string) bool {
	_, err := KindFromPath(path)
	return err == nil
}
