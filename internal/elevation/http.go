package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/planbiir/trackconv/internal/track"
)

// DefaultURL is the public Open-Meteo elevation endpoint.
const DefaultURL = "https://api.open-meteo.com/v1/elevation"

// HTTPSource queries an Open-Meteo compatible endpoint:
// GET <URL>?latitude=..&longitude=.. answering {"elevation":[meters]}.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource creates a source for baseURL using http.DefaultClient.
func NewHTTPSource(baseURL string) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &HTTPSource{URL: baseURL, Client: http.DefaultClient}
}

type elevationResponse struct {
	Elevation []float64 `json:"elevation"`
}

// Lookup implements Source.
func (s *HTTPSource) Lookup(ctx context.Context, lat, lon float64) (float64, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return 0, fmt.Errorf("%w: bad url: %v", track.ErrElevationUnavailable, err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", track.ErrElevationUnavailable, err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", track.ErrElevationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("%w: elevation service returned %s", track.ErrElevationUnavailable, resp.Status)
	}

	var body elevationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", track.ErrElevationUnavailable, err)
	}
	if len(body.Elevation) == 0 {
		return 0, fmt.Errorf("%w: empty response", track.ErrElevationUnavailable)
	}
	return body.Elevation[0], nil
}
