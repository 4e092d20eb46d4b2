// Package geocode resolves postal addresses to coordinates through a
// photon-style GeoJSON endpoint. Lookups are rate-limited to one request per
// second; an empty feature list means "no result", not an error.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public photon endpoint.
const DefaultBaseURL = "https://photon.komoot.io/api"

// Place is one geocoding result.
type Place struct {
	Latitude  float64
	Longitude float64
	Street    string
	Postcode  string
	City      string
	State     string
	Country   string
}

// Client is a rate-limited geocoding client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		logger:     logger,
	}
}

// BuildQuery joins the non-empty address components into one query string.
// Returns "" when there is nothing to search for.
func BuildQuery(components ...string) string {
	var parts []string
	for _, c := range components {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, ", ")
}

// Lookup geocodes a free-form query. A nil Place with nil error means the
// service found nothing.
func (c *Client) Lookup(ctx context.Context, query string) (*Place, error) {
	if query == "" {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "?q=" + url.QueryEscape(query) + "&limit=1"
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties struct {
				Street   string `json:"street"`
				Postcode string `json:"postcode"`
				City     string `json:"city"`
				State    string `json:"state"`
				Country  string `json:"country"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}

	if len(response.Features) == 0 {
		c.logger.Debug("Geocoder found no result", "query", query)
		return nil, nil
	}

	f := response.Features[0]
	if len(f.Geometry.Coordinates) < 2 {
		return nil, fmt.Errorf("geocoder feature has no coordinates")
	}

	// GeoJSON order is [lon, lat].
	return &Place{
		Longitude: f.Geometry.Coordinates[0],
		Latitude:  f.Geometry.Coordinates[1],
		Street:    f.Properties.Street,
		Postcode:  f.Properties.Postcode,
		City:      f.Properties.City,
		State:     f.Properties.State,
		Country:   f.Properties.Country,
	}, nil
}
