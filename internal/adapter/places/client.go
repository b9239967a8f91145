// Package places implements domain.SearchBackend on the Google Places
// Nearby Search API.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/observability"
)

const (
	// DefaultBaseURL is the Places API root; the client appends /nearbysearch/json.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"
	// DefaultRadiusMeters is roughly ten miles.
	DefaultRadiusMeters = 16000

	placeType = "restaurant"
)

var _ domain.SearchBackend = (*Client)(nil)

// Client implements domain.SearchBackend using the Places Nearby Search API.
type Client struct {
	apiKey       string
	baseURL      string
	radiusMeters int
	httpClient   *http.Client
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a Places client. An empty baseURL selects DefaultBaseURL
// and a non-positive radius selects DefaultRadiusMeters.
func NewClient(apiKey, baseURL string, radiusMeters int, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		radiusMeters: radiusMeters,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// PerformSearch finds restaurants around at, filtered by terms when they are
// non-blank. Payload statuses other than OK and ZERO_RESULTS are returned as
// *domain.SearchBackendFailure.
func (c *Client) PerformSearch(ctx context.Context, at domain.Coordinates, terms *string) (domain.SearchResults, error) {
	params := url.Values{
		"location": {fmt.Sprintf("%.6f,%.6f", at.Latitude, at.Longitude)},
		"radius":   {strconv.Itoa(c.radiusMeters)},
		"type":     {placeType},
		"key":      {c.apiKey},
	}
	if terms != nil && strings.TrimSpace(*terms) != "" {
		params.Set("keyword", strings.TrimSpace(*terms))
	}

	start := time.Now()
	payload, err := c.doRequest(ctx, c.baseURL+"/nearbysearch/json?"+params.Encode())
	c.metrics.PlacesAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.PlacesRequests.WithLabelValues("error").Inc()
		return domain.SearchResults{}, err
	}

	if payload.Status != statusOK && payload.Status != statusZeroResults {
		c.metrics.PlacesRequests.WithLabelValues("status").Inc()
		c.logger.Warn("places search rejected", "status", payload.Status, "error_message", payload.ErrorMessage)
		return domain.SearchResults{}, &domain.SearchBackendFailure{Status: payload.Status}
	}
	c.metrics.PlacesRequests.WithLabelValues("success").Inc()

	restaurants := make([]domain.Restaurant, 0, len(payload.Results))
	for _, p := range payload.Results {
		if r, ok := p.restaurant(); ok {
			restaurants = append(restaurants, r)
		}
	}

	c.logger.Debug("places search completed",
		"location", at.String(),
		"terms", domain.FormatTerms(terms),
		"places", len(payload.Results),
		"restaurants", len(restaurants),
	)
	return domain.SearchResults{Terms: domain.CloneTerms(terms), Restaurants: restaurants}, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("nearby search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return response{}, fmt.Errorf("places API error: status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return payload, nil
}

// Places API response types.

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

type response struct {
	Results      []place `json:"results"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

type place struct {
	PlaceID          string    `json:"place_id,omitempty"`
	Name             string    `json:"name,omitempty"`
	Rating           *float64  `json:"rating,omitempty"`
	UserRatingsTotal *int      `json:"user_ratings_total,omitempty"`
	PriceLevel       *int      `json:"price_level,omitempty"`
	Vicinity         string    `json:"vicinity,omitempty"`
	Website          string    `json:"website,omitempty"`
	Photos           []photo   `json:"photos,omitempty"`
	Geometry         *geometry `json:"geometry,omitempty"`
}

type geometry struct {
	Location latLng `json:"location"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type photo struct {
	PhotoReference   string   `json:"photo_reference"`
	HTMLAttributions []string `json:"html_attributions"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
}

// restaurant converts a place, dropping those without an id, a name or a
// location.
func (p place) restaurant() (domain.Restaurant, bool) {
	if p.PlaceID == "" || p.Name == "" || p.Geometry == nil {
		return domain.Restaurant{}, false
	}

	r := domain.Restaurant{
		ID:          p.PlaceID,
		Name:        p.Name,
		Coordinates: domain.Coordinates{Latitude: p.Geometry.Location.Lat, Longitude: p.Geometry.Location.Lng},
		Rating:      p.Rating,
		ReviewCount: p.UserRatingsTotal,
		Address:     p.Vicinity,
		Website:     p.Website,
	}
	if p.PriceLevel != nil {
		if lvl, ok := domain.ParsePriceLevel(*p.PriceLevel); ok {
			r.PriceLevel = &lvl
		}
	}
	if len(p.Photos) > 0 {
		ph := p.Photos[0]
		r.Photo = &domain.Photo{
			Reference:        ph.PhotoReference,
			HTMLAttributions: ph.HTMLAttributions,
			Width:            ph.Width,
			Height:           ph.Height,
		}
	}
	return r, true
}
