// Package routing is the client for the external routing collaborator. The
// core hands it an origin and a destination and gets back a path with a
// distance/duration estimate; when the collaborator is unreachable the
// caller falls back to StraightLine.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"vantrack-backend/internal/models"
)

const defaultTimeout = 10 * time.Second

// Client talks to an OSRM-compatible routing endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a routing client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// osrmResponse is the subset of the OSRM route response we consume.
type osrmResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// GetRoute fetches a driving path from origin to destination.
func (c *Client) GetRoute(ctx context.Context, origin, destination models.PathPoint) (*models.RoutePath, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		c.baseURL, origin.Longitude, origin.Latitude, destination.Longitude, destination.Latitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build routing request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing response: %w", err)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode routing response: %w", err)
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("routing service returned no routes")
	}

	route := parsed.Routes[0]
	path := &models.RoutePath{
		DistanceMeters:  route.Distance,
		DurationSeconds: route.Duration,
	}
	for _, pair := range route.Geometry.Coordinates {
		if len(pair) < 2 {
			// Malformed geometry entry; skip rather than crash the caller.
			continue
		}
		path.Points = append(path.Points, models.PathPoint{Longitude: pair[0], Latitude: pair[1]})
	}
	return path, nil
}

// StraightLine builds the fallback path: origin and destination joined
// directly, distance by haversine, duration assuming vanSpeedMS.
func StraightLine(origin, destination models.PathPoint) *models.RoutePath {
	const vanSpeedMS = 8.0 // ~29 km/h, a conservative urban estimate

	dist := HaversineMeters(origin.Latitude, origin.Longitude, destination.Latitude, destination.Longitude)
	return &models.RoutePath{
		Points:          []models.PathPoint{origin, destination},
		DistanceMeters:  dist,
		DurationSeconds: dist / vanSpeedMS,
		StraightLine:    true,
	}
}

// HaversineMeters returns the great-circle distance between two GPS
// coordinates in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0 // meters

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
