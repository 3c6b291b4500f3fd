// Package tools holds the external tool invokers. They run before a turn
// starts (pre-fetch model) and their textual outcomes land in the turn
// state's tool_results for the composer.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Config holds API keys and optional endpoint overrides for the tool clients.
type Config struct {
	OpenWeatherKey  string        `json:"openweather_key"`
	MapsKey         string        `json:"maps_key"`
	WeatherEndpoint string        `json:"weather_endpoint,omitempty"`
	GeocodeEndpoint string        `json:"geocode_endpoint,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
}

// Client invokes the weather and geocoding APIs.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a tool client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.WeatherEndpoint == "" {
		cfg.WeatherEndpoint = "https://api.openweathermap.org/data/2.5/weather"
	}
	if cfg.GeocodeEndpoint == "" {
		cfg.GeocodeEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Weather returns a one-line current conditions summary for a location.
func (c *Client) Weather(ctx context.Context, location string) (string, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.cfg.OpenWeatherKey)
	q.Set("units", "metric")

	var data struct {
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
	}
	if err := c.getJSON(ctx, c.cfg.WeatherEndpoint+"?"+q.Encode(), &data); err != nil {
		return "", fmt.Errorf("weather lookup: %w", err)
	}
	if len(data.Weather) == 0 {
		return "", fmt.Errorf("weather lookup: no conditions for %q", location)
	}
	return fmt.Sprintf("Weather in %s: %s, %.0f°C.", location, data.Weather[0].Description, data.Main.Temp), nil
}

// Geocode resolves an address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (string, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.cfg.MapsKey)

	loc, _, err := c.geocode(ctx, q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Coordinates: %f,%f", loc.Lat, loc.Lng), nil
}

// ReverseGeocode resolves coordinates to a formatted address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", lat, lng))
	q.Set("key", c.cfg.MapsKey)

	_, addr, err := c.geocode(ctx, q)
	if err != nil {
		return "", err
	}
	return addr, nil
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c *Client) geocode(ctx context.Context, q url.Values) (latLng, string, error) {
	var data struct {
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location latLng `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, c.cfg.GeocodeEndpoint+"?"+q.Encode(), &data); err != nil {
		return latLng{}, "", fmt.Errorf("geocoding: %w", err)
	}
	if len(data.Results) == 0 {
		return latLng{}, "", fmt.Errorf("geocoding: no results")
	}
	r := data.Results[0]
	return r.Geometry.Location, r.FormattedAddress, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
