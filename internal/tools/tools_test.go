package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, weather, geocode http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	if weather != nil {
		mux.HandleFunc("/weather", weather)
	}
	if geocode != nil {
		mux.HandleFunc("/geocode", geocode)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		OpenWeatherKey:  "test-key",
		MapsKey:         "test-key",
		WeatherEndpoint: srv.URL + "/weather",
		GeocodeEndpoint: srv.URL + "/geocode",
	}, zap.NewNop())
}

func TestWeather(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Boston" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("units"); got != "metric" {
			t.Errorf("units = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"weather": []map[string]string{{"description": "light rain"}},
			"main":    map[string]float64{"temp": 17.6},
		})
	}, nil)

	out, err := c.Weather(context.Background(), "Boston")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Weather in Boston: light rain, 18°C." {
		t.Errorf("out = %q", out)
	}
}

func TestWeatherNoConditions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"weather": []interface{}{}})
	}, nil)

	if _, err := c.Weather(context.Background(), "Nowhere"); err == nil {
		t.Fatal("expected error for empty conditions")
	}
}

func TestWeatherUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, nil)

	_, err := c.Weather(context.Background(), "Boston")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v", err)
	}
}

func geocodeResponse() map[string]interface{} {
	return map[string]interface{}{
		"results": []map[string]interface{}{{
			"formatted_address": "1 Main St, Springfield",
			"geometry": map[string]interface{}{
				"location": map[string]float64{"lat": 42.1, "lng": -72.5},
			},
		}},
	}
}

func TestGeocode(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("address"); got != "1 Main St" {
			t.Errorf("address = %q", got)
		}
		json.NewEncoder(w).Encode(geocodeResponse())
	})

	out, err := c.Geocode(context.Background(), "1 Main St")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "42.1") {
		t.Errorf("out = %q", out)
	}
}

func TestReverseGeocode(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("latlng"); !strings.HasPrefix(got, "42.1") {
			t.Errorf("latlng = %q", got)
		}
		json.NewEncoder(w).Encode(geocodeResponse())
	})

	out, err := c.ReverseGeocode(context.Background(), 42.1, -72.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1 Main St, Springfield" {
		t.Errorf("out = %q", out)
	}
}

func TestGeocodeNoResults(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	})

	if _, err := c.Geocode(context.Background(), "nowhere"); err == nil {
		t.Fatal("expected error for no results")
	}
}
