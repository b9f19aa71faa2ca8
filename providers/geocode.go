package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"ekadashi.app/config"
	"ekadashi.app/errors"
	"ekadashi.app/metrics"
)

// UnknownCity is the sentinel label used when no geocode source can name the
// place. Always a valid terminal state, never an error.
const UnknownCity = "Unknown"

// HTTPGeocodeProvider performs live reverse geocoding against a
// Nominatim-style endpoint.
type HTTPGeocodeProvider struct {
	baseURL string
	client  *http.Client
}

type reverseGeocodeResponse struct {
	Name    string `json:"name"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
	} `json:"address"`
}

// NewHTTPGeocodeProvider creates a live reverse-geocode provider
func NewHTTPGeocodeProvider(cfg *config.GeocodeConfig) *HTTPGeocodeProvider {
	return &HTTPGeocodeProvider{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// ReverseGeocode looks up a place label for the coordinates
func (p *HTTPGeocodeProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if p.baseURL == "" {
		return "", errors.NewGeocodeUnavailableError("no geocode endpoint configured", nil)
	}

	url := fmt.Sprintf("%s/reverse?lat=%f&lon=%f&format=json", p.baseURL, lat, lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NewGeocodeUnavailableError("build geocode request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.NewGeocodeUnavailableError("geocode request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewGeocodeUnavailableError(
			fmt.Sprintf("geocode endpoint returned status code %d", resp.StatusCode), nil)
	}

	var payload reverseGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.NewGeocodeUnavailableError("failed to decode geocode response", err)
	}

	for _, candidate := range []string{payload.Address.City, payload.Address.Town,
		payload.Address.Village, payload.Address.County, payload.Name} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", errors.NewGeocodeUnavailableError("geocode response carried no place name", nil)
}

// knownPoint is one reference coordinate in the static fallback table
type knownPoint struct {
	name     string
	lat, lng float64
}

// Reference coordinates covering the supported buckets plus the device-farm
// default coordinate reported by virtualized test devices.
var knownPoints = []knownPoint{
	{"New Delhi", 28.6139, 77.2090},
	{"Mumbai", 19.0760, 72.8777},
	{"Vrindavan", 27.5806, 77.7006},
	{"Kolkata", 22.5726, 88.3639},
	{"New York", 40.7128, -74.0060},
	{"Atlanta", 33.7490, -84.3880},
	{"Chicago", 41.8781, -87.6298},
	{"Dallas", 32.7767, -96.7970},
	{"Denver", 39.7392, -104.9903},
	{"Phoenix", 33.4484, -112.0740},
	{"Los Angeles", 34.0522, -118.2437},
	{"San Jose", 37.3382, -121.8863},
	{"Mountain View", 37.4220, -122.0841},
	{"Seattle", 47.6062, -122.3321},
}

const earthRadiusKm = 6371.0

// haversineKm returns the great-circle distance between two coordinates
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// StaticGeocodeProvider resolves labels from the fixed nearest-known-point
// table within a bounded search radius.
type StaticGeocodeProvider struct {
	radiusKm float64
}

// NewStaticGeocodeProvider creates the static fallback geocode provider
func NewStaticGeocodeProvider(radiusKm float64) *StaticGeocodeProvider {
	return &StaticGeocodeProvider{radiusKm: radiusKm}
}

// ReverseGeocode finds the nearest reference point within the search radius
func (p *StaticGeocodeProvider) ReverseGeocode(_ context.Context, lat, lng float64) (string, error) {
	best := ""
	bestDistance := p.radiusKm
	for _, point := range knownPoints {
		distance := haversineKm(lat, lng, point.lat, point.lng)
		if distance <= bestDistance {
			best = point.name
			bestDistance = distance
		}
	}
	if best == "" {
		return "", errors.NewGeocodeUnavailableError(
			fmt.Sprintf("no known point within %.0f km", p.radiusKm), nil)
	}
	return best, nil
}

// CityResolver combines the live provider, the static table and a result
// cache. Failures never escape: the terminal fallback is the Unknown label.
type CityResolver struct {
	live     GeocodeProvider
	fallback GeocodeProvider
	cache    Cache
	cacheTTL time.Duration
	metrics  *metrics.CacheMetrics
}

// NewCityResolver creates a best-effort place-label resolver
func NewCityResolver(live, fallback GeocodeProvider, resultCache Cache, cacheTTL time.Duration, cacheMetrics *metrics.CacheMetrics) *CityResolver {
	return &CityResolver{
		live:     live,
		fallback: fallback,
		cache:    resultCache,
		cacheTTL: cacheTTL,
		metrics:  cacheMetrics,
	}
}

// ResolveCityName returns the best label for the coordinates, never an error
func (r *CityResolver) ResolveCityName(ctx context.Context, lat, lng float64) string {
	key := cacheKey(lat, lng)
	if r.cache != nil {
		if data, ok := r.cache.Get(ctx, key); ok {
			r.metrics.RecordHit()
			return string(data)
		}
		r.metrics.RecordMiss()
	}

	name := r.lookup(ctx, lat, lng)

	if r.cache != nil && name != UnknownCity {
		r.cache.Set(ctx, key, []byte(name), r.cacheTTL)
	}
	return name
}

func (r *CityResolver) lookup(ctx context.Context, lat, lng float64) string {
	if r.live != nil {
		name, err := r.live.ReverseGeocode(ctx, lat, lng)
		if err == nil {
			return name
		}
		slog.Info("live geocode failed, trying static table", "error", err)
	}

	if r.fallback != nil {
		name, err := r.fallback.ReverseGeocode(ctx, lat, lng)
		if err == nil {
			return name
		}
		slog.Info("static geocode found no match", "error", err)
	}

	return UnknownCity
}

// cacheKey rounds coordinates to ~1 km so nearby fixes share entries
func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("geocode:%.2f:%.2f", lat, lng)
}
