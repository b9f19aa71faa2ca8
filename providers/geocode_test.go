package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ekadashi.app/config"
	"ekadashi.app/providers/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGeocodeProvider_ReverseGeocode(t *testing.T) {
	t.Run("PicksCityFromResponse", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/reverse", r.URL.Path)
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"somewhere","address":{"city":"New Delhi"}}`))
		}))
		defer server.Close()

		provider := NewHTTPGeocodeProvider(&config.GeocodeConfig{BaseURL: server.URL, Timeout: time.Second})
		name, err := provider.ReverseGeocode(context.Background(), 28.6139, 77.2090)
		require.NoError(t, err)
		assert.Equal(t, "New Delhi", name)
	})

	t.Run("FallsThroughAddressFields", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"address":{"village":"Vrindavan"}}`))
		}))
		defer server.Close()

		provider := NewHTTPGeocodeProvider(&config.GeocodeConfig{BaseURL: server.URL, Timeout: time.Second})
		name, err := provider.ReverseGeocode(context.Background(), 27.5806, 77.7006)
		require.NoError(t, err)
		assert.Equal(t, "Vrindavan", name)
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		provider := NewHTTPGeocodeProvider(&config.GeocodeConfig{BaseURL: server.URL, Timeout: time.Second})
		_, err := provider.ReverseGeocode(context.Background(), 0, 0)
		assert.Error(t, err)
	})

	t.Run("EmptyResponse", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"address":{}}`))
		}))
		defer server.Close()

		provider := NewHTTPGeocodeProvider(&config.GeocodeConfig{BaseURL: server.URL, Timeout: time.Second})
		_, err := provider.ReverseGeocode(context.Background(), 0, 0)
		assert.Error(t, err)
	})

	t.Run("UnconfiguredEndpoint", func(t *testing.T) {
		provider := NewHTTPGeocodeProvider(&config.GeocodeConfig{Timeout: time.Second})
		_, err := provider.ReverseGeocode(context.Background(), 0, 0)
		assert.Error(t, err)
	})
}

func TestStaticGeocodeProvider_NearestKnownPoint(t *testing.T) {
	provider := NewStaticGeocodeProvider(50)

	tests := []struct {
		name     string
		lat, lng float64
		expected string
	}{
		{"ExactDelhi", 28.6139, 77.2090, "New Delhi"},
		{"NearDelhi", 28.70, 77.10, "New Delhi"},
		{"DeviceFarmDefault", 37.4220, -122.0841, "Mountain View"},
		{"NearChicago", 41.90, -87.65, "Chicago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := provider.ReverseGeocode(context.Background(), tt.lat, tt.lng)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, name)
		})
	}

	t.Run("BeyondRadius", func(t *testing.T) {
		_, err := provider.ReverseGeocode(context.Background(), 51.5074, -0.1278)
		assert.Error(t, err)
	})
}

// failingGeocoder always errors, standing in for an unreachable endpoint
type failingGeocoder struct{}

func (failingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (string, error) {
	return "", assert.AnError
}

func TestCityResolver_FallbackOrder(t *testing.T) {
	t.Run("LiveFailure_UsesStaticTable", func(t *testing.T) {
		resolver := NewCityResolver(failingGeocoder{}, NewStaticGeocodeProvider(50), nil, time.Hour, nil)
		assert.Equal(t, "Mumbai", resolver.ResolveCityName(context.Background(), 19.0760, 72.8777))
	})

	t.Run("BothFail_ReturnsUnknown", func(t *testing.T) {
		resolver := NewCityResolver(failingGeocoder{}, failingGeocoder{}, nil, time.Hour, nil)
		assert.Equal(t, UnknownCity, resolver.ResolveCityName(context.Background(), 51.5074, -0.1278))
	})
}

func TestCityResolver_CachesResolvedLabels(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"address":{"city":"Seattle"}}`))
	}))
	defer server.Close()

	live := NewHTTPGeocodeProvider(&config.GeocodeConfig{BaseURL: server.URL, Timeout: time.Second})
	resolver := NewCityResolver(live, nil, cache.NewMemoryCache(), time.Hour, nil)

	ctx := context.Background()
	assert.Equal(t, "Seattle", resolver.ResolveCityName(ctx, 47.6062, -122.3321))
	assert.Equal(t, "Seattle", resolver.ResolveCityName(ctx, 47.6062, -122.3321))
	assert.Equal(t, 1, calls)

	// Nearby coordinates round onto the same cache entry
	assert.Equal(t, "Seattle", resolver.ResolveCityName(ctx, 47.6059, -122.3318))
	assert.Equal(t, 1, calls)
}

func TestCityResolver_NeverCachesUnknown(t *testing.T) {
	memCache := cache.NewMemoryCache()
	resolver := NewCityResolver(failingGeocoder{}, failingGeocoder{}, memCache, time.Hour, nil)

	ctx := context.Background()
	assert.Equal(t, UnknownCity, resolver.ResolveCityName(ctx, 0, 0))

	_, found := memCache.Get(ctx, cacheKey(0, 0))
	assert.False(t, found)
}
