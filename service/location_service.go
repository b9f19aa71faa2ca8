package service

import (
	"context"
	"log/slog"
	"time"

	"ekadashi.app/config"
	apperrors "ekadashi.app/errors"
	"ekadashi.app/metrics"
	"ekadashi.app/models"
	"ekadashi.app/providers"
	"ekadashi.app/timezone"
)

// LocationOutcome is the tag of the sealed location result. Consumers switch
// over it exhaustively.
type LocationOutcome string

const (
	LocationSuccess          LocationOutcome = "success"
	LocationPermissionDenied LocationOutcome = "permission_denied"
	LocationServicesDisabled LocationOutcome = "services_disabled"
	LocationNoLocation       LocationOutcome = "no_location"
)

// LocationResult is the typed outcome of a resolution attempt. Location is
// set only for LocationSuccess.
type LocationResult struct {
	Outcome  LocationOutcome           `json:"outcome"`
	Location *models.ResolvedLocation `json:"location,omitempty"`
}

// LocationCacheStore is the persistence boundary the resolver needs
type LocationCacheStore interface {
	GetCachedLocation() (*models.ResolvedLocation, error)
	SaveLocation(location *models.ResolvedLocation) error
	Clear() error
}

// CityLabeler resolves a best-effort place label; never fails
type CityLabeler interface {
	ResolveCityName(ctx context.Context, lat, lng float64) string
}

// LocationService resolves a best-effort location through the staged fallback
// cascade and maps it to a timezone bucket. It holds no mutable state beyond
// last-write-wins cache overwrites, so concurrent calls are safe.
type LocationService struct {
	fused           providers.PositioningProvider
	chain           providers.LocationChain
	cache           LocationCacheStore
	cityResolver    CityLabeler
	freshnessWindow time.Duration
	metrics         *metrics.ResolutionMetrics
	now             func() time.Time
}

// NewLocationService assembles the resolution cascade in its documented
// order: fresh fix, active legacy update, legacy last-known, fused last-known,
// persisted cache, home base.
func NewLocationService(
	fused providers.PositioningProvider,
	legacy providers.PositioningProvider,
	cache LocationCacheStore,
	cityResolver CityLabeler,
	cfg *config.LocationConfig,
	resolutionMetrics *metrics.ResolutionMetrics,
) *LocationService {
	chain := providers.NewChainBuilder().
		AddStage(providers.NewBaseLocationStage(
			providers.NewFreshFixSource(fused, cfg.FreshFixTimeout), "fresh_fix", resolutionMetrics)).
		AddStage(providers.NewBaseLocationStage(
			providers.NewActiveUpdateSource(legacy, cfg.ActiveTimeout), "active_update", resolutionMetrics)).
		AddStage(providers.NewBaseLocationStage(
			providers.NewLastKnownSource(legacy), "legacy_last_known", resolutionMetrics)).
		AddStage(providers.NewBaseLocationStage(
			providers.NewLastKnownSource(fused), "fused_last_known", resolutionMetrics)).
		AddStage(providers.NewBaseLocationStage(
			providers.NewCachedLocationSource(cache), "persisted_cache", resolutionMetrics)).
		AddStage(providers.NewBaseLocationStage(
			providers.NewHomeBaseSource(cfg.HomeBaseEnabled, cfg.HomeBaseLat, cfg.HomeBaseLng),
			"home_base", resolutionMetrics)).
		Build()

	return &LocationService{
		fused:           fused,
		chain:           chain,
		cache:           cache,
		cityResolver:    cityResolver,
		freshnessWindow: cfg.FreshnessWindow,
		metrics:         resolutionMetrics,
		now:             time.Now,
	}
}

// ResolveCurrentLocation runs the full resolution flow. All positioning and
// geocoding failures are absorbed into the typed result; nothing escapes as
// an error across this boundary except infrastructure faults from the cache
// store, which degrade to the NoLocation outcome.
func (s *LocationService) ResolveCurrentLocation(ctx context.Context) *LocationResult {
	result := s.resolve(ctx)
	s.metrics.RecordResolution(string(result.Outcome))
	return result
}

func (s *LocationService) resolve(ctx context.Context) *LocationResult {
	granted, err := s.fused.PermissionGranted(ctx)
	if err != nil {
		// A status probe failure is not a denial; proceed and let the
		// cascade sort it out.
		slog.Warn("permission probe failed, continuing", "error", err)
	} else if !granted {
		return &LocationResult{Outcome: LocationPermissionDenied}
	}

	enabled, err := s.fused.ServiceEnabled(ctx)
	if err != nil {
		slog.Warn("service-enabled probe failed, continuing", "error", err)
	} else if !enabled {
		if cached := s.cachedLocation(); cached != nil {
			return &LocationResult{Outcome: LocationSuccess, Location: cached}
		}
		return &LocationResult{Outcome: LocationServicesDisabled}
	}

	// Fast path: a cache entry inside the freshness window is served without
	// touching the positioning hardware.
	if cached := s.cachedLocation(); cached != nil && s.now().Sub(cached.CapturedAt) < s.freshnessWindow {
		return &LocationResult{Outcome: LocationSuccess, Location: cached}
	}

	fix, err := s.chain.Resolve(ctx)
	if err != nil {
		slog.Info("location cascade exhausted", "error", err)
		if apperrors.IsType(err, apperrors.PermissionDeniedError) {
			return &LocationResult{Outcome: LocationPermissionDenied}
		}
		return &LocationResult{Outcome: LocationNoLocation}
	}

	location := s.buildResolvedLocation(ctx, fix)

	// Only fresh fixes overwrite the persisted cache; serving the cache back
	// to itself would just refresh its timestamp.
	if fix.Source != "cache" {
		if err := s.cache.SaveLocation(location); err != nil {
			slog.Error("failed to persist resolved location", "error", err)
		}
	}

	return &LocationResult{Outcome: LocationSuccess, Location: location}
}

func (s *LocationService) buildResolvedLocation(ctx context.Context, fix *models.Fix) *models.ResolvedLocation {
	capturedAt := fix.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = s.now()
	}

	return &models.ResolvedLocation{
		Latitude:       fix.Latitude,
		Longitude:      fix.Longitude,
		CityName:       s.cityResolver.ResolveCityName(ctx, fix.Latitude, fix.Longitude),
		TimezoneBucket: timezone.BucketFromCoordinates(fix.Latitude, fix.Longitude),
		CapturedAt:     capturedAt,
	}
}

func (s *LocationService) cachedLocation() *models.ResolvedLocation {
	cached, err := s.cache.GetCachedLocation()
	if err != nil {
		slog.Error("failed to read location cache", "error", err)
		return nil
	}
	return cached
}

// GetCachedLocation exposes the persisted cache for display paths
func (s *LocationService) GetCachedLocation() (*models.ResolvedLocation, error) {
	return s.cache.GetCachedLocation()
}

// ClearCache removes the persisted location; user-initiated only
func (s *LocationService) ClearCache() error {
	return s.cache.Clear()
}

// BucketFromDeviceTimezone maps a device timezone identifier to a bucket.
// Used when the user has denied location permission entirely.
func (s *LocationService) BucketFromDeviceTimezone(id string) models.TimezoneBucket {
	return timezone.BucketFromDeviceTimezoneID(id)
}
