package providers

import (
	"context"
	"log/slog"
	"time"

	"ekadashi.app/errors"
	"ekadashi.app/metrics"
	"ekadashi.app/models"
)

// BaseLocationStage links one fix source into the resolution cascade. A stage
// that fails hands the request to the next stage; the last stage's error is
// returned as-is so the caller sees why the cascade bottomed out.
type BaseLocationStage struct {
	next      LocationChain
	source    FixSource
	stageName string
	recorder  *metrics.ResolutionMetrics
}

// NewBaseLocationStage creates a cascade stage around a fix source
func NewBaseLocationStage(source FixSource, stageName string, recorder *metrics.ResolutionMetrics) *BaseLocationStage {
	return &BaseLocationStage{
		source:    source,
		stageName: stageName,
		recorder:  recorder,
	}
}

// Resolve attempts this stage's source and cascades on failure
func (s *BaseLocationStage) Resolve(ctx context.Context) (*models.Fix, error) {
	if s.source != nil {
		fix, err := s.source.GetFix(ctx)
		if err == nil {
			s.recorder.RecordStage(s.stageName, "success")
			return fix, nil
		}

		s.recorder.RecordStage(s.stageName, "failure")
		slog.Info("location stage failed", "stage", s.stageName, "error", err)

		// Caller cancellation stops the cascade outright; later stages would
		// only race a dead context.
		if ctx.Err() != nil {
			return nil, errors.NewTimeoutError("location resolution cancelled", ctx.Err())
		}

		if s.next == nil {
			return nil, err
		}
	}

	if s.next != nil {
		return s.next.Resolve(ctx)
	}

	return nil, errors.NewNoLocationError("all location stages exhausted")
}

// SetNext links the following cascade stage
func (s *BaseLocationStage) SetNext(stage LocationChain) {
	s.next = stage
}

// StageName returns the stage's identifier for logs and metrics
func (s *BaseLocationStage) StageName() string {
	return s.stageName
}

// ChainBuilder assembles cascade stages in declaration order
type ChainBuilder struct {
	stages []LocationChain
}

// NewChainBuilder creates an empty cascade builder
func NewChainBuilder() *ChainBuilder {
	return &ChainBuilder{
		stages: make([]LocationChain, 0),
	}
}

// AddStage appends a stage to the cascade
func (cb *ChainBuilder) AddStage(stage LocationChain) *ChainBuilder {
	cb.stages = append(cb.stages, stage)
	return cb
}

// Build links the stages and returns the cascade head
func (cb *ChainBuilder) Build() LocationChain {
	if len(cb.stages) == 0 {
		return nil
	}

	for i := 0; i < len(cb.stages)-1; i++ {
		cb.stages[i].SetNext(cb.stages[i+1])
	}

	return cb.stages[0]
}

// freshFixSource requests a single fresh high-accuracy fix with a bounded
// timeout. The primary cascade stage.
type freshFixSource struct {
	provider PositioningProvider
	timeout  time.Duration
}

// NewFreshFixSource creates the primary-stage fix source
func NewFreshFixSource(provider PositioningProvider, timeout time.Duration) FixSource {
	return &freshFixSource{provider: provider, timeout: timeout}
}

func (s *freshFixSource) GetFix(ctx context.Context) (*models.Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.provider.CurrentFix(ctx, true)
}

// activeUpdateSource wraps a provider's continuous-update subscription into a
// single-shot wait with a short bound. The subscription is always released,
// whether a fix arrives, the timeout fires, or the caller cancels; dropping
// that release would leak the listener.
type activeUpdateSource struct {
	provider PositioningProvider
	timeout  time.Duration
}

// NewActiveUpdateSource creates the secondary-stage fix source
func NewActiveUpdateSource(provider PositioningProvider, timeout time.Duration) FixSource {
	return &activeUpdateSource{provider: provider, timeout: timeout}
}

func (s *activeUpdateSource) GetFix(ctx context.Context) (*models.Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	updates := make(chan models.Fix, 1)
	sub, err := s.provider.Subscribe(func(fix models.Fix) {
		select {
		case updates <- fix:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	select {
	case fix := <-updates:
		return &fix, nil
	case <-ctx.Done():
		return nil, errors.NewTimeoutError("no update before deadline", ctx.Err())
	}
}

// lastKnownSource queries a provider's last known fix with no active wait
type lastKnownSource struct {
	provider PositioningProvider
}

// NewLastKnownSource creates a last-known-fix source for a provider
func NewLastKnownSource(provider PositioningProvider) FixSource {
	return &lastKnownSource{provider: provider}
}

func (s *lastKnownSource) GetFix(ctx context.Context) (*models.Fix, error) {
	return s.provider.LastKnownFix(ctx)
}

// CachedLocationReader exposes the persisted location cache to the cascade
type CachedLocationReader interface {
	GetCachedLocation() (*models.ResolvedLocation, error)
}

// cachedLocationSource serves the persisted cache regardless of staleness. A
// stale cache beats no data; staleness is informational only at this depth.
type cachedLocationSource struct {
	reader CachedLocationReader
}

// NewCachedLocationSource creates the emergency cache source
func NewCachedLocationSource(reader CachedLocationReader) FixSource {
	return &cachedLocationSource{reader: reader}
}

func (s *cachedLocationSource) GetFix(_ context.Context) (*models.Fix, error) {
	cached, err := s.reader.GetCachedLocation()
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, errors.NewNoLocationError("no cached location")
	}
	return &models.Fix{
		Latitude:   cached.Latitude,
		Longitude:  cached.Longitude,
		CapturedAt: cached.CapturedAt,
		Source:     "cache",
	}, nil
}

// homeBaseSource serves a fixed configured coordinate, reserved for
// environments with structurally no positioning capability (virtual devices,
// CI). Disabled via configuration in real deployments that prefer a hard
// NoLocation failure.
type homeBaseSource struct {
	enabled  bool
	lat, lng float64
}

// NewHomeBaseSource creates the terminal hardcoded-coordinate source
func NewHomeBaseSource(enabled bool, lat, lng float64) FixSource {
	return &homeBaseSource{enabled: enabled, lat: lat, lng: lng}
}

func (s *homeBaseSource) GetFix(_ context.Context) (*models.Fix, error) {
	if !s.enabled {
		return nil, errors.NewNoLocationError("home base fallback disabled")
	}
	return &models.Fix{
		Latitude:   s.lat,
		Longitude:  s.lng,
		CapturedAt: time.Now(),
		Source:     "home_base",
	}, nil
}
