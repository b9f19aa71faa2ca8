package providers

import (
	"context"
	"testing"
	"time"

	apperrors "ekadashi.app/errors"
	"ekadashi.app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFixSource returns a canned fix or error and counts calls
type fakeFixSource struct {
	fix   *models.Fix
	err   error
	calls int
}

func (f *fakeFixSource) GetFix(_ context.Context) (*models.Fix, error) {
	f.calls++
	return f.fix, f.err
}

func TestChain_FirstSuccessShortCircuits(t *testing.T) {
	first := &fakeFixSource{fix: &models.Fix{Latitude: 1, Longitude: 2, Source: "first"}}
	second := &fakeFixSource{fix: &models.Fix{Latitude: 3, Longitude: 4, Source: "second"}}

	chain := NewChainBuilder().
		AddStage(NewBaseLocationStage(first, "first", nil)).
		AddStage(NewBaseLocationStage(second, "second", nil)).
		Build()

	fix, err := chain.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", fix.Source)
	assert.Equal(t, 0, second.calls)
}

func TestChain_CascadesPastFailures(t *testing.T) {
	first := &fakeFixSource{err: assert.AnError}
	second := &fakeFixSource{err: assert.AnError}
	third := &fakeFixSource{fix: &models.Fix{Source: "third"}}

	chain := NewChainBuilder().
		AddStage(NewBaseLocationStage(first, "first", nil)).
		AddStage(NewBaseLocationStage(second, "second", nil)).
		AddStage(NewBaseLocationStage(third, "third", nil)).
		Build()

	fix, err := chain.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "third", fix.Source)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestChain_LastStageErrorSurfaces(t *testing.T) {
	last := &fakeFixSource{err: apperrors.NewNoLocationError("nothing")}

	chain := NewChainBuilder().
		AddStage(NewBaseLocationStage(&fakeFixSource{err: assert.AnError}, "first", nil)).
		AddStage(NewBaseLocationStage(last, "last", nil)).
		Build()

	_, err := chain.Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.NoLocationError))
}

func TestChain_CancelledContextStopsCascade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	first := &fakeFixSource{err: assert.AnError}
	second := &fakeFixSource{fix: &models.Fix{Source: "second"}}

	chain := NewChainBuilder().
		AddStage(NewBaseLocationStage(first, "first", nil)).
		AddStage(NewBaseLocationStage(second, "second", nil)).
		Build()

	cancel()
	_, err := chain.Resolve(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TimeoutError))
	assert.Equal(t, 0, second.calls)
}

// subscribingProvider drives the active-update source in tests
type subscribingProvider struct {
	fix          *models.Fix
	subscribeErr error
	unsubscribed bool
}

type recordingSubscription struct {
	provider *subscribingProvider
}

func (s *recordingSubscription) Unsubscribe() {
	s.provider.unsubscribed = true
}

func (p *subscribingProvider) CurrentFix(_ context.Context, _ bool) (*models.Fix, error) {
	return nil, apperrors.NewNoLocationError("not implemented")
}

func (p *subscribingProvider) LastKnownFix(_ context.Context) (*models.Fix, error) {
	return nil, apperrors.NewNoLocationError("not implemented")
}

func (p *subscribingProvider) Subscribe(handler func(models.Fix)) (Subscription, error) {
	if p.subscribeErr != nil {
		return nil, p.subscribeErr
	}
	if p.fix != nil {
		go handler(*p.fix)
	}
	return &recordingSubscription{provider: p}, nil
}

func (p *subscribingProvider) PermissionGranted(_ context.Context) (bool, error) {
	return true, nil
}

func (p *subscribingProvider) ServiceEnabled(_ context.Context) (bool, error) {
	return true, nil
}

func (p *subscribingProvider) Name() string {
	return "subscribing"
}

func TestActiveUpdateSource_DeliversFirstUpdateAndUnsubscribes(t *testing.T) {
	provider := &subscribingProvider{fix: &models.Fix{Latitude: 19.0760, Longitude: 72.8777}}
	source := NewActiveUpdateSource(provider, time.Second)

	fix, err := source.GetFix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 19.0760, fix.Latitude)
	assert.True(t, provider.unsubscribed)
}

func TestActiveUpdateSource_TimeoutUnsubscribes(t *testing.T) {
	provider := &subscribingProvider{} // never delivers an update
	source := NewActiveUpdateSource(provider, 20*time.Millisecond)

	_, err := source.GetFix(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TimeoutError))
	assert.True(t, provider.unsubscribed)
}

func TestActiveUpdateSource_SubscribeFailure(t *testing.T) {
	provider := &subscribingProvider{subscribeErr: assert.AnError}
	source := NewActiveUpdateSource(provider, time.Second)

	_, err := source.GetFix(context.Background())
	assert.Error(t, err)
}

// staticCacheReader serves a fixed persisted location
type staticCacheReader struct {
	location *models.ResolvedLocation
	err      error
}

func (r *staticCacheReader) GetCachedLocation() (*models.ResolvedLocation, error) {
	return r.location, r.err
}

func TestCachedLocationSource_ServesAnyStaleness(t *testing.T) {
	capturedAt := time.Now().Add(-30 * 24 * time.Hour)
	source := NewCachedLocationSource(&staticCacheReader{location: &models.ResolvedLocation{
		Latitude: 40.7128, Longitude: -74.0060, CapturedAt: capturedAt,
	}})

	fix, err := source.GetFix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cache", fix.Source)
	assert.True(t, capturedAt.Equal(fix.CapturedAt))
}

func TestCachedLocationSource_EmptyCache(t *testing.T) {
	source := NewCachedLocationSource(&staticCacheReader{})
	_, err := source.GetFix(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.NoLocationError))
}

func TestHomeBaseSource(t *testing.T) {
	t.Run("Enabled_ServesConfiguredCoordinate", func(t *testing.T) {
		source := NewHomeBaseSource(true, 28.6139, 77.2090)
		fix, err := source.GetFix(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 28.6139, fix.Latitude)
		assert.Equal(t, "home_base", fix.Source)
	})

	t.Run("Disabled_Errors", func(t *testing.T) {
		source := NewHomeBaseSource(false, 0, 0)
		_, err := source.GetFix(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.NoLocationError))
	})
}
