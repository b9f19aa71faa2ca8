package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ekadashi.app/errors"
	"ekadashi.app/models"
)

// HTTPPositioningAgent implements PositioningProvider against a positioning
// agent exposing fix, last-known and status endpoints. The fused and legacy
// providers are two agent instances with different base URLs.
type HTTPPositioningAgent struct {
	name         string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

type agentFixResponse struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	CapturedAt time.Time `json:"captured_at"`
}

type agentStatusResponse struct {
	PermissionGranted bool `json:"permission_granted"`
	ServiceEnabled    bool `json:"service_enabled"`
}

// NewHTTPPositioningAgent creates a positioning provider for the given agent URL
func NewHTTPPositioningAgent(name, baseURL string) *HTTPPositioningAgent {
	return &HTTPPositioningAgent{
		name:         name,
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 60 * time.Second},
		pollInterval: 2 * time.Second,
	}
}

// Name returns the provider's identifier for logs and fix sources
func (a *HTTPPositioningAgent) Name() string {
	return a.name
}

// CurrentFix actively requests a single fresh fix from the agent
func (a *HTTPPositioningAgent) CurrentFix(ctx context.Context, highAccuracy bool) (*models.Fix, error) {
	accuracy := "balanced"
	if highAccuracy {
		accuracy = "high"
	}
	return a.fetchFix(ctx, fmt.Sprintf("%s/v1/fix?accuracy=%s", a.baseURL, accuracy))
}

// LastKnownFix queries the agent's most recent cached fix without waiting
func (a *HTTPPositioningAgent) LastKnownFix(ctx context.Context) (*models.Fix, error) {
	return a.fetchFix(ctx, fmt.Sprintf("%s/v1/last-known", a.baseURL))
}

func (a *HTTPPositioningAgent) fetchFix(ctx context.Context, url string) (*models.Fix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewExternalAPIError("build positioning request", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewTimeoutError("positioning request timed out", err)
		}
		return nil, errors.NewExternalAPIError("positioning request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewNoLocationError("no fix available from provider")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalAPIError(
			fmt.Sprintf("positioning agent returned status code %d", resp.StatusCode), nil)
	}

	var payload agentFixResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.NewExternalAPIError("failed to decode positioning response", err)
	}

	capturedAt := payload.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	return &models.Fix{
		Latitude:   payload.Latitude,
		Longitude:  payload.Longitude,
		Accuracy:   payload.Accuracy,
		CapturedAt: capturedAt,
		Source:     a.name,
	}, nil
}

// PermissionGranted reports whether the agent holds location permission
func (a *HTTPPositioningAgent) PermissionGranted(ctx context.Context) (bool, error) {
	status, err := a.fetchStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.PermissionGranted, nil
}

// ServiceEnabled reports whether the positioning subsystem is switched on
func (a *HTTPPositioningAgent) ServiceEnabled(ctx context.Context) (bool, error) {
	status, err := a.fetchStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.ServiceEnabled, nil
}

func (a *HTTPPositioningAgent) fetchStatus(ctx context.Context) (*agentStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/status", a.baseURL), nil)
	if err != nil {
		return nil, errors.NewExternalAPIError("build status request", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.NewExternalAPIError("status request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalAPIError(
			fmt.Sprintf("positioning agent returned status code %d", resp.StatusCode), nil)
	}

	var payload agentStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.NewExternalAPIError("failed to decode status response", err)
	}
	return &payload, nil
}

// agentSubscription polls the agent for updates until unsubscribed
type agentSubscription struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (s *agentSubscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Subscribe starts a continuous-update listener delivering each fix to the
// handler. The listener keeps running until Unsubscribe is called; dropping
// the subscription without unsubscribing leaks the polling goroutine.
func (a *HTTPPositioningAgent) Subscribe(handler func(models.Fix)) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &agentSubscription{cancel: cancel}

	go func() {
		ticker := time.NewTicker(a.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fix, err := a.CurrentFix(ctx, false)
				if err != nil {
					continue
				}
				handler(*fix)
			}
		}
	}()

	return sub, nil
}

// UnavailableProvider is used when no agent URL is configured. Every call
// reports the subsystem as absent, pushing the cascade to its fallbacks.
type UnavailableProvider struct {
	name string
}

// NewUnavailableProvider creates a provider stand-in for a missing agent
func NewUnavailableProvider(name string) *UnavailableProvider {
	return &UnavailableProvider{name: name}
}

func (p *UnavailableProvider) Name() string { return p.name }

func (p *UnavailableProvider) CurrentFix(_ context.Context, _ bool) (*models.Fix, error) {
	return nil, errors.NewServicesDisabledError("positioning provider not configured")
}

func (p *UnavailableProvider) LastKnownFix(_ context.Context) (*models.Fix, error) {
	return nil, errors.NewNoLocationError("positioning provider not configured")
}

func (p *UnavailableProvider) Subscribe(_ func(models.Fix)) (Subscription, error) {
	return nil, errors.NewServicesDisabledError("positioning provider not configured")
}

func (p *UnavailableProvider) PermissionGranted(_ context.Context) (bool, error) {
	// Absence of an agent is not a permission problem; report granted so the
	// cascade proceeds to cache and home-base fallbacks.
	return true, nil
}

func (p *UnavailableProvider) ServiceEnabled(_ context.Context) (bool, error) {
	// Same reasoning as PermissionGranted: let the cascade run its fallbacks
	// instead of short-circuiting to a disabled outcome.
	return true, nil
}
