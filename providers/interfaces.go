package providers

import (
	"context"

	"ekadashi.app/models"
	"ekadashi.app/providers/cache"
)

// PositioningProvider defines the boundary contract to a positioning source
type PositioningProvider interface {
	// CurrentFix actively requests a single fresh fix, honoring ctx deadlines
	CurrentFix(ctx context.Context, highAccuracy bool) (*models.Fix, error)
	// LastKnownFix queries the most recent cached fix without waiting
	LastKnownFix(ctx context.Context) (*models.Fix, error)
	// Subscribe registers a continuous-update listener; the returned
	// subscription must be unsubscribed to release the listener
	Subscribe(handler func(models.Fix)) (Subscription, error)
	// PermissionGranted reports whether location permission is granted
	PermissionGranted(ctx context.Context) (bool, error)
	// ServiceEnabled reports whether the positioning subsystem is on
	ServiceEnabled(ctx context.Context) (bool, error)
	Name() string
}

// Subscription is a handle to an active positioning listener
type Subscription interface {
	Unsubscribe()
}

// FixSource produces a single positioning fix for one cascade stage
type FixSource interface {
	GetFix(ctx context.Context) (*models.Fix, error)
}

// LocationChain defines the interface for the Chain of Responsibility over
// cascade stages
type LocationChain interface {
	Resolve(ctx context.Context) (*models.Fix, error)
	SetNext(stage LocationChain)
	StageName() string
}

// GeocodeProvider turns coordinates into a human-readable place label
type GeocodeProvider interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Notifier presents a notification to the user
type Notifier interface {
	Send(ctx context.Context, notification *models.Notification) error
	Name() string
}

// Cache is an alias to avoid circular imports
type Cache = cache.GenericCacheInterface
