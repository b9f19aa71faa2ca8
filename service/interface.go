package service

import (
	"context"

	"ekadashi.app/models"
)

// LocationServiceInterface defines the location resolution boundary
type LocationServiceInterface interface {
	ResolveCurrentLocation(ctx context.Context) *LocationResult
	GetCachedLocation() (*models.ResolvedLocation, error)
	ClearCache() error
	BucketFromDeviceTimezone(id string) models.TimezoneBucket
}

// NotificationServiceInterface defines the reminder scheduling boundary
type NotificationServiceInterface interface {
	ScheduleForEvent(event *models.FastingEvent, bucket models.TimezoneBucket,
		enabledTypes []models.ReminderType, lang string) (int, error)
	RescheduleAll(bucket models.TimezoneBucket, enabledTypes []models.ReminderType, lang string) int
	CancelAll() error
	CancelForEvent(eventID int) error
	PendingCount() (int64, error)
	ShowImmediate(ctx context.Context, title, body string) error
}

// SettingsServiceInterface defines the preference store boundary
type SettingsServiceInterface interface {
	Get() (*models.UserPreferences, error)
	Update(req *models.PreferencesRequest) (*models.UserPreferences, error)
	SetCurrentBucket(bucket models.TimezoneBucket)
	Reset() (*models.UserPreferences, error)
}

// Compile-time interface checks
var (
	_ LocationServiceInterface     = (*LocationService)(nil)
	_ NotificationServiceInterface = (*NotificationService)(nil)
	_ SettingsServiceInterface     = (*SettingsService)(nil)
)
