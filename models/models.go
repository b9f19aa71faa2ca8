// Package models defines data structures used throughout the application
package models

import (
	"time"
)

// TimezoneBucket identifies one of the five supported timezone buckets
type TimezoneBucket string

const (
	BucketIST TimezoneBucket = "IST"
	BucketEST TimezoneBucket = "EST"
	BucketCST TimezoneBucket = "CST"
	BucketMST TimezoneBucket = "MST"
	BucketPST TimezoneBucket = "PST"

	// DefaultBucket is used whenever classification cannot produce a match
	DefaultBucket = BucketIST
)

// AllBuckets returns every supported bucket in declaration order
func AllBuckets() []TimezoneBucket {
	return []TimezoneBucket{BucketIST, BucketEST, BucketCST, BucketMST, BucketPST}
}

// Valid reports whether b is one of the five supported buckets
func (b TimezoneBucket) Valid() bool {
	switch b {
	case BucketIST, BucketEST, BucketCST, BucketMST, BucketPST:
		return true
	}
	return false
}

// ReminderType identifies one of the four reminder offsets for an event
type ReminderType string

const (
	RemindTwoDaysBefore ReminderType = "two_days_before"
	RemindOneDayBefore  ReminderType = "one_day_before"
	RemindOnStart       ReminderType = "on_start"
	RemindOnParana      ReminderType = "on_parana"
)

// AllReminderTypes returns every reminder type in ordinal order
func AllReminderTypes() []ReminderType {
	return []ReminderType{RemindTwoDaysBefore, RemindOneDayBefore, RemindOnStart, RemindOnParana}
}

// Ordinal returns a stable small integer for the type, used to derive
// deterministic notification identifiers
func (t ReminderType) Ordinal() int {
	switch t {
	case RemindTwoDaysBefore:
		return 0
	case RemindOneDayBefore:
		return 1
	case RemindOnStart:
		return 2
	case RemindOnParana:
		return 3
	}
	return -1
}

// LocalizedText holds the display strings of an event in one language
type LocalizedText struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Story       string `json:"story"`
	Rules       string `json:"rules"`
	Benefits    string `json:"benefits"`
}

// EventTiming holds the absolute instants of an event in one timezone bucket.
// Instants carry the bucket's fixed UTC offset as supplied by the dataset.
type EventTiming struct {
	Date         string    `json:"date"`
	FastingStart time.Time `json:"fasting_start"`
	ParanaStart  time.Time `json:"parana_start"`
	ParanaEnd    time.Time `json:"parana_end"`
}

// FastingEvent represents one ekadashi entry from the immutable dataset
type FastingEvent struct {
	ID     int                            `json:"id"`
	Text   map[string]LocalizedText       `json:"text"`
	Timing map[TimezoneBucket]EventTiming `json:"timing"`
}

// ResolvedLocation is the persisted result of a successful location resolution.
// A single row (the latest resolution) is kept; every fresh success overwrites it.
type ResolvedLocation struct {
	ID             uint           `json:"-" gorm:"primaryKey"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	CityName       string         `json:"city_name"`
	TimezoneBucket TimezoneBucket `json:"timezone_bucket" gorm:"size:8"`
	CapturedAt     time.Time      `json:"captured_at"`
	UpdatedAt      time.Time      `json:"-"`
}

// UserPreferences is the single mutable settings record for the installation
type UserPreferences struct {
	ID                    uint           `json:"-" gorm:"primaryKey"`
	AutoDetectEnabled     bool           `json:"auto_detect_enabled"`
	SelectedCityID        string         `json:"selected_city_id"`
	CurrentTimezoneBucket TimezoneBucket `json:"current_timezone_bucket" gorm:"size:8"`
	NotificationsEnabled  bool           `json:"notifications_enabled"`
	RemindTwoDaysBefore   bool           `json:"remind_two_days_before"`
	RemindOneDayBefore    bool           `json:"remind_one_day_before"`
	RemindOnStart         bool           `json:"remind_on_start"`
	RemindOnParana        bool           `json:"remind_on_parana"`
	CreatedAt             time.Time      `json:"-"`
	UpdatedAt             time.Time      `json:"-"`
}

// DefaultPreferences returns the first-launch preference record
func DefaultPreferences() *UserPreferences {
	return &UserPreferences{
		AutoDetectEnabled:     true,
		CurrentTimezoneBucket: DefaultBucket,
		NotificationsEnabled:  true,
		RemindTwoDaysBefore:   true,
		RemindOneDayBefore:    true,
		RemindOnStart:         true,
		RemindOnParana:        true,
	}
}

// EnabledReminderTypes returns the reminder types currently switched on,
// honoring the master notifications gate
func (p *UserPreferences) EnabledReminderTypes() []ReminderType {
	if !p.NotificationsEnabled {
		return nil
	}
	var types []ReminderType
	if p.RemindTwoDaysBefore {
		types = append(types, RemindTwoDaysBefore)
	}
	if p.RemindOneDayBefore {
		types = append(types, RemindOneDayBefore)
	}
	if p.RemindOnStart {
		types = append(types, RemindOnStart)
	}
	if p.RemindOnParana {
		types = append(types, RemindOnParana)
	}
	return types
}

// ScheduledWork is one durable reminder held by the delayed-execution queue.
// WorkKey is deterministic per (event, reminder type) so re-scheduling replaces
// rather than duplicates.
type ScheduledWork struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	WorkKey        string         `json:"work_key" gorm:"uniqueIndex;not null"`
	Tag            string         `json:"tag" gorm:"index;not null"`
	RunAt          time.Time      `json:"run_at" gorm:"index"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	NotificationID int            `json:"notification_id"`
	Attempts       int            `json:"attempts"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Notification is the payload handed to a notifier at fire time
type Notification struct {
	NotificationID int    `json:"notification_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
}

// Fix is a raw positioning fix as reported by a positioning provider
type Fix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	CapturedAt time.Time `json:"captured_at"`
	Source     string    `json:"source"`
}

// PreferencesRequest represents a settings update from the API; nil fields
// leave the stored value untouched
type PreferencesRequest struct {
	AutoDetectEnabled     *bool   `json:"auto_detect_enabled"`
	SelectedCityID        *string `json:"selected_city_id"`
	CurrentTimezoneBucket *string `json:"current_timezone_bucket"`
	NotificationsEnabled  *bool   `json:"notifications_enabled"`
	RemindTwoDaysBefore   *bool   `json:"remind_two_days_before"`
	RemindOneDayBefore    *bool   `json:"remind_one_day_before"`
	RemindOnStart         *bool   `json:"remind_on_start"`
	RemindOnParana        *bool   `json:"remind_on_parana"`
}

// TestNotificationRequest represents a user-triggered immediate notification
type TestNotificationRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

// ErrorResponse represents an error message structure for API responses
type ErrorResponse struct {
	Error string `json:"error"`
}
