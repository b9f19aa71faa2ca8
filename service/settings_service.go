package service

import (
	"fmt"
	"log/slog"

	"ekadashi.app/dataset"
	apperrors "ekadashi.app/errors"
	"ekadashi.app/models"
	"ekadashi.app/repository"
)

// SettingsService owns the persisted user preferences. A failed write means
// no state change occurred; callers log and carry on with the prior state.
type SettingsService struct {
	repo  *repository.PreferencesRepository
	store *dataset.Store
}

// NewSettingsService creates the preference store service
func NewSettingsService(repo *repository.PreferencesRepository, store *dataset.Store) *SettingsService {
	return &SettingsService{repo: repo, store: store}
}

// Get returns the current preferences, creating defaults on first launch
func (s *SettingsService) Get() (*models.UserPreferences, error) {
	prefs, err := s.repo.Get()
	if err != nil {
		return nil, apperrors.NewDatabaseError("read preferences", err)
	}
	return prefs, nil
}

// Update applies the non-nil fields of the request and persists the result.
// Selecting a city while auto-detect is off also moves the current bucket to
// that city's bucket.
func (s *SettingsService) Update(req *models.PreferencesRequest) (*models.UserPreferences, error) {
	prefs, err := s.Get()
	if err != nil {
		return nil, err
	}

	if req.CurrentTimezoneBucket != nil {
		bucket := models.TimezoneBucket(*req.CurrentTimezoneBucket)
		if !bucket.Valid() {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("unsupported timezone bucket %q", *req.CurrentTimezoneBucket))
		}
		prefs.CurrentTimezoneBucket = bucket
	}

	if req.AutoDetectEnabled != nil {
		prefs.AutoDetectEnabled = *req.AutoDetectEnabled
	}
	if req.SelectedCityID != nil {
		prefs.SelectedCityID = *req.SelectedCityID
		if !prefs.AutoDetectEnabled && *req.SelectedCityID != "" {
			prefs.CurrentTimezoneBucket = s.store.BucketForCity(*req.SelectedCityID)
		}
	}
	if req.NotificationsEnabled != nil {
		prefs.NotificationsEnabled = *req.NotificationsEnabled
	}
	if req.RemindTwoDaysBefore != nil {
		prefs.RemindTwoDaysBefore = *req.RemindTwoDaysBefore
	}
	if req.RemindOneDayBefore != nil {
		prefs.RemindOneDayBefore = *req.RemindOneDayBefore
	}
	if req.RemindOnStart != nil {
		prefs.RemindOnStart = *req.RemindOnStart
	}
	if req.RemindOnParana != nil {
		prefs.RemindOnParana = *req.RemindOnParana
	}

	if err := s.repo.Save(prefs); err != nil {
		return nil, apperrors.NewDatabaseError("save preferences", err)
	}
	return prefs, nil
}

// SetCurrentBucket records the last resolved bucket as the rendering source
// of truth for the next launch. Failures are logged, not fatal.
func (s *SettingsService) SetCurrentBucket(bucket models.TimezoneBucket) {
	prefs, err := s.Get()
	if err != nil {
		slog.Error("failed to read preferences for bucket update", "error", err)
		return
	}
	if prefs.CurrentTimezoneBucket == bucket {
		return
	}
	prefs.CurrentTimezoneBucket = bucket
	if err := s.repo.Save(prefs); err != nil {
		slog.Error("failed to persist current bucket", "bucket", bucket, "error", err)
	}
}

// Reset restores the first-launch defaults; explicit user action only
func (s *SettingsService) Reset() (*models.UserPreferences, error) {
	prefs, err := s.repo.Reset()
	if err != nil {
		return nil, apperrors.NewDatabaseError("reset preferences", err)
	}
	return prefs, nil
}
