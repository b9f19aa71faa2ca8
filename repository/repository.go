// Package repository implements data access layer for the application
package repository

import (
	"errors"
	"log/slog"
	"time"

	"ekadashi.app/models"
	"gorm.io/gorm"
)

// PreferencesRepository handles data access operations for user preferences.
// A single preference row exists per installation; it is created with
// defaults on first read.
type PreferencesRepository struct {
	db *gorm.DB
}

// NewPreferencesRepository creates a new repository for preference data
func NewPreferencesRepository(db *gorm.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// Get retrieves the preference record, creating the defaults on first launch
func (r *PreferencesRepository) Get() (*models.UserPreferences, error) {
	var prefs models.UserPreferences
	result := r.db.First(&prefs)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			defaults := models.DefaultPreferences()
			if err := r.db.Create(defaults).Error; err != nil {
				slog.Error("failed to create default preferences", "error", err)
				return nil, err
			}
			return defaults, nil
		}
		slog.Error("failed to read preferences", "error", result.Error)
		return nil, result.Error
	}
	return &prefs, nil
}

// Save persists the preference record. Toggles read the row, mutate it and
// Save it in one synchronous call, which is atomic relative to itself.
func (r *PreferencesRepository) Save(prefs *models.UserPreferences) error {
	if err := r.db.Save(prefs).Error; err != nil {
		slog.Error("failed to save preferences", "error", err)
		return err
	}
	return nil
}

// Reset restores the first-launch defaults
func (r *PreferencesRepository) Reset() (*models.UserPreferences, error) {
	if err := r.db.Where("1 = 1").Delete(&models.UserPreferences{}).Error; err != nil {
		slog.Error("failed to clear preferences", "error", err)
		return nil, err
	}
	defaults := models.DefaultPreferences()
	if err := r.db.Create(defaults).Error; err != nil {
		slog.Error("failed to recreate default preferences", "error", err)
		return nil, err
	}
	return defaults, nil
}

// LocationCacheRepository handles the persisted last-resolved-location row.
// Writes are last-write-wins overwrites of the single row.
type LocationCacheRepository struct {
	db *gorm.DB
}

// NewLocationCacheRepository creates a new repository for the location cache
func NewLocationCacheRepository(db *gorm.DB) *LocationCacheRepository {
	return &LocationCacheRepository{db: db}
}

// GetCachedLocation retrieves the persisted location, nil when none exists
func (r *LocationCacheRepository) GetCachedLocation() (*models.ResolvedLocation, error) {
	var location models.ResolvedLocation
	result := r.db.First(&location)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("failed to read cached location", "error", result.Error)
		return nil, result.Error
	}
	return &location, nil
}

// SaveLocation overwrites the persisted location with a fresh resolution
func (r *LocationCacheRepository) SaveLocation(location *models.ResolvedLocation) error {
	existing, err := r.GetCachedLocation()
	if err != nil {
		return err
	}
	if existing != nil {
		location.ID = existing.ID
	}
	if err := r.db.Save(location).Error; err != nil {
		slog.Error("failed to save cached location", "error", err)
		return err
	}
	return nil
}

// Clear removes the persisted location; used only by explicit user action
func (r *LocationCacheRepository) Clear() error {
	if err := r.db.Where("1 = 1").Delete(&models.ResolvedLocation{}).Error; err != nil {
		slog.Error("failed to clear cached location", "error", err)
		return err
	}
	return nil
}

// ScheduledWorkRepository handles the durable reminder queue's storage.
// Rows are hard-deleted on cancellation and completion so work keys can be
// reused by later reschedules.
type ScheduledWorkRepository struct {
	db *gorm.DB
}

// NewScheduledWorkRepository creates a new repository for scheduled work
func NewScheduledWorkRepository(db *gorm.DB) *ScheduledWorkRepository {
	return &ScheduledWorkRepository{db: db}
}

// Upsert stores work under its key, replacing any prior row with that key
func (r *ScheduledWorkRepository) Upsert(work *models.ScheduledWork) error {
	var existing models.ScheduledWork
	result := r.db.Where("work_key = ?", work.WorkKey).First(&existing)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return r.db.Create(work).Error
		}
		return result.Error
	}

	work.ID = existing.ID
	work.CreatedAt = existing.CreatedAt
	work.Attempts = 0
	return r.db.Save(work).Error
}

// FindByKey retrieves scheduled work by its key, nil when absent
func (r *ScheduledWorkRepository) FindByKey(workKey string) (*models.ScheduledWork, error) {
	var work models.ScheduledWork
	result := r.db.Where("work_key = ?", workKey).First(&work)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &work, nil
}

// DueBefore returns work whose trigger instant has passed, oldest first
func (r *ScheduledWorkRepository) DueBefore(now time.Time, limit int) ([]models.ScheduledWork, error) {
	var due []models.ScheduledWork
	result := r.db.Where("run_at <= ?", now).Order("run_at asc").Limit(limit).Find(&due)
	if result.Error != nil {
		slog.Error("failed to query due work", "error", result.Error)
		return nil, result.Error
	}
	return due, nil
}

// IncrementAttempts records one failed delivery attempt
func (r *ScheduledWorkRepository) IncrementAttempts(work *models.ScheduledWork) error {
	work.Attempts++
	return r.db.Model(work).Update("attempts", work.Attempts).Error
}

// Delete removes one work row; used after successful delivery or retry exhaustion
func (r *ScheduledWorkRepository) Delete(work *models.ScheduledWork) error {
	return r.db.Delete(work).Error
}

// DeleteByKey removes work by its key; deleting absent work is not an error
func (r *ScheduledWorkRepository) DeleteByKey(workKey string) error {
	return r.db.Where("work_key = ?", workKey).Delete(&models.ScheduledWork{}).Error
}

// DeleteByTag removes all work carrying the given tag
func (r *ScheduledWorkRepository) DeleteByTag(tag string) error {
	return r.db.Where("tag = ?", tag).Delete(&models.ScheduledWork{}).Error
}

// DeleteAll removes every queued row
func (r *ScheduledWorkRepository) DeleteAll() error {
	return r.db.Where("1 = 1").Delete(&models.ScheduledWork{}).Error
}

// PendingCount returns the number of rows currently held by the queue
func (r *ScheduledWorkRepository) PendingCount() (int64, error) {
	var count int64
	result := r.db.Model(&models.ScheduledWork{}).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}
