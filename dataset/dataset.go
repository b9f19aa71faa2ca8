// Package dataset loads the immutable ekadashi event dataset and serves
// filtered, sorted views of it. The dataset is read once at startup and
// never mutated afterwards.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"ekadashi.app/errors"
	"ekadashi.app/models"
)

// rawDocument mirrors the on-disk JSON asset shape.
type rawDocument struct {
	Version   string                 `json:"version"`
	Year      int                    `json:"year"`
	Source    string                 `json:"source"`
	Timezones map[string]rawTimezone `json:"timezones"`
	Ekadashis []rawEvent             `json:"ekadashis"`
}

type rawTimezone struct {
	Cities []string `json:"cities"`
}

type rawEvent struct {
	ID          int                  `json:"id"`
	Name        map[string]string    `json:"name"`
	Description map[string]string    `json:"description"`
	Story       map[string]string    `json:"story"`
	Rules       map[string]string    `json:"rules"`
	Benefits    map[string]string    `json:"benefits"`
	Timing      map[string]rawTiming `json:"timing"`
}

type rawTiming struct {
	Date         string `json:"date"`
	FastingStart string `json:"fasting_start"`
	ParanaStart  string `json:"parana_start"`
	ParanaEnd    string `json:"parana_end"`
}

// Metadata describes the loaded dataset
type Metadata struct {
	Version string
	Year    int
	Source  string
}

// Store holds the loaded event dataset. All views returned by its methods are
// copies; the underlying data is immutable for the process lifetime.
type Store struct {
	meta            Metadata
	events          []models.FastingEvent
	citiesByBucket  map[models.TimezoneBucket][]string
	defaultLanguage string
}

// LoadFromFile reads and parses the dataset asset at the given path
func LoadFromFile(path, defaultLanguage string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("read dataset file %s", path), err)
	}
	return LoadFromBytes(data, defaultLanguage)
}

// LoadFromBytes parses a dataset document from memory
func LoadFromBytes(data []byte, defaultLanguage string) (*Store, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid dataset document: %v", err))
	}

	store := &Store{
		meta: Metadata{
			Version: doc.Version,
			Year:    doc.Year,
			Source:  doc.Source,
		},
		citiesByBucket:  make(map[models.TimezoneBucket][]string),
		defaultLanguage: defaultLanguage,
	}

	for name, tz := range doc.Timezones {
		bucket := models.TimezoneBucket(name)
		if !bucket.Valid() {
			continue
		}
		store.citiesByBucket[bucket] = tz.Cities
	}

	for _, raw := range doc.Ekadashis {
		event, err := convertEvent(raw)
		if err != nil {
			return nil, err
		}
		store.events = append(store.events, *event)
	}

	sort.Slice(store.events, func(i, j int) bool {
		return store.events[i].ID < store.events[j].ID
	})

	return store, nil
}

func convertEvent(raw rawEvent) (*models.FastingEvent, error) {
	event := &models.FastingEvent{
		ID:     raw.ID,
		Text:   make(map[string]models.LocalizedText),
		Timing: make(map[models.TimezoneBucket]models.EventTiming),
	}

	for lang, name := range raw.Name {
		event.Text[lang] = models.LocalizedText{
			Name:        name,
			Description: raw.Description[lang],
			Story:       raw.Story[lang],
			Rules:       raw.Rules[lang],
			Benefits:    raw.Benefits[lang],
		}
	}

	for name, timing := range raw.Timing {
		bucket := models.TimezoneBucket(name)
		if !bucket.Valid() {
			continue
		}
		converted, err := convertTiming(raw.ID, name, timing)
		if err != nil {
			return nil, err
		}
		event.Timing[bucket] = *converted
	}

	return event, nil
}

func convertTiming(eventID int, bucket string, raw rawTiming) (*models.EventTiming, error) {
	fastingStart, err := time.Parse(time.RFC3339, raw.FastingStart)
	if err != nil {
		return nil, errors.NewValidationError(
			fmt.Sprintf("event %d bucket %s: invalid fasting_start %q", eventID, bucket, raw.FastingStart))
	}
	paranaStart, err := time.Parse(time.RFC3339, raw.ParanaStart)
	if err != nil {
		return nil, errors.NewValidationError(
			fmt.Sprintf("event %d bucket %s: invalid parana_start %q", eventID, bucket, raw.ParanaStart))
	}
	paranaEnd, err := time.Parse(time.RFC3339, raw.ParanaEnd)
	if err != nil {
		return nil, errors.NewValidationError(
			fmt.Sprintf("event %d bucket %s: invalid parana_end %q", eventID, bucket, raw.ParanaEnd))
	}

	return &models.EventTiming{
		Date:         raw.Date,
		FastingStart: fastingStart,
		ParanaStart:  paranaStart,
		ParanaEnd:    paranaEnd,
	}, nil
}

// Metadata returns the dataset's descriptive header fields
func (s *Store) Metadata() Metadata {
	return s.meta
}

// All returns every event in the dataset ordered by id
func (s *Store) All() []models.FastingEvent {
	out := make([]models.FastingEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ByID returns the event with the given id
func (s *Store) ByID(id int) (*models.FastingEvent, error) {
	for i := range s.events {
		if s.events[i].ID == id {
			event := s.events[i]
			return &event, nil
		}
	}
	return nil, errors.NewNotFoundError(fmt.Sprintf("event %d not found", id))
}

// UpcomingForBucket returns events that carry timing for the given bucket and
// are not fully over (parana window has not closed) at the reference instant,
// sorted by fasting start.
func (s *Store) UpcomingForBucket(bucket models.TimezoneBucket, now time.Time) []models.FastingEvent {
	var out []models.FastingEvent
	for _, event := range s.events {
		timing, ok := event.Timing[bucket]
		if !ok {
			continue
		}
		if timing.ParanaEnd.Before(now) {
			continue
		}
		out = append(out, event)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timing[bucket].FastingStart.Before(out[j].Timing[bucket].FastingStart)
	})
	return out
}

// Text returns the event's localized text for the requested language, falling
// back to the default language when the requested one is absent.
func (s *Store) Text(event *models.FastingEvent, lang string) models.LocalizedText {
	if text, ok := event.Text[lang]; ok {
		return text
	}
	return event.Text[s.defaultLanguage]
}

// BucketForCity looks up the bucket a city belongs to from the dataset's
// timezone city lists. The match is case-insensitive. Unknown cities degrade
// to the default bucket.
func (s *Store) BucketForCity(city string) models.TimezoneBucket {
	for _, bucket := range models.AllBuckets() {
		for _, known := range s.citiesByBucket[bucket] {
			if strings.EqualFold(known, city) {
				return bucket
			}
		}
	}
	return models.DefaultBucket
}

// Cities returns the manual-selection city list for a bucket
func (s *Store) Cities(bucket models.TimezoneBucket) []string {
	return s.citiesByBucket[bucket]
}

// Validate runs the dataset invariant batch check: for every event and bucket,
// fasting_start < parana_start <= parana_end, and the calendar date matches
// the local date of fasting_start in that bucket's offset.
func (s *Store) Validate() []error {
	var problems []error
	for _, event := range s.events {
		for bucket, timing := range event.Timing {
			if !timing.FastingStart.Before(timing.ParanaStart) {
				problems = append(problems, errors.NewValidationError(fmt.Sprintf(
					"event %d bucket %s: fasting_start %s is not before parana_start %s",
					event.ID, bucket, timing.FastingStart, timing.ParanaStart)))
			}
			if timing.ParanaStart.After(timing.ParanaEnd) {
				problems = append(problems, errors.NewValidationError(fmt.Sprintf(
					"event %d bucket %s: parana_start %s is after parana_end %s",
					event.ID, bucket, timing.ParanaStart, timing.ParanaEnd)))
			}
			if timing.Date != "" && timing.Date != timing.FastingStart.Format("2006-01-02") {
				problems = append(problems, errors.NewValidationError(fmt.Sprintf(
					"event %d bucket %s: date %s does not match fasting_start local date %s",
					event.ID, bucket, timing.Date, timing.FastingStart.Format("2006-01-02"))))
			}
		}
	}
	return problems
}
