package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ekadashi.app/dataset"
	apperrors "ekadashi.app/errors"
	"ekadashi.app/i18n"
	"ekadashi.app/metrics"
	"ekadashi.app/models"
	"ekadashi.app/providers"
	"ekadashi.app/scheduler"
	"github.com/google/uuid"
)

// Reminder offsets relative to the fasting start. The parana reminder fires
// at the parana start instead.
const (
	twoDayOffset = 48 * time.Hour
	oneDayOffset = 24 * time.Hour
)

var messageKeyByType = map[models.ReminderType]string{
	models.RemindTwoDaysBefore: "notif_2day",
	models.RemindOneDayBefore:  "notif_1day",
	models.RemindOnStart:       "notif_start",
	models.RemindOnParana:      "notif_parana",
}

// NotificationService computes reminder triggers for events and reconciles
// them against the durable queue.
type NotificationService struct {
	queue    *scheduler.Queue
	store    *dataset.Store
	dict     *i18n.Dictionary
	notifier providers.Notifier
	metrics  *metrics.SchedulerMetrics
	now      func() time.Time
}

// NewNotificationService creates a reminder scheduler over the durable queue
func NewNotificationService(
	queue *scheduler.Queue,
	store *dataset.Store,
	dict *i18n.Dictionary,
	notifier providers.Notifier,
	schedMetrics *metrics.SchedulerMetrics,
) *NotificationService {
	return &NotificationService{
		queue:    queue,
		store:    store,
		dict:     dict,
		notifier: notifier,
		metrics:  schedMetrics,
		now:      time.Now,
	}
}

// WorkKey returns the deterministic queue key for an event/type pair
func WorkKey(eventID int, reminderType models.ReminderType) string {
	return fmt.Sprintf("ekadashi-%d-%s", eventID, reminderType)
}

// NotificationID returns the deterministic identifier for a scheduled reminder
func NotificationID(eventID int, reminderType models.ReminderType) int {
	return eventID*10 + reminderType.Ordinal()
}

func eventTag(eventID int) string {
	return fmt.Sprintf("event-%d", eventID)
}

// ScheduleForEvent enqueues reminders for one event in the given bucket.
// Enabled types with future triggers are enqueued under their deterministic
// work keys (replace semantics); past triggers are skipped; disabled types
// have any previously queued work cancelled. Returns the enqueued count.
func (s *NotificationService) ScheduleForEvent(
	event *models.FastingEvent,
	bucket models.TimezoneBucket,
	enabledTypes []models.ReminderType,
	lang string,
) (int, error) {
	timing, ok := event.Timing[bucket]
	if !ok {
		return 0, apperrors.NewNotFoundError(
			fmt.Sprintf("event %d has no timing for bucket %s", event.ID, bucket))
	}

	enabled := make(map[models.ReminderType]bool, len(enabledTypes))
	for _, t := range enabledTypes {
		enabled[t] = true
	}

	name := s.store.Text(event, lang).Name
	now := s.now()
	enqueued := 0

	for _, reminderType := range models.AllReminderTypes() {
		workKey := WorkKey(event.ID, reminderType)

		if !enabled[reminderType] {
			if err := s.queue.CancelByKey(workKey); err != nil {
				slog.Error("failed to cancel disabled reminder", "work_key", workKey, "error", err)
			}
			continue
		}

		trigger := triggerInstant(&timing, reminderType)
		if !trigger.After(now) {
			s.metrics.RecordSkipped(1)
			continue
		}

		title, body := s.notificationText(lang, reminderType, name)
		err := s.queue.Enqueue(workKey, eventTag(event.ID), trigger, models.Notification{
			NotificationID: NotificationID(event.ID, reminderType),
			Title:          title,
			Body:           body,
		})
		if err != nil {
			slog.Error("failed to enqueue reminder", "work_key", workKey, "error", err)
			continue
		}
		enqueued++
	}

	s.metrics.RecordEnqueued(enqueued)
	return enqueued, nil
}

// triggerInstant computes the absolute trigger for a reminder type
func triggerInstant(timing *models.EventTiming, reminderType models.ReminderType) time.Time {
	switch reminderType {
	case models.RemindTwoDaysBefore:
		return timing.FastingStart.Add(-twoDayOffset)
	case models.RemindOneDayBefore:
		return timing.FastingStart.Add(-oneDayOffset)
	case models.RemindOnStart:
		return timing.FastingStart
	case models.RemindOnParana:
		return timing.ParanaStart
	}
	return time.Time{}
}

func (s *NotificationService) notificationText(lang string, reminderType models.ReminderType, eventName string) (string, string) {
	keyPrefix := messageKeyByType[reminderType]
	title := s.dict.Message(lang, keyPrefix+"_title")
	body := s.dict.Message(lang, keyPrefix+"_body")
	if strings.Contains(body, "%s") {
		body = fmt.Sprintf(body, eventName)
	}
	if strings.Contains(title, "%s") {
		title = fmt.Sprintf(title, eventName)
	}
	return title, body
}

// RescheduleAll reconciles the queue against the full event view for a
// bucket. One event's failure never aborts the batch. The event view is
// loaded in full before any scheduling starts.
func (s *NotificationService) RescheduleAll(
	bucket models.TimezoneBucket,
	enabledTypes []models.ReminderType,
	lang string,
) int {
	events := s.store.UpcomingForBucket(bucket, s.now())

	total := 0
	for i := range events {
		count, err := s.ScheduleForEvent(&events[i], bucket, enabledTypes, lang)
		if err != nil {
			slog.Error("skipping event after scheduling error", "event_id", events[i].ID, "error", err)
			continue
		}
		total += count
	}

	slog.Info("reminder reconciliation complete", "bucket", bucket,
		"events", len(events), "enqueued", total)
	return total
}

// CancelAll removes every queued reminder; idempotent
func (s *NotificationService) CancelAll() error {
	return s.queue.CancelAll()
}

// CancelForEvent removes all queued reminders for one event; idempotent
func (s *NotificationService) CancelForEvent(eventID int) error {
	return s.queue.CancelByTag(eventTag(eventID))
}

// PendingCount reports the number of reminders held by the durable queue
func (s *NotificationService) PendingCount() (int64, error) {
	return s.queue.PendingCount()
}

// ShowImmediate bypasses the queue and fires a notification now. Used for
// user-triggered test actions. The identifier range is disjoint from the
// deterministic scheduled-reminder identifiers.
func (s *NotificationService) ShowImmediate(ctx context.Context, title, body string) error {
	notificationID := 1_000_000 + int(uuid.New().ID()%1_000_000)
	return s.notifier.Send(ctx, &models.Notification{
		NotificationID: notificationID,
		Title:          title,
		Body:           body,
	})
}
