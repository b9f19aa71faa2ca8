// Package scheduler implements the durable delayed-execution facility backing
// reminders, plus the background loops that drive it.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"ekadashi.app/config"
	"ekadashi.app/metrics"
	"ekadashi.app/models"
	"ekadashi.app/providers"
	"ekadashi.app/repository"
	"github.com/robfig/cron/v3"
)

// Queue is the durable delayed-execution facility. Work survives process
// restarts in the database; enqueueing under an existing work key replaces
// the prior entry. Delivery is retried a bounded number of times at fire
// time; scheduling-time failures are not retried.
type Queue struct {
	repo        *repository.ScheduledWorkRepository
	notifier    providers.Notifier
	maxAttempts int
	sendTimeout time.Duration
	metrics     *metrics.SchedulerMetrics
}

// NewQueue creates a durable work queue over the given storage and notifier
func NewQueue(
	repo *repository.ScheduledWorkRepository,
	notifier providers.Notifier,
	cfg *config.SchedulerConfig,
	schedMetrics *metrics.SchedulerMetrics,
) *Queue {
	return &Queue{
		repo:        repo,
		notifier:    notifier,
		maxAttempts: cfg.MaxSendAttempts,
		sendTimeout: cfg.SendTimeout,
		metrics:     schedMetrics,
	}
}

// Enqueue stores work under its key with replace-if-exists semantics
func (q *Queue) Enqueue(workKey, tag string, runAt time.Time, payload models.Notification) error {
	work := &models.ScheduledWork{
		WorkKey:        workKey,
		Tag:            tag,
		RunAt:          runAt,
		Title:          payload.Title,
		Body:           payload.Body,
		NotificationID: payload.NotificationID,
	}
	if err := q.repo.Upsert(work); err != nil {
		return err
	}
	q.publishPending()
	return nil
}

// CancelByKey removes work by key; cancelling nonexistent work is not an error
func (q *Queue) CancelByKey(workKey string) error {
	if err := q.repo.DeleteByKey(workKey); err != nil {
		return err
	}
	q.publishPending()
	return nil
}

// CancelByTag removes all work carrying the tag; idempotent
func (q *Queue) CancelByTag(tag string) error {
	if err := q.repo.DeleteByTag(tag); err != nil {
		return err
	}
	q.publishPending()
	return nil
}

// CancelAll removes every queued entry; idempotent
func (q *Queue) CancelAll() error {
	if err := q.repo.DeleteAll(); err != nil {
		return err
	}
	q.publishPending()
	return nil
}

// PendingCount reports how many entries the queue currently holds
func (q *Queue) PendingCount() (int64, error) {
	return q.repo.PendingCount()
}

// RunDue fires every entry whose trigger instant has passed. Failed delivery
// leaves the entry for the next poll until the attempt budget is exhausted,
// after which it is dropped. Returns the number of successful deliveries.
func (q *Queue) RunDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.repo.DueBefore(now, 100)
	if err != nil {
		return 0, err
	}

	fired := 0
	for i := range due {
		work := due[i]
		if q.fire(ctx, &work) {
			fired++
		}
	}

	q.publishPending()
	return fired, nil
}

func (q *Queue) fire(ctx context.Context, work *models.ScheduledWork) bool {
	sendCtx, cancel := context.WithTimeout(ctx, q.sendTimeout)
	defer cancel()

	err := q.notifier.Send(sendCtx, &models.Notification{
		NotificationID: work.NotificationID,
		Title:          work.Title,
		Body:           work.Body,
	})
	if err == nil {
		q.metrics.RecordFired("success")
		if deleteErr := q.repo.Delete(work); deleteErr != nil {
			slog.Error("failed to remove delivered work", "work_key", work.WorkKey, "error", deleteErr)
		}
		return true
	}

	slog.Warn("notification delivery failed", "work_key", work.WorkKey,
		"attempt", work.Attempts+1, "error", err)

	if incErr := q.repo.IncrementAttempts(work); incErr != nil {
		slog.Error("failed to record delivery attempt", "work_key", work.WorkKey, "error", incErr)
		return false
	}

	if work.Attempts >= q.maxAttempts {
		q.metrics.RecordFired("dropped")
		slog.Error("dropping work after exhausting delivery attempts",
			"work_key", work.WorkKey, "attempts", work.Attempts)
		if deleteErr := q.repo.Delete(work); deleteErr != nil {
			slog.Error("failed to drop exhausted work", "work_key", work.WorkKey, "error", deleteErr)
		}
		return false
	}

	q.metrics.RecordFired("retry")
	return false
}

func (q *Queue) publishPending() {
	count, err := q.repo.PendingCount()
	if err != nil {
		return
	}
	q.metrics.SetPending(count)
}

// Scheduler drives the queue's poll loop and the periodic reminder
// reconciliation using cron schedules.
type Scheduler struct {
	cron      *cron.Cron
	queue     *Queue
	reconcile func()
}

// NewScheduler creates and registers the background jobs
func NewScheduler(cfg *config.SchedulerConfig, queue *Queue, reconcile func()) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		queue:     queue,
		reconcile: reconcile,
	}

	if _, err := s.cron.AddFunc(cfg.PollSpec, s.pollDue); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cfg.ReconcileSpec, s.runReconcile); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins the scheduler's background jobs
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the background jobs, waiting for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) pollDue() {
	fired, err := s.queue.RunDue(context.Background(), time.Now())
	if err != nil {
		slog.Error("due-work poll failed", "error", err)
		return
	}
	if fired > 0 {
		slog.Info("delivered due reminders", "count", fired)
	}
}

func (s *Scheduler) runReconcile() {
	if s.reconcile != nil {
		s.reconcile()
	}
}
