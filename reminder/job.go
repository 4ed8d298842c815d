package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskflow-api/domain"
	"taskflow-api/tasksync"
)

// Storage is what the dispatch walk needs beyond the due-date query: fresh
// record reads and the notification queue.
type Storage interface {
	TaskFinder
	GetTask(ctx context.Context, documentID, taskID string) (domain.TaskRecord, error)
	EnqueueNotifications(ctx context.Context, notifications []domain.Notification) error
}

// Job runs the hourly reminder pass: aggregate due tasks, then walk the
// grouping and enqueue one expiring notification per (task, user).
type Job struct {
	store      Storage
	aggregator *Aggregator
	logger     *log.Logger
	interval   time.Duration
	dateLayout string
	urlBase    string
}

// NewJob creates a reminder job ticking at the given interval (normally one
// hour).
func NewJob(store Storage, logger *log.Logger, interval time.Duration, dateLayout, urlBase string) *Job {
	if store == nil {
		panic("reminder.NewJob: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Job{
		store:      store,
		aggregator: NewAggregator(store, logger),
		logger:     logger,
		interval:   interval,
		dateLayout: dateLayout,
		urlBase:    urlBase,
	}
}

// Run blocks, executing a reminder pass on every tick until the context is
// cancelled.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx, time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce executes a single reminder pass for the given reference instant.
// It returns the number of notifications enqueued.
func (j *Job) RunOnce(ctx context.Context, now time.Time) int {
	j.logger.Debug("reminder pass started")
	grouping := j.aggregator.DueReminders(ctx, now)

	sent := 0
	for interval, users := range grouping {
		for userID, docs := range users {
			for documentID, taskIDs := range docs {
				for _, taskID := range taskIDs {
					if j.dispatch(ctx, interval, userID, documentID, taskID) {
						sent++
					}
				}
			}
		}
	}
	j.logger.WithField("notifications", sent).Debug("reminder pass finished")
	return sent
}

// dispatch enqueues one expiring notification. The record is re-read so the
// notification carries current field values rather than the ones observed
// at aggregation time. Failures are logged and do not abort the walk: each
// notification is its own failure domain.
func (j *Job) dispatch(ctx context.Context, interval, userID, documentID, taskID string) bool {
	record, err := j.store.GetTask(ctx, documentID, taskID)
	if err != nil {
		j.logger.WithError(err).WithFields(log.Fields{
			"document": documentID,
			"task":     taskID,
		}).Error("failed to load task for expiring notification")
		return false
	}

	params := map[string]string{
		domain.ParamTaskContent: record.Content,
		domain.ParamTaskCreator: record.Creator,
		domain.ParamTaskURL:     tasksync.TaskURL(j.urlBase, documentID, taskID),
	}
	if record.DueDate != nil {
		params[domain.ParamTaskDueDate] = record.DueDate.Format(j.dateLayout)
	}

	notification := domain.Notification{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		UserID:     userID,
		EventType:  domain.EventExpiring,
		Params:     params,
	}
	if err := j.store.EnqueueNotifications(ctx, []domain.Notification{notification}); err != nil {
		j.logger.WithError(err).WithFields(log.Fields{
			"document": documentID,
			"task":     taskID,
			"user":     userID,
			"interval": interval,
		}).Error("failed to enqueue expiring notification")
		return false
	}
	return true
}
