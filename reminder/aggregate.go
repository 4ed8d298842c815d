package reminder

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow-api/domain"
)

// TaskFinder queries candidate task records by due date range, with
// half-open [start, end) semantics.
type TaskFinder interface {
	FindTasksDueBetween(ctx context.Context, start, end time.Time) ([]domain.TaskRecord, error)
}

// Aggregator computes the dispatch grouping for a reference instant.
type Aggregator struct {
	store  TaskFinder
	logger *log.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(store TaskFinder, logger *log.Logger) *Aggregator {
	if store == nil {
		panic("reminder.NewAggregator: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Aggregator{store: store, logger: logger}
}

// DueReminders returns the dispatch grouping (interval → user → document →
// ordered task ids) for records due inside the canonical windows relative
// to now. A record qualifies for a window only when it subscribes to the
// window's interval key, has at least one responsible user, and carries a
// due date. Any window query failure aborts the whole run with an empty
// grouping: a partial result would notify some intervals and silently drop
// others, and the next hourly run recovers on its own.
func (a *Aggregator) DueReminders(ctx context.Context, now time.Time) domain.Reminders {
	due := make(domain.DueTasks)
	for _, w := range Windows(now) {
		records, err := a.store.FindTasksDueBetween(ctx, w.Start, w.End)
		if err != nil {
			a.logger.WithError(err).WithField("interval", w.Interval).
				Error("due task query failed, aborting reminder run")
			return domain.Reminders{}
		}
		for _, rec := range records {
			if rec.DueDate == nil || len(rec.Responsible) == 0 || !rec.HasReminder(w.Interval) {
				continue
			}
			// Re-check the half-open bounds; the store query is trusted but
			// a record edited between query and read may have drifted.
			if rec.DueDate.Before(w.Start) || !rec.DueDate.Before(w.End) {
				continue
			}
			due.Add(w.Interval, rec.DocumentID, rec.ID, rec.Responsible)
		}
	}
	return due.Invert()
}
