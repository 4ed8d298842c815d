// Package tasksync reconciles checktask directives found in document text
// against the document's persisted task records.
package tasksync

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"taskflow-api/domain"
	"taskflow-api/macro"
)

// Storage abstracts persistence for the synchronizer.
type Storage interface {
	FetchTasks(ctx context.Context, documentID string) ([]domain.TaskRecord, error)
	UpsertTasks(ctx context.Context, records []domain.TaskRecord) error
	DeleteTasks(ctx context.Context, documentID string, taskIDs []string) error
	EnqueueNotifications(ctx context.Context, notifications []domain.Notification) error
}

// Result reports the outcome of one document sync pass.
type Result struct {
	// Skipped is true when the content matched the last synchronized state
	// and no work was done.
	Skipped bool
	// TaskIDs lists the ids of all directives found, in appearance order.
	TaskIDs []string
	// Content is the document text with newly assigned ids written back. It
	// equals the input when no id was assigned. Callers must persist it so
	// the next pass sees the ids.
	Content string
}

// Synchronizer drives sync passes: short-circuits, the reconcile plan, and
// applying the plan against storage.
type Synchronizer struct {
	store      Storage
	guard      *ContentGuard
	logger     *log.Logger
	dateLayout string
	urlBase    string
}

// NewSynchronizer creates a Synchronizer. The guard may be nil, which
// disables the unchanged-content short-circuit.
func NewSynchronizer(store Storage, guard *ContentGuard, logger *log.Logger, dateLayout, urlBase string) *Synchronizer {
	if store == nil {
		panic("tasksync.NewSynchronizer: storage is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Synchronizer{
		store:      store,
		guard:      guard,
		logger:     logger,
		dateLayout: dateLayout,
		urlBase:    urlBase,
	}
}

// SyncDocument reconciles one document's current text. Storage failures
// abort the pass and are returned; a partially applied plan is surfaced, not
// silently accepted. Notification enqueue failures are logged per batch and
// do not fail the pass.
func (s *Synchronizer) SyncDocument(ctx context.Context, documentID, content, actor string) (Result, error) {
	if s.guard.Unchanged(ctx, documentID, content) {
		return Result{Skipped: true, Content: content}, nil
	}

	if !macro.HasMarker(content) {
		if err := s.removeAllTasks(ctx, documentID); err != nil {
			return Result{}, err
		}
		s.guard.Remember(ctx, documentID, content)
		return Result{Content: content}, nil
	}

	blocks := macro.Extract(content)
	existing, err := s.store.FetchTasks(ctx, documentID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch tasks for %s: %w", documentID, err)
	}

	plan := Reconcile(blocks, existing, Options{
		DocumentID: documentID,
		Actor:      actor,
		DateLayout: s.dateLayout,
		URLBase:    s.urlBase,
	}, s.logger)

	if len(plan.Upserts) > 0 {
		if err := s.store.UpsertTasks(ctx, plan.Upserts); err != nil {
			return Result{}, fmt.Errorf("upsert tasks for %s: %w", documentID, err)
		}
	}
	if len(plan.Deletes) > 0 {
		if err := s.store.DeleteTasks(ctx, documentID, plan.Deletes); err != nil {
			return Result{}, fmt.Errorf("delete stale tasks for %s: %w", documentID, err)
		}
	}

	rewritten := macro.Render(content, blocks)
	s.guard.Remember(ctx, documentID, content)
	if rewritten != content {
		s.guard.Remember(ctx, documentID, rewritten)
	}

	if len(plan.Assigned) > 0 {
		if err := s.store.EnqueueNotifications(ctx, plan.Assigned); err != nil {
			s.logger.WithError(err).WithField("document", documentID).
				Error("failed to enqueue assigned notifications")
		}
	}

	s.logger.WithFields(log.Fields{
		"document": documentID,
		"found":    len(plan.Found),
		"upserts":  len(plan.Upserts),
		"deletes":  len(plan.Deletes),
	}).Debug("document sync pass complete")

	return Result{TaskIDs: plan.Found, Content: rewritten}, nil
}

func (s *Synchronizer) removeAllTasks(ctx context.Context, documentID string) error {
	existing, err := s.store.FetchTasks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch tasks for %s: %w", documentID, err)
	}
	if len(existing) == 0 {
		return nil
	}
	ids := make([]string, len(existing))
	for i, rec := range existing {
		ids[i] = rec.ID
	}
	if err := s.store.DeleteTasks(ctx, documentID, ids); err != nil {
		return fmt.Errorf("delete tasks for %s: %w", documentID, err)
	}
	return nil
}
