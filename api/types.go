package api

import (
	"context"
	"time"

	"taskflow-api/domain"
	"taskflow-api/tasksync"
)

// Storage abstracts record reads for handlers.
type Storage interface {
	FetchTasks(ctx context.Context, documentID string) ([]domain.TaskRecord, error)
}

// Synchronizer runs a document sync pass.
type Synchronizer interface {
	SyncDocument(ctx context.Context, documentID, content, actor string) (tasksync.Result, error)
}

// ReminderSource computes the dispatch grouping for a reference instant.
type ReminderSource interface {
	DueReminders(ctx context.Context, now time.Time) domain.Reminders
}

// Authenticator resolves the acting user from a request.
type Authenticator interface {
	UserIDFromAuthHeader(header string) (string, error)
}
