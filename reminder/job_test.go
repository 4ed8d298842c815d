package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"taskflow-api/domain"
)

type fakeJobStore struct {
	fakeFinder
	byKey      map[string]domain.TaskRecord // keyed by documentID + "/" + taskID
	getErrOn   string
	enqueued   []domain.Notification
	enqueueErr error
}

func (s *fakeJobStore) GetTask(ctx context.Context, documentID, taskID string) (domain.TaskRecord, error) {
	if taskID == s.getErrOn {
		return domain.TaskRecord{}, errors.New("entity gone")
	}
	rec, ok := s.byKey[documentID+"/"+taskID]
	if !ok {
		return domain.TaskRecord{}, errors.New("not found")
	}
	return rec, nil
}

func (s *fakeJobStore) EnqueueNotifications(ctx context.Context, notifications []domain.Notification) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.enqueued = append(s.enqueued, notifications...)
	return nil
}

func TestRunOnceDispatchesExpiringNotifications(t *testing.T) {
	logger, _ := test.NewNullLogger()
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	due := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

	rec := domain.TaskRecord{
		ID:            "t1",
		DocumentID:    "Main.WebHome",
		Content:       "Review",
		Creator:       "admin",
		Responsible:   []string{"alice", "bob"},
		ReminderTimes: []string{"h1"},
		DueDate:       &due,
	}
	store := &fakeJobStore{
		fakeFinder: fakeFinder{now: now, records: []domain.TaskRecord{rec}},
		byKey:      map[string]domain.TaskRecord{"Main.WebHome/t1": rec},
	}
	job := NewJob(store, logger, time.Hour, "2006-01-02 15:04", "https://wiki.example.com/view")

	sent := job.RunOnce(context.Background(), now)
	if sent != 2 {
		t.Fatalf("expected 2 notifications, got %d", sent)
	}
	if len(store.enqueued) != 2 {
		t.Fatalf("expected 2 enqueued envelopes, got %d", len(store.enqueued))
	}

	users := map[string]bool{}
	for _, n := range store.enqueued {
		users[n.UserID] = true
		if n.EventType != domain.EventExpiring {
			t.Fatalf("unexpected event type %q", n.EventType)
		}
		if n.DocumentID != "Main.WebHome" {
			t.Fatalf("unexpected document %q", n.DocumentID)
		}
		if got := n.Params[domain.ParamTaskContent]; got != "Review" {
			t.Fatalf("unexpected content param %q", got)
		}
		if got := n.Params[domain.ParamTaskCreator]; got != "admin" {
			t.Fatalf("unexpected creator param %q", got)
		}
		if got := n.Params[domain.ParamTaskURL]; got != "https://wiki.example.com/view/Main.WebHome#t1" {
			t.Fatalf("unexpected url param %q", got)
		}
		if got := n.Params[domain.ParamTaskDueDate]; got != "2025-01-01 09:30" {
			t.Fatalf("unexpected due date param %q", got)
		}
	}
	if !users["alice"] || !users["bob"] {
		t.Fatalf("expected notifications for both users, got %#v", users)
	}
}

func TestRunOnceRereadsRecordAtDispatch(t *testing.T) {
	logger, _ := test.NewNullLogger()
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	due := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

	aggregated := domain.TaskRecord{
		ID: "t1", DocumentID: "d", Content: "Old text",
		Responsible: []string{"u"}, ReminderTimes: []string{"h1"}, DueDate: &due,
	}
	fresh := aggregated
	fresh.Content = "Edited between aggregation and dispatch"

	store := &fakeJobStore{
		fakeFinder: fakeFinder{now: now, records: []domain.TaskRecord{aggregated}},
		byKey:      map[string]domain.TaskRecord{"d/t1": fresh},
	}
	job := NewJob(store, logger, time.Hour, "2006-01-02 15:04", "https://wiki.example.com")

	if sent := job.RunOnce(context.Background(), now); sent != 1 {
		t.Fatalf("expected 1 notification, got %d", sent)
	}
	if got := store.enqueued[0].Params[domain.ParamTaskContent]; got != fresh.Content {
		t.Fatalf("notification must carry the fresh record, got %q", got)
	}
}

func TestRunOnceFailuresAreIsolatedPerNotification(t *testing.T) {
	logger, hook := test.NewNullLogger()
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	due := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

	gone := domain.TaskRecord{
		ID: "gone", DocumentID: "d", Responsible: []string{"u"},
		ReminderTimes: []string{"h1"}, DueDate: &due,
	}
	ok := domain.TaskRecord{
		ID: "ok", DocumentID: "d", Responsible: []string{"u"},
		ReminderTimes: []string{"h1"}, DueDate: &due,
	}
	store := &fakeJobStore{
		fakeFinder: fakeFinder{now: now, records: []domain.TaskRecord{gone, ok}},
		byKey:      map[string]domain.TaskRecord{"d/ok": ok},
		getErrOn:   "gone",
	}
	job := NewJob(store, logger, time.Hour, "2006-01-02 15:04", "https://wiki.example.com")

	if sent := job.RunOnce(context.Background(), now); sent != 1 {
		t.Fatalf("expected the surviving notification only, got %d", sent)
	}
	if len(store.enqueued) != 1 || store.enqueued[0].Params[domain.ParamTaskURL] != "https://wiki.example.com/d#ok" {
		t.Fatalf("unexpected enqueued set: %#v", store.enqueued)
	}
	if len(hook.Entries) == 0 {
		t.Fatal("expected the failed dispatch to be logged")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &fakeJobStore{}
	job := NewJob(store, logger, time.Hour, "2006-01-02 15:04", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
