package tasksync

import (
	"context"
	"errors"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"taskflow-api/domain"
)

type mockStore struct {
	tasks    []domain.TaskRecord
	fetchErr error

	upserts    []domain.TaskRecord
	upsertErr  error
	deletes    []string
	deleteErr  error
	notified   []domain.Notification
	enqueueErr error
}

func (m *mockStore) FetchTasks(ctx context.Context, documentID string) ([]domain.TaskRecord, error) {
	return m.tasks, m.fetchErr
}

func (m *mockStore) UpsertTasks(ctx context.Context, records []domain.TaskRecord) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, records...)
	return nil
}

func (m *mockStore) DeleteTasks(ctx context.Context, documentID string, taskIDs []string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, taskIDs...)
	return nil
}

func (m *mockStore) EnqueueNotifications(ctx context.Context, notifications []domain.Notification) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.notified = append(m.notified, notifications...)
	return nil
}

func newTestSynchronizer(store *mockStore, guard *ContentGuard) *Synchronizer {
	logger, _ := test.NewNullLogger()
	return NewSynchronizer(store, guard, logger, testDateLayout, "https://wiki.example.com/view")
}

func TestSyncDocumentCreatesAndWritesBack(t *testing.T) {
	store := &mockStore{}
	s := newTestSynchronizer(store, nil)

	content := `{{checktask responsible="alice"}}Do it{{/checktask}}`
	res, err := s.SyncDocument(context.Background(), "Main.WebHome", content, "admin")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Skipped {
		t.Fatal("unexpected skip")
	}
	if len(res.TaskIDs) != 1 {
		t.Fatalf("expected 1 task id, got %#v", res.TaskIDs)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(store.upserts))
	}
	if !strings.Contains(res.Content, `id="`+res.TaskIDs[0]+`"`) {
		t.Fatalf("assigned id missing from rewritten content:\n%s", res.Content)
	}
	if len(store.notified) != 1 || store.notified[0].UserID != "alice" {
		t.Fatalf("unexpected notifications: %#v", store.notified)
	}
}

func TestSyncDocumentWithoutMarkerRemovesAllTasks(t *testing.T) {
	store := &mockStore{tasks: []domain.TaskRecord{
		{ID: "t1", DocumentID: "Main.WebHome"},
		{ID: "t2", DocumentID: "Main.WebHome"},
	}}
	s := newTestSynchronizer(store, nil)

	res, err := s.SyncDocument(context.Background(), "Main.WebHome", "no directives left", "admin")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(res.TaskIDs) != 0 {
		t.Fatalf("expected no task ids, got %#v", res.TaskIDs)
	}
	if len(store.deletes) != 2 {
		t.Fatalf("expected both records deleted, got %#v", store.deletes)
	}
	if res.Content != "no directives left" {
		t.Fatalf("content must pass through unchanged, got %q", res.Content)
	}
}

func TestSyncDocumentUnchangedContentSkips(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &mockStore{}
	guard := NewContentGuard(client, 0)
	s := newTestSynchronizer(store, guard)

	content := `{{checktask id="t1"}}Stable{{/checktask}}`
	ctx := context.Background()

	if _, err := s.SyncDocument(ctx, "doc", content, "admin"); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	firstUpserts := len(store.upserts)

	res, err := s.SyncDocument(ctx, "doc", content, "admin")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected unchanged content to skip")
	}
	if len(store.upserts) != firstUpserts {
		t.Fatal("skipped pass must not touch storage")
	}
}

func TestSyncDocumentRewrittenContentAlsoSkips(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &mockStore{}
	s := newTestSynchronizer(store, NewContentGuard(client, 0))
	ctx := context.Background()

	res, err := s.SyncDocument(ctx, "doc", `{{checktask}}New{{/checktask}}`, "admin")
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if res.Content == `{{checktask}}New{{/checktask}}` {
		t.Fatal("expected rewritten content with an assigned id")
	}

	// Re-submitting the rewritten text (the host saved it) skips too.
	again, err := s.SyncDocument(ctx, "doc", res.Content, "admin")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !again.Skipped {
		t.Fatal("expected rewritten content to be remembered")
	}
}

func TestSyncDocumentStorageFailuresAbort(t *testing.T) {
	ctx := context.Background()
	content := `{{checktask id="t1"}}Body{{/checktask}}`

	t.Run("fetch", func(t *testing.T) {
		store := &mockStore{fetchErr: errors.New("boom")}
		s := newTestSynchronizer(store, nil)
		if _, err := s.SyncDocument(ctx, "doc", content, "admin"); err == nil {
			t.Fatal("expected fetch failure to propagate")
		}
	})

	t.Run("upsert", func(t *testing.T) {
		store := &mockStore{upsertErr: errors.New("boom")}
		s := newTestSynchronizer(store, nil)
		if _, err := s.SyncDocument(ctx, "doc", content, "admin"); err == nil {
			t.Fatal("expected upsert failure to propagate")
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := &mockStore{
			tasks:     []domain.TaskRecord{{ID: "stale", DocumentID: "doc"}},
			deleteErr: errors.New("boom"),
		}
		s := newTestSynchronizer(store, nil)
		if _, err := s.SyncDocument(ctx, "doc", content, "admin"); err == nil {
			t.Fatal("expected delete failure to propagate")
		}
	})
}

func TestSyncDocumentEnqueueFailureDoesNotFailPass(t *testing.T) {
	store := &mockStore{enqueueErr: errors.New("queue down")}
	s := newTestSynchronizer(store, nil)

	res, err := s.SyncDocument(context.Background(), "doc", `{{checktask responsible="alice"}}X{{/checktask}}`, "admin")
	if err != nil {
		t.Fatalf("enqueue failure must not fail the pass: %v", err)
	}
	if len(res.TaskIDs) != 1 {
		t.Fatalf("expected the record to be created anyway, got %#v", res.TaskIDs)
	}
}
