package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskflow-api/domain"
)

// Storage provides access to the task record table and the notification
// queue. Task records are partitioned by owning document: PartitionKey is
// the document id, RowKey the task id, which gives exclusive per-document
// ownership for free.
type Storage struct {
	taskTable         *aztables.Client
	notificationQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, notificationsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	tt := svc.NewClient(tasksTable)

	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	nq, err := azqueue.NewQueueClientFromConnectionString(connStr, notificationsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{taskTable: tt, notificationQueue: nq}, nil
}

// Entity property names for task records.
const (
	propContent       = "Content"
	propCreator       = "Creator"
	propResponsible   = "Responsible"
	propReminderTimes = "ReminderTimes"
	propDueDate       = "DueDate"
	propDone          = "Done"
)

const listSeparator = ","

func encodeTask(rec domain.TaskRecord) ([]byte, error) {
	ent := aztables.EDMEntity{
		Entity: aztables.Entity{
			PartitionKey: rec.DocumentID,
			RowKey:       rec.ID,
		},
		Properties: map[string]any{
			propContent:       rec.Content,
			propCreator:       rec.Creator,
			propResponsible:   strings.Join(rec.Responsible, listSeparator),
			propReminderTimes: strings.Join(rec.ReminderTimes, listSeparator),
			propDone:          rec.Done,
		},
	}
	if rec.DueDate != nil {
		ent.Properties[propDueDate] = aztables.EDMDateTime(rec.DueDate.UTC())
	}
	return json.Marshal(ent)
}

func decodeTask(data []byte) (domain.TaskRecord, error) {
	var ent aztables.EDMEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.TaskRecord{}, err
	}
	rec := domain.TaskRecord{
		ID:            ent.RowKey,
		DocumentID:    ent.PartitionKey,
		Content:       stringProp(ent.Properties, propContent),
		Creator:       stringProp(ent.Properties, propCreator),
		Responsible:   domain.SplitList(stringProp(ent.Properties, propResponsible)),
		ReminderTimes: domain.SplitList(stringProp(ent.Properties, propReminderTimes)),
	}
	if done, ok := ent.Properties[propDone].(bool); ok {
		rec.Done = done
	}
	if due, ok := ent.Properties[propDueDate].(aztables.EDMDateTime); ok {
		t := time.Time(due)
		rec.DueDate = &t
	}
	return rec, nil
}

func stringProp(props map[string]any, name string) string {
	if v, ok := props[name].(string); ok {
		return v
	}
	return ""
}

// quoteFilterValue escapes a string for use inside an OData filter literal.
func quoteFilterValue(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func filterTimestamp(t time.Time) string {
	return "datetime'" + t.UTC().Format(time.RFC3339) + "'"
}

// FetchTasks retrieves all task records owned by the given document.
func (s *Storage) FetchTasks(ctx context.Context, documentID string) ([]domain.TaskRecord, error) {
	filter := "PartitionKey eq " + quoteFilterValue(documentID)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	records := []domain.TaskRecord{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			rec, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// GetTask retrieves a single task record.
func (s *Storage) GetTask(ctx context.Context, documentID, taskID string) (domain.TaskRecord, error) {
	resp, err := s.taskTable.GetEntity(ctx, documentID, taskID, nil)
	if err != nil {
		return domain.TaskRecord{}, err
	}
	return decodeTask(resp.Value)
}

// UpsertTasks writes the given records, replacing any stored state for the
// same (document, task) pair. The first failure aborts the batch so a sync
// pass never silently commits a partial plan.
func (s *Storage) UpsertTasks(ctx context.Context, records []domain.TaskRecord) error {
	for _, rec := range records {
		payload, err := encodeTask(rec)
		if err != nil {
			return fmt.Errorf("encode task %s: %w", rec.ID, err)
		}
		opts := &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}
		if _, err := s.taskTable.UpsertEntity(ctx, payload, opts); err != nil {
			return fmt.Errorf("upsert task %s: %w", rec.ID, err)
		}
	}
	return nil
}

// DeleteTasks removes the given task records from the document's set.
// Records already absent are not an error.
func (s *Storage) DeleteTasks(ctx context.Context, documentID string, taskIDs []string) error {
	et := azcore.ETagAny
	for _, id := range taskIDs {
		_, err := s.taskTable.DeleteEntity(ctx, documentID, id, &aztables.DeleteEntityOptions{IfMatch: &et})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("delete task %s: %w", id, err)
		}
	}
	return nil
}

// FindTasksDueBetween returns all records, across documents, whose due date
// falls in [start, end). Records without a due date have no DueDate property
// and never match.
func (s *Storage) FindTasksDueBetween(ctx context.Context, start, end time.Time) ([]domain.TaskRecord, error) {
	filter := propDueDate + " ge " + filterTimestamp(start) + " and " + propDueDate + " lt " + filterTimestamp(end)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	records := []domain.TaskRecord{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			rec, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// EnqueueNotifications sends the given envelopes to the notification queue.
func (s *Storage) EnqueueNotifications(ctx context.Context, notifications []domain.Notification) error {
	for _, n := range notifications {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if _, err := s.notificationQueue.EnqueueMessage(ctx, string(data), nil); err != nil {
			return err
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == 404
	}
	return false
}
