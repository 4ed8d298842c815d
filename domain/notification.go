package domain

// Event types emitted for task records.
const (
	EventAssigned = "assigned"
	EventExpiring = "expiring"
)

// Notification parameter names shared by both event types.
const (
	ParamTaskContent = "taskContent"
	ParamTaskCreator = "taskCreator"
	ParamTaskURL     = "taskUrl"
	ParamTaskDueDate = "taskDueDate"
)

// Notification is the envelope enqueued for the delivery channel. One
// envelope targets exactly one responsible user.
type Notification struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"documentId"`
	UserID     string            `json:"userId"`
	EventType  string            `json:"eventType"`
	Params     map[string]string `json:"params,omitempty"`
}
