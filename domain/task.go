package domain

import (
	"sort"
	"strings"
	"time"
)

// TaskRecord is the persisted state of one checktask directive. Records are
// owned by exactly one document; IDs are unique within that document and
// never change once assigned.
type TaskRecord struct {
	ID            string     `json:"id"`
	DocumentID    string     `json:"documentId"`
	Content       string     `json:"content"`
	Creator       string     `json:"creator"`
	Responsible   []string   `json:"responsible,omitempty"`
	ReminderTimes []string   `json:"reminderTimes,omitempty"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Done          bool       `json:"done,omitempty"`
}

// HasReminder reports whether the record subscribes to the given interval key.
func (t TaskRecord) HasReminder(interval string) bool {
	for _, key := range t.ReminderTimes {
		if key == interval {
			return true
		}
	}
	return false
}

// SameFields reports whether the directive-controlled fields of both records
// are equal by value. Creator and Done are excluded: they are fixed at
// creation and not owned by the directive text afterwards.
func (t TaskRecord) SameFields(other TaskRecord) bool {
	if t.Content != other.Content {
		return false
	}
	if !equalStrings(t.Responsible, other.Responsible) {
		return false
	}
	if !equalStrings(t.ReminderTimes, other.ReminderTimes) {
		return false
	}
	return equalTimes(t.DueDate, other.DueDate)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// SplitList splits a comma separated raw field into trimmed tokens, dropping
// empty entries. Token order is preserved.
func SplitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeIntervals splits a raw reminderTimes field and deduplicates the
// keys so membership checks behave as a set. Result order is sorted for
// stable value comparison.
func NormalizeIntervals(raw string) []string {
	tokens := SplitList(raw)
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
