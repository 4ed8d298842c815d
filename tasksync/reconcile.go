package tasksync

import (
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskflow-api/domain"
	"taskflow-api/macro"
)

// Options carries the per-pass context for a reconciliation.
type Options struct {
	DocumentID string
	Actor      string
	DateLayout string
	URLBase    string
}

// Plan is the outcome of reconciling the directives found in a document
// against its persisted records. The caller applies it against storage;
// Reconcile itself never writes.
type Plan struct {
	// Upserts holds new records and records whose directive-controlled
	// fields changed, in directive appearance order.
	Upserts []domain.TaskRecord
	// Deletes lists ids of stale records: persisted but no longer backed by
	// a directive.
	Deletes []string
	// Assigned holds one notification per responsible user of each newly
	// created record.
	Assigned []domain.Notification
	// Found lists every directive id seen this pass, in appearance order.
	Found []string
	// NeedsWriteback is true when at least one directive was assigned a new
	// id and the source text must be re-serialized.
	NeedsWriteback bool
}

// Reconcile computes the create/update/delete plan for one document. Blocks
// without an id parameter get one assigned (and written back into the
// block); records whose id no longer appears among the blocks are marked
// stale. When the same id appears on two blocks, the first occurrence wins
// and later ones are ignored.
func Reconcile(blocks []*macro.Block, existing []domain.TaskRecord, opts Options, logger *log.Logger) Plan {
	byID := make(map[string]domain.TaskRecord, len(existing))
	for _, rec := range existing {
		byID[rec.ID] = rec
	}

	var plan Plan
	found := make(map[string]struct{}, len(blocks))

	for _, block := range blocks {
		id := block.Param(macro.ParamID)
		if strings.TrimSpace(id) == "" {
			id = domain.GenerateID()
			block.SetParam(macro.ParamID, id)
			plan.NeedsWriteback = true
		}
		if _, dup := found[id]; dup {
			logger.WithFields(log.Fields{"document": opts.DocumentID, "task": id}).
				Debug("duplicate directive id, first occurrence wins")
			continue
		}
		found[id] = struct{}{}
		plan.Found = append(plan.Found, id)

		responsible := domain.SplitList(block.Param(macro.ParamResponsible))
		record := domain.TaskRecord{
			ID:            id,
			DocumentID:    opts.DocumentID,
			Content:       block.Content,
			Responsible:   responsible,
			ReminderTimes: domain.NormalizeIntervals(block.Param(macro.ParamReminderTimes)),
			DueDate:       parseDueDate(block.Param(macro.ParamDueDate), opts, id, logger),
		}

		prev, exists := byID[id]
		if !exists {
			record.Creator = opts.Actor
			record.Done = parseDone(block.Param(macro.ParamDone))
			plan.Upserts = append(plan.Upserts, record)
			plan.Assigned = append(plan.Assigned, assignedNotifications(record, opts)...)
			continue
		}

		// Creator and completion state are not directive-owned after
		// creation; carry them over before comparing.
		record.Creator = prev.Creator
		record.Done = prev.Done
		if !record.SameFields(prev) {
			plan.Upserts = append(plan.Upserts, record)
		}
	}

	for _, rec := range existing {
		if _, ok := found[rec.ID]; !ok {
			plan.Deletes = append(plan.Deletes, rec.ID)
		}
	}
	return plan
}

func parseDueDate(raw string, opts Options, taskID string, logger *log.Logger) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	due, err := time.Parse(opts.DateLayout, raw)
	if err != nil {
		logger.WithFields(log.Fields{
			"document": opts.DocumentID,
			"task":     taskID,
			"dueDate":  raw,
		}).Warn("cannot parse directive dueDate, leaving it unset")
		return nil
	}
	return &due
}

func parseDone(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func assignedNotifications(record domain.TaskRecord, opts Options) []domain.Notification {
	if len(record.Responsible) == 0 {
		return nil
	}
	url := TaskURL(opts.URLBase, opts.DocumentID, record.ID)
	out := make([]domain.Notification, 0, len(record.Responsible))
	for _, user := range record.Responsible {
		out = append(out, domain.Notification{
			ID:         uuid.NewString(),
			DocumentID: opts.DocumentID,
			UserID:     user,
			EventType:  domain.EventAssigned,
			Params: map[string]string{
				domain.ParamTaskContent: record.Content,
				domain.ParamTaskCreator: record.Creator,
				domain.ParamTaskURL:     url,
			},
		})
	}
	return out
}

// TaskURL builds the anchor link included in notification parameters.
func TaskURL(base, documentID, taskID string) string {
	return strings.TrimRight(base, "/") + "/" + documentID + "#" + taskID
}
