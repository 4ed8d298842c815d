package domain

// DueTask pairs a due task id with its responsible users. Entries are kept
// in discovery order so the dispatch grouping preserves it.
type DueTask struct {
	TaskID string
	Users  []string
}

// DueTasks is the document-centric view produced while scanning reminder
// windows: interval key → document → due tasks with their responsible users.
type DueTasks map[string]map[string][]DueTask

// Reminders is the dispatch grouping handed to the notification walk:
// interval key → user → document → ordered task ids.
type Reminders map[string]map[string]map[string][]string

// Add records the responsible users of one due task.
func (d DueTasks) Add(interval, documentID, taskID string, users []string) {
	docs, ok := d[interval]
	if !ok {
		docs = make(map[string][]DueTask)
		d[interval] = docs
	}
	docs[documentID] = append(docs[documentID], DueTask{TaskID: taskID, Users: users})
}

// Invert turns the document-centric view into the user-centric dispatch
// grouping. Intervals and documents that end up with no entries are dropped.
func (d DueTasks) Invert() Reminders {
	inverted := make(Reminders, len(d))
	for interval, docs := range d {
		users := make(map[string]map[string][]string)
		for documentID, tasks := range docs {
			for _, task := range tasks {
				for _, user := range task.Users {
					byDoc, ok := users[user]
					if !ok {
						byDoc = make(map[string][]string)
						users[user] = byDoc
					}
					byDoc[documentID] = append(byDoc[documentID], task.TaskID)
				}
			}
		}
		if len(users) > 0 {
			inverted[interval] = users
		}
	}
	return inverted
}
