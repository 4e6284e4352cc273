package models

// TaskStatus represents the progress of a task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
)

// DefaultLabel is reported for tasks stored without a label.
const DefaultLabel = "personal"

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusPending || s == TaskStatusDone
}

// Task is a dated to-do entry owned by a single user via UserID.
// DueDate is kept in the canonical DueLayout, in server local time.
type Task struct {
	ID          int64      `db:"id" json:"id"`
	Description string     `db:"what_to_do" json:"what_to_do"`
	DueDate     string     `db:"due_date" json:"due_date"`
	Status      TaskStatus `db:"status" json:"status"`
	Label       string     `db:"label" json:"label"`
	UserID      int64      `db:"user_id" json:"-"`
}

// DueSoon is a pending task falling inside the due-soon window.
type DueSoon struct {
	ID          int64  `db:"id" json:"id"`
	Description string `db:"what_to_do" json:"task"`
	DueDate     string `db:"due_date" json:"due_date"`
	MinutesLeft int    `db:"-" json:"minutes_left"`
}

// TaskPatch carries the fields of a partial update. A nil field is left unchanged.
type TaskPatch struct {
	Description *string
	DueDate     *string
	Label       *string
	Status      *TaskStatus
}

// Apply copies every supplied field onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Label != nil {
		t.Label = *p.Label
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}
