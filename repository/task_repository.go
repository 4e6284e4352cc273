package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"todoTracker/internal/db"
	"todoTracker/models"
)

const taskColumns = `id, what_to_do, due_date, status, label, user_id`

// TaskRepository is the store for Task entities. Outside a transaction q is the
// pool itself; InTx hands out a copy bound to the transaction.
type TaskRepository struct {
	db   *sqlx.DB
	q    sqlx.ExtContext
	inTx bool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(d *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: d, q: d}
}

// InTx runs fn against a repository bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *TaskRepository) InTx(ctx context.Context, fn func(tx TaskRepositoryI) error) error {
	if r.inTx {
		return fn(r)
	}
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&TaskRepository{db: r.db, q: tx, inTx: true})
	})
}

// Create inserts a new task. Status defaults to 'pending', the due date to now
// and the label to 'personal'.
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	if t == nil {
		return nil, errors.New("task is nil")
	}
	if strings.TrimSpace(t.Description) == "" {
		return nil, fmt.Errorf("description is required: %w", ErrInvalidInput)
	}
	if t.UserID == 0 {
		return nil, fmt.Errorf("owner is required: %w", ErrInvalidInput)
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.DueDate == "" {
		t.DueDate = models.FormatDue(time.Now())
	}
	if t.Label == "" {
		t.Label = models.DefaultLabel
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	id, err := insertID(ctx, r.q, `INSERT INTO tasks (what_to_do, due_date, status, label, user_id) VALUES (?, ?, ?, ?, ?)`,
		t.Description, t.DueDate, string(t.Status), t.Label, t.UserID)
	if err != nil {
		return nil, err
	}
	out := *t
	out.ID = id
	return &out, nil
}

// GetForUser fetches a task by id if it is owned by userID.
func (r *TaskRepository) GetForUser(ctx context.Context, userID, id int64) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var t models.Task
	err := sqlx.GetContext(ctx, r.q, &t, r.q.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListByUser returns all tasks owned by userID in insertion order. Tasks stored
// without a label are reported as 'personal'.
func (r *TaskRepository) ListByUser(ctx context.Context, userID int64) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := []models.Task{}
	err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Label == "" {
			out[i].Label = models.DefaultLabel
		}
	}
	return out, nil
}

// ListDueSoon returns the pending tasks of userID due within [now, now+2h],
// both ends inclusive at second precision, soonest first.
func (r *TaskRepository) ListDueSoon(ctx context.Context, userID int64, now time.Time) ([]models.DueSoon, error) {
	now = now.Truncate(time.Second)
	from := models.FormatDue(now)
	to := models.FormatDue(now.Add(models.DueSoonWindow))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rows []models.DueSoon
	err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(`SELECT id, what_to_do, due_date FROM tasks
WHERE user_id = ? AND status = ? AND due_date BETWEEN ? AND ?
ORDER BY due_date, id`), userID, string(models.TaskStatusPending), from, to)
	if err != nil {
		return nil, err
	}
	out := make([]models.DueSoon, 0, len(rows))
	for _, row := range rows {
		due, err := time.ParseInLocation(models.DueLayout, row.DueDate, now.Location())
		if err != nil {
			log.Printf("task %d: skipping unparsable due_date %q: %v", row.ID, row.DueDate, err)
			continue
		}
		row.MinutesLeft = int(due.Sub(now) / time.Minute)
		out = append(out, row)
	}
	return out, nil
}

// Update writes every mutable field of t. The row must be owned by t.UserID.
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	if t == nil {
		return errors.New("task is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`UPDATE tasks SET what_to_do = ?, due_date = ?, label = ?, status = ? WHERE id = ? AND user_id = ?`),
		t.Description, t.DueDate, t.Label, string(t.Status), t.ID, t.UserID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Patch changes only the supplied fields of an owned task in one statement, so
// concurrent patches touching different fields both land.
func (r *TaskRepository) Patch(ctx context.Context, userID, id int64, p models.TaskPatch) error {
	var status *string
	if p.Status != nil {
		st := string(*p.Status)
		status = &st
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`UPDATE tasks SET
    what_to_do = COALESCE(?, what_to_do),
    due_date = COALESCE(?, due_date),
    label = COALESCE(?, label),
    status = COALESCE(?, status)
WHERE id = ? AND user_id = ?`),
		nullable(p.Description), nullable(p.DueDate), nullable(p.Label), nullable(status), id, userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// MarkDone sets the status of an owned task to 'done'. Marking a done task again succeeds.
func (r *TaskRepository) MarkDone(ctx context.Context, userID, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`UPDATE tasks SET status = ? WHERE id = ? AND user_id = ?`),
		string(models.TaskStatusDone), id, userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Delete removes an owned task.
func (r *TaskRepository) Delete(ctx context.Context, userID, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM tasks WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
