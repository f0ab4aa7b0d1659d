package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignedByAI attributes tasks created by the triage pipeline.
const AssignedByAI = "SParsh AI"

// Task is a wellness task on a student's list. Tasks are never deleted by
// the pipeline; only completion is toggled.
type Task struct {
	ID          uuid.UUID `json:"id"`
	StudentID   string    `json:"student_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"is_completed"`
	AssignedBy  string    `json:"assigned_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// DB is the pgx query surface the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for wellness tasks.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("tasks: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

// Assign inserts a new task onto the student's list.
func (r *Repository) Assign(ctx context.Context, task Task) (Task, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO wellness_tasks (id, student_id, title, description, is_completed, assigned_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.StudentID, task.Title, task.Description, task.IsCompleted, task.AssignedBy, task.CreatedAt,
	)
	if err != nil {
		return Task{}, fmt.Errorf("tasks: insert task: %w", err)
	}
	return task, nil
}

// GetForStudent lists a student's tasks, newest first.
func (r *Repository) GetForStudent(ctx context.Context, studentID string) ([]Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, student_id, title, description, is_completed, assigned_by, created_at
		 FROM wellness_tasks WHERE student_id = $1 ORDER BY created_at DESC`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("tasks: list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.StudentID, &t.Title, &t.Description, &t.IsCompleted, &t.AssignedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("tasks: scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tasks: iterate tasks: %w", err)
	}
	return out, nil
}

// SetCompleted toggles a task's completion state.
func (r *Repository) SetCompleted(ctx context.Context, id uuid.UUID, completed bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE wellness_tasks SET is_completed = $1 WHERE id = $2`,
		completed, id,
	)
	if err != nil {
		return fmt.Errorf("tasks: update completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tasks: task %s not found", id)
	}
	return nil
}
