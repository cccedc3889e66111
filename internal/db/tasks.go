package db

import (
	"context"
	"fmt"

	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/pkg/models"
)

var _ store.Backend = (*DB)(nil)

const taskColumns = `id, title, notes, category, priority, is_completed, completed_at,
	due_date, created_at, updated_at, parent_task_id, sort_order, is_expanded`

const insertTask = `INSERT INTO tasks (` + taskColumns + `) VALUES (
	:id, :title, :notes, :category, :priority, :is_completed, :completed_at,
	:due_date, :created_at, :updated_at, :parent_task_id, :sort_order, :is_expanded)`

// Load returns every row, oldest first.
func (db *DB) Load(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at, id`
	if err := db.SelectContext(ctx, &tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Save replaces the table contents with tasks in one transaction.
func (db *DB) Save(ctx context.Context, tasks []models.Task) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertTask)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range tasks {
		if _, err := stmt.ExecContext(ctx, &tasks[i]); err != nil {
			return fmt.Errorf("failed to insert task %s: %w", tasks[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// SubtasksOf reads the children of parentID in display order straight from
// the table.
func (db *DB) SubtasksOf(ctx context.Context, parentID string) ([]models.Task, error) {
	var tasks []models.Task
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE parent_task_id = ?
		ORDER BY sort_order, created_at`
	if err := db.SelectContext(ctx, &tasks, query, parentID); err != nil {
		return nil, fmt.Errorf("failed to list subtasks of %s: %w", parentID, err)
	}
	return tasks, nil
}

// CountTasks returns the number of rows.
func (db *DB) CountTasks(ctx context.Context) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks`); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}
