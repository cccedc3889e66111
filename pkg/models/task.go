package models

import (
	"strings"
	"time"
)

// PlaceholderTitle replaces blank titles found in stored records.
const PlaceholderTitle = "Untitled Task"

// Task is the only persisted entity. Parent/child links are id references
// into the same flat collection.
type Task struct {
	ID           string     `json:"id" yaml:"id" toml:"id" db:"id"`
	Title        string     `json:"title" yaml:"title" toml:"title" db:"title"`
	Notes        string     `json:"notes,omitempty" yaml:"notes,omitempty" toml:"notes,omitempty" db:"notes"`
	Category     Category   `json:"category" yaml:"category" toml:"category" db:"category"`
	Priority     Priority   `json:"priority" yaml:"priority" toml:"priority" db:"priority"`
	IsCompleted  bool       `json:"isCompleted" yaml:"isCompleted" toml:"isCompleted" db:"is_completed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty" toml:"completedAt,omitempty" db:"completed_at"`
	DueDate      *time.Time `json:"dueDate,omitempty" yaml:"dueDate,omitempty" toml:"dueDate,omitempty" db:"due_date"`
	CreatedAt    time.Time  `json:"createdAt" yaml:"createdAt" toml:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" yaml:"updatedAt" toml:"updatedAt" db:"updated_at"`
	ParentTaskID string     `json:"parentTaskID,omitempty" yaml:"parentTaskID,omitempty" toml:"parentTaskID,omitempty" db:"parent_task_id"`
	SortOrder    int        `json:"sortOrder" yaml:"sortOrder" toml:"sortOrder" db:"sort_order"`
	IsExpanded   bool       `json:"isExpanded" yaml:"isExpanded" toml:"isExpanded" db:"is_expanded"`
}

// NewMainTask builds a task with no parent. Unknown enum values fall back to
// their defaults.
func NewMainTask(id, title string, category Category, priority Priority, now time.Time) Task {
	if !category.Valid() {
		category = DefaultCategory
	}
	if !priority.Valid() {
		priority = DefaultPriority
	}
	return Task{
		ID:        id,
		Title:     strings.TrimSpace(title),
		Category:  category,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSubtask builds a child of parent that inherits its category and priority.
func NewSubtask(id, title string, parent Task, sortOrder int, now time.Time) Task {
	t := NewMainTask(id, title, parent.Category, parent.Priority, now)
	t.ParentTaskID = parent.ID
	t.SortOrder = sortOrder
	return t
}

func (t Task) IsMainTask() bool {
	return t.ParentTaskID == ""
}

func (t Task) IsSubTask() bool {
	return t.ParentTaskID != ""
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	c := t
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.DueDate != nil {
		v := *t.DueDate
		c.DueDate = &v
	}
	return c
}

// SetCompleted flips the completion flag and keeps CompletedAt consistent.
// The timestamp is only stamped on a false to true transition. It reports
// whether anything changed.
func (t *Task) SetCompleted(completed bool, now time.Time) bool {
	if t.IsCompleted == completed {
		return false
	}
	t.IsCompleted = completed
	if completed {
		at := now
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = now
	return true
}

// Normalize applies the fallback rules used when records come back from
// storage.
func Normalize(t Task) Task {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		t.Title = PlaceholderTitle
	}
	if !t.Category.Valid() {
		t.Category = ParseCategory(string(t.Category))
	}
	if !t.Priority.Valid() {
		t.Priority = DefaultPriority
	}
	switch {
	case t.IsCompleted && t.CompletedAt == nil:
		at := t.UpdatedAt
		t.CompletedAt = &at
	case !t.IsCompleted && t.CompletedAt != nil:
		t.CompletedAt = nil
	}
	if t.SortOrder < 0 {
		t.SortOrder = 0
	}
	if t.ParentTaskID == t.ID {
		t.ParentTaskID = ""
	}
	return t
}
