package store

import (
	"context"
	"strings"
	"time"

	"github.com/ldi/agrasandhani/internal/hierarchy"
	"github.com/ldi/agrasandhani/pkg/models"
	"go.uber.org/zap"
)

const copySuffix = " (Copy)"

// Duplicate copies a task as a new open task next to the original. Subtasks
// are not copied and a due date moves one day later.
func (s *Store) Duplicate(ctx context.Context, id string) (models.Task, error) {
	var dup models.Task
	err := s.mutate(ctx, "duplicate", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		idx := hierarchy.New(tasks)
		src, ok := idx.Get(id)
		if !ok {
			return nil, notFound(id)
		}
		t := models.NewMainTask(s.newID(), src.Title+copySuffix, src.Category, src.Priority, now)
		t.Notes = src.Notes
		if src.DueDate != nil {
			d := src.DueDate.AddDate(0, 0, 1)
			t.DueDate = &d
		}
		if _, hasParent := idx.Parent(id); hasParent {
			t.ParentTaskID = src.ParentTaskID
			t.SortOrder = idx.NextSortOrder(src.ParentTaskID)
		}
		dup = t
		return append(tasks, t), nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return dup.Clone(), nil
}

// Postpone pushes the due date back by days, counting from now when the task
// has none.
func (s *Store) Postpone(ctx context.Context, id string, days int) (models.Task, error) {
	if days == 0 {
		return models.Task{}, &ValidationError{Field: "days", Constraint: "must not be zero"}
	}
	return s.setDue(ctx, "postpone", id, func(t models.Task, now time.Time) time.Time {
		from := now
		if t.DueDate != nil {
			from = *t.DueDate
		}
		return from.AddDate(0, 0, days)
	})
}

// MarkUrgent raises the priority to High and makes the task due in a day.
func (s *Store) MarkUrgent(ctx context.Context, id string) (models.Task, error) {
	var out models.Task
	err := s.mutate(ctx, "mark_urgent", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, notFound(id)
		}
		due := now.AddDate(0, 0, 1)
		tasks[i].Priority = models.PriorityHigh
		tasks[i].DueDate = &due
		tasks[i].UpdatedAt = now
		out = tasks[i]
		return tasks, nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return out.Clone(), nil
}

type ScheduleTarget string

const (
	ScheduleToday    ScheduleTarget = "today"
	ScheduleTomorrow ScheduleTarget = "tomorrow"
	ScheduleThisWeek ScheduleTarget = "thisWeek"
)

// Scheduled tasks are due at this hour of the chosen day.
const scheduleHour = 9

// ParseScheduleTarget accepts today, tomorrow and this-week spellings.
func ParseScheduleTarget(s string) (ScheduleTarget, error) {
	switch models.Fold(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)) {
	case "today":
		return ScheduleToday, nil
	case "tomorrow":
		return ScheduleTomorrow, nil
	case "thisweek", "week":
		return ScheduleThisWeek, nil
	}
	return "", &ValidationError{Field: "when", Constraint: "must be one of today, tomorrow, thisWeek"}
}

// DueFor computes the due date a schedule target resolves to.
func DueFor(target ScheduleTarget, now time.Time) time.Time {
	today := models.StartOfDay(now)
	switch target {
	case ScheduleTomorrow:
		return today.AddDate(0, 0, 1).Add(scheduleHour * time.Hour)
	case ScheduleThisWeek:
		// Start of the last day of the week.
		return models.StartOfWeek(now).AddDate(0, 0, 6)
	default:
		return today.Add(scheduleHour * time.Hour)
	}
}

func (s *Store) Schedule(ctx context.Context, id string, target ScheduleTarget) (models.Task, error) {
	return s.setDue(ctx, "schedule", id, func(_ models.Task, now time.Time) time.Time {
		return DueFor(target, now)
	})
}

func (s *Store) setDue(ctx context.Context, op, id string, due func(models.Task, time.Time) time.Time) (models.Task, error) {
	var out models.Task
	err := s.mutate(ctx, op, func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, notFound(id)
		}
		d := due(tasks[i], now)
		tasks[i].DueDate = &d
		tasks[i].UpdatedAt = now
		out = tasks[i]
		return tasks, nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return out.Clone(), nil
}

// Move reparents id under newParentID, or makes it a main task when
// newParentID is empty. Moves that would make a task its own ancestor are
// rejected.
func (s *Store) Move(ctx context.Context, id, newParentID string) (models.Task, error) {
	newParentID = strings.TrimSpace(newParentID)
	var out models.Task
	err := s.mutate(ctx, "move", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		idx := hierarchy.New(tasks)
		t, ok := idx.Get(id)
		if !ok {
			return nil, notFound(id)
		}
		if newParentID != "" {
			if _, ok := idx.Get(newParentID); !ok {
				return nil, notFound(newParentID)
			}
			if newParentID == id || idx.IsDescendant(id, newParentID) {
				return nil, &ValidationError{Field: "parentTaskId", Constraint: "a task cannot be moved under itself or its subtasks"}
			}
		}
		if t.ParentTaskID == newParentID {
			return nil, errUnchanged
		}

		oldParent := t.ParentTaskID
		i := indexOf(tasks, id)
		tasks[i].ParentTaskID = newParentID
		tasks[i].SortOrder = 0
		if newParentID != "" {
			tasks[i].SortOrder = idx.NextSortOrder(newParentID)
		}
		tasks[i].UpdatedAt = now
		hierarchy.ReindexSiblings(tasks, oldParent, now)
		out = tasks[i]
		return tasks, nil
	})
	if err != nil {
		return models.Task{}, err
	}
	if out.ID == "" {
		return s.Get(ctx, id)
	}
	return out.Clone(), nil
}

// Reorder moves a subtask to position among its siblings and renumbers them.
func (s *Store) Reorder(ctx context.Context, id string, position int) (models.Task, error) {
	var out models.Task
	err := s.mutate(ctx, "reorder", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		idx := hierarchy.New(tasks)
		t, ok := idx.Get(id)
		if !ok {
			return nil, notFound(id)
		}
		if _, hasParent := idx.Parent(id); !hasParent {
			return nil, &ValidationError{Field: "taskId", Constraint: "only subtasks can be reordered"}
		}
		siblings := idx.Subtasks(t.ParentTaskID)
		if position < 0 || position >= len(siblings) {
			return nil, &ValidationError{Field: "position", Constraint: "out of range"}
		}

		order := make([]string, 0, len(siblings))
		for _, sib := range siblings {
			if sib.ID != id {
				order = append(order, sib.ID)
			}
		}
		order = append(order[:position], append([]string{id}, order[position:]...)...)
		for n, sid := range order {
			j := indexOf(tasks, sid)
			if tasks[j].SortOrder != n {
				tasks[j].SortOrder = n
				tasks[j].UpdatedAt = now
			}
		}
		out = tasks[indexOf(tasks, id)]
		return tasks, nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return out.Clone(), nil
}

// BatchUpdate applies u to every id in one commit. Nothing changes unless
// every id exists.
func (s *Store) BatchUpdate(ctx context.Context, ids []string, u Update) ([]models.Task, error) {
	u = u.normalized()
	if err := validate(u); err != nil {
		return nil, err
	}
	if len(ids) == 0 || u.empty() {
		return nil, &ValidationError{Field: "batch", Constraint: "needs at least one id and one field"}
	}

	var out []models.Task
	err := s.mutate(ctx, "batch_update", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		for _, id := range ids {
			if indexOf(tasks, id) < 0 {
				return nil, notFound(id)
			}
		}
		for _, id := range ids {
			i := indexOf(tasks, id)
			applyUpdate(&tasks[i], u)
			if u.Completed != nil {
				hierarchy.PropagateCompletion(tasks, id, *u.Completed, now)
			}
			tasks[i].UpdatedAt = now
		}
		for _, id := range ids {
			out = append(out, tasks[indexOf(tasks, id)].Clone())
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BatchDelete removes every listed task with its subtree and returns how many
// records were removed. Nothing is removed unless every id exists; ids that
// fall inside an earlier id's subtree are already covered.
func (s *Store) BatchDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, &ValidationError{Field: "batch", Constraint: "needs at least one id"}
	}
	removed := 0
	err := s.mutate(ctx, "batch_delete", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		for _, id := range ids {
			if indexOf(tasks, id) < 0 {
				return nil, notFound(id)
			}
		}
		before := len(tasks)
		for _, id := range ids {
			tasks, _ = removeSubtree(tasks, id, now)
		}
		removed = before - len(tasks)
		if removed == 0 {
			return nil, errUnchanged
		}
		return tasks, nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("tasks deleted", zap.Int("count", removed))
	}
	return removed, nil
}
