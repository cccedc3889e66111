package models

import (
	"strings"
	"time"
)

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the Monday on or before t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsOverdue reports a due date strictly before now on an open task.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && !t.IsCompleted && t.DueDate.Before(now)
}

func (t Task) IsDueToday(now time.Time) bool {
	return t.DueDate != nil && sameDay(t.DueDate.In(now.Location()), now)
}

func (t Task) IsDueTomorrow(now time.Time) bool {
	return t.DueDate != nil && sameDay(t.DueDate.In(now.Location()), StartOfDay(now).AddDate(0, 0, 1))
}

// IsDueThisWeek uses a Monday-based week; both ends are inclusive.
func (t Task) IsDueThisWeek(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	start := StartOfWeek(now)
	end := start.AddDate(0, 0, 7)
	due := t.DueDate.In(now.Location())
	return !due.Before(start) && !due.After(end)
}

type DateFilter string

const (
	DateFilterAll       DateFilter = "all"
	DateFilterToday     DateFilter = "today"
	DateFilterTomorrow  DateFilter = "tomorrow"
	DateFilterThisWeek  DateFilter = "thisWeek"
	DateFilterOverdue   DateFilter = "overdue"
	DateFilterNoDueDate DateFilter = "noDueDate"
)

var dateFilters = []DateFilter{
	DateFilterAll,
	DateFilterToday,
	DateFilterTomorrow,
	DateFilterThisWeek,
	DateFilterOverdue,
	DateFilterNoDueDate,
}

// ParseDateFilter matches s ignoring case, dashes and underscores, so
// "this_week" and "due-today" are accepted. Unknown input means all.
func ParseDateFilter(s string) DateFilter {
	key := Fold(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	key = strings.TrimPrefix(key, "due")
	for _, f := range dateFilters {
		if Fold(string(f)) == key {
			return f
		}
	}
	return DateFilterAll
}

// Matches applies the filter to a single task.
func (f DateFilter) Matches(t Task, now time.Time) bool {
	switch f {
	case DateFilterToday:
		return t.IsDueToday(now)
	case DateFilterTomorrow:
		return t.IsDueTomorrow(now)
	case DateFilterThisWeek:
		return t.IsDueThisWeek(now)
	case DateFilterOverdue:
		return t.IsOverdue(now)
	case DateFilterNoDueDate:
		return t.DueDate == nil
	default:
		return true
	}
}

// HierarchyStatus is the roll-up of a task and its direct subtasks.
type HierarchyStatus int

const (
	StatusIncomplete HierarchyStatus = iota
	StatusPartiallyCompleted
	StatusCompleted
)

func (s HierarchyStatus) String() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusPartiallyCompleted:
		return "Partially Completed"
	default:
		return "Incomplete"
	}
}

// RollUp derives the status from the task's own flag and its subtask counts.
func RollUp(selfCompleted bool, completedSubtasks, totalSubtasks int) HierarchyStatus {
	switch {
	case totalSubtasks == 0:
		if selfCompleted {
			return StatusCompleted
		}
		return StatusIncomplete
	case selfCompleted && completedSubtasks == totalSubtasks:
		return StatusCompleted
	case !selfCompleted && completedSubtasks == 0:
		return StatusIncomplete
	default:
		return StatusPartiallyCompleted
	}
}
