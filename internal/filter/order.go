package filter

import (
	"sort"
	"strings"

	"github.com/ldi/agrasandhani/pkg/models"
)

// Order names a result ordering. The zero value defers to the caller's
// configured default.
type Order string

const (
	OrderUnset    Order = ""
	OrderDefault  Order = "default"
	OrderNewest   Order = "newest"
	OrderOldest   Order = "oldest"
	OrderDueDate  Order = "dueDate"
	OrderPriority Order = "priority"
	OrderTitle    Order = "title"
)

var orders = []Order{OrderDefault, OrderNewest, OrderOldest, OrderDueDate, OrderPriority, OrderTitle}

// ParseOrder matches case-insensitively; unknown input is OrderUnset.
func ParseOrder(s string) Order {
	key := models.Fold(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(s)))
	for _, o := range orders {
		if models.Fold(string(o)) == key {
			return o
		}
	}
	if key == "due" {
		return OrderDueDate
	}
	return OrderUnset
}

// Sort orders tasks in place. Ties fall back to creation time, then id, so
// results are stable across calls.
func Sort(tasks []models.Task, o Order) {
	less := lessFunc(o)
	sort.SliceStable(tasks, func(i, j int) bool {
		return less(tasks[i], tasks[j])
	})
}

func lessFunc(o Order) func(a, b models.Task) bool {
	switch o {
	case OrderNewest:
		return func(a, b models.Task) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		}
	case OrderOldest:
		return tiebreak
	case OrderDueDate:
		return func(a, b models.Task) bool {
			if c := compareDue(a, b); c != 0 {
				return c < 0
			}
			return tiebreak(a, b)
		}
	case OrderPriority:
		return func(a, b models.Task) bool {
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return tiebreak(a, b)
		}
	case OrderTitle:
		return func(a, b models.Task) bool {
			at, bt := models.Fold(a.Title), models.Fold(b.Title)
			if at != bt {
				return at < bt
			}
			return tiebreak(a, b)
		}
	default:
		return lessDefault
	}
}

// lessDefault puts open tasks first, then higher priority, then the earliest
// due date, with undated tasks last.
func lessDefault(a, b models.Task) bool {
	if a.IsCompleted != b.IsCompleted {
		return !a.IsCompleted
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if c := compareDue(a, b); c != 0 {
		return c < 0
	}
	return tiebreak(a, b)
}

func compareDue(a, b models.Task) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	case a.DueDate.Before(*b.DueDate):
		return -1
	case a.DueDate.After(*b.DueDate):
		return 1
	default:
		return 0
	}
}

func tiebreak(a, b models.Task) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
