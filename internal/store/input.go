package store

import (
	"strings"
	"time"

	"github.com/ldi/agrasandhani/pkg/models"
)

// NewTask describes a task to create. Nil category or priority means
// "inherit from the parent", or the default for a main task.
type NewTask struct {
	Title        string `validate:"required,max=500"`
	Notes        string `validate:"max=10000"`
	Category     *models.Category
	Priority     *models.Priority
	DueDate      *time.Time
	ParentTaskID string
}

// Update carries the fields to change; nil pointers are left alone.
type Update struct {
	Title        *string `validate:"omitnil,min=1,max=500"`
	Notes        *string `validate:"omitnil,max=10000"`
	Category     *models.Category
	Priority     *models.Priority
	Completed    *bool
	DueDate      *time.Time
	ClearDueDate bool
	IsExpanded   *bool
}

func (u Update) empty() bool {
	return u.Title == nil && u.Notes == nil && u.Category == nil && u.Priority == nil &&
		u.Completed == nil && u.DueDate == nil && !u.ClearDueDate && u.IsExpanded == nil
}

// validate runs the struct tags and reports the first failed rule.
func validate(v any) error {
	err := models.ValidateStruct(v)
	if err == nil {
		return nil
	}
	if fe, ok := models.FirstFieldError(err); ok {
		constraint := fe.Rule
		switch fe.Rule {
		case "required", "min":
			constraint = "must not be empty"
		case "max":
			constraint = "must be at most " + fe.Param + " characters"
		}
		return &ValidationError{Field: fe.Field, Constraint: constraint}
	}
	return &ValidationError{Field: "input", Constraint: err.Error()}
}

func (n NewTask) normalized() NewTask {
	n.Title = strings.TrimSpace(n.Title)
	n.ParentTaskID = strings.TrimSpace(n.ParentTaskID)
	return n
}

func (u Update) normalized() Update {
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		u.Title = &t
	}
	return u
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseDueDate reads an ISO-8601 date or timestamp. Values without a zone are
// taken in loc.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ValidationError{Field: "dueDate", Constraint: "'" + s + "' is not an ISO-8601 date"}
}
