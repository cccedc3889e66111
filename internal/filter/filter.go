// Package filter selects and orders tasks. Every axis of a Filter is
// optional and set axes are combined with AND.
package filter

import (
	"strings"
	"time"

	"github.com/ldi/agrasandhani/pkg/models"
)

type scopeKind int

const (
	scopeAny scopeKind = iota
	scopeMain
	scopeChildren
)

// Scope restricts results by position in the hierarchy.
type Scope struct {
	kind     scopeKind
	parentID string
}

// AnyParent imposes no constraint.
func AnyParent() Scope { return Scope{} }

// MainOnly keeps tasks without a parent.
func MainOnly() Scope { return Scope{kind: scopeMain} }

// ChildrenOf keeps the direct subtasks of id.
func ChildrenOf(id string) Scope { return Scope{kind: scopeChildren, parentID: id} }

// ParseScope maps the tool argument form: "" is any, "main" (or "null") is
// main only, anything else a parent id.
func ParseScope(s string) Scope {
	switch strings.TrimSpace(s) {
	case "":
		return AnyParent()
	case "main", "null", "none":
		return MainOnly()
	default:
		return ChildrenOf(strings.TrimSpace(s))
	}
}

func (s Scope) match(t models.Task) bool {
	switch s.kind {
	case scopeMain:
		return t.ParentTaskID == ""
	case scopeChildren:
		return t.ParentTaskID == s.parentID
	default:
		return true
	}
}

type Filter struct {
	Category  *models.Category
	Priority  *models.Priority
	Completed *bool
	Parent    Scope
	Date      models.DateFilter
	Search    string
	DueFrom   *time.Time
	DueTo     *time.Time
}

// Match reports whether t passes every set axis.
func (f Filter) Match(t models.Task, now time.Time) bool {
	if f.Category != nil && t.Category != *f.Category {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Completed != nil && t.IsCompleted != *f.Completed {
		return false
	}
	if !f.Parent.match(t) {
		return false
	}
	if !f.Date.Matches(t, now) {
		return false
	}
	if !f.matchDueRange(t) {
		return false
	}
	return f.matchSearch(t)
}

func (f Filter) matchDueRange(t models.Task) bool {
	if f.DueFrom == nil && f.DueTo == nil {
		return true
	}
	if t.DueDate == nil {
		return false
	}
	if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && t.DueDate.After(*f.DueTo) {
		return false
	}
	return true
}

func (f Filter) matchSearch(t models.Task) bool {
	q := models.Fold(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	for _, field := range []string{t.Title, t.Notes, string(t.Category), t.Priority.String()} {
		if strings.Contains(models.Fold(field), q) {
			return true
		}
	}
	return false
}

// Apply returns the matching tasks in input order. The input is not
// modified.
func Apply(tasks []models.Task, f Filter, now time.Time) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t, now) {
			out = append(out, t)
		}
	}
	return out
}

// ParseStatus maps "pending" and "completed" to a completion constraint.
// "all" and unknown input impose none.
func ParseStatus(s string) *bool {
	var v bool
	switch models.Fold(strings.TrimSpace(s)) {
	case "pending", "active", "open":
		v = false
	case "completed", "done":
		v = true
	default:
		return nil
	}
	return &v
}
