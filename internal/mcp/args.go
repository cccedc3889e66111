package mcp

import (
	"strings"
	"time"

	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/pkg/models"
)

// categoryArg returns nil when key is absent or blank. Unknown labels fall
// back to the default category.
func categoryArg(args map[string]any, key string) *models.Category {
	s, ok := args[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	c := models.ParseCategory(s)
	return &c
}

// priorityArg accepts a label or a number. Unknown values fall back to the
// default priority.
func priorityArg(args map[string]any, key string) *models.Priority {
	var p models.Priority
	switch v := args[key].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		p = models.ParsePriority(v)
	case float64:
		p = models.Priority(int(v))
		if !p.Valid() {
			p = models.DefaultPriority
		}
	default:
		return nil
	}
	return &p
}

// dueDateArg parses an ISO 8601 date. An empty string or "null" asks for the
// due date to be cleared.
func dueDateArg(args map[string]any, key string) (*time.Time, bool, error) {
	s, ok := args[key].(string)
	if !ok {
		return nil, false, nil
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, true, nil
	}
	t, err := store.ParseDueDate(s, time.Local)
	if err != nil {
		return nil, false, err
	}
	return &t, false, nil
}

// idsArg reads a list of ids. A comma separated string is accepted too.
func idsArg(args map[string]any, key string) []string {
	var ids []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			ids = append(ids, s)
		}
	}
	switch v := args[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case []string:
		for _, s := range v {
			add(s)
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}
	return ids
}
