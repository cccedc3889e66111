package models

import (
	"strconv"
	"strings"
)

// Priority is ordered; larger is more urgent. The integer values are the
// persisted encoding.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
	DefaultPriority = PriorityMedium
)

var priorityLabels = map[Priority]string{
	PriorityLow:      "Low",
	PriorityMedium:   "Medium",
	PriorityHigh:     "High",
	PriorityCritical: "Critical",
}

// AllPriorities returns every priority from lowest to highest.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

func (p Priority) String() string {
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return priorityLabels[DefaultPriority]
}

// LookupPriority accepts a label in any case or the numeric encoding.
func LookupPriority(s string) (Priority, bool) {
	key := Fold(strings.TrimSpace(s))
	if key == "" {
		return 0, false
	}
	for p, l := range priorityLabels {
		if Fold(l) == key {
			return p, true
		}
	}
	if n, err := strconv.Atoi(key); err == nil && Priority(n).Valid() {
		return Priority(n), true
	}
	return 0, false
}

// ParsePriority is LookupPriority with Medium as fallback.
func ParsePriority(s string) Priority {
	if p, ok := LookupPriority(s); ok {
		return p
	}
	return DefaultPriority
}
