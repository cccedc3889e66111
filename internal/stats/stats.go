// Package stats computes point-in-time aggregates over a task collection.
// Nothing is cached between calls.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/ldi/agrasandhani/internal/hierarchy"
	"github.com/ldi/agrasandhani/pkg/models"
)

type Snapshot struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Completed   int `json:"completed"`
	Overdue     int `json:"overdue"`
	MainTasks   int `json:"mainTasks"`
	Subtasks    int `json:"subtasks"`
	DueToday    int `json:"dueToday"`
	DueThisWeek int `json:"dueThisWeek"`

	// Fully completed main tasks, counting their subtasks.
	CompletedHierarchies int `json:"completedHierarchies"`

	ByCategory map[models.Category]int `json:"byCategory"`
	ByPriority map[string]int          `json:"byPriority"`

	CompletionRate    float64 `json:"completionRate"`
	CurrentStreak     int     `json:"currentStreak"`
	LongestStreak     int     `json:"longestStreak"`
	ProductivityScore int     `json:"productivityScore"`
}

// Compute builds a Snapshot relative to now. Calendar days are taken in
// now's location.
func Compute(tasks []models.Task, now time.Time) Snapshot {
	s := Snapshot{
		Total:      len(tasks),
		ByCategory: make(map[models.Category]int),
		ByPriority: make(map[string]int),
	}
	for _, c := range models.AllCategories() {
		s.ByCategory[c] = 0
	}
	for _, p := range models.AllPriorities() {
		s.ByPriority[p.String()] = 0
	}

	idx := hierarchy.New(tasks)
	var completions []time.Time
	for _, t := range tasks {
		if t.IsCompleted {
			s.Completed++
			if t.CompletedAt != nil {
				completions = append(completions, *t.CompletedAt)
			}
		} else {
			s.Active++
		}
		if t.IsOverdue(now) {
			s.Overdue++
		}
		if t.IsDueToday(now) {
			s.DueToday++
		}
		if t.IsDueThisWeek(now) {
			s.DueThisWeek++
		}
		if _, ok := idx.Parent(t.ID); ok {
			s.Subtasks++
		} else {
			s.MainTasks++
			if idx.Summary(t.ID).Status == models.StatusCompleted {
				s.CompletedHierarchies++
			}
		}
		s.ByCategory[bucketCategory(t.Category)]++
		s.ByPriority[t.Priority.String()]++
	}

	if s.Total > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Total)
	}
	s.CurrentStreak, s.LongestStreak = Streaks(completions, now)
	s.ProductivityScore = Score(s.CompletionRate, s.CurrentStreak, s.Active, s.Overdue)
	return s
}

func bucketCategory(c models.Category) models.Category {
	if c.Valid() {
		return c
	}
	return models.DefaultCategory
}

// Streaks counts runs of consecutive calendar days with at least one
// completion. The current run is alive only if its last day is today or
// yesterday.
func Streaks(completions []time.Time, now time.Time) (current, longest int) {
	if len(completions) == 0 {
		return 0, 0
	}
	loc := now.Location()
	seen := make(map[string]bool)
	var days []time.Time
	for _, c := range completions {
		d := models.StartOfDay(c.In(loc))
		key := d.Format(time.DateOnly)
		if !seen[key] {
			seen[key] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 0
	for i, d := range days {
		if i > 0 && days[i-1].AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	today := models.StartOfDay(now)
	last := days[len(days)-1]
	if last.Equal(today) || last.AddDate(0, 0, 1).Equal(today) {
		current = run
	}
	return current, longest
}

// Score is the 0-100 productivity heuristic: completion percentage, plus two
// points per streak day up to 20, plus up to 10 for timeliness.
func Score(rate float64, streak, active, overdue int) int {
	base := math.Min(100, rate*100)
	bonus := math.Min(20, float64(2*streak))
	timeliness := 10.0
	if active > 0 {
		timeliness = math.Max(0, float64(10-overdue))
	}
	return int(math.Round(math.Min(100, base+bonus+timeliness)))
}
