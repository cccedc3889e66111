package mcp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ldi/agrasandhani/internal/hierarchy"
	"github.com/ldi/agrasandhani/internal/stats"
	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
)

const dateLayout = "Mon Jan 2, 2006 15:04"

func formatDate(t time.Time) string {
	return t.Local().Format(dateLayout)
}

func failed(action string, err error) *mcp.CallToolResult {
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: task not found: %s", action, nf.ID))
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, err))
}

func statusMark(completed bool) string {
	if completed {
		return "✅"
	}
	return "⭕"
}

func priorityMark(p models.Priority) string {
	switch p {
	case models.PriorityLow:
		return "🟢"
	case models.PriorityHigh:
		return "🟠"
	case models.PriorityCritical:
		return "🔴"
	default:
		return "🟡"
	}
}

func statusLabel(completed bool) string {
	if completed {
		return "Completed"
	}
	return "Active"
}

func renderCreated(heading string, t models.Task, parent *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", heading)
	fmt.Fprintf(&b, "**%s**\n", t.Title)
	if parent != nil {
		fmt.Fprintf(&b, "Under: **%s**\n", parent.Title)
	} else if t.ParentTaskID != "" {
		fmt.Fprintf(&b, "Subtask of: %s\n", t.ParentTaskID)
	}
	fmt.Fprintf(&b, "Category: %s\n", t.Category)
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	if t.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", formatDate(*t.DueDate))
	}
	fmt.Fprintf(&b, "Task ID: %s", t.ID)
	return b.String()
}

func renderUpdated(heading string, t models.Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", heading)
	fmt.Fprintf(&b, "**%s**\n", t.Title)
	fmt.Fprintf(&b, "Category: %s\n", t.Category)
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "%s Status: %s\n", statusMark(t.IsCompleted), statusLabel(t.IsCompleted))
	if t.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s%s\n", formatDate(*t.DueDate), overdueSuffix(t, now))
	}
	fmt.Fprintf(&b, "Task ID: %s", t.ID)
	return b.String()
}

func overdueSuffix(t models.Task, now time.Time) string {
	if t.IsOverdue(now) {
		return " 🔥 OVERDUE"
	}
	return ""
}

// renderTaskList lists tasks, counting subtasks against the whole
// collection so a filtered list still shows them.
func renderTaskList(tasks, all []models.Task, now time.Time) string {
	if len(tasks) == 0 {
		return "No tasks match your criteria."
	}
	idx := hierarchy.New(all)

	entries := make([]string, 0, len(tasks))
	for _, t := range tasks {
		indent := ""
		if t.IsSubTask() {
			indent = "  └─ "
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s%s %s **%s**", indent, statusMark(t.IsCompleted), priorityMark(t.Priority), t.Title)
		if t.DueDate != nil {
			fmt.Fprintf(&b, " (Due: %s)", formatDate(*t.DueDate))
		}
		b.WriteString(overdueSuffix(t, now))
		fmt.Fprintf(&b, "\n%s   %s | %s | %s", indent, t.Category, t.Priority, t.ID)
		if t.Notes != "" {
			fmt.Fprintf(&b, "\n%s   Notes: %s", indent, t.Notes)
		}
		if n := len(idx.Subtasks(t.ID)); n > 0 {
			sum := idx.Summary(t.ID)
			fmt.Fprintf(&b, "\n%s   %d/%d subtask(s) done", indent, sum.Completed, n)
		}
		entries = append(entries, b.String())
	}
	return fmt.Sprintf("Tasks (%d found)\n\n%s", len(tasks), strings.Join(entries, "\n\n"))
}

func renderLines(tasks []models.Task, now time.Time) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("%s %s %s (%s)%s", statusMark(t.IsCompleted), priorityMark(t.Priority), t.Title, t.ID, overdueSuffix(t, now)))
	}
	return strings.Join(lines, "\n")
}

func renderStats(s stats.Snapshot) string {
	var b strings.Builder
	b.WriteString("Task Statistics\n\n")
	b.WriteString("Overall:\n")
	fmt.Fprintf(&b, "  Total: %d\n", s.Total)
	fmt.Fprintf(&b, "  Active: %d\n", s.Active)
	fmt.Fprintf(&b, "  Completed: %d\n", s.Completed)
	fmt.Fprintf(&b, "  Overdue: %d\n", s.Overdue)
	fmt.Fprintf(&b, "  Due today: %d\n", s.DueToday)
	fmt.Fprintf(&b, "  Due this week: %d\n", s.DueThisWeek)
	fmt.Fprintf(&b, "  Main tasks: %d, subtasks: %d\n", s.MainTasks, s.Subtasks)
	fmt.Fprintf(&b, "  Completed hierarchies: %d\n\n", s.CompletedHierarchies)

	b.WriteString("By Category:\n")
	for _, c := range models.AllCategories() {
		fmt.Fprintf(&b, "  %s: %d\n", c, s.ByCategory[c])
	}
	b.WriteString("\nBy Priority:\n")
	for _, p := range models.AllPriorities() {
		fmt.Fprintf(&b, "  %s %s: %d\n", priorityMark(p), p, s.ByPriority[p.String()])
	}

	b.WriteString("\nProductivity:\n")
	fmt.Fprintf(&b, "  Completion rate: %.0f%%\n", s.CompletionRate*100)
	fmt.Fprintf(&b, "  Current streak: %d day(s)\n", s.CurrentStreak)
	fmt.Fprintf(&b, "  Longest streak: %d day(s)\n", s.LongestStreak)
	fmt.Fprintf(&b, "  Score: %d/100", s.ProductivityScore)
	return b.String()
}

func renderDetails(d store.Details) string {
	t := d.Task
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", t.Title)
	fmt.Fprintf(&b, "ID: %s\n", t.ID)
	fmt.Fprintf(&b, "Category: %s\n", t.Category)
	fmt.Fprintf(&b, "Priority: %s %s\n", priorityMark(t.Priority), t.Priority)
	fmt.Fprintf(&b, "%s Status: %s\n", statusMark(t.IsCompleted), statusLabel(t.IsCompleted))
	fmt.Fprintf(&b, "Created: %s\n", formatDate(t.CreatedAt))
	if t.DueDate != nil {
		overdue := ""
		if d.Overdue {
			overdue = " 🔥 OVERDUE"
		}
		fmt.Fprintf(&b, "Due: %s%s\n", formatDate(*t.DueDate), overdue)
	}
	if t.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed: %s\n", formatDate(*t.CompletedAt))
	}
	if t.Notes != "" {
		fmt.Fprintf(&b, "\nNotes:\n%s\n", t.Notes)
	}
	if d.Parent != nil {
		fmt.Fprintf(&b, "\nParent Task: %s (%s)\n", d.Parent.Title, d.Parent.ID)
	}
	if len(d.Subtasks) > 0 {
		fmt.Fprintf(&b, "\nSubtasks (%d/%d done, %s):\n", d.Summary.Completed, d.Summary.Total, d.Summary.Status)
		for _, sub := range d.Subtasks {
			fmt.Fprintf(&b, "  %s %s (%s)\n", statusMark(sub.IsCompleted), sub.Title, sub.ID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTree(entries []hierarchy.Entry, all []models.Task, now time.Time) string {
	if len(entries) == 0 {
		return "No tasks yet."
	}
	idx := hierarchy.New(all)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("%s%s %s (%s)", strings.Repeat("  ", e.Depth), statusMark(e.Task.IsCompleted), e.Task.Title, e.Task.ID)
		if sum := idx.Summary(e.Task.ID); sum.Total > 0 {
			line += fmt.Sprintf(" [%d/%d]", sum.Completed, sum.Total)
		}
		line += overdueSuffix(e.Task, now)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
