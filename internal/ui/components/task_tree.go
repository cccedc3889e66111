package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/agrasandhani/internal/hierarchy"
	"github.com/ldi/agrasandhani/pkg/models"
)

var (
	openBoxStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)

	doneBoxStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

// TaskTree renders the hierarchy in two boxes: main tasks still open, and
// main tasks whose whole tree is done. Subtasks follow their parent.
type TaskTree struct {
	Open  [][]hierarchy.Entry
	Done  [][]hierarchy.Entry
	Width int
	Title string

	idx *hierarchy.Index
	now time.Time
}

func NewTaskTree(width int, tasks []models.Task, now time.Time) *TaskTree {
	return &TaskTree{
		Width: width,
		Title: "Tasks",
		idx:   hierarchy.New(tasks),
		now:   now,
	}
}

// Add takes flattened entries, as produced by Index.Flatten, and groups each
// depth-0 entry with the entries below it.
func (c *TaskTree) Add(entries []hierarchy.Entry) {
	var group []hierarchy.Entry
	flush := func() {
		if len(group) == 0 {
			return
		}
		if c.idx.Summary(group[0].Task.ID).Status == models.StatusCompleted {
			c.Done = append(c.Done, group)
		} else {
			c.Open = append(c.Open, group)
		}
		group = nil
	}
	for _, e := range entries {
		if e.Depth == 0 {
			flush()
		}
		group = append(group, e)
	}
	flush()
}

func (c *TaskTree) View() string {
	var boxes []string

	if len(c.Open) > 0 {
		boxes = append(boxes, c.renderBox("Open", c.Open, openBoxStyle))
	}

	if len(c.Done) > 0 {
		boxes = append(boxes, c.renderBox("Done", c.Done, doneBoxStyle))
	}

	var content string
	if len(boxes) == 0 {
		content = placeholderStyle.Render("No tasks yet")
	} else {
		content = strings.Join(boxes, "\n")
	}

	if c.Title != "" {
		return headerStyle.Render(c.Title) + "\n" + content
	}
	return content
}

func (c *TaskTree) icon(t models.Task) string {
	if t.IsCompleted {
		return "✓"
	}
	return "○"
}

func (c *TaskTree) suffix(t models.Task) string {
	var parts []string
	if sum := c.idx.Summary(t.ID); sum.Total > 0 {
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("[%d/%d]", sum.Completed, sum.Total)))
	}
	if t.DueDate != nil {
		due := t.DueDate.Local().Format("Jan 2")
		if t.IsOverdue(c.now) {
			parts = append(parts, overdueStyle.Render("overdue "+due))
		} else {
			parts = append(parts, mutedStyle.Render("due "+due))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func (c *TaskTree) renderBox(title string, groups [][]hierarchy.Entry, style lipgloss.Style) string {
	boxWidth := c.Width

	subTitle := subTitleStyle.Foreground(style.GetForeground()).Render(fmt.Sprintf("%s (%d)", title, len(groups)))

	innerWidth := boxWidth - 4
	if innerWidth < 0 {
		innerWidth = 0
	}

	var lines []string
	for _, group := range groups {
		for _, e := range group {
			indent := strings.Repeat("  ", e.Depth)
			nameWidth := innerWidth - len(indent) - 2
			if nameWidth < 0 {
				nameWidth = 0
			}
			label := fmt.Sprintf("%s [%s]%s", e.Task.Title, e.Task.Priority, c.suffix(e.Task))
			wrapped := lipgloss.NewStyle().Width(nameWidth).Render(label)
			for i, line := range strings.Split(wrapped, "\n") {
				if i == 0 {
					lines = append(lines, fmt.Sprintf("%s%s %s", indent, c.icon(e.Task), line))
				} else {
					lines = append(lines, fmt.Sprintf("%s  %s", indent, line))
				}
			}
		}
	}

	body := strings.Join(lines, "\n")
	return style.Width(boxWidth).Render(subTitle + "\n" + body)
}
