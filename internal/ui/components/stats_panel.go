package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/agrasandhani/internal/stats"
	"github.com/ldi/agrasandhani/pkg/models"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)

	barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const barWidth = 20

// StatsPanel renders a stats snapshot with a bar per category.
type StatsPanel struct {
	Snapshot stats.Snapshot
	Width    int
}

func NewStatsPanel(width int, snap stats.Snapshot) *StatsPanel {
	return &StatsPanel{Snapshot: snap, Width: width}
}

func bar(n, top int) string {
	if top == 0 || n == 0 {
		return ""
	}
	w := n * barWidth / top
	if w == 0 {
		w = 1
	}
	return barStyle.Render(strings.Repeat("█", w))
}

func (p *StatsPanel) View() string {
	s := p.Snapshot
	var lines []string

	lines = append(lines,
		fmt.Sprintf("Total %d  Active %d  Completed %d  Overdue %s",
			s.Total, s.Active, s.Completed, overdueCount(s.Overdue)),
		fmt.Sprintf("Due today %d  Due this week %d", s.DueToday, s.DueThisWeek),
		fmt.Sprintf("Main tasks %d  Subtasks %d  Finished trees %d", s.MainTasks, s.Subtasks, s.CompletedHierarchies),
		"",
		subTitleStyle.Render("By category"),
	)

	top := 0
	for _, n := range s.ByCategory {
		if n > top {
			top = n
		}
	}
	for _, c := range models.AllCategories() {
		n := s.ByCategory[c]
		if n == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-17s %3d %s", c, n, bar(n, top)))
	}

	lines = append(lines, "", subTitleStyle.Render("By priority"))
	for _, pr := range models.AllPriorities() {
		lines = append(lines, fmt.Sprintf("%-17s %3d", pr, s.ByPriority[pr.String()]))
	}

	lines = append(lines, "",
		fmt.Sprintf("Completion %.0f%%  Streak %d (best %d)  Score %d/100",
			s.CompletionRate*100, s.CurrentStreak, s.LongestStreak, s.ProductivityScore),
	)

	return panelStyle.Width(p.Width).Render(strings.Join(lines, "\n"))
}

func overdueCount(n int) string {
	if n == 0 {
		return "0"
	}
	return overdueStyle.Render(fmt.Sprint(n))
}
