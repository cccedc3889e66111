package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ldi/agrasandhani/internal/filter"
	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/internal/ui/components"
	"github.com/ldi/agrasandhani/pkg/models"
	"github.com/spf13/cobra"
)

const viewWidth = 80

const dateLayout = "Mon Jan 2, 2006 15:04"

// withApp opens the store for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func lookupCategory(s string) (*models.Category, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	cat, ok := models.LookupCategory(s)
	if !ok {
		return nil, fmt.Errorf("unknown category: %s", s)
	}
	return &cat, nil
}

func lookupPriority(s string) (*models.Priority, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	p, ok := models.LookupPriority(s)
	if !ok {
		return nil, fmt.Errorf("unknown priority: %s", s)
	}
	return &p, nil
}

func parseDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := store.ParseDueDate(s, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func mark(t models.Task) string {
	if t.IsCompleted {
		return "✓"
	}
	return "○"
}

func taskLine(t models.Task, now time.Time) string {
	var b strings.Builder
	if t.IsSubTask() {
		b.WriteString("  ↳ ")
	}
	fmt.Fprintf(&b, "%s %s  %s  [%s, %s]", mark(t), shortID(t.ID), t.Title, t.Category, t.Priority)
	if t.DueDate != nil {
		fmt.Fprintf(&b, "  due %s", t.DueDate.Local().Format(dateLayout))
		if t.IsOverdue(now) {
			b.WriteString(" (overdue)")
		}
	}
	return b.String()
}

func newAddCmd(c *cli) *cobra.Command {
	var notes, category, priority, due, parent string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task, or a subtask with --parent",
		Example: `  agrasandhani add Finish quarterly report --category work --priority high --due 2025-03-14
  agrasandhani add Draft outline --parent 1a2b3c4d`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := store.NewTask{Title: strings.Join(args, " "), Notes: notes}
			var err error
			if in.Category, err = lookupCategory(category); err != nil {
				return err
			}
			if in.Priority, err = lookupPriority(priority); err != nil {
				return err
			}
			if in.DueDate, err = parseDate(due); err != nil {
				return err
			}

			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				var created models.Task
				if parent != "" {
					p, err := resolveTask(ctx, a.store, parent)
					if err != nil {
						return err
					}
					created, err = a.store.CreateSubtask(ctx, p.ID, in)
					if err != nil {
						return err
					}
				} else {
					created, err = a.store.Create(ctx, in)
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s: %s\n", created.ID, created.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "free-form notes")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category label")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium, high or critical")
	cmd.Flags().StringVarP(&due, "due", "d", "", "due date (ISO 8601)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent task id or id prefix")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var category, priority, status, date, search, parent, sort, from, to string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks matching filters",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := filter.Filter{
				Completed: filter.ParseStatus(status),
				Date:      models.ParseDateFilter(date),
				Search:    search,
			}
			var err error
			if f.Category, err = lookupCategory(category); err != nil {
				return err
			}
			if f.Priority, err = lookupPriority(priority); err != nil {
				return err
			}
			if f.DueFrom, err = parseDate(from); err != nil {
				return err
			}
			if f.DueTo, err = parseDate(to); err != nil {
				return err
			}

			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				f.Parent = filter.ParseScope(parent)
				if f.Parent != filter.AnyParent() && f.Parent != filter.MainOnly() {
					p, err := resolveTask(ctx, a.store, parent)
					if err != nil {
						return err
					}
					f.Parent = filter.ChildrenOf(p.ID)
				}

				tasks, err := a.store.List(ctx, f, filter.ParseOrder(sort))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(out, "No tasks match your criteria.")
					return nil
				}
				now := a.store.Now()
				for _, t := range tasks {
					fmt.Fprintln(out, taskLine(t, now))
				}
				return nil
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&category, "category", "c", "", "only this category")
	fl.StringVarP(&priority, "priority", "p", "", "only this priority")
	fl.StringVarP(&status, "status", "s", "", "pending, completed or all")
	fl.StringVar(&date, "date", "", "today, tomorrow, thisWeek or overdue")
	fl.StringVarP(&search, "search", "q", "", "match title or notes")
	fl.StringVar(&parent, "parent", "", `"main" for main tasks, or a parent id`)
	fl.StringVar(&sort, "sort", "", "default, newest, oldest, dueDate, priority or title")
	fl.StringVar(&from, "from", "", "due on or after this date")
	fl.StringVar(&to, "to", "", "due on or before this date")
	return cmd
}

func newTreeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show tasks grouped under their parents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				tree := components.NewTaskTree(viewWidth, a.store.Tasks(ctx), a.store.Now())
				tree.Add(a.store.Tree(ctx))
				fmt.Fprintln(cmd.OutOrStdout(), tree.View())
				return nil
			})
		},
	}
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its parent and subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				t, err := resolveTask(ctx, a.store, args[0])
				if err != nil {
					return err
				}
				d, err := a.store.Details(ctx, t.ID)
				if err != nil {
					return err
				}
				writeDetails(cmd.OutOrStdout(), d)
				return nil
			})
		},
	}
}

func writeDetails(w io.Writer, d store.Details) {
	t := d.Task
	fmt.Fprintf(w, "%s %s\n", mark(t), t.Title)
	fmt.Fprintf(w, "  ID:        %s\n", t.ID)
	status := "Active"
	if t.IsCompleted && t.CompletedAt != nil {
		status = "Completed " + t.CompletedAt.Local().Format(dateLayout)
	}
	fmt.Fprintf(w, "  Status:    %s\n", status)
	fmt.Fprintf(w, "  Category:  %s\n", t.Category)
	fmt.Fprintf(w, "  Priority:  %s\n", t.Priority)
	if t.DueDate != nil {
		due := t.DueDate.Local().Format(dateLayout)
		if d.Overdue {
			due += " (overdue)"
		}
		fmt.Fprintf(w, "  Due:       %s\n", due)
	}
	if d.Parent != nil {
		fmt.Fprintf(w, "  Parent:    %s (%s)\n", d.Parent.Title, d.Parent.ID)
	}
	if t.Notes != "" {
		fmt.Fprintf(w, "  Notes:     %s\n", t.Notes)
	}
	if d.Summary.Total > 0 {
		fmt.Fprintf(w, "  Subtasks:  %d/%d done (%s)\n", d.Summary.Completed, d.Summary.Total, d.Summary.Status)
		for _, s := range d.Subtasks {
			fmt.Fprintf(w, "    %s %s  %s\n", mark(s), shortID(s.ID), s.Title)
		}
	}
}

func newDoneCmd(c *cli) *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:     "done <id>",
		Aliases: []string{"complete"},
		Short:   "Mark a task completed, or active again with --undo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				t, err := resolveTask(ctx, a.store, args[0])
				if err != nil {
					return err
				}
				t, err = a.store.SetCompleted(ctx, t.ID, !undo)
				if err != nil {
					return err
				}
				state := "completed"
				if undo {
					state = "active"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is %s\n", t.Title, state)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the task active again")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task and all of its subtasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				t, err := resolveTask(ctx, a.store, args[0])
				if err != nil {
					return err
				}
				if _, err := a.store.Delete(ctx, t.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", t.Title)
				return nil
			})
		},
	}
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals, streaks and the productivity score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				snap, err := a.store.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), components.NewStatsPanel(viewWidth, snap).View())
				return nil
			})
		},
	}
}
