package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/ldi/agrasandhani/internal/filter"
	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "Agrasandhani"
	ServerVersion = "1.0.0"
)

func categoryEnum() []string {
	out := make([]string, 0, len(models.AllCategories()))
	for _, c := range models.AllCategories() {
		out = append(out, string(c))
	}
	return out
}

var priorityHelp = "Priority (low|medium|high|critical, case-insensitive)"

// NewServer creates a new MCP server over the task store.
func NewServer(st *store.Store) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))
	categoryHelp := "Category (" + strings.Join(categoryEnum(), ", ") + ")"

	// Core operations
	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task. Pass parentTaskId to create it as a subtask."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("notes", mcp.Description("Optional notes")),
		mcp.WithString("category", mcp.Description(categoryHelp)),
		mcp.WithString("priority", mcp.Description(priorityHelp)),
		mcp.WithString("dueDate", mcp.Description("Due date in ISO 8601 format")),
		mcp.WithString("parentTaskId", mcp.Description("ID of the parent task")),
	), createTaskHandler(st))

	s.AddTool(mcp.NewTool("get_tasks",
		mcp.WithDescription("List tasks with optional filters. All filters combine with AND."),
		mcp.WithString("category", mcp.Description("Filter by category")),
		mcp.WithString("priority", mcp.Description("Filter by priority")),
		mcp.WithBoolean("completed", mcp.Description("true for completed, false for active")),
		mcp.WithBoolean("overdue", mcp.Description("Only overdue tasks")),
		mcp.WithString("dateFilter", mcp.Description("today|tomorrow|thisWeek|overdue|noDueDate")),
		mcp.WithString("search", mcp.Description("Case-insensitive text in title, notes, category or priority")),
		mcp.WithString("parentTaskId", mcp.Description("Subtasks of this task, or 'main' for main tasks only")),
		mcp.WithString("dateFrom", mcp.Description("Due on or after this date (ISO 8601)")),
		mcp.WithString("dateTo", mcp.Description("Due on or before this date (ISO 8601)")),
		mcp.WithString("sort", mcp.Description("newest|oldest|dueDate|priority|title|default")),
	), getTasksHandler(st))

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update fields of a task. Omitted fields are left unchanged."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("notes", mcp.Description("New notes (empty string clears)")),
		mcp.WithString("category", mcp.Description("New category")),
		mcp.WithString("priority", mcp.Description("New priority")),
		mcp.WithBoolean("completed", mcp.Description("Mark completed or active")),
		mcp.WithString("dueDate", mcp.Description("New due date in ISO 8601 format ('null' clears)")),
		mcp.WithBoolean("isExpanded", mcp.Description("Show or hide the task's subtasks in tree views")),
	), updateTaskHandler(st))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task and all of its subtasks."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
	), deleteTaskHandler(st))

	s.AddTool(mcp.NewTool("get_task_stats",
		mcp.WithDescription("Summary statistics over all tasks."),
	), getTaskStatsHandler(st))

	s.AddTool(mcp.NewTool("get_task_details",
		mcp.WithDescription("A single task with its parent and direct subtasks."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
	), getTaskDetailsHandler(st))

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task completed. Completing a main task completes its subtasks."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
	), completeTaskHandler(st))

	s.AddTool(mcp.NewTool("create_subtask",
		mcp.WithDescription("Create a subtask. Category is inherited from the parent; priority unless given."),
		mcp.WithString("parentTaskId", mcp.Description("ID of the parent task"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Subtask title"), mcp.Required()),
		mcp.WithString("notes", mcp.Description("Optional notes")),
		mcp.WithString("priority", mcp.Description(priorityHelp)),
		mcp.WithString("dueDate", mcp.Description("Due date in ISO 8601 format")),
	), createSubtaskHandler(st))

	// Quick actions
	s.AddTool(mcp.NewTool("toggle_task",
		mcp.WithDescription("Flip a task between completed and active."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
	), toggleTaskHandler(st))

	s.AddTool(mcp.NewTool("duplicate_task",
		mcp.WithDescription("Copy a task as a new active task. Subtasks are not copied."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
	), duplicateTaskHandler(st))

	s.AddTool(mcp.NewTool("postpone_task",
		mcp.WithDescription("Push the due date back by a number of days."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithNumber("days", mcp.Description("Days to postpone (defaults to 1)")),
	), postponeTaskHandler(st))

	s.AddTool(mcp.NewTool("schedule_task",
		mcp.WithDescription("Set the due date to today, tomorrow or this week."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("when", mcp.Description("today|tomorrow|thisWeek"), mcp.Required()),
	), scheduleTaskHandler(st))

	s.AddTool(mcp.NewTool("mark_task_urgent",
		mcp.WithDescription("Raise a task to high priority, due within a day."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
	), markTaskUrgentHandler(st))

	s.AddTool(mcp.NewTool("move_task",
		mcp.WithDescription("Move a task under another parent, or to the top level."),
		mcp.WithString("taskId", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("parentTaskId", mcp.Description("New parent ID; empty or 'main' for top level")),
	), moveTaskHandler(st))

	// Batch operations
	s.AddTool(mcp.NewTool("batch_update_tasks",
		mcp.WithDescription("Apply the same update to several tasks. Nothing changes if any ID is unknown."),
		mcp.WithArray("taskIds", mcp.Description("Task IDs"), mcp.WithStringItems(), mcp.Required()),
		mcp.WithString("category", mcp.Description("New category")),
		mcp.WithString("priority", mcp.Description("New priority")),
		mcp.WithBoolean("completed", mcp.Description("Mark completed or active")),
		mcp.WithString("dueDate", mcp.Description("New due date in ISO 8601 format ('null' clears)")),
	), batchUpdateTasksHandler(st))

	s.AddTool(mcp.NewTool("batch_delete_tasks",
		mcp.WithDescription("Delete several tasks with their subtasks. Nothing is deleted if any ID is unknown."),
		mcp.WithArray("taskIds", mcp.Description("Task IDs"), mcp.WithStringItems(), mcp.Required()),
	), batchDeleteTasksHandler(st))

	s.AddTool(mcp.NewTool("get_task_tree",
		mcp.WithDescription("All tasks as an indented hierarchy with progress."),
	), getTaskTreeHandler(st))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func createTaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		due, _, err := dueDateArg(args, "dueDate")
		if err != nil {
			return failed("create task", err), nil
		}

		t, err := st.Create(ctx, store.NewTask{
			Title:        mcp.ParseString(request, "title", ""),
			Notes:        mcp.ParseString(request, "notes", ""),
			Category:     categoryArg(args, "category"),
			Priority:     priorityArg(args, "priority"),
			DueDate:      due,
			ParentTaskID: mcp.ParseString(request, "parentTaskId", ""),
		})
		if err != nil {
			return failed("create task", err), nil
		}
		return mcp.NewToolResultText(renderCreated("Task created", t, nil)), nil
	}
}

func getTasksHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)

		f := filter.Filter{
			Category: categoryArg(args, "category"),
			Priority: priorityArg(args, "priority"),
			Parent:   filter.ParseScope(mcp.ParseString(request, "parentTaskId", "")),
			Date:     models.ParseDateFilter(mcp.ParseString(request, "dateFilter", "")),
			Search:   mcp.ParseString(request, "search", ""),
		}
		if completed, ok := args["completed"].(bool); ok {
			f.Completed = &completed
		}
		if mcp.ParseBoolean(request, "overdue", false) {
			f.Date = models.DateFilterOverdue
		}
		var err error
		if f.DueFrom, _, err = dueDateArg(args, "dateFrom"); err != nil {
			return failed("retrieve tasks", err), nil
		}
		if f.DueTo, _, err = dueDateArg(args, "dateTo"); err != nil {
			return failed("retrieve tasks", err), nil
		}

		order := filter.ParseOrder(mcp.ParseString(request, "sort", ""))
		tasks, err := st.List(ctx, f, order)
		if err != nil {
			return failed("retrieve tasks", err), nil
		}
		return mcp.NewToolResultText(renderTaskList(tasks, st.Tasks(ctx), st.Now())), nil
	}
}

// updateFromArgs builds a partial update from the keys present in args.
func updateFromArgs(args map[string]any) (store.Update, error) {
	var u store.Update
	if title, ok := args["title"].(string); ok {
		u.Title = &title
	}
	if notes, ok := args["notes"].(string); ok {
		u.Notes = &notes
	}
	u.Category = categoryArg(args, "category")
	u.Priority = priorityArg(args, "priority")
	if completed, ok := args["completed"].(bool); ok {
		u.Completed = &completed
	}
	if expanded, ok := args["isExpanded"].(bool); ok {
		u.IsExpanded = &expanded
	}
	due, clear, err := dueDateArg(args, "dueDate")
	if err != nil {
		return store.Update{}, err
	}
	u.DueDate = due
	u.ClearDueDate = clear
	return u, nil
}

func updateTaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		id := mcp.ParseString(request, "taskId", "")

		u, err := updateFromArgs(args)
		if err != nil {
			return failed("update task", err), nil
		}
		t, err := st.Update(ctx, id, u)
		if err != nil {
			return failed("update task", err), nil
		}
		return mcp.NewToolResultText(renderUpdated("Task updated", t, st.Now())), nil
	}
}

func deleteTaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "taskId", "")
		deleted, err := st.Delete(ctx, id)
		if err != nil {
			return failed("delete task", err), nil
		}
		if !deleted {
			return failed("delete task", &store.NotFoundError{ID: id}), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task deleted along with all of its subtasks.\nTask ID: %s", id)), nil
	}
}

func getTaskStatsHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := st.Stats(ctx)
		if err != nil {
			return failed("get statistics", err), nil
		}
		return mcp.NewToolResultText(renderStats(snap)), nil
	}
}

func getTaskDetailsHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, err := st.Details(ctx, mcp.ParseString(request, "taskId", ""))
		if err != nil {
			return failed("get task details", err), nil
		}
		return mcp.NewToolResultText(renderDetails(d)), nil
	}
}

func completeTaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := st.Complete(ctx, mcp.ParseString(request, "taskId", ""))
		if err != nil {
			return failed("complete task", err), nil
		}
		return mcp.NewToolResultText(renderUpdated("Task completed", t, st.Now())), nil
	}
}

func createSubtaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		parentID := mcp.ParseString(request, "parentTaskId", "")

		parent, err := st.Get(ctx, parentID)
		if err != nil {
			return failed("create subtask", err), nil
		}
		due, _, err := dueDateArg(args, "dueDate")
		if err != nil {
			return failed("create subtask", err), nil
		}

		t, err := st.CreateSubtask(ctx, parentID, store.NewTask{
			Title:    mcp.ParseString(request, "title", ""),
			Notes:    mcp.ParseString(request, "notes", ""),
			Priority: priorityArg(args, "priority"),
			DueDate:  due,
		})
		if err != nil {
			return failed("create subtask", err), nil
		}
		return mcp.NewToolResultText(renderCreated("Subtask created", t, &parent)), nil
	}
}

func toggleTaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := st.Toggle(ctx, mcp.ParseString(request, "taskId", ""))
		if err != nil {
			return failed("toggle task", err), nil
		}
		return mcp.NewToolResultText(renderUpdated("Task toggled", t, st.Now())), nil
	}
}

func duplicateTaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := st.Duplicate(ctx, mcp.ParseString(request, "taskId", ""))
		if err != nil {
			return failed("duplicate task", err), nil
		}
		return mcp.NewToolResultText(renderCreated("Task duplicated", t, nil)), nil
	}
}

func postponeTaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		days := mcp.ParseInt(request, "days", 1)
		t, err := st.Postpone(ctx, mcp.ParseString(request, "taskId", ""), days)
		if err != nil {
			return failed("postpone task", err), nil
		}
		return mcp.NewToolResultText(renderUpdated(fmt.Sprintf("Task postponed by %d day(s)", days), t, st.Now())), nil
	}
}

func scheduleTaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := store.ParseScheduleTarget(mcp.ParseString(request, "when", ""))
		if err != nil {
			return failed("schedule task", err), nil
		}
		t, err := st.Schedule(ctx, mcp.ParseString(request, "taskId", ""), target)
		if err != nil {
			return failed("schedule task", err), nil
		}
		return mcp.NewToolResultText(renderUpdated("Task scheduled", t, st.Now())), nil
	}
}

func markTaskUrgentHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := st.MarkUrgent(ctx, mcp.ParseString(request, "taskId", ""))
		if err != nil {
			return failed("mark task urgent", err), nil
		}
		return mcp.NewToolResultText(renderUpdated("Task marked urgent", t, st.Now())), nil
	}
}

func moveTaskHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		parentID := strings.TrimSpace(mcp.ParseString(request, "parentTaskId", ""))
		if parentID == "main" || parentID == "null" {
			parentID = ""
		}
		t, err := st.Move(ctx, mcp.ParseString(request, "taskId", ""), parentID)
		if err != nil {
			return failed("move task", err), nil
		}
		return mcp.NewToolResultText(renderUpdated("Task moved", t, st.Now())), nil
	}
}

func batchUpdateTasksHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		u, err := updateFromArgs(args)
		if err != nil {
			return failed("update tasks", err), nil
		}
		// Batch updates never retitle.
		u.Title, u.Notes = nil, nil

		tasks, err := st.BatchUpdate(ctx, idsArg(args, "taskIds"), u)
		if err != nil {
			return failed("update tasks", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Updated %d task(s).\n\n%s", len(tasks), renderLines(tasks, st.Now()))), nil
	}
}

func batchDeleteTasksHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		n, err := st.BatchDelete(ctx, idsArg(args, "taskIds"))
		if err != nil {
			return failed("delete tasks", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Deleted %d task(s) along with their subtasks.", n)), nil
	}
}

func getTaskTreeHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(renderTree(st.Tree(ctx), st.Tasks(ctx), st.Now())), nil
	}
}
