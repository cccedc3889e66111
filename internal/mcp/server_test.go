package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ldi/agrasandhani/internal/db"
	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var now = time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*server.MCPServer, *store.Store) {
	t.Helper()
	n := 0
	st, err := store.Open(context.Background(), store.NewMemoryBackend(),
		store.WithClock(func() time.Time { return now }),
		store.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("t%d", n)
		}),
	)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	return NewServer(st), st
}

func call(t *testing.T, s *server.MCPServer, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not registered", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler %s returned protocol error: %v", name, err)
	}
	return result, result.Content[0].(mcp.TextContent).Text
}

func mustCall(t *testing.T, s *server.MCPServer, name string, args map[string]any) string {
	t.Helper()
	result, text := call(t, s, name, args)
	if result.IsError {
		t.Fatalf("Tool %s failed: %s", name, text)
	}
	return text
}

func TestServerInitialization(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.Init(context.Background()); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	st, err := store.Open(context.Background(), database)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	s := NewServer(st)
	stdio := server.NewStdioServer(s)

	r, w := io.Pipe()
	stdout := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		_ = stdio.Listen(ctx, r, stdout)
	}()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}
	rawReq := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  initReq.Params,
	}

	data, err := json.Marshal(rawReq)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(append(data, '\n'))

	time.Sleep(200 * time.Millisecond)

	if stdout.Len() == 0 {
		t.Fatal("Expected response from server, got none")
	}

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, stdout.String())
	}
	if resp.ID != 1 {
		t.Errorf("Expected id 1, got %v", resp.ID)
	}
	if resp.Result.ServerInfo.Name != ServerName {
		t.Errorf("Expected server name %s, got %v", ServerName, resp.Result.ServerInfo.Name)
	}
}

func TestAllToolsRegistered(t *testing.T) {
	s, _ := newTestServer(t)
	for _, name := range []string{
		"create_task", "get_tasks", "update_task", "delete_task", "get_task_stats",
		"get_task_details", "complete_task", "create_subtask", "toggle_task",
		"duplicate_task", "postpone_task", "schedule_task", "mark_task_urgent",
		"move_task", "batch_update_tasks", "batch_delete_tasks", "get_task_tree",
	} {
		if s.GetTool(name) == nil {
			t.Errorf("Tool %s not registered", name)
		}
	}
}

func TestCreateTask(t *testing.T) {
	s, st := newTestServer(t)

	t.Run("labels match case-insensitively", func(t *testing.T) {
		text := mustCall(t, s, "create_task", map[string]any{
			"title":    "Finish report",
			"category": "work projects",
			"priority": "HIGH",
			"dueDate":  "2025-03-14T09:00:00Z",
		})
		for _, want := range []string{"**Finish report**", "Category: Work Projects", "Priority: High", "Due: ", "Task ID: t1"} {
			if !strings.Contains(text, want) {
				t.Errorf("Expected %q in:\n%s", want, text)
			}
		}
	})

	t.Run("unknown labels fall back to defaults", func(t *testing.T) {
		mustCall(t, s, "create_task", map[string]any{
			"title":    "Stretch",
			"category": "Gardening",
			"priority": "someday",
		})
		task, err := st.Get(context.Background(), "t2")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if task.Category != models.CategoryPersonalGoals || task.Priority != models.PriorityMedium {
			t.Errorf("Expected defaults, got %s %s", task.Category, task.Priority)
		}
	})

	t.Run("numeric priority", func(t *testing.T) {
		mustCall(t, s, "create_task", map[string]any{"title": "Pay rent", "priority": float64(3)})
		task, _ := st.Get(context.Background(), "t3")
		if task.Priority != models.PriorityCritical {
			t.Errorf("Expected Critical, got %s", task.Priority)
		}
	})

	t.Run("blank title is rejected", func(t *testing.T) {
		result, text := call(t, s, "create_task", map[string]any{"title": "   "})
		if !result.IsError {
			t.Fatalf("Expected error, got %s", text)
		}
		if !strings.Contains(text, "title") {
			t.Errorf("Expected title in error, got %s", text)
		}
	})

	t.Run("malformed due date is rejected", func(t *testing.T) {
		before := len(st.Tasks(context.Background()))
		result, text := call(t, s, "create_task", map[string]any{"title": "Later", "dueDate": "next tuesday"})
		if !result.IsError || !strings.Contains(text, "dueDate") {
			t.Fatalf("Expected dueDate error, got %s", text)
		}
		if after := len(st.Tasks(context.Background())); after != before {
			t.Errorf("Expected no task created, got %d -> %d", before, after)
		}
	})

	t.Run("unknown parent", func(t *testing.T) {
		result, text := call(t, s, "create_task", map[string]any{"title": "Orphan", "parentTaskId": "nope"})
		if !result.IsError || !strings.Contains(text, "not found") {
			t.Errorf("Expected not found error, got %s", text)
		}
	})
}

func TestHierarchyTools(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	mustCall(t, s, "create_task", map[string]any{"title": "Finish report", "category": "Work Projects", "priority": "high"})
	text := mustCall(t, s, "create_subtask", map[string]any{"parentTaskId": "t1", "title": "Draft outline"})
	if !strings.Contains(text, "Under: **Finish report**") || !strings.Contains(text, "Category: Work Projects") {
		t.Errorf("Unexpected subtask result:\n%s", text)
	}
	mustCall(t, s, "create_subtask", map[string]any{"parentTaskId": "t1", "title": "Collect figures", "priority": "low"})

	second, _ := st.Get(ctx, "t3")
	if second.Priority != models.PriorityLow || second.SortOrder != 1 {
		t.Errorf("Expected overridden priority and sortOrder 1, got %s %d", second.Priority, second.SortOrder)
	}

	t.Run("details list subtasks", func(t *testing.T) {
		text := mustCall(t, s, "get_task_details", map[string]any{"taskId": "t1"})
		for _, want := range []string{"Subtasks (0/2 done, Incomplete)", "Draft outline (t2)", "Collect figures (t3)"} {
			if !strings.Contains(text, want) {
				t.Errorf("Expected %q in:\n%s", want, text)
			}
		}
	})

	t.Run("complete parent completes subtasks", func(t *testing.T) {
		mustCall(t, s, "complete_task", map[string]any{"taskId": "t1"})
		for _, id := range []string{"t1", "t2", "t3"} {
			task, _ := st.Get(ctx, id)
			if !task.IsCompleted || task.CompletedAt == nil {
				t.Errorf("Expected %s completed", id)
			}
		}
	})

	t.Run("reopening a subtask reopens the parent", func(t *testing.T) {
		mustCall(t, s, "update_task", map[string]any{"taskId": "t2", "completed": false})
		parent, _ := st.Get(ctx, "t1")
		if parent.IsCompleted {
			t.Error("Expected parent reopened")
		}
		sibling, _ := st.Get(ctx, "t3")
		if !sibling.IsCompleted {
			t.Error("Expected sibling to stay completed")
		}
	})

	t.Run("main scope", func(t *testing.T) {
		text := mustCall(t, s, "get_tasks", map[string]any{"parentTaskId": "main"})
		if !strings.Contains(text, "Tasks (1 found)") {
			t.Errorf("Expected one main task:\n%s", text)
		}
		text = mustCall(t, s, "get_tasks", map[string]any{"parentTaskId": "t1"})
		if !strings.Contains(text, "Tasks (2 found)") || !strings.Contains(text, "└─") {
			t.Errorf("Expected two indented subtasks:\n%s", text)
		}
	})

	t.Run("tree", func(t *testing.T) {
		text := mustCall(t, s, "get_task_tree", nil)
		lines := strings.Split(text, "\n")
		if len(lines) != 3 {
			t.Fatalf("Expected 3 lines, got %d:\n%s", len(lines), text)
		}
		if !strings.Contains(lines[0], "[1/2]") || !strings.HasPrefix(lines[1], "  ") {
			t.Errorf("Unexpected tree:\n%s", text)
		}
	})

	t.Run("move rejects cycles", func(t *testing.T) {
		result, text := call(t, s, "move_task", map[string]any{"taskId": "t1", "parentTaskId": "t2"})
		if !result.IsError {
			t.Errorf("Expected cycle error, got %s", text)
		}
		mustCall(t, s, "move_task", map[string]any{"taskId": "t3", "parentTaskId": "main"})
		moved, _ := st.Get(ctx, "t3")
		if moved.ParentTaskID != "" {
			t.Errorf("Expected t3 at top level, got parent %q", moved.ParentTaskID)
		}
	})

	t.Run("delete cascades", func(t *testing.T) {
		text := mustCall(t, s, "delete_task", map[string]any{"taskId": "t1"})
		if !strings.Contains(text, "t1") {
			t.Errorf("Expected id in result, got %s", text)
		}
		if _, err := st.Get(ctx, "t2"); !store.IsNotFound(err) {
			t.Errorf("Expected subtask removed, got %v", err)
		}
		result, _ := call(t, s, "delete_task", map[string]any{"taskId": "t1"})
		if !result.IsError {
			t.Error("Expected second delete to fail")
		}
	})
}

func TestGetTasksFilters(t *testing.T) {
	s, _ := newTestServer(t)

	mustCall(t, s, "create_task", map[string]any{"title": "Standup", "category": "meetings", "priority": "high", "dueDate": "2025-03-10T09:00:00Z"})
	mustCall(t, s, "create_task", map[string]any{"title": "Retro", "category": "meetings", "priority": "low", "dueDate": "2025-03-20T09:00:00Z"})
	mustCall(t, s, "create_task", map[string]any{"title": "Gym", "category": "Health & Fitness", "notes": "leg day"})

	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{"category and priority", map[string]any{"category": "Meetings", "priority": "High"}, "Tasks (1 found)"},
		{"overdue", map[string]any{"overdue": true}, "Tasks (1 found)"},
		{"search notes", map[string]any{"search": "LEG"}, "Tasks (1 found)"},
		{"due range", map[string]any{"dateFrom": "2025-03-15", "dateTo": "2025-03-31"}, "Tasks (1 found)"},
		{"no due date", map[string]any{"dateFilter": "noDueDate"}, "Tasks (1 found)"},
		{"active", map[string]any{"completed": false}, "Tasks (3 found)"},
		{"nothing", map[string]any{"completed": true}, "No tasks match"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := mustCall(t, s, "get_tasks", tc.args)
			if !strings.Contains(text, tc.want) {
				t.Errorf("Expected %q in:\n%s", tc.want, text)
			}
		})
	}

	text := mustCall(t, s, "get_tasks", map[string]any{"overdue": true})
	if !strings.Contains(text, "OVERDUE") {
		t.Errorf("Expected overdue marker:\n%s", text)
	}

	text = mustCall(t, s, "get_tasks", map[string]any{"sort": "title"})
	if strings.Index(text, "Gym") > strings.Index(text, "Standup") {
		t.Errorf("Expected title order:\n%s", text)
	}
}

func TestUpdateTask(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	mustCall(t, s, "create_task", map[string]any{"title": "Read", "notes": "chapter 3", "dueDate": "2025-03-14"})

	text := mustCall(t, s, "update_task", map[string]any{"taskId": "t1", "title": "Read book", "notes": "", "dueDate": "null"})
	if !strings.Contains(text, "**Read book**") {
		t.Errorf("Unexpected result:\n%s", text)
	}
	task, _ := st.Get(ctx, "t1")
	if task.Notes != "" || task.DueDate != nil {
		t.Errorf("Expected notes and due date cleared, got %+v", task)
	}
	if task.Category != models.CategoryPersonalGoals {
		t.Errorf("Expected category untouched, got %s", task.Category)
	}

	result, text := call(t, s, "update_task", map[string]any{"taskId": "missing", "title": "x"})
	if !result.IsError || !strings.Contains(text, "task not found: missing") {
		t.Errorf("Expected not found, got %s", text)
	}
}

func TestUpdateTaskExpandedHint(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	mustCall(t, s, "create_task", map[string]any{"title": "Trip"})

	mustCall(t, s, "update_task", map[string]any{"taskId": "t1", "isExpanded": true})
	task, _ := st.Get(ctx, "t1")
	if !task.IsExpanded {
		t.Error("Expected task to be expanded")
	}
	if task.Title != "Trip" {
		t.Errorf("Expected title untouched, got %q", task.Title)
	}

	mustCall(t, s, "update_task", map[string]any{"taskId": "t1", "isExpanded": false})
	if task, _ := st.Get(ctx, "t1"); task.IsExpanded {
		t.Error("Expected task to be collapsed")
	}
}

func TestQuickActionTools(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	mustCall(t, s, "create_task", map[string]any{"title": "Call mom", "dueDate": "2025-03-12T18:00:00Z"})

	t.Run("duplicate", func(t *testing.T) {
		text := mustCall(t, s, "duplicate_task", map[string]any{"taskId": "t1"})
		if !strings.Contains(text, "**Call mom (Copy)**") {
			t.Errorf("Unexpected duplicate:\n%s", text)
		}
		dup, _ := st.Get(ctx, "t2")
		if dup.DueDate == nil || !dup.DueDate.Equal(time.Date(2025, 3, 13, 18, 0, 0, 0, time.UTC)) {
			t.Errorf("Expected due date a day later, got %v", dup.DueDate)
		}
	})

	t.Run("postpone", func(t *testing.T) {
		mustCall(t, s, "postpone_task", map[string]any{"taskId": "t1", "days": float64(2)})
		task, _ := st.Get(ctx, "t1")
		if !task.DueDate.Equal(time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)) {
			t.Errorf("Expected due date two days later, got %v", task.DueDate)
		}
		result, _ := call(t, s, "postpone_task", map[string]any{"taskId": "t1", "days": float64(0)})
		if !result.IsError {
			t.Error("Expected zero days to be rejected")
		}
	})

	t.Run("schedule", func(t *testing.T) {
		mustCall(t, s, "schedule_task", map[string]any{"taskId": "t1", "when": "tomorrow"})
		task, _ := st.Get(ctx, "t1")
		if !task.DueDate.Equal(time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC)) {
			t.Errorf("Expected tomorrow 9:00, got %v", task.DueDate)
		}
		result, _ := call(t, s, "schedule_task", map[string]any{"taskId": "t1", "when": "someday"})
		if !result.IsError {
			t.Error("Expected unknown target to be rejected")
		}
	})

	t.Run("urgent", func(t *testing.T) {
		text := mustCall(t, s, "mark_task_urgent", map[string]any{"taskId": "t1"})
		if !strings.Contains(text, "Priority: High") {
			t.Errorf("Unexpected result:\n%s", text)
		}
	})

	t.Run("toggle", func(t *testing.T) {
		text := mustCall(t, s, "toggle_task", map[string]any{"taskId": "t1"})
		if !strings.Contains(text, "Status: Completed") {
			t.Errorf("Expected completed:\n%s", text)
		}
		text = mustCall(t, s, "toggle_task", map[string]any{"taskId": "t1"})
		if !strings.Contains(text, "Status: Active") {
			t.Errorf("Expected active:\n%s", text)
		}
	})
}

func TestBatchTools(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	for _, title := range []string{"A", "B", "C"} {
		mustCall(t, s, "create_task", map[string]any{"title": title})
	}

	text := mustCall(t, s, "batch_update_tasks", map[string]any{
		"taskIds":  []any{"t1", "t2"},
		"priority": "critical",
	})
	if !strings.Contains(text, "Updated 2 task(s)") {
		t.Errorf("Unexpected result:\n%s", text)
	}
	task, _ := st.Get(ctx, "t2")
	if task.Priority != models.PriorityCritical {
		t.Errorf("Expected Critical, got %s", task.Priority)
	}

	result, _ := call(t, s, "batch_update_tasks", map[string]any{
		"taskIds":   []any{"t3", "missing"},
		"completed": true,
	})
	if !result.IsError {
		t.Error("Expected unknown id to fail the batch")
	}
	if task, _ := st.Get(ctx, "t3"); task.IsCompleted {
		t.Error("Expected failed batch to change nothing")
	}

	result, text = call(t, s, "batch_delete_tasks", map[string]any{"taskIds": "t1, t3, missing"})
	if !result.IsError || !strings.Contains(text, "task not found: missing") {
		t.Errorf("Expected unknown id to fail the delete, got:\n%s", text)
	}
	if n := len(st.Tasks(ctx)); n != 3 {
		t.Errorf("Expected failed delete to keep all 3 tasks, got %d", n)
	}

	text = mustCall(t, s, "batch_delete_tasks", map[string]any{"taskIds": "t1, t3"})
	if !strings.Contains(text, "Deleted 2 task(s)") {
		t.Errorf("Unexpected result:\n%s", text)
	}
	if n := len(st.Tasks(ctx)); n != 1 {
		t.Errorf("Expected 1 task left, got %d", n)
	}
}

func TestGetTaskStats(t *testing.T) {
	s, _ := newTestServer(t)
	mustCall(t, s, "create_task", map[string]any{"title": "Old", "dueDate": "2025-03-01T09:00:00Z"})
	mustCall(t, s, "create_task", map[string]any{"title": "Done", "category": "Learning"})
	mustCall(t, s, "complete_task", map[string]any{"taskId": "t2"})

	text := mustCall(t, s, "get_task_stats", nil)
	for _, want := range []string{"Total: 2", "Active: 1", "Completed: 1", "Overdue: 1", "Learning: 1", "Spiritual: 0", "Medium: 2", "Completion rate: 50%"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in:\n%s", want, text)
		}
	}
}
