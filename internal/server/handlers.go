package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ldi/agrasandhani/internal/filter"
	"github.com/ldi/agrasandhani/internal/hierarchy"
	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/pkg/models"
	"go.uber.org/zap"
)

type errorDetails struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetails `json:"error"`
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetails{Code: status, Message: message}})
}

// taskItem adds derived flags to a stored task.
type taskItem struct {
	models.Task
	IsMainTask bool `json:"isMainTask"`
	IsSubTask  bool `json:"isSubTask"`
	IsOverdue  bool `json:"isOverdue"`
}

func toItem(t models.Task, now time.Time) taskItem {
	return taskItem{Task: t, IsMainTask: t.IsMainTask(), IsSubTask: t.IsSubTask(), IsOverdue: t.IsOverdue(now)}
}

func toItems(tasks []models.Task, now time.Time) []taskItem {
	out := make([]taskItem, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toItem(t, now))
	}
	return out
}

type treeNode struct {
	Task  taskItem `json:"task"`
	Depth int      `json:"depth"`
}

type detailsResponse struct {
	Task     taskItem          `json:"task"`
	Parent   *models.Task      `json:"parent,omitempty"`
	Subtasks []taskItem        `json:"subtasks"`
	Summary  hierarchy.Summary `json:"summary"`
	Depth    int               `json:"depth"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseQuery reads the list filters from query parameters. Unknown enum
// values fall back to defaults; malformed dates and booleans are rejected.
func parseQuery(c *gin.Context) (filter.Filter, filter.Order, string) {
	var f filter.Filter
	if v := c.Query("category"); v != "" {
		cat := models.ParseCategory(v)
		f.Category = &cat
	}
	if v := c.Query("priority"); v != "" {
		p := models.ParsePriority(v)
		f.Priority = &p
	}
	f.Completed = filter.ParseStatus(c.Query("status"))
	if v, ok := c.GetQuery("completed"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, "", "Invalid completed"
		}
		f.Completed = &b
	}
	f.Date = models.ParseDateFilter(c.Query("date"))
	if v, ok := c.GetQuery("overdue"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, "", "Invalid overdue"
		}
		if b {
			f.Date = models.DateFilterOverdue
		}
	}
	f.Search = c.Query("search")
	f.Parent = filter.ParseScope(c.Query("parent"))

	for key, dst := range map[string]**time.Time{"from": &f.DueFrom, "to": &f.DueTo} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := store.ParseDueDate(v, time.Local)
		if err != nil {
			return f, "", "Invalid " + key
		}
		*dst = &t
	}
	return f, filter.ParseOrder(c.Query("sort")), ""
}

func (s *Server) handleTasks(c *gin.Context) {
	f, order, bad := parseQuery(c)
	if bad != "" {
		abortWithError(c, http.StatusBadRequest, bad)
		return
	}

	tasks, err := s.tasks.List(c.Request.Context(), f, order)
	if err != nil {
		s.logger.Error("failed to list tasks", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	c.JSON(http.StatusOK, toItems(tasks, s.tasks.Now()))
}

func (s *Server) handleTask(c *gin.Context) {
	id := c.Param("id")
	d, err := s.tasks.Details(c.Request.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			abortWithError(c, http.StatusNotFound, "Task not found")
			return
		}
		s.logger.Error("failed to get task", zap.String("task_id", id), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "failed to get task")
		return
	}

	now := s.tasks.Now()
	c.JSON(http.StatusOK, detailsResponse{
		Task:     toItem(d.Task, now),
		Parent:   d.Parent,
		Subtasks: toItems(d.Subtasks, now),
		Summary:  d.Summary,
		Depth:    d.Depth,
	})
}

func (s *Server) handleTree(c *gin.Context) {
	entries := s.tasks.Tree(c.Request.Context())
	now := s.tasks.Now()
	out := make([]treeNode, 0, len(entries))
	for _, e := range entries {
		out = append(out, treeNode{Task: toItem(e.Task, now), Depth: e.Depth})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleStats(c *gin.Context) {
	snap, err := s.tasks.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to compute stats", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	c.JSON(http.StatusOK, snap)
}
