// Package hierarchy answers parent/child questions over a flat task slice.
// Relations are held as ids, never pointers.
package hierarchy

import (
	"sort"
	"time"

	"github.com/ldi/agrasandhani/pkg/models"
)

// Index is a read-only view over a task slice. It must be rebuilt after the
// slice changes.
type Index struct {
	tasks    []models.Task
	byID     map[string]int
	children map[string][]int
}

// Summary aggregates a task's direct subtasks.
type Summary struct {
	Total     int                    `json:"totalSubtasks"`
	Completed int                    `json:"completedSubtasks"`
	Progress  float64                `json:"progress"`
	Status    models.HierarchyStatus `json:"status"`
}

// Entry is one row of a flattened tree.
type Entry struct {
	Task  models.Task
	Depth int
}

func New(tasks []models.Task) *Index {
	idx := &Index{
		tasks:    tasks,
		byID:     make(map[string]int, len(tasks)),
		children: make(map[string][]int),
	}
	for i, t := range tasks {
		idx.byID[t.ID] = i
	}
	for i, t := range tasks {
		if t.ParentTaskID == "" || t.ParentTaskID == t.ID {
			continue
		}
		idx.children[t.ParentTaskID] = append(idx.children[t.ParentTaskID], i)
	}
	for _, kids := range idx.children {
		sort.SliceStable(kids, func(a, b int) bool {
			return lessSibling(tasks[kids[a]], tasks[kids[b]])
		})
	}
	return idx
}

func lessSibling(a, b models.Task) bool {
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (x *Index) Get(id string) (models.Task, bool) {
	i, ok := x.byID[id]
	if !ok {
		return models.Task{}, false
	}
	return x.tasks[i], true
}

// Subtasks returns the direct children of id ordered by sortOrder, then
// createdAt.
func (x *Index) Subtasks(id string) []models.Task {
	kids := x.children[id]
	out := make([]models.Task, 0, len(kids))
	for _, i := range kids {
		out = append(out, x.tasks[i])
	}
	return out
}

// Parent resolves the parent reference. Empty, self and dangling references
// all mean no parent.
func (x *Index) Parent(id string) (models.Task, bool) {
	t, ok := x.Get(id)
	if !ok || t.ParentTaskID == "" || t.ParentTaskID == t.ID {
		return models.Task{}, false
	}
	return x.Get(t.ParentTaskID)
}

// ancestors walks up from id and stops at the first repeat.
func (x *Index) ancestors(id string) []models.Task {
	var out []models.Task
	seen := map[string]bool{id: true}
	cur := id
	for {
		p, ok := x.Parent(cur)
		if !ok || seen[p.ID] {
			return out
		}
		seen[p.ID] = true
		out = append(out, p)
		cur = p.ID
	}
}

// Depth counts ancestor hops; main tasks are at depth 0.
func (x *Index) Depth(id string) int {
	return len(x.ancestors(id))
}

// Root returns the topmost ancestor, or the task itself for a main task.
func (x *Index) Root(id string) (models.Task, bool) {
	anc := x.ancestors(id)
	if len(anc) == 0 {
		return x.Get(id)
	}
	return anc[len(anc)-1], true
}

// IsDescendant reports whether id sits somewhere below ancestorID.
func (x *Index) IsDescendant(ancestorID, id string) bool {
	for _, a := range x.ancestors(id) {
		if a.ID == ancestorID {
			return true
		}
	}
	return false
}

func (x *Index) Summary(id string) Summary {
	t, _ := x.Get(id)
	kids := x.children[id]
	s := Summary{Total: len(kids)}
	for _, i := range kids {
		if x.tasks[i].IsCompleted {
			s.Completed++
		}
	}
	if s.Total > 0 {
		s.Progress = float64(s.Completed) / float64(s.Total)
	}
	s.Status = models.RollUp(t.IsCompleted, s.Completed, s.Total)
	return s
}

// CascadeDeleteSet returns id and every descendant, breadth first. A visited
// set keeps it finite when the parent links contain a cycle.
func (x *Index) CascadeDeleteSet(id string) []string {
	if _, ok := x.byID[id]; !ok {
		return nil
	}
	visited := map[string]bool{id: true}
	out := []string{id}
	for q := 0; q < len(out); q++ {
		for _, i := range x.children[out[q]] {
			cid := x.tasks[i].ID
			if visited[cid] {
				continue
			}
			visited[cid] = true
			out = append(out, cid)
		}
	}
	return out
}

// Flatten walks the forest depth first. Roots keep slice order; tasks whose
// parent is missing are treated as roots.
func (x *Index) Flatten() []Entry {
	out := make([]Entry, 0, len(x.tasks))
	visited := make(map[string]bool, len(x.tasks))

	var walk func(i, depth int)
	walk = func(i, depth int) {
		t := x.tasks[i]
		if visited[t.ID] {
			return
		}
		visited[t.ID] = true
		out = append(out, Entry{Task: t, Depth: depth})
		for _, c := range x.children[t.ID] {
			walk(c, depth+1)
		}
	}

	for i, t := range x.tasks {
		if _, ok := x.Parent(t.ID); !ok {
			walk(i, 0)
		}
	}
	// Whatever is left sits on a cycle.
	for i := range x.tasks {
		walk(i, 0)
	}
	return out
}

// PropagateCompletion sets the completion flag on id and carries it through
// the hierarchy. Completing or reopening a main task does the same to its
// direct subtasks, and completed subtasks share the main task's completedAt.
// Reopening a subtask reopens every completed ancestor. Completing a subtask
// never completes its parent. The slice is modified in place and the ids of
// changed tasks are returned.
func PropagateCompletion(tasks []models.Task, id string, completed bool, now time.Time) []string {
	idx := New(tasks)
	i, ok := idx.byID[id]
	if !ok {
		return nil
	}

	var changed []string
	mark := func(j int, v bool) {
		if tasks[j].SetCompleted(v, now) {
			changed = append(changed, tasks[j].ID)
		}
	}

	mark(i, completed)

	if _, hasParent := idx.Parent(id); !hasParent {
		at := now
		if tasks[i].CompletedAt != nil {
			at = *tasks[i].CompletedAt
		}
		for _, c := range idx.children[id] {
			if completed && tasks[c].IsCompleted {
				if tasks[c].CompletedAt != nil && tasks[c].CompletedAt.Equal(at) {
					continue
				}
				restamp(&tasks[c], at, now)
				changed = append(changed, tasks[c].ID)
				continue
			}
			mark(c, completed)
		}
		return changed
	}

	if !completed {
		for _, a := range idx.ancestors(id) {
			if a.IsCompleted {
				mark(idx.byID[a.ID], false)
			}
		}
	}
	return changed
}

func restamp(t *models.Task, at, now time.Time) {
	t.CompletedAt = &at
	t.UpdatedAt = now
}

// ReindexSiblings renumbers the subtasks of parentID 0..n-1 keeping their
// relative order, and returns the ids whose sortOrder moved.
func ReindexSiblings(tasks []models.Task, parentID string, now time.Time) []string {
	if parentID == "" {
		return nil
	}
	idx := New(tasks)
	var changed []string
	for n, i := range idx.children[parentID] {
		if tasks[i].SortOrder != n {
			tasks[i].SortOrder = n
			tasks[i].UpdatedAt = now
			changed = append(changed, tasks[i].ID)
		}
	}
	return changed
}

// NextSortOrder is the index a new subtask of parentID should take.
func (x *Index) NextSortOrder(parentID string) int {
	return len(x.children[parentID])
}
