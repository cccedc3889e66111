// Package store owns the task collection. It assigns identity, applies the
// hierarchy rules on every write and persists through a Backend.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/agrasandhani/internal/filter"
	"github.com/ldi/agrasandhani/internal/hierarchy"
	"github.com/ldi/agrasandhani/internal/stats"
	"github.com/ldi/agrasandhani/pkg/models"
	"go.uber.org/zap"
)

// Backend persists the whole collection at once. Save must be atomic: after
// a failed Save the previous contents are still readable.
type Backend interface {
	Load(ctx context.Context) ([]models.Task, error)
	Save(ctx context.Context, tasks []models.Task) error
}

type Store struct {
	mu      sync.RWMutex
	backend Backend
	tasks   []models.Task

	now    func() time.Time
	newID  func() string
	logger *zap.Logger
	order  filter.Order

	onChange   func(ctx context.Context)
	onChangeMu sync.RWMutex
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithDefaultOrder sets the ordering List uses when the caller passes
// OrderUnset.
func WithDefaultOrder(o filter.Order) Option {
	return func(s *Store) { s.order = o }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Open loads the collection from backend. A load failure is logged and the
// store starts empty.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("store: backend is required")
	}
	s := &Store{
		backend: backend,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		logger:  zap.NewNop(),
		order:   filter.OrderDefault,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tasks = s.load(ctx)
	return s, nil
}

func (s *Store) load(ctx context.Context) []models.Task {
	tasks, err := s.backend.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load tasks, starting with an empty store", zap.Error(err))
		return nil
	}
	out := make([]models.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.ID == "" || seen[t.ID] {
			s.logger.Warn("dropping task with missing or duplicate id", zap.String("task_id", t.ID))
			continue
		}
		seen[t.ID] = true
		out = append(out, models.Normalize(t))
	}
	if moved := reindexAll(out, s.now()); moved > 0 {
		s.logger.Info("renumbered subtask sort order", zap.Int("count", moved))
	}
	s.logger.Debug("tasks loaded", zap.Int("count", len(out)))
	return out
}

// Reload replaces the in-memory collection with the backend's contents. The
// lock is held across the load so a concurrent mutation cannot commit between
// the read and the swap and then be overwritten.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = s.load(ctx)
}

// reindexAll makes every sibling group's sortOrder dense and returns how many
// tasks moved.
func reindexAll(tasks []models.Task, now time.Time) int {
	parents := make(map[string]bool)
	moved := 0
	for _, t := range tasks {
		if t.ParentTaskID == "" || parents[t.ParentTaskID] {
			continue
		}
		parents[t.ParentTaskID] = true
		moved += len(hierarchy.ReindexSiblings(tasks, t.ParentTaskID, now))
	}
	return moved
}

// SetOnChange registers a hook that runs after every committed mutation,
// outside the store lock.
func (s *Store) SetOnChange(fn func(ctx context.Context)) {
	s.onChangeMu.Lock()
	defer s.onChangeMu.Unlock()
	s.onChange = fn
}

func (s *Store) triggerChange(ctx context.Context) {
	s.onChangeMu.RLock()
	fn := s.onChange
	s.onChangeMu.RUnlock()

	if fn != nil {
		fn(ctx)
	}
}

func cloneAll(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

func indexOf(tasks []models.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// errUnchanged lets a mutation finish without writing.
var errUnchanged = errors.New("unchanged")

// mutate runs fn against a copy of the collection and commits the result only
// when the backend accepts it.
func (s *Store) mutate(ctx context.Context, op string, fn func(tasks []models.Task, now time.Time) ([]models.Task, error)) error {
	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		next, err := fn(cloneAll(s.tasks), s.now())
		if err != nil {
			return err
		}
		if err := s.backend.Save(ctx, next); err != nil {
			s.logger.Error("failed to persist tasks", zap.String("op", op), zap.Error(err))
			return &StorageError{Op: op, Err: err}
		}
		s.tasks = next
		return nil
	}()
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Debug("tasks committed", zap.String("op", op))
	s.triggerChange(ctx)
	return nil
}

func (s *Store) Create(ctx context.Context, in NewTask) (models.Task, error) {
	in = in.normalized()
	if err := validate(in); err != nil {
		return models.Task{}, err
	}

	var created models.Task
	err := s.mutate(ctx, "create", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		idx := hierarchy.New(tasks)
		category, priority := models.DefaultCategory, models.DefaultPriority
		sortOrder := 0
		if in.ParentTaskID != "" {
			parent, ok := idx.Get(in.ParentTaskID)
			if !ok {
				return nil, notFound(in.ParentTaskID)
			}
			category, priority = parent.Category, parent.Priority
			sortOrder = idx.NextSortOrder(parent.ID)
		}
		if in.Category != nil {
			category = *in.Category
		}
		if in.Priority != nil {
			priority = *in.Priority
		}

		t := models.NewMainTask(s.newID(), in.Title, category, priority, now)
		t.Notes = in.Notes
		t.ParentTaskID = in.ParentTaskID
		t.SortOrder = sortOrder
		if in.DueDate != nil {
			d := *in.DueDate
			t.DueDate = &d
		}
		created = t
		return append(tasks, t), nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Info("task created", zap.String("task_id", created.ID), zap.String("parent_id", created.ParentTaskID))
	return created.Clone(), nil
}

// CreateSubtask creates in under parentID.
func (s *Store) CreateSubtask(ctx context.Context, parentID string, in NewTask) (models.Task, error) {
	in.ParentTaskID = parentID
	if in.ParentTaskID == "" {
		return models.Task{}, &ValidationError{Field: "parentTaskId", Constraint: "must not be empty"}
	}
	return s.Create(ctx, in)
}

func (s *Store) Get(ctx context.Context, id string) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := indexOf(s.tasks, id)
	if i < 0 {
		return models.Task{}, notFound(id)
	}
	return s.tasks[i].Clone(), nil
}

// Details is a task together with its place in the hierarchy.
type Details struct {
	Task     models.Task       `json:"task"`
	Parent   *models.Task      `json:"parent,omitempty"`
	Subtasks []models.Task     `json:"subtasks"`
	Summary  hierarchy.Summary `json:"summary"`
	Depth    int               `json:"depth"`
	Overdue  bool              `json:"isOverdue"`
}

func (s *Store) Details(ctx context.Context, id string) (Details, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := hierarchy.New(s.tasks)
	t, ok := idx.Get(id)
	if !ok {
		return Details{}, notFound(id)
	}
	d := Details{
		Task:     t.Clone(),
		Subtasks: cloneAll(idx.Subtasks(id)),
		Summary:  idx.Summary(id),
		Depth:    idx.Depth(id),
		Overdue:  t.IsOverdue(s.now()),
	}
	if p, ok := idx.Parent(id); ok {
		pc := p.Clone()
		d.Parent = &pc
	}
	return d, nil
}

// List filters the collection and sorts the result. OrderUnset uses the
// store's default ordering.
func (s *Store) List(ctx context.Context, f filter.Filter, order filter.Order) ([]models.Task, error) {
	s.mu.RLock()
	out := cloneAll(filter.Apply(s.tasks, f, s.now()))
	s.mu.RUnlock()

	if order == filter.OrderUnset {
		order = s.order
	}
	filter.Sort(out, order)
	return out, nil
}

// Tasks returns a copy of the whole collection in storage order.
func (s *Store) Tasks(ctx context.Context) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.tasks)
}

// Tree flattens the hierarchy for display. Main tasks follow the store's
// default ordering; subtasks follow sortOrder.
func (s *Store) Tree(ctx context.Context) []hierarchy.Entry {
	tasks := s.Tasks(ctx)
	filter.Sort(tasks, s.order)
	return hierarchy.New(tasks).Flatten()
}

func (s *Store) Stats(ctx context.Context) (stats.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stats.Compute(s.tasks, s.now()), nil
}

// Now is the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) Update(ctx context.Context, id string, u Update) (models.Task, error) {
	u = u.normalized()
	if err := validate(u); err != nil {
		return models.Task{}, err
	}

	var updated models.Task
	err := s.mutate(ctx, "update", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, notFound(id)
		}
		applyUpdate(&tasks[i], u)
		if u.Completed != nil {
			hierarchy.PropagateCompletion(tasks, id, *u.Completed, now)
		}
		tasks[i].UpdatedAt = now
		updated = tasks[i]
		return tasks, nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return updated.Clone(), nil
}

func applyUpdate(t *models.Task, u Update) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	if u.Category != nil {
		c := *u.Category
		if !c.Valid() {
			c = models.DefaultCategory
		}
		t.Category = c
	}
	if u.Priority != nil {
		p := *u.Priority
		if !p.Valid() {
			p = models.DefaultPriority
		}
		t.Priority = p
	}
	switch {
	case u.ClearDueDate:
		t.DueDate = nil
	case u.DueDate != nil:
		d := *u.DueDate
		t.DueDate = &d
	}
	if u.IsExpanded != nil {
		t.IsExpanded = *u.IsExpanded
	}
}

// SetCompleted changes completion through the propagation rules.
func (s *Store) SetCompleted(ctx context.Context, id string, completed bool) (models.Task, error) {
	return s.Update(ctx, id, Update{Completed: &completed})
}

func (s *Store) Complete(ctx context.Context, id string) (models.Task, error) {
	return s.SetCompleted(ctx, id, true)
}

// Toggle flips completion, reading the current value under the write lock.
func (s *Store) Toggle(ctx context.Context, id string) (models.Task, error) {
	var toggled models.Task
	err := s.mutate(ctx, "toggle", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, notFound(id)
		}
		hierarchy.PropagateCompletion(tasks, id, !tasks[i].IsCompleted, now)
		toggled = tasks[i]
		return tasks, nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return toggled.Clone(), nil
}

// Delete removes id and its whole subtree. It reports false when id does not
// exist.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.mutate(ctx, "delete", func(tasks []models.Task, now time.Time) ([]models.Task, error) {
		next, ok := removeSubtree(tasks, id, now)
		if !ok {
			return nil, errUnchanged
		}
		deleted = true
		return next, nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("task deleted", zap.String("task_id", id))
	}
	return deleted, nil
}

func removeSubtree(tasks []models.Task, id string, now time.Time) ([]models.Task, bool) {
	idx := hierarchy.New(tasks)
	if _, ok := idx.Get(id); !ok {
		return tasks, false
	}
	parentID := ""
	if p, ok := idx.Parent(id); ok {
		parentID = p.ID
	}
	drop := make(map[string]bool)
	for _, d := range idx.CascadeDeleteSet(id) {
		drop[d] = true
	}
	next := make([]models.Task, 0, len(tasks)-len(drop))
	for _, task := range tasks {
		if !drop[task.ID] {
			next = append(next, task)
		}
	}
	hierarchy.ReindexSiblings(next, parentID, now)
	return next, true
}

// Replace swaps in an entire collection, as used by import. Records are
// normalized first.
func (s *Store) Replace(ctx context.Context, tasks []models.Task) error {
	return s.mutate(ctx, "replace", func(_ []models.Task, now time.Time) ([]models.Task, error) {
		out := make([]models.Task, 0, len(tasks))
		seen := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			if t.ID == "" {
				t.ID = s.newID()
			}
			if seen[t.ID] {
				return nil, &ValidationError{Field: "id", Constraint: "duplicate id '" + t.ID + "'"}
			}
			seen[t.ID] = true
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			if t.UpdatedAt.IsZero() {
				t.UpdatedAt = now
			}
			out = append(out, models.Normalize(t.Clone()))
		}
		reindexAll(out, now)
		return out, nil
	})
}
