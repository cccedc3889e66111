package store

import (
	"context"
	"sync"

	"github.com/ldi/agrasandhani/pkg/models"
)

// MemoryBackend keeps the collection in process memory. FailSave and
// FailLoad inject errors.
type MemoryBackend struct {
	mu       sync.Mutex
	tasks    []models.Task
	saves    int
	FailSave error
	FailLoad error
}

func NewMemoryBackend(tasks ...models.Task) *MemoryBackend {
	return &MemoryBackend{tasks: cloneAll(tasks)}
}

func (m *MemoryBackend) Load(ctx context.Context) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLoad != nil {
		return nil, m.FailLoad
	}
	return cloneAll(m.tasks), nil
}

func (m *MemoryBackend) Save(ctx context.Context, tasks []models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.tasks = cloneAll(tasks)
	m.saves++
	return nil
}

// Saves counts successful writes.
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Snapshot returns what was last saved.
func (m *MemoryBackend) Snapshot() []models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.tasks)
}
