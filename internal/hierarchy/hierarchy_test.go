package hierarchy

import (
	"testing"
	"time"

	"github.com/ldi/agrasandhani/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)

func sub(id, parent string, order int) models.Task {
	t := models.NewMainTask(id, id, models.CategoryWorkProjects, models.PriorityHigh, now.Add(time.Duration(order)*time.Minute))
	t.ParentTaskID = parent
	t.SortOrder = order
	return t
}

func fixture() []models.Task {
	return []models.Task{
		models.NewMainTask("report", "Finish report", models.CategoryWorkProjects, models.PriorityHigh, now),
		sub("outline", "report", 0),
		sub("proofread", "report", 1),
		models.NewMainTask("gym", "Gym", models.CategoryHealthFitness, models.PriorityLow, now),
	}
}

func find(tasks []models.Task, id string) models.Task {
	for _, t := range tasks {
		if t.ID == id {
			return t
		}
	}
	return models.Task{}
}

func TestSubtasksOrderedBySortOrderThenCreatedAt(t *testing.T) {
	tasks := []models.Task{
		models.NewMainTask("p", "p", models.CategoryErrands, models.PriorityLow, now),
		sub("c", "p", 1),
		sub("a", "p", 0),
		sub("b", "p", 1),
	}
	tasks[3].CreatedAt = now.Add(-time.Hour)

	got := New(tasks).Subtasks("p")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestParentTreatsBrokenReferenceAsNone(t *testing.T) {
	tasks := append(fixture(), sub("orphan", "gone", 0))
	idx := New(tasks)

	p, ok := idx.Parent("outline")
	require.True(t, ok)
	assert.Equal(t, "report", p.ID)

	_, ok = idx.Parent("orphan")
	assert.False(t, ok)
	_, ok = idx.Parent("report")
	assert.False(t, ok)
	_, ok = idx.Parent("missing")
	assert.False(t, ok)
}

func TestDepthAndRoot(t *testing.T) {
	tasks := append(fixture(), sub("deep", "outline", 0))
	idx := New(tasks)

	assert.Equal(t, 0, idx.Depth("report"))
	assert.Equal(t, 1, idx.Depth("outline"))
	assert.Equal(t, 2, idx.Depth("deep"))

	root, ok := idx.Root("deep")
	require.True(t, ok)
	assert.Equal(t, "report", root.ID)
	assert.True(t, idx.IsDescendant("report", "deep"))
	assert.False(t, idx.IsDescendant("deep", "report"))
}

func TestCascadeDeleteSetTerminatesOnCycle(t *testing.T) {
	tasks := []models.Task{sub("a", "b", 0), sub("b", "a", 0), sub("c", "b", 1)}
	idx := New(tasks)

	set := idx.CascadeDeleteSet("a")
	assert.ElementsMatch(t, []string{"a", "b", "c"}, set)
	assert.Equal(t, 2, idx.Depth("c"))
	assert.Len(t, idx.Flatten(), 3)
}

func TestCascadeDeleteSetIncludesGrandchildren(t *testing.T) {
	tasks := append(fixture(), sub("deep", "outline", 0))
	set := New(tasks).CascadeDeleteSet("report")
	assert.ElementsMatch(t, []string{"report", "outline", "proofread", "deep"}, set)
	assert.Nil(t, New(tasks).CascadeDeleteSet("missing"))
}

func TestCompletingMainTaskCompletesSubtasks(t *testing.T) {
	tasks := fixture()
	changed := PropagateCompletion(tasks, "report", true, now)

	assert.ElementsMatch(t, []string{"report", "outline", "proofread"}, changed)
	for _, id := range []string{"outline", "proofread"} {
		st := find(tasks, id)
		assert.True(t, st.IsCompleted)
		require.NotNil(t, st.CompletedAt)
		assert.True(t, st.CompletedAt.Equal(now))
	}
	s := New(tasks).Summary("report")
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1.0, s.Progress)
	assert.Equal(t, models.StatusCompleted, s.Status)

	PropagateCompletion(tasks, "report", false, now)
	for _, id := range []string{"report", "outline", "proofread"} {
		st := find(tasks, id)
		assert.False(t, st.IsCompleted)
		assert.Nil(t, st.CompletedAt)
	}
}

func TestCompletingSubtaskDoesNotCompleteParent(t *testing.T) {
	tasks := fixture()
	PropagateCompletion(tasks, "outline", true, now)
	PropagateCompletion(tasks, "proofread", true, now)

	assert.False(t, find(tasks, "report").IsCompleted)
	assert.Equal(t, models.StatusPartiallyCompleted, New(tasks).Summary("report").Status)
}

func TestReopeningSubtaskReopensCompletedParent(t *testing.T) {
	tasks := fixture()
	PropagateCompletion(tasks, "report", true, now)

	changed := PropagateCompletion(tasks, "outline", false, now.Add(time.Hour))

	assert.ElementsMatch(t, []string{"outline", "report"}, changed)
	assert.False(t, find(tasks, "report").IsCompleted)
	assert.True(t, find(tasks, "proofread").IsCompleted)
}

func TestReopeningNestedSubtaskReopensAllAncestors(t *testing.T) {
	tasks := append(fixture(), sub("deep", "outline", 0))
	for i := range tasks {
		tasks[i].SetCompleted(true, now)
	}

	PropagateCompletion(tasks, "deep", false, now)

	assert.False(t, find(tasks, "outline").IsCompleted)
	assert.False(t, find(tasks, "report").IsCompleted)
	assert.True(t, find(tasks, "proofread").IsCompleted)
}

func TestPropagateOnlyStampsTransitions(t *testing.T) {
	tasks := fixture()
	earlier := now.Add(-time.Hour)
	PropagateCompletion(tasks, "outline", true, earlier)
	changed := PropagateCompletion(tasks, "outline", true, now)

	assert.Empty(t, changed)
	assert.True(t, find(tasks, "outline").CompletedAt.Equal(earlier))
}

func TestCompletingMainTaskSharesTimestampWithSubtasks(t *testing.T) {
	tasks := fixture()
	earlier := now.Add(-time.Hour)
	PropagateCompletion(tasks, "outline", true, earlier)
	changed := PropagateCompletion(tasks, "report", true, now)

	assert.ElementsMatch(t, []string{"report", "outline", "proofread"}, changed)
	for _, id := range []string{"report", "outline", "proofread"} {
		task := find(tasks, id)
		require.NotNil(t, task.CompletedAt, id)
		assert.True(t, task.CompletedAt.Equal(now), id)
	}
	assert.True(t, find(tasks, "outline").UpdatedAt.Equal(now))
}

func TestReindexSiblingsAfterDelete(t *testing.T) {
	tasks := []models.Task{
		models.NewMainTask("p", "p", models.CategoryErrands, models.PriorityLow, now),
		sub("a", "p", 0),
		sub("c", "p", 2),
	}
	later := now.Add(time.Hour)
	changed := ReindexSiblings(tasks, "p", later)

	assert.Equal(t, []string{"c"}, changed)
	assert.Equal(t, 1, find(tasks, "c").SortOrder)
	assert.True(t, find(tasks, "c").UpdatedAt.Equal(later))
	assert.Nil(t, ReindexSiblings(tasks, "", later))
}

func TestFlattenPreOrder(t *testing.T) {
	tasks := append(fixture(), sub("orphan", "gone", 0))
	entries := New(tasks).Flatten()

	var ids []string
	var depths []int
	for _, e := range entries {
		ids = append(ids, e.Task.ID)
		depths = append(depths, e.Depth)
	}
	assert.Equal(t, []string{"report", "outline", "proofread", "gym", "orphan"}, ids)
	assert.Equal(t, []int{0, 1, 1, 0, 0}, depths)
}

func TestSummaryWithoutSubtasksMirrorsSelf(t *testing.T) {
	tasks := fixture()
	idx := New(tasks)
	s := idx.Summary("gym")
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.Progress)
	assert.Equal(t, models.StatusIncomplete, s.Status)
	assert.Equal(t, 2, idx.NextSortOrder("report"))
}
