package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortform/internal/domain"
)

type recordingExecutor struct {
	mu    sync.Mutex
	tasks []Task
	done  chan struct{}
}

func newRecordingExecutor(expected int) *recordingExecutor {
	return &recordingExecutor{done: make(chan struct{}, expected)}
}

func (r *recordingExecutor) ExecuteAction(ctx context.Context, task Task) error {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingExecutor) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for task %d of %d", i+1, n)
		}
	}
}

func (r *recordingExecutor) seen() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

func TestPoolExecutesEnqueuedTasks(t *testing.T) {
	exec := newRecordingExecutor(2)
	pool := NewPool(exec, 2, 8, zerolog.Nop())
	pool.Start(context.Background())
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(Task{JobID: "j1", Action: domain.ActionRun}))
	require.NoError(t, pool.Enqueue(Task{JobID: "j2", Action: domain.ActionRework, Stage: "render_segments"}))
	exec.wait(t, 2)

	seen := exec.seen()
	require.Len(t, seen, 2)
	ids := map[string]Task{seen[0].JobID: seen[0], seen[1].JobID: seen[1]}
	assert.Equal(t, domain.ActionRun, ids["j1"].Action)
	assert.Equal(t, "render_segments", ids["j2"].Stage)
}

func TestPoolEnqueueRejectsWhenFull(t *testing.T) {
	// Never started, so nothing drains the queue.
	pool := NewPool(newRecordingExecutor(0), 1, 1, zerolog.Nop())
	require.NoError(t, pool.Enqueue(Task{JobID: "j1", Action: domain.ActionRun}))
	err := pool.Enqueue(Task{JobID: "j2", Action: domain.ActionRun})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPoolStartTwiceIsNoop(t *testing.T) {
	exec := newRecordingExecutor(1)
	pool := NewPool(exec, 1, 4, zerolog.Nop())
	pool.Start(context.Background())
	pool.Start(context.Background())
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(Task{JobID: "j1", Action: domain.ActionResume}))
	exec.wait(t, 1)
	assert.Len(t, exec.seen(), 1)
}

func TestPoolStopWithoutStart(t *testing.T) {
	pool := NewPool(newRecordingExecutor(0), 1, 1, zerolog.Nop())
	pool.Stop()
}
