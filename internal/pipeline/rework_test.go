package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortform/internal/domain"
)

// reworkFixture runs the counting pipeline to completion so every artifact
// exists, then hands back a coordinator over the same store.
func reworkFixture(t *testing.T) (*countingStages, *ReworkCoordinator, *memStore, *domain.Job) {
	t.Helper()
	stages := &countingStages{}
	store := newMemStore()
	reg := stages.registry(t)
	exec := NewExecutor(reg, store, &fakeJobs{}, testLogger())

	job := newTestJob(domain.VariantCharacter)
	require.NoError(t, exec.Run(context.Background(), job))
	require.Equal(t, domain.StatusCompleted, job.Status)

	return stages, NewReworkCoordinator(reg, store, &fakeJobs{}, testLogger()), store, job
}

func TestReworkReplacesOnlyTargetOutputs(t *testing.T) {
	stages, coord, store, job := reworkFixture(t)

	beforeA := job.Artifacts["a"]
	beforeB := job.Artifacts["b"]
	beforeC := job.Artifacts["c"]
	beforeCBytes, err := store.Get(context.Background(), beforeC)
	require.NoError(t, err)

	stale, err := coord.Rework(context.Background(), job, "render")
	require.NoError(t, err)

	assert.Equal(t, []string{"merge"}, stale)
	assert.Equal(t, 2, stages.renderRuns)
	assert.Equal(t, 1, stages.planRuns, "upstream stage must not re-run")
	assert.Equal(t, 1, stages.mergeRuns, "downstream stage must not cascade")

	assert.Equal(t, beforeA, job.Artifacts["a"], "upstream reference untouched")
	assert.NotEqual(t, beforeB, job.Artifacts["b"], "target output replaced")
	assert.Equal(t, beforeC, job.Artifacts["c"], "downstream reference untouched")

	afterCBytes, err := store.Get(context.Background(), job.Artifacts["c"])
	require.NoError(t, err)
	assert.Equal(t, beforeCBytes, afterCBytes, "downstream bytes byte-identical")
	assert.Equal(t, domain.StatusCompleted, job.Status, "terminal status unchanged")
}

func TestReworkUnknownStage(t *testing.T) {
	_, coord, _, job := reworkFixture(t)
	_, err := coord.Rework(context.Background(), job, "transmogrify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestReworkPreconditionFailureLeavesJobUntouched(t *testing.T) {
	_, coord, _, job := reworkFixture(t)

	delete(job.Artifacts, "a")
	before := fmt.Sprintf("%+v", job)

	_, err := coord.Rework(context.Background(), job, "render")
	var precondition *PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "render", precondition.Stage)
	assert.Equal(t, "a", precondition.MissingKey)
	assert.Equal(t, before, fmt.Sprintf("%+v", job))
}

func TestReworkStageFailurePreservesOldOutput(t *testing.T) {
	stages, coord, _, job := reworkFixture(t)

	beforeB := job.Artifacts["b"]
	stages.renderErr = errors.New("regeneration exploded")

	_, err := coord.Rework(context.Background(), job, "render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regeneration exploded")
	assert.Equal(t, beforeB, job.Artifacts["b"], "failed rework keeps the previous artifact")
	assert.Equal(t, domain.StatusCompleted, job.Status)
}
