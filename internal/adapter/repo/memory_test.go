package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortform/internal/domain"
)

func memJob(id string, updatedAt time.Time) *domain.Job {
	return &domain.Job{
		ID:        id,
		Variant:   domain.VariantProduct,
		Status:    domain.StatusPending,
		Input:     domain.Input{Topic: "wireless earbuds"},
		Artifacts: map[string]domain.Reference{},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestMemoryRepoGetReturnsClone(t *testing.T) {
	repo := NewJobRepositoryMemory()
	ctx := context.Background()

	job := memJob("j1", time.Now().UTC())
	job.Artifacts["script"] = "jobs/j1/script-aaaa"
	require.NoError(t, repo.Create(ctx, job))

	got, err := repo.Get(ctx, "j1")
	require.NoError(t, err)
	got.Artifacts["script"] = "tampered"
	got.Input.Topic = "tampered"

	again, err := repo.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.Reference("jobs/j1/script-aaaa"), again.Artifacts["script"])
	assert.Equal(t, "wireless earbuds", again.Input.Topic)
}

func TestMemoryRepoGetUnknown(t *testing.T) {
	repo := NewJobRepositoryMemory()
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryRepoUpdateUnknown(t *testing.T) {
	repo := NewJobRepositoryMemory()
	err := repo.Update(context.Background(), memJob("nope", time.Now().UTC()))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryRepoClaimOrdersByUpdatedAt(t *testing.T) {
	repo := NewJobRepositoryMemory()
	ctx := context.Background()
	base := time.Now().UTC()

	newer := memJob("newer", base)
	newer.PendingAction = domain.ActionRun
	older := memJob("older", base.Add(-time.Minute))
	older.PendingAction = domain.ActionResume
	idle := memJob("idle", base.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, idle))

	first, err := repo.ClaimNextAction(ctx)
	require.NoError(t, err)
	assert.Equal(t, "older", first.ID)
	assert.Equal(t, domain.ActionResume, first.PendingAction)

	second, err := repo.ClaimNextAction(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newer", second.ID)

	_, err = repo.ClaimNextAction(ctx)
	assert.ErrorIs(t, err, domain.ErrNoActionAvailable)
}

func TestMemoryRepoClaimClearsStoredAction(t *testing.T) {
	repo := NewJobRepositoryMemory()
	ctx := context.Background()

	job := memJob("j1", time.Now().UTC())
	job.PendingAction = domain.ActionRework
	job.ReworkStage = "render_segments"
	require.NoError(t, repo.Create(ctx, job))

	claimed, err := repo.ClaimNextAction(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRework, claimed.PendingAction)
	assert.Equal(t, "render_segments", claimed.ReworkStage)

	stored, err := repo.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Empty(t, stored.PendingAction)
}
