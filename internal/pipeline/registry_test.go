package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortform/internal/domain"
)

func noopStage(ctx context.Context, st *StageState) error { return nil }

func threeStageDefs() []StageDefinition {
	return []StageDefinition{
		{Name: "plan", Ordinal: 0, Status: domain.StatusPlanning, StepLabel: "plan", ProducedOutputKeys: []string{"a"}, Run: noopStage},
		{Name: "render", Ordinal: 1, Status: domain.StatusRendering, StepLabel: "render", RequiredInputKeys: []string{"a", "seed"}, ProducedOutputKeys: []string{"b"}, Run: noopStage},
		{Name: "merge", Ordinal: 2, Status: domain.StatusMerging, StepLabel: "merge", RequiredInputKeys: []string{"b"}, ProducedOutputKeys: []string{"c"}, Run: noopStage},
	}
}

func TestNewRegistryValidates(t *testing.T) {
	_, err := NewRegistry(domain.VariantCharacter, []string{"seed"}, threeStageDefs())
	require.NoError(t, err)

	t.Run("ordinal gap", func(t *testing.T) {
		defs := threeStageDefs()
		defs[2].Ordinal = 5
		_, err := NewRegistry(domain.VariantCharacter, []string{"seed"}, defs)
		assert.ErrorContains(t, err, "ordinal")
	})

	t.Run("unsatisfiable input", func(t *testing.T) {
		defs := threeStageDefs()
		defs[1].RequiredInputKeys = []string{"a", "missing"}
		_, err := NewRegistry(domain.VariantCharacter, []string{"seed"}, defs)
		assert.ErrorContains(t, err, "missing")
	})

	t.Run("no stages", func(t *testing.T) {
		_, err := NewRegistry(domain.VariantCharacter, nil, nil)
		assert.Error(t, err)
	})

	t.Run("missing status", func(t *testing.T) {
		defs := threeStageDefs()
		defs[0].Status = ""
		_, err := NewRegistry(domain.VariantCharacter, []string{"seed"}, defs)
		assert.ErrorContains(t, err, "status")
	})
}

func TestResumeOrdinal(t *testing.T) {
	reg, err := NewRegistry(domain.VariantCharacter, []string{"seed"}, threeStageDefs())
	require.NoError(t, err)

	job := newTestJob(domain.VariantCharacter)
	assert.Equal(t, 0, reg.ResumeOrdinal(job))

	job.FailedAtStage = "render"
	assert.Equal(t, 1, reg.ResumeOrdinal(job))

	job.FailedAtStage = "never-existed"
	assert.Equal(t, 0, reg.ResumeOrdinal(job))
}

func TestPercentComplete(t *testing.T) {
	reg, err := NewRegistry(domain.VariantCharacter, []string{"seed"}, threeStageDefs())
	require.NoError(t, err)

	assert.Equal(t, 0, reg.PercentComplete(domain.StatusPending))
	assert.Equal(t, 25, reg.PercentComplete(domain.StatusPlanning))
	assert.Equal(t, 50, reg.PercentComplete(domain.StatusRendering))
	assert.Equal(t, 75, reg.PercentComplete(domain.StatusMerging))
	assert.Equal(t, 100, reg.PercentComplete(domain.StatusCompleted))
}

func TestDownstreamIsTransitive(t *testing.T) {
	// plan -> {a}; render needs a -> {b}; merge needs b -> {c}: reworking
	// plan taints render directly and merge through render's output.
	reg, err := NewRegistry(domain.VariantCharacter, []string{"seed"}, threeStageDefs())
	require.NoError(t, err)

	assert.Equal(t, []string{"render", "merge"}, reg.Downstream("plan"))
	assert.Equal(t, []string{"merge"}, reg.Downstream("render"))
	assert.Empty(t, reg.Downstream("merge"))
	assert.Empty(t, reg.Downstream("unknown"))
}

func TestProductRegistryShape(t *testing.T) {
	reg, err := NewProductRegistry(&Toolkit{})
	require.NoError(t, err)
	require.Equal(t, 6, reg.Len())

	names := make([]string, 0, reg.Len())
	for _, st := range reg.Stages() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{
		"plan_script", "prepare_first_frame", "generate_scene1",
		"prepare_cta_frame", "generate_scene2", "concatenate_videos",
	}, names)

	// A reworked scene 1 taints everything that chains off its outputs.
	assert.Equal(t, []string{
		"prepare_cta_frame", "generate_scene2", "concatenate_videos",
	}, reg.Downstream("generate_scene1"))
}

func TestCharacterRegistryShape(t *testing.T) {
	reg, err := NewCharacterRegistry(&Toolkit{}, testLogger())
	require.NoError(t, err)
	require.Equal(t, 3, reg.Len())
	assert.Equal(t, domain.VariantCharacter, reg.Variant())
	assert.Equal(t, []string{"render_segments", "merge_segments"}, reg.Downstream("plan_segments"))
}
