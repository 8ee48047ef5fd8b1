package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shortform/internal/domain"
)

// PreconditionError reports that a rework target is missing a required input
// artifact. The job record is left untouched when this is returned.
type PreconditionError struct {
	Stage      string
	MissingKey string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("rework %s: required artifact %q is not present", e.Stage, e.MissingKey)
}

// ReworkCoordinator re-invokes a single stage of an already-progressed job
// using whatever inputs were last persisted, overwriting only that stage's
// output keys. Downstream stages are deliberately not cascaded; the
// coordinator returns an advisory list of stages whose outputs may now be
// stale and leaves chaining to the caller.
type ReworkCoordinator struct {
	Registry *Registry
	Store    ArtifactStore
	Jobs     domain.JobRepository
	Logger   zerolog.Logger
}

// NewReworkCoordinator wires a coordinator for one pipeline variant.
func NewReworkCoordinator(reg *Registry, store ArtifactStore, jobs domain.JobRepository, logger zerolog.Logger) *ReworkCoordinator {
	return &ReworkCoordinator{Registry: reg, Store: store, Jobs: jobs, Logger: logger}
}

// Rework re-runs the named stage. On success the stage's output references
// are replaced and the advisory stale list is returned; the job's terminal
// status does not change.
func (c *ReworkCoordinator) Rework(ctx context.Context, job *domain.Job, stageName string) ([]string, error) {
	st, ok := c.Registry.StageByName(stageName)
	if !ok {
		return nil, fmt.Errorf("rework: unknown stage %q for variant %q", stageName, c.Registry.Variant())
	}

	inputs := make(map[string][]byte, len(st.RequiredInputKeys))
	for _, key := range st.RequiredInputKeys {
		ref, present := job.Artifacts[key]
		if !present {
			return nil, &PreconditionError{Stage: stageName, MissingKey: key}
		}
		data, err := c.Store.Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("rework %s: load artifact %q: %w", stageName, key, err)
		}
		inputs[key] = data
	}

	c.Logger.Info().Str("job_id", job.ID).Str("stage", stageName).Msg("rework: stage starting")
	state := &StageState{Job: job, Inputs: inputs, Rework: true, store: c.Store, jobs: c.Jobs}
	if err := st.Run(ctx, state); err != nil {
		c.Logger.Error().Str("job_id", job.ID).Str("stage", stageName).Err(err).Msg("rework: stage failed")
		return nil, fmt.Errorf("rework %s: %w", stageName, err)
	}

	if err := c.Jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("rework %s: persist job: %w", stageName, err)
	}
	stale := c.Registry.Downstream(stageName)
	c.Logger.Info().Str("job_id", job.ID).Str("stage", stageName).Strs("stale", stale).Msg("rework: stage completed")
	return stale, nil
}
