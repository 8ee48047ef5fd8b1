package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shortform/internal/domain"
)

// Executor runs a job's stages in registry order, one at a time, persisting
// every stage's output before advancing. Stage-level failures never escape as
// errors; they are recorded on the job record, which is how callers observe
// the outcome. The returned error is reserved for infrastructure problems
// (the job record itself could not be saved).
type Executor struct {
	Registry *Registry
	Store    ArtifactStore
	Jobs     domain.JobRepository
	Logger   zerolog.Logger
}

// NewExecutor wires a sequential executor for one pipeline variant.
func NewExecutor(reg *Registry, store ArtifactStore, jobs domain.JobRepository, logger zerolog.Logger) *Executor {
	return &Executor{Registry: reg, Store: store, Jobs: jobs, Logger: logger}
}

// Run executes every stage from the beginning.
func (e *Executor) Run(ctx context.Context, job *domain.Job) error {
	return e.run(ctx, job, 0)
}

// Resume restarts a failed job at its recorded failure point. Stages below
// that point are never re-invoked; their already-persisted artifacts are read
// straight from the store.
func (e *Executor) Resume(ctx context.Context, job *domain.Job) error {
	start := e.Registry.ResumeOrdinal(job)
	job.ErrorMessage = ""
	// The failed status is terminal and would let a rework request in while
	// stages are running; revert to the last durably completed stage's status
	// before the first stage starts.
	if start > 0 {
		job.Status = e.Registry.Stages()[start-1].Status
	} else {
		job.Status = domain.StatusPending
	}
	if err := e.Jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("pipeline: clear error before resume: %w", err)
	}
	return e.run(ctx, job, start)
}

func (e *Executor) run(ctx context.Context, job *domain.Job, start int) error {
	log := e.Logger.With().Str("job_id", job.ID).Str("variant", string(job.Variant)).Logger()

	for _, st := range e.Registry.Stages()[start:] {
		log.Info().Str("stage", st.Name).Int("ordinal", st.Ordinal).Msg("pipeline: stage starting")

		job.CurrentStep = st.StepLabel
		if err := e.Jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("pipeline: save step marker: %w", err)
		}

		state, err := e.prepare(ctx, job, st)
		if err != nil {
			// Missing declared inputs here means a registry or resume
			// bookkeeping bug, not a user-facing generation failure.
			return e.fail(ctx, job, st, fmt.Errorf("internal: %w", err))
		}

		if err := st.Run(ctx, state); err != nil {
			return e.fail(ctx, job, st, err)
		}

		for _, key := range st.ProducedOutputKeys {
			if _, ok := job.Artifacts[key]; !ok {
				return e.fail(ctx, job, st, fmt.Errorf("internal: stage %q did not record artifact %q", st.Name, key))
			}
		}

		// Artifacts are already durable; only now does the status advance.
		job.Status = st.Status
		if err := e.Jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("pipeline: advance status: %w", err)
		}
		log.Info().Str("stage", st.Name).Msg("pipeline: stage completed")
	}

	job.Status = domain.StatusCompleted
	job.FailedAtStage = ""
	job.ErrorMessage = ""
	job.CurrentStep = "done"
	if err := e.Jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("pipeline: mark completed: %w", err)
	}
	log.Info().Msg("pipeline: job completed")
	return nil
}

// prepare verifies and loads a stage's declared inputs.
func (e *Executor) prepare(ctx context.Context, job *domain.Job, st StageDefinition) (*StageState, error) {
	inputs := make(map[string][]byte, len(st.RequiredInputKeys))
	for _, key := range st.RequiredInputKeys {
		ref, ok := job.Artifacts[key]
		if !ok {
			return nil, fmt.Errorf("stage %q requires artifact %q which is not present", st.Name, key)
		}
		data, err := e.Store.Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("stage %q load artifact %q: %w", st.Name, key, err)
		}
		inputs[key] = data
	}
	return &StageState{Job: job, Inputs: inputs, store: e.Store, jobs: e.Jobs}, nil
}

// fail records a stage failure on the job. No further stages run.
func (e *Executor) fail(ctx context.Context, job *domain.Job, st StageDefinition, cause error) error {
	e.Logger.Error().Str("job_id", job.ID).Str("stage", st.Name).Err(cause).Msg("pipeline: stage failed")
	job.Status = domain.StatusFailed
	job.FailedAtStage = st.Name
	job.ErrorMessage = cause.Error()
	if err := e.Jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("pipeline: record failure: %w", err)
	}
	return nil
}
