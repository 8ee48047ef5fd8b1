// Package pipeline implements the job orchestrator: stage registries, the
// sequential and fan-out executors, the moderation retry policy, and the
// rework coordinator. Pipelines are expensive chains of external synthesis
// calls, so every stage output is durably persisted before the job advances;
// a crash or failure never loses completed work and a failed job resumes at
// its recorded failure point.
package pipeline

import (
	"context"
	"fmt"

	"shortform/internal/domain"
)

// StageFunc runs one stage. Inputs declared by the stage definition are
// already loaded into the state; outputs are written through the state so the
// executor controls persistence ordering.
type StageFunc func(ctx context.Context, st *StageState) error

// StageDefinition is one ordered step of a pipeline variant. Definitions are
// static per variant and never persisted per job.
type StageDefinition struct {
	Name               string
	Ordinal            int
	Status             domain.Status
	StepLabel          string
	RequiredInputKeys  []string
	ProducedOutputKeys []string
	Run                StageFunc
}

// Registry is the immutable ordered stage list for one pipeline variant. It
// is constructed once at startup and passed explicitly to executors; there is
// no ambient global stage table.
type Registry struct {
	variant     domain.Variant
	initialKeys []string
	stages      []StageDefinition
}

// NewRegistry validates and freezes a variant's stage list. Ordinals must be
// 0..n-1 in order, and every stage's required inputs must be producible from
// the job's initial artifact keys plus the outputs of earlier stages. These
// are construction-time checks: hitting one of them at runtime would mean a
// registry or resume-bookkeeping bug, not a user-facing failure.
func NewRegistry(variant domain.Variant, initialKeys []string, stages []StageDefinition) (*Registry, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline: variant %q has no stages", variant)
	}
	available := make(map[string]bool, len(initialKeys))
	for _, k := range initialKeys {
		available[k] = true
	}
	for i, st := range stages {
		if st.Ordinal != i {
			return nil, fmt.Errorf("pipeline: variant %q stage %q has ordinal %d, want %d", variant, st.Name, st.Ordinal, i)
		}
		if st.Name == "" || st.Run == nil {
			return nil, fmt.Errorf("pipeline: variant %q stage %d is incomplete", variant, i)
		}
		if st.Status == "" {
			return nil, fmt.Errorf("pipeline: variant %q stage %q has no completion status", variant, st.Name)
		}
		for _, req := range st.RequiredInputKeys {
			if !available[req] {
				return nil, fmt.Errorf("pipeline: variant %q stage %q requires %q which no earlier stage produces", variant, st.Name, req)
			}
		}
		for _, out := range st.ProducedOutputKeys {
			available[out] = true
		}
	}
	reg := &Registry{
		variant:     variant,
		initialKeys: append([]string(nil), initialKeys...),
		stages:      append([]StageDefinition(nil), stages...),
	}
	return reg, nil
}

// Variant returns the variant this registry describes.
func (r *Registry) Variant() domain.Variant { return r.variant }

// Stages returns the ordered stage definitions.
func (r *Registry) Stages() []StageDefinition { return r.stages }

// Len returns the number of stages.
func (r *Registry) Len() int { return len(r.stages) }

// StageByName looks a stage up by its name.
func (r *Registry) StageByName(name string) (StageDefinition, bool) {
	for _, st := range r.stages {
		if st.Name == name {
			return st, true
		}
	}
	return StageDefinition{}, false
}

// ResumeOrdinal maps a failed job back to the ordinal of the stage that was
// executing when it failed. A job without a recorded failure stage starts
// from the beginning.
func (r *Registry) ResumeOrdinal(job *domain.Job) int {
	if job.FailedAtStage == "" {
		return 0
	}
	if st, ok := r.StageByName(job.FailedAtStage); ok {
		return st.Ordinal
	}
	return 0
}

// PercentComplete converts a status into coarse progress, counting completion
// as one extra step beyond the last stage.
func (r *Registry) PercentComplete(status domain.Status) int {
	total := len(r.stages) + 1
	switch status {
	case domain.StatusPending, domain.StatusFailed:
		return 0
	case domain.StatusCompleted:
		return 100
	}
	for _, st := range r.stages {
		if st.Status == status {
			return (st.Ordinal + 1) * 100 / total
		}
	}
	return 0
}

// Downstream returns the names of stages after the named stage whose inputs
// depend, directly or transitively, on its outputs. The rework coordinator
// reports these as potentially stale.
func (r *Registry) Downstream(name string) []string {
	st, ok := r.StageByName(name)
	if !ok {
		return nil
	}
	dirty := make(map[string]bool, len(st.ProducedOutputKeys))
	for _, k := range st.ProducedOutputKeys {
		dirty[k] = true
	}
	var stale []string
	for _, next := range r.stages[st.Ordinal+1:] {
		depends := false
		for _, req := range next.RequiredInputKeys {
			if dirty[req] {
				depends = true
				break
			}
		}
		if depends {
			stale = append(stale, next.Name)
			for _, k := range next.ProducedOutputKeys {
				dirty[k] = true
			}
		}
	}
	return stale
}
