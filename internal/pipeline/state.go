package pipeline

import (
	"context"
	"fmt"
	"sync"

	"shortform/internal/domain"
)

// ArtifactStore is the orchestrator's view of artifact persistence.
// References are opaque and stable; a stage's inputs are read through Get and
// its outputs written through Put before the job record advances.
type ArtifactStore interface {
	Put(ctx context.Context, jobID, stageKey string, data []byte) (domain.Reference, error)
	Get(ctx context.Context, ref domain.Reference) ([]byte, error)
}

// StageState is the working context handed to a StageFunc. Declared inputs
// are pre-loaded; outputs are written through PutArtifact, which persists the
// bytes to the store and records the reference on the job in one step. The
// executor saves the job record only after the stage returns, so a crash
// mid-stage leaves the previous stage's committed state intact.
type StageState struct {
	Job    *domain.Job
	Inputs map[string][]byte
	// Rework forces regeneration even where an artifact already exists.
	Rework bool

	store ArtifactStore
	jobs  domain.JobRepository
	mu    sync.Mutex
}

// Input returns a loaded required input by key. Missing keys are an internal
// invariant violation: the executor only runs a stage after verifying them.
func (s *StageState) Input(key string) ([]byte, error) {
	data, ok := s.Inputs[key]
	if !ok {
		return nil, fmt.Errorf("pipeline: input artifact %q not loaded", key)
	}
	return data, nil
}

// PutArtifact stores data under the stage key and records its reference in
// the job's artifact map.
func (s *StageState) PutArtifact(ctx context.Context, key string, data []byte) (domain.Reference, error) {
	ref, err := s.store.Put(ctx, s.Job.ID, key, data)
	if err != nil {
		return "", fmt.Errorf("pipeline: persist %q: %w", key, err)
	}
	s.mu.Lock()
	s.Job.Artifacts[key] = ref
	s.mu.Unlock()
	return ref, nil
}

// PutSegmentArtifact stores data for one fan-out segment and records the
// reference in that segment's own artifact sub-map.
func (s *StageState) PutSegmentArtifact(ctx context.Context, seg *domain.Segment, key string, data []byte) (domain.Reference, error) {
	ref, err := s.store.Put(ctx, s.Job.ID, fmt.Sprintf("segment_%d_%s", seg.Index, key), data)
	if err != nil {
		return "", fmt.Errorf("pipeline: persist segment %d %q: %w", seg.Index, key, err)
	}
	s.mu.Lock()
	if seg.Artifacts == nil {
		seg.Artifacts = make(map[string]domain.Reference)
	}
	seg.Artifacts[key] = ref
	s.mu.Unlock()
	return ref, nil
}

// SetSegmentOutcome records a segment's terminal status and error under the
// same mutex SaveJob holds, so a sibling segment's checkpoint never serializes
// a half-written record.
func (s *StageState) SetSegmentOutcome(seg *domain.Segment, status domain.SegmentStatus, errMessage string) {
	s.mu.Lock()
	seg.Status = status
	seg.ErrorMessage = errMessage
	s.mu.Unlock()
}

// GetArtifact reads an already-persisted artifact by reference.
func (s *StageState) GetArtifact(ctx context.Context, ref domain.Reference) ([]byte, error) {
	return s.store.Get(ctx, ref)
}

// SaveJob persists the job record mid-stage. The fan-out executor uses this
// to checkpoint each segment's terminal outcome as it lands; sequential
// stages normally leave saving to the executor.
func (s *StageState) SaveJob(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs.Update(ctx, s.Job)
}
