package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"shortform/internal/domain"
)

// memStore is a test ArtifactStore. Every Put yields a fresh reference, so
// regenerated artifacts are distinguishable from the originals.
type memStore struct {
	mu   sync.Mutex
	seq  int
	data map[domain.Reference][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[domain.Reference][]byte)}
}

func (s *memStore) Put(ctx context.Context, jobID, stageKey string, data []byte) (domain.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ref := domain.Reference(fmt.Sprintf("%s/%s#%d", jobID, stageKey, s.seq))
	s.data[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *memStore) Get(ctx context.Context, ref domain.Reference) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[ref]
	if !ok {
		return nil, fmt.Errorf("no artifact %q", ref)
	}
	return append([]byte(nil), data...), nil
}

// fakeJobs records every Update so tests can assert on persistence ordering.
type fakeJobs struct {
	mu      sync.Mutex
	updates int
	// statusTrail captures the status at each Update call.
	statusTrail []domain.Status
	failUpdate  error
}

func (f *fakeJobs) Create(ctx context.Context, job *domain.Job) error { return nil }

func (f *fakeJobs) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) Update(ctx context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	f.updates++
	f.statusTrail = append(f.statusTrail, job.Status)
	return nil
}

func (f *fakeJobs) ClaimNextAction(ctx context.Context) (*domain.Job, error) {
	return nil, domain.ErrNoActionAvailable
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestJob(variant domain.Variant) *domain.Job {
	return &domain.Job{
		ID:        "job-1",
		Variant:   variant,
		Status:    domain.StatusPending,
		Artifacts: map[string]domain.Reference{},
	}
}
