package repo

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"shortform/internal/domain"
)

// JobRepositoryMemory is the DATABASE_URL-less fallback used in local
// development and tests. Jobs are deep-copied on every boundary so callers
// never share mutable state with the store.
type JobRepositoryMemory struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func NewJobRepositoryMemory() *JobRepositoryMemory {
	return &JobRepositoryMemory{jobs: make(map[string]*domain.Job)}
}

func (r *JobRepositoryMemory) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *JobRepositoryMemory) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *JobRepositoryMemory) Update(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	job.UpdatedAt = time.Now().UTC()
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *JobRepositoryMemory) ClaimNextAction(ctx context.Context) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*domain.Job
	for _, job := range r.jobs {
		if job.PendingAction != "" {
			pending = append(pending, job)
		}
	}
	if len(pending) == 0 {
		return nil, domain.ErrNoActionAvailable
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].UpdatedAt.Before(pending[j].UpdatedAt)
	})

	claimed := pending[0]
	out := cloneJob(claimed)
	claimed.PendingAction = ""
	claimed.UpdatedAt = time.Now().UTC()
	return out, nil
}

var _ domain.JobRepository = (*JobRepositoryMemory)(nil)

// cloneJob round-trips through JSON for the nested maps and slices. Jobs are
// small; correctness beats shaving allocations here.
func cloneJob(job *domain.Job) *domain.Job {
	data, err := json.Marshal(struct {
		Input     domain.Input                `json:"input"`
		Artifacts map[string]domain.Reference `json:"artifacts"`
		Segments  []domain.Segment            `json:"segments"`
	}{job.Input, job.Artifacts, job.Segments})
	if err != nil {
		data = []byte(`{}`)
	}
	out := *job
	var nested struct {
		Input     domain.Input                `json:"input"`
		Artifacts map[string]domain.Reference `json:"artifacts"`
		Segments  []domain.Segment            `json:"segments"`
	}
	_ = json.Unmarshal(data, &nested)
	out.Input = nested.Input
	out.Artifacts = nested.Artifacts
	if out.Artifacts == nil {
		out.Artifacts = map[string]domain.Reference{}
	}
	out.Segments = nested.Segments
	return &out
}
