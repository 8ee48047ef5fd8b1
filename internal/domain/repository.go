package domain

import "context"

// JobRepository persists job execution records. Updates must be durable
// before the executor advances to the next stage; that ordering is what makes
// a crashed job resumable at its failure point.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, job *Job) error
	// ClaimNextAction atomically takes the oldest job with a pending action,
	// clears the action on the record, and returns the job with the claimed
	// action still populated. Returns ErrNoActionAvailable when idle.
	ClaimNextAction(ctx context.Context) (*Job, error)
}
