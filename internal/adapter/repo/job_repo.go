package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"shortform/internal/domain"
	"shortform/internal/infra"
	"shortform/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. All SQL goes
// through the marker-logging runner so every statement is traceable.
type JobRepositoryPG struct {
	db infra.SQLExecutor
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(db infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{db: db}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	input, artifacts, segments, err := encodeJSONColumns(job)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, sqlinline.QJobInsert,
		job.ID,
		job.Variant,
		job.Status,
		job.FailedAtStage,
		job.CurrentStep,
		job.ErrorMessage,
		input,
		artifacts,
		segments,
		job.PendingAction,
		job.ReworkStage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// Get fetches a job by its identifier.
func (r *JobRepositoryPG) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.db.QueryRow(ctx, sqlinline.QJobGet, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Update persists the job's full mutable state.
func (r *JobRepositoryPG) Update(ctx context.Context, job *domain.Job) error {
	_, artifacts, segments, err := encodeJSONColumns(job)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	_, err = r.db.Exec(ctx, sqlinline.QJobUpdate,
		job.ID,
		job.Status,
		job.FailedAtStage,
		job.CurrentStep,
		job.ErrorMessage,
		artifacts,
		segments,
		job.PendingAction,
		job.ReworkStage,
	)
	return err
}

// ClaimNextAction atomically takes the oldest job carrying a pending action
// and clears it. The claim is a single statement with FOR UPDATE SKIP LOCKED,
// so concurrent workers never double-claim.
func (r *JobRepositoryPG) ClaimNextAction(ctx context.Context) (*domain.Job, error) {
	row := r.db.QueryRow(ctx, sqlinline.QJobClaimAction)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoActionAvailable
		}
		return nil, err
	}
	return job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)

func encodeJSONColumns(job *domain.Job) (input, artifacts, segments []byte, err error) {
	if input, err = json.Marshal(job.Input); err != nil {
		return nil, nil, nil, fmt.Errorf("encode input: %w", err)
	}
	if job.Artifacts == nil {
		job.Artifacts = map[string]domain.Reference{}
	}
	if artifacts, err = json.Marshal(job.Artifacts); err != nil {
		return nil, nil, nil, fmt.Errorf("encode artifacts: %w", err)
	}
	if job.Segments == nil {
		job.Segments = []domain.Segment{}
	}
	if segments, err = json.Marshal(job.Segments); err != nil {
		return nil, nil, nil, fmt.Errorf("encode segments: %w", err)
	}
	return input, artifacts, segments, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job       domain.Job
		input     []byte
		artifacts []byte
		segments  []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Variant,
		&job.Status,
		&job.FailedAtStage,
		&job.CurrentStep,
		&job.ErrorMessage,
		&input,
		&artifacts,
		&segments,
		&job.PendingAction,
		&job.ReworkStage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(input, &job.Input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if err := json.Unmarshal(artifacts, &job.Artifacts); err != nil {
		return nil, fmt.Errorf("decode artifacts: %w", err)
	}
	if err := json.Unmarshal(segments, &job.Segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return &job, nil
}
