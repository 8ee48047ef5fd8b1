// Package control is the application layer: it validates submissions, seeds
// their assets into the artifact store, records pending actions, and executes
// claimed actions against the right pipeline variant.
package control

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shortform/internal/domain"
	"shortform/internal/pipeline"
	"shortform/internal/runner"
	"shortform/pkg/zip"
)

// Dispatcher pushes a claimed action to an in-process executor. Without one,
// pending actions wait for the polling worker.
type Dispatcher interface {
	Enqueue(task runner.Task) error
}

// VariantSet bundles everything one pipeline variant needs at runtime.
type VariantSet struct {
	Registry *pipeline.Registry
	Executor *pipeline.Executor
	Reworker *pipeline.ReworkCoordinator
}

// Service exposes the job lifecycle operations the HTTP layer and workers
// call into.
type Service struct {
	jobs       domain.JobRepository
	store      pipeline.ArtifactStore
	variants   map[domain.Variant]VariantSet
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewService wires the control service. dispatcher may be nil in worker-only
// deployments.
func NewService(jobs domain.JobRepository, store pipeline.ArtifactStore, variants map[domain.Variant]VariantSet, dispatcher Dispatcher, logger zerolog.Logger) *Service {
	return &Service{jobs: jobs, store: store, variants: variants, dispatcher: dispatcher, logger: logger}
}

// SetDispatcher installs the in-process dispatcher. The runner pool takes the
// service as its executor, so the two are wired in two steps at startup.
func (s *Service) SetDispatcher(d Dispatcher) { s.dispatcher = d }

// SubmitRequest is a validated-at-the-edge job submission. Binary assets are
// seeded into the artifact store before the first stage runs, so stages read
// them like any other artifact.
type SubmitRequest struct {
	Variant domain.Variant
	Input   domain.Input

	ProductImage   []byte
	ClosingStill   []byte
	SoundEffect    []byte
	CharacterImage []byte
}

// Submit validates the request, persists the job in pending state with its
// run action recorded, and dispatches it.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	if _, ok := s.variants[req.Variant]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidVariant, req.Variant)
	}

	job := &domain.Job{
		ID:            uuid.NewString(),
		Variant:       req.Variant,
		Status:        domain.StatusPending,
		Input:         req.Input,
		Artifacts:     map[string]domain.Reference{},
		PendingAction: domain.ActionRun,
	}

	assets, err := submissionAssets(req)
	if err != nil {
		return nil, err
	}
	for key, data := range assets {
		ref, err := s.store.Put(ctx, job.ID, key, data)
		if err != nil {
			return nil, fmt.Errorf("seed asset %q: %w", key, err)
		}
		job.Artifacts[key] = ref
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.Info().Str("job_id", job.ID).Str("variant", string(job.Variant)).Msg("control: job submitted")
	s.dispatch(job.ID, domain.ActionRun, "")
	return job, nil
}

// Resume requests that a failed job continue from its recorded failure point.
func (s *Service) Resume(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusFailed {
		return nil, fmt.Errorf("%w: job %s is %q", domain.ErrJobNotResumable, jobID, job.Status)
	}
	job.PendingAction = domain.ActionResume
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("record resume: %w", err)
	}
	s.dispatch(job.ID, domain.ActionResume, "")
	return job, nil
}

// ReworkStage requests regeneration of a single stage of a finished job. The
// returned list names the downstream stages whose outputs may go stale; they
// are not regenerated automatically.
func (s *Service) ReworkStage(ctx context.Context, jobID, stage string) (*domain.Job, []string, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	vs, ok := s.variants[job.Variant]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrInvalidVariant, job.Variant)
	}
	st, ok := vs.Registry.StageByName(stage)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown stage %q for variant %q", domain.ErrInvalidInput, stage, job.Variant)
	}
	if !job.Status.Terminal() {
		return nil, nil, fmt.Errorf("%w: job %s is %q", domain.ErrJobInProgress, jobID, job.Status)
	}
	for _, key := range st.RequiredInputKeys {
		if _, present := job.Artifacts[key]; !present {
			return nil, nil, &pipeline.PreconditionError{Stage: stage, MissingKey: key}
		}
	}

	job.PendingAction = domain.ActionRework
	job.ReworkStage = stage
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("record rework: %w", err)
	}
	s.dispatch(job.ID, domain.ActionRework, stage)
	return job, vs.Registry.Downstream(stage), nil
}

// StatusView is the read model for one job.
type StatusView struct {
	ID            string                      `json:"id"`
	Variant       domain.Variant              `json:"variant"`
	Status        domain.Status               `json:"status"`
	Percent       int                         `json:"percent"`
	Step          string                      `json:"step"`
	StepLabel     string                      `json:"step_label"`
	FailedAtStage string                      `json:"failed_at_stage,omitempty"`
	ErrorMessage  string                      `json:"error_message,omitempty"`
	Artifacts     map[string]domain.Reference `json:"artifacts"`
	Segments      []SegmentView               `json:"segments,omitempty"`
}

// SegmentView summarizes one fan-out segment.
type SegmentView struct {
	Index        int                  `json:"index"`
	Title        string               `json:"title"`
	Status       domain.SegmentStatus `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

// GetStatus returns the job's progress with a step label in the requested
// locale.
func (s *Service) GetStatus(ctx context.Context, jobID, locale string) (*StatusView, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		ID:            job.ID,
		Variant:       job.Variant,
		Status:        job.Status,
		Step:          job.CurrentStep,
		StepLabel:     StepLabel(job.CurrentStep, locale),
		FailedAtStage: job.FailedAtStage,
		ErrorMessage:  job.ErrorMessage,
		Artifacts:     job.Artifacts,
	}
	if vs, ok := s.variants[job.Variant]; ok {
		view.Percent = vs.Registry.PercentComplete(job.Status)
	}
	for _, seg := range job.Segments {
		view.Segments = append(view.Segments, SegmentView{
			Index:        seg.Index,
			Title:        seg.Title,
			Status:       seg.Status,
			ErrorMessage: seg.ErrorMessage,
		})
	}
	return view, nil
}

// ExportArtifacts bundles everything a job has produced so far into a zip
// archive. Failed and in-flight jobs export whatever is durable, which is the
// point: completed stages survive failures.
func (s *Service) ExportArtifacts(ctx context.Context, jobID string) (string, []byte, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return "", nil, err
	}

	var assets []zip.Asset
	keys := make([]string, 0, len(job.Artifacts))
	for key := range job.Artifacts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		data, err := s.store.Get(ctx, job.Artifacts[key])
		if err != nil {
			return "", nil, fmt.Errorf("load artifact %q: %w", key, err)
		}
		assets = append(assets, zip.Asset{Filename: key + extensionFor(key), Data: data})
	}
	for _, seg := range job.Segments {
		segKeys := make([]string, 0, len(seg.Artifacts))
		for key := range seg.Artifacts {
			segKeys = append(segKeys, key)
		}
		sort.Strings(segKeys)
		for _, key := range segKeys {
			data, err := s.store.Get(ctx, seg.Artifacts[key])
			if err != nil {
				return "", nil, fmt.Errorf("load segment %d artifact %q: %w", seg.Index, key, err)
			}
			name := fmt.Sprintf("segments/%02d_%s%s", seg.Index, key, extensionFor(key))
			assets = append(assets, zip.Asset{Filename: name, Data: data})
		}
	}
	if len(assets) == 0 {
		return "", nil, fmt.Errorf("%w: job %s has no artifacts", domain.ErrNotFound, jobID)
	}
	return fmt.Sprintf("job_%s_artifacts.zip", job.ID), zip.ArchiveAssets(assets), nil
}

// ExecuteAction runs one claimed action to completion. Pipeline failures land
// on the job record; the returned error covers infrastructure problems only.
func (s *Service) ExecuteAction(ctx context.Context, task runner.Task) error {
	job, err := s.jobs.Get(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", task.JobID, err)
	}
	// In-process dispatch leaves the pending action set; claim it here so a
	// polling worker sharing the database cannot pick it up again.
	if job.PendingAction == task.Action {
		job.PendingAction = ""
		if err := s.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("claim action for job %s: %w", task.JobID, err)
		}
	}

	vs, ok := s.variants[job.Variant]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidVariant, job.Variant)
	}

	switch task.Action {
	case domain.ActionRun:
		return vs.Executor.Run(ctx, job)
	case domain.ActionResume:
		return vs.Executor.Resume(ctx, job)
	case domain.ActionRework:
		stage := task.Stage
		if stage == "" {
			stage = job.ReworkStage
		}
		stale, err := vs.Reworker.Rework(ctx, job, stage)
		if err != nil {
			return err
		}
		job.ReworkStage = ""
		if err := s.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("clear rework stage: %w", err)
		}
		if len(stale) > 0 {
			s.logger.Info().Str("job_id", job.ID).Str("stage", stage).Strs("stale", stale).Msg("control: downstream stages may be stale")
		}
		return nil
	default:
		return fmt.Errorf("%w: action %q", domain.ErrInvalidInput, task.Action)
	}
}

func (s *Service) dispatch(jobID string, action domain.Action, stage string) {
	if s.dispatcher == nil {
		return
	}
	task := runner.Task{JobID: jobID, Action: action, Stage: stage}
	if err := s.dispatcher.Enqueue(task); err != nil {
		// The pending action is already durable; the polling worker or the
		// next boot picks it up.
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("control: dispatch deferred")
	}
}

func submissionAssets(req SubmitRequest) (map[string][]byte, error) {
	switch req.Variant {
	case domain.VariantProduct:
		if strings.TrimSpace(req.Input.Topic) == "" && strings.TrimSpace(req.Input.Script) == "" {
			return nil, fmt.Errorf("%w: topic or script is required", domain.ErrInvalidInput)
		}
		if len(req.ProductImage) == 0 {
			return nil, fmt.Errorf("%w: product image is required", domain.ErrInvalidInput)
		}
		if len(req.ClosingStill) == 0 {
			return nil, fmt.Errorf("%w: closing still is required", domain.ErrInvalidInput)
		}
		if len(req.SoundEffect) == 0 {
			return nil, fmt.Errorf("%w: sound effect is required", domain.ErrInvalidInput)
		}
		return map[string][]byte{
			pipeline.KeyProductImage: req.ProductImage,
			pipeline.KeyClosingStill: req.ClosingStill,
			pipeline.KeySoundEffect:  req.SoundEffect,
		}, nil
	case domain.VariantCharacter:
		if strings.TrimSpace(req.Input.GameName) == "" {
			return nil, fmt.Errorf("%w: game name is required", domain.ErrInvalidInput)
		}
		if len(req.CharacterImage) == 0 {
			return nil, fmt.Errorf("%w: character image is required", domain.ErrInvalidInput)
		}
		return map[string][]byte{
			pipeline.KeyCharacterImage: req.CharacterImage,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidVariant, req.Variant)
	}
}

func extensionFor(key string) string {
	switch {
	case key == pipeline.KeyScript || key == pipeline.KeySegments:
		return ".json"
	case key == pipeline.KeySoundEffect:
		return ".mp3"
	case strings.Contains(key, "video") || key == "clip":
		return ".mp4"
	default:
		return ".png"
	}
}
