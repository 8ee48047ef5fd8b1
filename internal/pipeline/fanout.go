package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"shortform/internal/domain"
	"shortform/internal/generation"
)

// DefaultMaxConcurrency bounds in-flight segment sub-pipelines regardless of
// segment count.
const DefaultMaxConcurrency = 2

// Per-segment artifact keys inside a segment's own sub-map.
const (
	segmentFrameKey = "frame"
	segmentClipKey  = "clip"
)

// SegmentManifest is the fan-out stage's declared output: every segment's
// clip reference in index order. The merge stage consumes the manifest
// instead of addressing per-segment keys directly.
type SegmentManifest struct {
	Clips []domain.Reference `json:"clips"`
}

// EncodeManifest serializes a manifest for the artifact store.
func EncodeManifest(m *SegmentManifest) ([]byte, error) { return json.Marshal(m) }

// DecodeManifest parses a persisted manifest artifact.
func DecodeManifest(data []byte) (*SegmentManifest, error) {
	var m SegmentManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// FanoutRenderer runs the character variant's middle stage: one independent
// (frame image -> video clip) sub-pipeline per planned scene, executed under
// a bounded worker limit and joined before the merge stage may begin. Each
// segment's terminal outcome is checkpointed as it lands, so a resume only
// re-renders segments that never completed.
type FanoutRenderer struct {
	Images         generation.ImageSynthesizer
	Videos         generation.VideoSynthesizer
	Moderation     *ModerationPolicy
	MaxConcurrency int
	Logger         zerolog.Logger
}

// Run implements the StageFunc contract for the fan-out stage.
func (f *FanoutRenderer) Run(ctx context.Context, st *StageState) error {
	scriptData, err := st.Input("script")
	if err != nil {
		return err
	}
	script, err := domain.DecodeScript(scriptData)
	if err != nil {
		return generation.Fatal("fanout", fmt.Errorf("decode script artifact: %w", err))
	}
	if len(script.Scenes) == 0 {
		return generation.Fatal("fanout", fmt.Errorf("script has no scenes"))
	}
	characterImage, err := st.Input("character_image")
	if err != nil {
		return err
	}

	f.reconcileSegments(st.Job, script)
	if err := st.SaveJob(ctx); err != nil {
		return fmt.Errorf("fanout: persist segment records: %w", err)
	}

	scenes := make(map[int]domain.Scene, len(script.Scenes))
	for _, scene := range script.Scenes {
		scenes[scene.Index] = scene
	}

	limit := f.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}

	g := &errgroup.Group{}
	g.SetLimit(limit)
	for i := range st.Job.Segments {
		seg := &st.Job.Segments[i]
		if seg.Status == domain.SegmentCompleted && !st.Rework {
			continue
		}
		scene, ok := scenes[seg.Index]
		if !ok {
			return generation.Fatal("fanout", fmt.Errorf("segment %d has no scene in the current script", seg.Index))
		}
		g.Go(func() error {
			f.renderSegment(ctx, st, seg, scene, characterImage)
			return nil
		})
	}
	// Join barrier: every segment reaches a terminal outcome before the
	// aggregate is judged. Sub-pipeline errors are recorded per segment,
	// never returned through the group.
	_ = g.Wait()

	var failed []string
	var firstErr string
	for i := range st.Job.Segments {
		seg := &st.Job.Segments[i]
		if seg.Status != domain.SegmentCompleted {
			failed = append(failed, fmt.Sprintf("%d", seg.Index))
			if firstErr == "" {
				firstErr = seg.ErrorMessage
			}
		}
	}
	if len(failed) > 0 {
		// Fail-fast aggregate: a merged video missing any segment is not a
		// valid deliverable, so the merge stage is never invoked.
		return fmt.Errorf("fanout: segment(s) %s failed: %s", strings.Join(failed, ", "), firstErr)
	}

	manifest := &SegmentManifest{Clips: make([]domain.Reference, len(st.Job.Segments))}
	for i := range st.Job.Segments {
		seg := &st.Job.Segments[i]
		manifest.Clips[seg.Index] = seg.Artifacts[segmentClipKey]
	}
	data, err := EncodeManifest(manifest)
	if err != nil {
		return fmt.Errorf("fanout: encode manifest: %w", err)
	}
	if _, err := st.PutArtifact(ctx, "segments", data); err != nil {
		return err
	}
	return nil
}

// reconcileSegments aligns the job's segment records with the current script.
// A re-planned script may carry fewer, more, or different scenes than the
// records a previous run left behind: records whose scene is gone are dropped,
// records whose prompt changed are reset so their outputs regenerate, and
// unchanged records survive so a resume can skip completed segments.
func (f *FanoutRenderer) reconcileSegments(job *domain.Job, script *domain.Script) {
	existing := make(map[int]domain.Segment, len(job.Segments))
	for _, seg := range job.Segments {
		existing[seg.Index] = seg
	}
	segments := make([]domain.Segment, 0, len(script.Scenes))
	for _, scene := range script.Scenes {
		seg, ok := existing[scene.Index]
		if !ok || seg.Prompt != scene.Prompt {
			seg = domain.Segment{
				Index:     scene.Index,
				Status:    domain.SegmentPending,
				Artifacts: make(map[string]domain.Reference),
			}
		}
		seg.Title = scene.Title
		seg.Seconds = scene.Seconds
		seg.Prompt = scene.Prompt
		segments = append(segments, seg)
	}
	job.Segments = segments
}

// renderSegment drives one segment sub-pipeline to a terminal outcome and
// checkpoints it. Moderation retry applies to both the frame and the clip
// call independently.
func (f *FanoutRenderer) renderSegment(ctx context.Context, st *StageState, seg *domain.Segment, scene domain.Scene, characterImage []byte) {
	log := f.Logger.With().Str("job_id", st.Job.ID).Int("segment", seg.Index).Logger()
	log.Info().Msg("fanout: segment starting")

	frame, err := f.segmentFrame(ctx, st, seg, scene, characterImage)
	if err == nil {
		err = f.segmentClip(ctx, st, seg, scene, frame)
	}

	if err != nil {
		log.Error().Err(err).Msg("fanout: segment failed")
		st.SetSegmentOutcome(seg, domain.SegmentFailed, err.Error())
	} else {
		log.Info().Msg("fanout: segment completed")
		st.SetSegmentOutcome(seg, domain.SegmentCompleted, "")
	}
	if saveErr := st.SaveJob(ctx); saveErr != nil {
		log.Error().Err(saveErr).Msg("fanout: checkpoint segment outcome failed")
	}
}

func (f *FanoutRenderer) segmentFrame(ctx context.Context, st *StageState, seg *domain.Segment, scene domain.Scene, characterImage []byte) ([]byte, error) {
	if ref, ok := seg.Artifacts[segmentFrameKey]; ok && !st.Rework {
		return st.GetArtifact(ctx, ref)
	}
	frame, err := f.Moderation.Execute(ctx, scene.Prompt, func(ctx context.Context, prompt string) ([]byte, error) {
		return f.Images.SynthesizeImage(ctx, generation.ImageRequest{
			Prompt:          framePrompt(prompt, scene),
			ReferenceImages: [][]byte{characterImage},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	if _, err := st.PutSegmentArtifact(ctx, seg, segmentFrameKey, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func (f *FanoutRenderer) segmentClip(ctx context.Context, st *StageState, seg *domain.Segment, scene domain.Scene, frame []byte) error {
	if _, ok := seg.Artifacts[segmentClipKey]; ok && !st.Rework {
		return nil
	}
	clip, err := f.Moderation.Execute(ctx, scene.Prompt, func(ctx context.Context, prompt string) ([]byte, error) {
		return f.Videos.SynthesizeVideo(ctx, generation.VideoRequest{
			Prompt:     prompt,
			StartFrame: frame,
			Seconds:    scene.Seconds,
		})
	})
	if err != nil {
		return fmt.Errorf("clip: %w", err)
	}
	if _, err := st.PutSegmentArtifact(ctx, seg, segmentClipKey, clip); err != nil {
		return err
	}
	return nil
}

// framePrompt composes the start-frame image prompt from the (possibly
// sanitized) scene prompt plus the scene's framing directions.
func framePrompt(prompt string, scene domain.Scene) string {
	var b strings.Builder
	b.WriteString(prompt)
	if scene.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", scene.Location)
	}
	if scene.ShotType != "" {
		fmt.Fprintf(&b, "\nShot: %s", scene.ShotType)
	}
	if scene.Camera != "" {
		fmt.Fprintf(&b, "\nCamera: %s", scene.Camera)
	}
	return b.String()
}
