package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shortform/internal/domain"
	"shortform/internal/generation"
)

// CharacterInitialKeys are the assets a character submission must seed.
func CharacterInitialKeys() []string {
	return []string{KeyCharacterImage}
}

// NewCharacterRegistry builds the five-segment character pipeline:
//
//	plan_segments -> render_segments -> merge_segments
//
// Planning produces one scene per segment; render_segments fans the segments
// out as independent frame+clip sub-pipelines under a bounded worker limit;
// merge_segments joins the clips with cross-fade transitions.
func NewCharacterRegistry(tk *Toolkit, logger zerolog.Logger) (*Registry, error) {
	renderer := &FanoutRenderer{
		Images:         tk.Gen.Images,
		Videos:         tk.Gen.Videos,
		Moderation:     tk.Moderation,
		MaxConcurrency: tk.MaxConcurrency,
		Logger:         logger,
	}
	stages := []StageDefinition{
		{
			Name:               "plan_segments",
			Ordinal:            0,
			Status:             domain.StatusPlanning,
			StepLabel:          "plan_segments",
			RequiredInputKeys:  []string{KeyCharacterImage},
			ProducedOutputKeys: []string{KeyScript},
			Run:                planSegments(tk),
		},
		{
			Name:               "render_segments",
			Ordinal:            1,
			Status:             domain.StatusRendering,
			StepLabel:          "render_segments",
			RequiredInputKeys:  []string{KeyScript, KeyCharacterImage},
			ProducedOutputKeys: []string{KeySegments},
			Run:                renderer.Run,
		},
		{
			Name:               "merge_segments",
			Ordinal:            2,
			Status:             domain.StatusMerging,
			StepLabel:          "merge_segments",
			RequiredInputKeys:  []string{KeySegments},
			ProducedOutputKeys: []string{KeyFinalVideo},
			Run:                mergeSegments(tk),
		},
	}
	return NewRegistry(domain.VariantCharacter, CharacterInitialKeys(), stages)
}

func planSegments(tk *Toolkit) StageFunc {
	return func(ctx context.Context, st *StageState) error {
		characterImage, err := st.Input(KeyCharacterImage)
		if err != nil {
			return err
		}
		in := st.Job.Input
		script, err := tk.Gen.Planner.PlanScript(ctx, generation.PlanRequest{
			GameName:       in.GameName,
			UserPrompt:     in.UserPrompt,
			CharacterImage: characterImage,
			SceneCount:     CharacterSceneCount,
			SceneSeconds:   CharacterSceneSeconds,
		})
		if err != nil {
			return err
		}
		if len(script.Scenes) == 0 {
			return generation.Fatal("plan_segments", fmt.Errorf("planner returned no scenes"))
		}
		data, err := domain.EncodeScript(script)
		if err != nil {
			return generation.Fatal("plan_segments", err)
		}
		_, err = st.PutArtifact(ctx, KeyScript, data)
		return err
	}
}

func mergeSegments(tk *Toolkit) StageFunc {
	return func(ctx context.Context, st *StageState) error {
		manifestData, err := st.Input(KeySegments)
		if err != nil {
			return err
		}
		manifest, err := DecodeManifest(manifestData)
		if err != nil {
			return generation.Fatal("merge_segments", fmt.Errorf("decode manifest: %w", err))
		}
		if len(manifest.Clips) == 0 {
			return generation.Fatal("merge_segments", fmt.Errorf("manifest has no clips"))
		}
		// Clips load in manifest order, which the fan-out wrote by segment
		// index, so completion order during rendering is irrelevant here.
		clips := make([][]byte, 0, len(manifest.Clips))
		for i, ref := range manifest.Clips {
			clip, err := st.GetArtifact(ctx, ref)
			if err != nil {
				return fmt.Errorf("merge_segments: load clip %d: %w", i, err)
			}
			clips = append(clips, clip)
		}
		final, err := tk.Gen.Merger.MergeClips(ctx, generation.MergeRequest{
			Clips:       clips,
			CrossFade:   true,
			FadeSeconds: CharacterFadeSeconds,
		})
		if err != nil {
			return err
		}
		_, err = st.PutArtifact(ctx, KeyFinalVideo, final)
		return err
	}
}
