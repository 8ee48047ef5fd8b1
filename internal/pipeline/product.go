package pipeline

import (
	"context"
	"fmt"
	"strings"

	"shortform/internal/domain"
	"shortform/internal/generation"
)

// Durations recovered from the production configuration: product scenes run
// 8 seconds each with a 2-second closing CTA still; character scenes run
// 4 seconds with a half-second cross-fade.
const (
	ProductSceneCount     = 2
	ProductSceneSeconds   = 8
	ClosingStillSeconds   = 2
	CharacterSceneCount   = 5
	CharacterSceneSeconds = 4
	CharacterFadeSeconds  = 0.5
)

// Artifact keys shared across variants. Submission assets are seeded under
// these keys, so stage definitions treat them like any other artifact.
const (
	KeyScript          = "script"
	KeyFirstFrame      = "first_frame"
	KeyScene1Video     = "scene1_video"
	KeyScene1LastFrame = "scene1_last_frame"
	KeyCTAFrame        = "cta_frame"
	KeyScene2Video     = "scene2_video"
	KeyFinalVideo      = "final_video"
	KeySegments        = "segments"
	KeyProductImage    = "product_image"
	KeyClosingStill    = "closing_still"
	KeySoundEffect     = "sound_effect"
	KeyCharacterImage  = "character_image"
)

// FrameExtractor pulls a still image out of a finished clip. It stands in
// for the FFmpeg-level media toolchain, which is a collaborator rather than
// part of the orchestrator.
type FrameExtractor interface {
	ExtractLastFrame(ctx context.Context, video []byte) ([]byte, error)
}

// Toolkit bundles the collaborators stage definitions close over.
type Toolkit struct {
	Gen            generation.Service
	Moderation     *ModerationPolicy
	Frames         FrameExtractor
	MaxConcurrency int
}

// ProductInitialKeys are the assets a product submission must seed.
func ProductInitialKeys() []string {
	return []string{KeyProductImage, KeyClosingStill, KeySoundEffect}
}

// NewProductRegistry builds the two-scene product pipeline:
//
//	plan_script -> prepare_first_frame -> generate_scene1
//	  -> prepare_cta_frame -> generate_scene2 -> concatenate_videos
//
// Scene 1 is image-to-video from the planned first frame; its last frame
// seeds the CTA frame, and Scene 2 interpolates between the two so the cut
// into the closing still is seamless.
func NewProductRegistry(tk *Toolkit) (*Registry, error) {
	stages := []StageDefinition{
		{
			Name:               "plan_script",
			Ordinal:            0,
			Status:             domain.StatusPlanning,
			StepLabel:          "plan_script",
			ProducedOutputKeys: []string{KeyScript},
			Run:                planProductScript(tk),
		},
		{
			Name:               "prepare_first_frame",
			Ordinal:            1,
			Status:             domain.StatusPreparing,
			StepLabel:          "prepare_first_frame",
			RequiredInputKeys:  []string{KeyScript},
			ProducedOutputKeys: []string{KeyFirstFrame},
			Run:                prepareFirstFrame(tk),
		},
		{
			Name:               "generate_scene1",
			Ordinal:            2,
			Status:             domain.StatusGeneratingS1,
			StepLabel:          "generate_scene1",
			RequiredInputKeys:  []string{KeyScript, KeyFirstFrame},
			ProducedOutputKeys: []string{KeyScene1Video, KeyScene1LastFrame},
			Run:                generateScene1(tk),
		},
		{
			Name:               "prepare_cta_frame",
			Ordinal:            3,
			Status:             domain.StatusPreparingCTA,
			StepLabel:          "prepare_cta_frame",
			RequiredInputKeys:  []string{KeyScript, KeyScene1LastFrame, KeyProductImage},
			ProducedOutputKeys: []string{KeyCTAFrame},
			Run:                prepareCTAFrame(tk),
		},
		{
			Name:               "generate_scene2",
			Ordinal:            4,
			Status:             domain.StatusGeneratingS2,
			StepLabel:          "generate_scene2",
			RequiredInputKeys:  []string{KeyScript, KeyScene1LastFrame, KeyCTAFrame},
			ProducedOutputKeys: []string{KeyScene2Video},
			Run:                generateScene2(tk),
		},
		{
			Name:               "concatenate_videos",
			Ordinal:            5,
			Status:             domain.StatusConcatenating,
			StepLabel:          "concatenate_videos",
			RequiredInputKeys:  []string{KeyScene1Video, KeyScene2Video, KeyClosingStill, KeySoundEffect},
			ProducedOutputKeys: []string{KeyFinalVideo},
			Run:                concatenateVideos(tk),
		},
	}
	return NewRegistry(domain.VariantProduct, ProductInitialKeys(), stages)
}

func planProductScript(tk *Toolkit) StageFunc {
	return func(ctx context.Context, st *StageState) error {
		in := st.Job.Input
		script, err := tk.Gen.Planner.PlanScript(ctx, generation.PlanRequest{
			Topic:        in.Topic,
			Draft:        in.Script,
			Brand:        in.ProductBrand,
			Description:  in.ProductDescription,
			SceneCount:   ProductSceneCount,
			SceneSeconds: ProductSceneSeconds,
		})
		if err != nil {
			return err
		}
		if len(script.Scenes) < ProductSceneCount {
			return generation.Fatal("plan_script", fmt.Errorf("planner returned %d scenes, want %d", len(script.Scenes), ProductSceneCount))
		}
		data, err := domain.EncodeScript(script)
		if err != nil {
			return generation.Fatal("plan_script", err)
		}
		_, err = st.PutArtifact(ctx, KeyScript, data)
		return err
	}
}

func prepareFirstFrame(tk *Toolkit) StageFunc {
	return func(ctx context.Context, st *StageState) error {
		script, err := stageScript(st)
		if err != nil {
			return err
		}
		frame, err := tk.Moderation.Execute(ctx, firstFramePrompt(script), func(ctx context.Context, prompt string) ([]byte, error) {
			return tk.Gen.Images.SynthesizeImage(ctx, generation.ImageRequest{Prompt: prompt})
		})
		if err != nil {
			return err
		}
		_, err = st.PutArtifact(ctx, KeyFirstFrame, frame)
		return err
	}
}

func generateScene1(tk *Toolkit) StageFunc {
	return func(ctx context.Context, st *StageState) error {
		script, err := stageScript(st)
		if err != nil {
			return err
		}
		firstFrame, err := st.Input(KeyFirstFrame)
		if err != nil {
			return err
		}
		scene := script.Scenes[0]
		clip, err := tk.Moderation.Execute(ctx, scene.Prompt, func(ctx context.Context, prompt string) ([]byte, error) {
			return tk.Gen.Videos.SynthesizeVideo(ctx, generation.VideoRequest{
				Prompt:     prompt,
				StartFrame: firstFrame,
				Seconds:    sceneSeconds(scene, ProductSceneSeconds),
			})
		})
		if err != nil {
			return err
		}
		if _, err := st.PutArtifact(ctx, KeyScene1Video, clip); err != nil {
			return err
		}
		// The last frame seeds both the CTA frame and Scene 2's start, so it
		// is persisted as its own artifact rather than re-derived on demand.
		lastFrame, err := tk.Frames.ExtractLastFrame(ctx, clip)
		if err != nil {
			return generation.Fatal("generate_scene1", fmt.Errorf("extract last frame: %w", err))
		}
		_, err = st.PutArtifact(ctx, KeyScene1LastFrame, lastFrame)
		return err
	}
}

func prepareCTAFrame(tk *Toolkit) StageFunc {
	return func(ctx context.Context, st *StageState) error {
		script, err := stageScript(st)
		if err != nil {
			return err
		}
		lastFrame, err := st.Input(KeyScene1LastFrame)
		if err != nil {
			return err
		}
		productImage, err := st.Input(KeyProductImage)
		if err != nil {
			return err
		}
		frame, err := tk.Moderation.Execute(ctx, ctaFramePrompt(script, st.Job.Input), func(ctx context.Context, prompt string) ([]byte, error) {
			return tk.Gen.Images.SynthesizeImage(ctx, generation.ImageRequest{
				Prompt:          prompt,
				ReferenceImages: [][]byte{lastFrame, productImage},
			})
		})
		if err != nil {
			return err
		}
		_, err = st.PutArtifact(ctx, KeyCTAFrame, frame)
		return err
	}
}

func generateScene2(tk *Toolkit) StageFunc {
	return func(ctx context.Context, st *StageState) error {
		script, err := stageScript(st)
		if err != nil {
			return err
		}
		startFrame, err := st.Input(KeyScene1LastFrame)
		if err != nil {
			return err
		}
		endFrame, err := st.Input(KeyCTAFrame)
		if err != nil {
			return err
		}
		scene := script.Scenes[1]
		clip, err := tk.Moderation.Execute(ctx, scene.Prompt, func(ctx context.Context, prompt string) ([]byte, error) {
			return tk.Gen.Videos.SynthesizeVideo(ctx, generation.VideoRequest{
				Prompt:     prompt,
				StartFrame: startFrame,
				EndFrame:   endFrame,
				Seconds:    sceneSeconds(scene, ProductSceneSeconds),
			})
		})
		if err != nil {
			return err
		}
		_, err = st.PutArtifact(ctx, KeyScene2Video, clip)
		return err
	}
}

func concatenateVideos(tk *Toolkit) StageFunc {
	return func(ctx context.Context, st *StageState) error {
		scene1, err := st.Input(KeyScene1Video)
		if err != nil {
			return err
		}
		scene2, err := st.Input(KeyScene2Video)
		if err != nil {
			return err
		}
		closing, err := st.Input(KeyClosingStill)
		if err != nil {
			return err
		}
		sound, err := st.Input(KeySoundEffect)
		if err != nil {
			return err
		}
		final, err := tk.Gen.Merger.MergeClips(ctx, generation.MergeRequest{
			Clips:           [][]byte{scene1, scene2},
			TrailingStill:   closing,
			TrailingSeconds: ClosingStillSeconds,
			SoundEffect:     sound,
		})
		if err != nil {
			return err
		}
		_, err = st.PutArtifact(ctx, KeyFinalVideo, final)
		return err
	}
}

func stageScript(st *StageState) (*domain.Script, error) {
	data, err := st.Input(KeyScript)
	if err != nil {
		return nil, err
	}
	script, err := domain.DecodeScript(data)
	if err != nil {
		return nil, generation.Fatal("script", fmt.Errorf("decode script artifact: %w", err))
	}
	return script, nil
}

func sceneSeconds(scene domain.Scene, fallback int) int {
	if scene.Seconds > 0 {
		return scene.Seconds
	}
	return fallback
}

// firstFramePrompt renders the Scene 1 starting frame: all characters in the
// opening setting, before any motion.
func firstFramePrompt(script *domain.Script) string {
	var b strings.Builder
	b.WriteString("Opening frame for a short-form video.\n")
	for _, ch := range script.Characters {
		fmt.Fprintf(&b, "Character %s: %s\n", ch.Name, ch.Description)
	}
	if len(script.Scenes) > 0 && script.Scenes[0].Setting != "" {
		fmt.Fprintf(&b, "Setting: %s\n", script.Scenes[0].Setting)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ctaFramePrompt renders the closing CTA frame: the product presented in the
// scene the video ends on.
func ctaFramePrompt(script *domain.Script, in domain.Input) string {
	var b strings.Builder
	b.WriteString("Closing call-to-action frame featuring the product.\n")
	if in.ProductBrand != "" {
		fmt.Fprintf(&b, "Brand: %s\n", in.ProductBrand)
	}
	if in.ProductDescription != "" {
		fmt.Fprintf(&b, "Product: %s\n", in.ProductDescription)
	}
	if len(script.Scenes) > 1 && script.Scenes[1].Setting != "" {
		fmt.Fprintf(&b, "Setting: %s\n", script.Scenes[1].Setting)
	}
	return strings.TrimRight(b.String(), "\n")
}
