package generation

import (
	"context"

	"shortform/internal/domain"
)

// PlanRequest carries everything the script planner needs for either variant.
type PlanRequest struct {
	Topic          string
	Draft          string
	Brand          string
	Description    string
	GameName       string
	UserPrompt     string
	CharacterImage []byte
	SceneCount     int
	SceneSeconds   int
}

// ImageRequest asks for a single synthesized frame.
type ImageRequest struct {
	Prompt          string
	ReferenceImages [][]byte
}

// VideoRequest asks for one clip. With only StartFrame set the provider runs
// image-to-video; with EndFrame also set it interpolates between the two.
type VideoRequest struct {
	Prompt     string
	StartFrame []byte
	EndFrame   []byte
	Seconds    int
}

// MergeRequest assembles ordered clips into the final deliverable. The
// trailing still and sound effect are fixed job assets, never generated.
type MergeRequest struct {
	Clips           [][]byte
	TrailingStill   []byte
	TrailingSeconds int
	SoundEffect     []byte
	CrossFade       bool
	FadeSeconds     float64
}

// Planner produces a structured script from a topic or draft.
type Planner interface {
	PlanScript(ctx context.Context, req PlanRequest) (*domain.Script, error)
}

// ImageSynthesizer produces a single frame image.
type ImageSynthesizer interface {
	SynthesizeImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// VideoSynthesizer produces a single clip.
type VideoSynthesizer interface {
	SynthesizeVideo(ctx context.Context, req VideoRequest) ([]byte, error)
}

// ClipMerger joins clips into the final video.
type ClipMerger interface {
	MergeClips(ctx context.Context, req MergeRequest) ([]byte, error)
}

// Service bundles the four capabilities a pipeline variant draws on.
type Service struct {
	Planner Planner
	Images  ImageSynthesizer
	Videos  VideoSynthesizer
	Merger  ClipMerger
}
