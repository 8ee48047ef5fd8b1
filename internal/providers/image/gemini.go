// Package image adapts the Gemini image model to the frame synthesis
// interface the pipeline stages consume.
package image

import (
	"context"

	"github.com/rs/zerolog"

	"shortform/internal/generation"
	"shortform/internal/providers/genai"
)

// Synthesizer implements generation.ImageSynthesizer.
type Synthesizer struct {
	client *genai.Client
	logger zerolog.Logger
}

func NewSynthesizer(client *genai.Client, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{client: client, logger: logger}
}

func (s *Synthesizer) SynthesizeImage(ctx context.Context, req generation.ImageRequest) ([]byte, error) {
	s.logger.Debug().Int("reference_images", len(req.ReferenceImages)).Msg("image: synthesize frame")
	return s.client.GenerateImage(ctx, req.Prompt, req.ReferenceImages)
}

var _ generation.ImageSynthesizer = (*Synthesizer)(nil)
