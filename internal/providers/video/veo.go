// Package video adapts the Veo video model to the clip synthesis interface
// the pipeline stages consume.
package video

import (
	"context"

	"github.com/rs/zerolog"

	"shortform/internal/generation"
	"shortform/internal/providers/genai"
)

// Synthesizer implements generation.VideoSynthesizer.
type Synthesizer struct {
	client *genai.Client
	logger zerolog.Logger
}

func NewSynthesizer(client *genai.Client, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{client: client, logger: logger}
}

func (s *Synthesizer) SynthesizeVideo(ctx context.Context, req generation.VideoRequest) ([]byte, error) {
	s.logger.Debug().
		Int("seconds", req.Seconds).
		Bool("interpolated", len(req.EndFrame) > 0).
		Msg("video: synthesize clip")
	return s.client.GenerateVideo(ctx, req.Prompt, req.StartFrame, req.EndFrame, req.Seconds)
}

var _ generation.VideoSynthesizer = (*Synthesizer)(nil)
