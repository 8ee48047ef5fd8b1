package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shortform/internal/generation"
)

// DefaultMaxModerationAttempts bounds external calls per moderation-sensitive
// stage invocation.
const DefaultMaxModerationAttempts = 5

// PromptSanitizer provides the two escalation levels the retry policy cycles
// through: a cheap local pass and an AI-assisted rewrite.
type PromptSanitizer interface {
	QuickSanitize(prompt string) string
	Rewrite(ctx context.Context, prompt string) (string, error)
}

// SynthFunc is one moderation-sensitive generation call, parameterized only
// by the prompt the policy may rewrite between attempts.
type SynthFunc func(ctx context.Context, prompt string) ([]byte, error)

// ModerationExhaustedError reports that every attempt was rejected on
// content-policy grounds. The invoking stage treats it as a stage failure.
type ModerationExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ModerationExhaustedError) Error() string {
	return fmt.Sprintf("moderation rejected after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ModerationExhaustedError) Unwrap() error { return e.Last }

// ModerationPolicy wraps a generation call that can be content-policy
// rejected and escalates through a fixed sanitization sequence:
//
//	attempt 0: the original prompt
//	attempt 1: local quick-sanitize of the original
//	attempt 2: AI rewrite of the original
//	attempt k>=3: AI rewrite of the previous attempt's prompt
//
// Transient and fatal errors are never retried here; they propagate on first
// occurrence. Each attempt's prompt is a deterministic function of the
// previous one.
type ModerationPolicy struct {
	Sanitizer   PromptSanitizer
	MaxAttempts int
	Logger      zerolog.Logger
}

// NewModerationPolicy builds a policy with the default attempt bound.
func NewModerationPolicy(s PromptSanitizer, logger zerolog.Logger) *ModerationPolicy {
	return &ModerationPolicy{Sanitizer: s, MaxAttempts: DefaultMaxModerationAttempts, Logger: logger}
}

// Execute runs call, rewriting the prompt between rejected attempts. The
// first non-rejection outcome, success or otherwise, is returned immediately.
func (p *ModerationPolicy) Execute(ctx context.Context, prompt string, call SynthFunc) ([]byte, error) {
	max := p.MaxAttempts
	if max <= 0 {
		max = DefaultMaxModerationAttempts
	}

	current := prompt
	var lastErr error
	for attempt := 0; attempt < max; attempt++ {
		if attempt > 0 {
			next, err := p.nextPrompt(ctx, attempt, prompt, current)
			if err != nil {
				return nil, err
			}
			current = next
		}

		data, err := call(ctx, current)
		if err == nil {
			if attempt > 0 {
				p.Logger.Info().Int("attempt", attempt).Msg("moderation: sanitized prompt accepted")
			}
			return data, nil
		}
		if !generation.IsModerationRejected(err) {
			return nil, err
		}
		lastErr = err
		p.Logger.Warn().Int("attempt", attempt).Int("max_attempts", max).Err(err).
			Msg("moderation: prompt rejected")
	}

	return nil, &ModerationExhaustedError{Attempts: max, Last: lastErr}
}

// nextPrompt derives the prompt for the given attempt. Attempts 1 and 2 work
// from the original request; later attempts escalate from the previous
// attempt's already-sanitized prompt.
func (p *ModerationPolicy) nextPrompt(ctx context.Context, attempt int, original, previous string) (string, error) {
	switch {
	case attempt == 1:
		return p.Sanitizer.QuickSanitize(original), nil
	case attempt == 2:
		return p.Sanitizer.Rewrite(ctx, original)
	default:
		return p.Sanitizer.Rewrite(ctx, previous)
	}
}
