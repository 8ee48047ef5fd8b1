// Package sanitize transforms prompts that tripped a provider's content
// filter so they can be retried. Two escalation levels exist: a cheap local
// replacement pass and an AI-assisted rewrite.
package sanitize

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Rewriter is the AI-assisted rewrite capability, typically backed by the
// same planning model used elsewhere. The rewrite must be a deterministic
// function of its input prompt.
type Rewriter interface {
	RewritePrompt(ctx context.Context, prompt string) (string, error)
}

// quickReplacements maps real-person references to generic role descriptions.
// Names of public figures are the most common filter trigger in practice.
var quickReplacements = [][2]string{
	// Korean names
	{"빌게이츠", "IT 대기업 회장"},
	{"빌 게이츠", "IT 대기업 회장"},
	{"스티브잡스", "유명 IT 기업인"},
	{"스티브 잡스", "유명 IT 기업인"},
	{"일론머스크", "테크 기업가"},
	{"일론 머스크", "테크 기업가"},
	{"제프베조스", "전자상거래 회장"},
	{"제프 베조스", "전자상거래 회장"},
	{"마크저커버그", "SNS 기업 회장"},
	{"마크 저커버그", "SNS 기업 회장"},
	// English names
	{"Bill Gates", "a wealthy tech mogul"},
	{"Steve Jobs", "a famous tech innovator"},
	{"Elon Musk", "a tech entrepreneur"},
	{"Jeff Bezos", "an e-commerce executive"},
	{"Mark Zuckerberg", "a social media CEO"},
	// Description patterns
	{"resembling a famous tech billionaire", "with a wealthy tech executive appearance"},
	{"looks like a tech billionaire", "has a wealthy executive appearance"},
}

// Sanitizer applies the escalating transforms the moderation retry policy
// draws on.
type Sanitizer struct {
	rewriter Rewriter
	logger   zerolog.Logger
}

// New builds a Sanitizer. The rewriter may be nil, in which case the AI pass
// degrades to the local replacement pass.
func New(rewriter Rewriter, logger zerolog.Logger) *Sanitizer {
	return &Sanitizer{rewriter: rewriter, logger: logger}
}

// QuickSanitize replaces known real-person references without any external
// call. It is cheap enough to run on the first retry.
func (s *Sanitizer) QuickSanitize(prompt string) string {
	result := prompt
	for _, pair := range quickReplacements {
		if strings.Contains(result, pair[0]) {
			result = strings.ReplaceAll(result, pair[0], pair[1])
		}
	}
	if result != prompt {
		s.logger.Debug().Msg("sanitize: quick pass applied replacements")
	}
	return result
}

// Rewrite runs the AI-assisted pass. On rewrite failure the input prompt is
// returned unchanged rather than failing the retry attempt; the provider call
// itself will decide whether the unchanged prompt passes.
func (s *Sanitizer) Rewrite(ctx context.Context, prompt string) (string, error) {
	if s.rewriter == nil {
		return s.QuickSanitize(prompt), nil
	}
	rewritten, err := s.rewriter.RewritePrompt(ctx, prompt)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sanitize: rewrite failed, keeping prompt")
		return prompt, nil
	}
	if strings.TrimSpace(rewritten) == "" {
		return prompt, nil
	}
	return rewritten, nil
}
