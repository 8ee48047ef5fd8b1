package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortform/internal/generation"
)

// recordingSanitizer makes prompt derivation visible: quick-sanitize prefixes
// "q:" and rewrite prefixes "r:".
type recordingSanitizer struct {
	quickCalls   int
	rewriteCalls int
	rewriteErr   error
}

func (s *recordingSanitizer) QuickSanitize(prompt string) string {
	s.quickCalls++
	return "q:" + prompt
}

func (s *recordingSanitizer) Rewrite(ctx context.Context, prompt string) (string, error) {
	s.rewriteCalls++
	if s.rewriteErr != nil {
		return "", s.rewriteErr
	}
	return "r:" + prompt, nil
}

func moderationPolicy(s PromptSanitizer) *ModerationPolicy {
	return NewModerationPolicy(s, testLogger())
}

func TestModerationFirstAttemptSucceeds(t *testing.T) {
	san := &recordingSanitizer{}
	calls := 0
	data, err := moderationPolicy(san).Execute(context.Background(), "hello", func(ctx context.Context, prompt string) ([]byte, error) {
		calls++
		assert.Equal(t, "hello", prompt)
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, 1, calls)
	assert.Zero(t, san.quickCalls)
	assert.Zero(t, san.rewriteCalls)
}

func TestModerationEscalationSequence(t *testing.T) {
	san := &recordingSanitizer{}
	var prompts []string
	data, err := moderationPolicy(san).Execute(context.Background(), "orig", func(ctx context.Context, prompt string) ([]byte, error) {
		prompts = append(prompts, prompt)
		if len(prompts) < 5 {
			return nil, generation.Moderationf("blocked")
		}
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	// Attempt 1 quick-sanitizes the original, attempt 2 rewrites the
	// original, later attempts rewrite the previous prompt.
	assert.Equal(t, []string{"orig", "q:orig", "r:orig", "r:r:orig", "r:r:r:orig"}, prompts)
	assert.Equal(t, 1, san.quickCalls)
	assert.Equal(t, 3, san.rewriteCalls)
}

func TestModerationExhaustion(t *testing.T) {
	san := &recordingSanitizer{}
	calls := 0
	_, err := moderationPolicy(san).Execute(context.Background(), "orig", func(ctx context.Context, prompt string) ([]byte, error) {
		calls++
		return nil, generation.Moderationf("blocked attempt %d", calls)
	})
	var exhausted *ModerationExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, DefaultMaxModerationAttempts, exhausted.Attempts)
	assert.Equal(t, DefaultMaxModerationAttempts, calls)
	assert.True(t, generation.IsModerationRejected(exhausted.Last))
}

func TestModerationDoesNotRetryTransient(t *testing.T) {
	san := &recordingSanitizer{}
	calls := 0
	boom := generation.Transient("synth", errors.New("connection reset"))
	_, err := moderationPolicy(san).Execute(context.Background(), "orig", func(ctx context.Context, prompt string) ([]byte, error) {
		calls++
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Zero(t, san.quickCalls)
}

func TestModerationRewriteFailurePropagates(t *testing.T) {
	san := &recordingSanitizer{rewriteErr: generation.Transient("rewrite", errors.New("timeout"))}
	calls := 0
	_, err := moderationPolicy(san).Execute(context.Background(), "orig", func(ctx context.Context, prompt string) ([]byte, error) {
		calls++
		return nil, generation.Moderationf("blocked")
	})
	require.Error(t, err)
	assert.True(t, generation.IsTransient(err))
	// Attempts 0 and 1 ran; attempt 2's rewrite failed before the call.
	assert.Equal(t, 2, calls)
}

func TestModerationCustomAttemptBound(t *testing.T) {
	san := &recordingSanitizer{}
	p := moderationPolicy(san)
	p.MaxAttempts = 2
	calls := 0
	_, err := p.Execute(context.Background(), "orig", func(ctx context.Context, prompt string) ([]byte, error) {
		calls++
		return nil, generation.Moderationf("blocked")
	})
	var exhausted *ModerationExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Equal(t, 2, calls)
}
