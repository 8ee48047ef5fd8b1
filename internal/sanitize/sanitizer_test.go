package sanitize

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRewriter struct {
	out string
	err error
}

func (f *fakeRewriter) RewritePrompt(ctx context.Context, prompt string) (string, error) {
	return f.out, f.err
}

func TestQuickSanitizeReplacesKnownNames(t *testing.T) {
	s := New(nil, zerolog.Nop())

	out := s.QuickSanitize("빌 게이츠가 사무실에서 일하는 장면")
	assert.NotContains(t, out, "빌 게이츠")
	assert.Contains(t, out, "IT 대기업 회장")

	out = s.QuickSanitize("A scene where Elon Musk launches a rocket")
	assert.Equal(t, "A scene where a tech entrepreneur launches a rocket", out)
}

func TestQuickSanitizePassesCleanPromptThrough(t *testing.T) {
	s := New(nil, zerolog.Nop())
	prompt := "a quiet street at dawn"
	assert.Equal(t, prompt, s.QuickSanitize(prompt))
}

func TestRewriteUsesRewriter(t *testing.T) {
	s := New(&fakeRewriter{out: "a generic figure walks away"}, zerolog.Nop())
	out, err := s.Rewrite(context.Background(), "Bill Gates walks away")
	require.NoError(t, err)
	assert.Equal(t, "a generic figure walks away", out)
}

func TestRewriteFailureKeepsPrompt(t *testing.T) {
	s := New(&fakeRewriter{err: errors.New("model unavailable")}, zerolog.Nop())
	out, err := s.Rewrite(context.Background(), "original prompt")
	require.NoError(t, err)
	assert.Equal(t, "original prompt", out)
}

func TestRewriteEmptyResultKeepsPrompt(t *testing.T) {
	s := New(&fakeRewriter{out: "  "}, zerolog.Nop())
	out, err := s.Rewrite(context.Background(), "original prompt")
	require.NoError(t, err)
	assert.Equal(t, "original prompt", out)
}

func TestRewriteWithoutRewriterFallsBackToQuickPass(t *testing.T) {
	s := New(nil, zerolog.Nop())
	out, err := s.Rewrite(context.Background(), "Steve Jobs on stage")
	require.NoError(t, err)
	assert.Equal(t, "a famous tech innovator on stage", out)
}
