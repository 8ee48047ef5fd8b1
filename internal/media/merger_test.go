package media

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortform/internal/generation"
)

func TestMergeClipsIsDeterministic(t *testing.T) {
	m := NewMerger(zerolog.Nop())
	req := generation.MergeRequest{
		Clips:           [][]byte{[]byte("clip one"), []byte("clip two")},
		TrailingStill:   []byte("closing still"),
		TrailingSeconds: 2,
		SoundEffect:     []byte("whoosh"),
	}

	first, err := m.MergeClips(context.Background(), req)
	require.NoError(t, err)
	second, err := m.MergeClips(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	out := string(first)
	assert.True(t, strings.HasPrefix(out, "merged video: 2 clip(s)\n"))
	assert.Contains(t, out, "trailing still:")
	assert.Contains(t, out, "for 2s")
	assert.Contains(t, out, "audio:")
}

func TestMergeClipsPreservesOrder(t *testing.T) {
	m := NewMerger(zerolog.Nop())
	out, err := m.MergeClips(context.Background(), generation.MergeRequest{
		Clips: [][]byte{[]byte("aaa"), []byte("bbb"), []byte("ccc")},
	})
	require.NoError(t, err)

	lines := strings.Split(string(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[1], "clip 0:"))
	assert.True(t, strings.HasPrefix(lines[2], "clip 1:"))
	assert.True(t, strings.HasPrefix(lines[3], "clip 2:"))
}

func TestMergeClipsCrossFadeBetweenClipsOnly(t *testing.T) {
	m := NewMerger(zerolog.Nop())
	out, err := m.MergeClips(context.Background(), generation.MergeRequest{
		Clips:       [][]byte{[]byte("a"), []byte("b"), []byte("c")},
		CrossFade:   true,
		FadeSeconds: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(out), "xfade: 0.5s"))
}

func TestMergeClipsRejectsEmptyInput(t *testing.T) {
	m := NewMerger(zerolog.Nop())

	_, err := m.MergeClips(context.Background(), generation.MergeRequest{})
	assert.True(t, generation.IsFatal(err))

	_, err = m.MergeClips(context.Background(), generation.MergeRequest{
		Clips: [][]byte{[]byte("ok"), nil},
	})
	assert.True(t, generation.IsFatal(err))
}

func TestMergeClipsCancelledContextIsTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMerger(zerolog.Nop()).MergeClips(ctx, generation.MergeRequest{
		Clips: [][]byte{[]byte("clip")},
	})
	assert.True(t, generation.IsTransient(err))
}

func TestExtractLastFrameIsValidDeterministicPNG(t *testing.T) {
	g := NewFrameGrabber(zerolog.Nop())
	ctx := context.Background()

	first, err := g.ExtractLastFrame(ctx, []byte("rendered clip"))
	require.NoError(t, err)
	second, err := g.ExtractLastFrame(ctx, []byte("rendered clip"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := g.ExtractLastFrame(ctx, []byte("different clip"))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	img, err := png.Decode(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestExtractLastFrameRejectsEmptyClip(t *testing.T) {
	g := NewFrameGrabber(zerolog.Nop())
	_, err := g.ExtractLastFrame(context.Background(), nil)
	assert.True(t, generation.IsFatal(err))
}
