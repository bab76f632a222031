package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessor(t *testing.T) {
	t.Run("ShouldRejectNonPositiveSize", func(t *testing.T) {
		_, err := NewProcessor(Settings{Size: 0, Overlap: 0})
		require.Error(t, err)
	})
	t.Run("ShouldRejectNegativeOverlap", func(t *testing.T) {
		_, err := NewProcessor(Settings{Size: 10, Overlap: -1})
		require.Error(t, err)
	})
	t.Run("ShouldRejectOverlapGreaterOrEqualSize", func(t *testing.T) {
		_, err := NewProcessor(Settings{Size: 10, Overlap: 10})
		require.Error(t, err)
	})
	t.Run("ShouldAcceptValidSettings", func(t *testing.T) {
		p, err := NewProcessor(Settings{Size: 1000, Overlap: 200})
		require.NoError(t, err)
		require.NotNil(t, p)
	})
}

func TestProcessorEmptyInput(t *testing.T) {
	p, err := NewProcessor(Settings{Size: 100, Overlap: 10})
	require.NoError(t, err)
	chunks, err := p.Process(Document{ID: "d1", Text: "   \n\n  "})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcessorBoundsAndOverlap(t *testing.T) {
	p, err := NewProcessor(Settings{Size: 50, Overlap: 10})
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	chunks, err := p.Process(Document{ID: "d1", Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var prev string
	for i, c := range chunks {
		length := utf8.RuneCountInString(c.Text)
		assert.GreaterOrEqual(t, length, 1)
		assert.LessOrEqual(t, length, 50)
		assert.Equal(t, i, c.Index)
		if i > 0 {
			prevRunes := []rune(prev)
			n := 10
			if n > len(prevRunes) {
				n = len(prevRunes)
			}
			want := string(prevRunes[len(prevRunes)-n:])
			assert.True(t, strings.HasPrefix(c.Text, want))
		}
		prev = c.Text
	}
}

func TestProcessorShortParagraphIsSinglePassage(t *testing.T) {
	p, err := NewProcessor(Settings{Size: 1000, Overlap: 200})
	require.NoError(t, err)
	chunks, err := p.Process(Document{ID: "d1", Text: "A short paragraph that fits easily."})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short paragraph that fits easily.", chunks[0].Text)
}

func TestProcessorHardSplitsUnbrokenWord(t *testing.T) {
	p, err := NewProcessor(Settings{Size: 10, Overlap: 2})
	require.NoError(t, err)
	longWord := strings.Repeat("x", 95)
	chunks, err := p.Process(Document{ID: "d1", Text: longWord})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 10)
	}
	// reconstructing by stripping the known overlap prefix from each
	// non-initial chunk should reproduce the original word exactly.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		rebuilt.WriteString(chunks[i].Text[2:])
	}
	assert.Equal(t, longWord, rebuilt.String())
}

func TestProcessorParagraphBoundaries(t *testing.T) {
	p, err := NewProcessor(Settings{Size: 1000, Overlap: 0})
	require.NoError(t, err)
	chunks, err := p.Process(Document{ID: "d1", Text: "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "First paragraph.", chunks[0].Text)
	assert.Equal(t, "Second paragraph.", chunks[1].Text)
	assert.Equal(t, "Third paragraph.", chunks[2].Text)
}
