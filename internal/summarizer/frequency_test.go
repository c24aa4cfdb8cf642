package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencySummarizer_Summarize(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Cats are mammals. Cats purr when happy.\n\nThe weather was fine! Dogs are mammals too. Stars burn"

	t.Run("ShouldPickFrequentSentencesInOriginalOrder", func(t *testing.T) {
		got, err := s.Summarize(text, 2)
		require.NoError(t, err)
		assert.Equal(t, "Cats are mammals. Cats purr when happy.", got)

		got, err = s.Summarize(text, 3)
		require.NoError(t, err)
		assert.Equal(t, "Cats are mammals. Cats purr when happy. Dogs are mammals too.", got)
	})

	t.Run("ShouldKeepTrailingSentenceWithoutPunctuation", func(t *testing.T) {
		got, err := s.Summarize(text, 10)
		require.NoError(t, err)
		assert.Equal(t, "Cats are mammals. Cats purr when happy. The weather was fine! Dogs are mammals too. Stars burn", got)
	})

	t.Run("ShouldDefaultNonPositiveLength", func(t *testing.T) {
		got, err := s.Summarize("One. Two. Three. Four.", 0)
		require.NoError(t, err)
		assert.Equal(t, "One. Two. Three.", got)
	})

	t.Run("ShouldReturnEmptyForBlankText", func(t *testing.T) {
		got, err := s.Summarize(" \n\t ", 3)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ShouldBeDeterministic", func(t *testing.T) {
		a, err := s.Summarize(text, 3)
		require.NoError(t, err)
		b, err := s.Summarize(text, 3)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}
