package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLangchainChunker(t *testing.T) {
	t.Run("ShouldRejectInvalidConfig", func(t *testing.T) {
		_, err := NewLangchainChunker(10, 10)
		assert.Error(t, err)
	})

	t.Run("ShouldReturnNothingForBlankInput", func(t *testing.T) {
		c, err := NewLangchainChunker(100, 10)
		require.NoError(t, err)
		chunks, err := c.Chunk(doc(" \n "))
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("ShouldSplitDeterministically", func(t *testing.T) {
		c, err := NewLangchainChunker(80, 20)
		require.NoError(t, err)
		first, err := c.Chunk(doc(sample))
		require.NoError(t, err)
		second, err := c.Chunk(doc(sample))
		require.NoError(t, err)
		require.NotEmpty(t, first)
		assert.Equal(t, first, second)
		assert.Greater(t, len(first), 1)

		joined := strings.Join(first, " ")
		for _, word := range strings.Fields(sample) {
			assert.Contains(t, joined, word)
		}
	})
}
