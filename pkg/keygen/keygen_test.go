package keygen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apoxy-dev/shorty/pkg/keygen"
)

func TestGenerate(t *testing.T) {
	t.Run("Length", func(t *testing.T) {
		for _, n := range []int{1, keygen.DefaultLength, 64} {
			key, err := keygen.Generate(n)
			require.NoError(t, err)
			assert.Len(t, key, n)
		}
	})

	t.Run("Alphabet", func(t *testing.T) {
		seen := map[rune]bool{}
		for i := 0; i < 500; i++ {
			key, err := keygen.Generate(keygen.DefaultLength)
			require.NoError(t, err)
			for _, c := range key {
				require.True(t, strings.ContainsRune(keygen.Alphabet, c), "unexpected character %q", c)
				seen[c] = true
			}
		}
		// 4000 draws over 62 symbols should hit nearly all of them.
		assert.Greater(t, len(seen), 55)
	})

	t.Run("Independent", func(t *testing.T) {
		a, err := keygen.Generate(keygen.DefaultLength)
		require.NoError(t, err)
		b, err := keygen.Generate(keygen.DefaultLength)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Invalid length", func(t *testing.T) {
		_, err := keygen.Generate(0)
		require.Error(t, err)
	})
}

func TestIsValid(t *testing.T) {
	assert.True(t, keygen.IsValid("abc123"))
	assert.True(t, keygen.IsValid("my-link_2"))
	assert.False(t, keygen.IsValid(""))
	assert.False(t, keygen.IsValid("a/b"))
	assert.False(t, keygen.IsValid("style.css"))
	assert.False(t, keygen.IsValid("k%20"))
}
