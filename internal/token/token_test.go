package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLengthAndAlphabet(t *testing.T) {
	g := NewGenerator(AlphabetHumanReadable)

	tok, err := g.Generate(15)
	require.NoError(t, err)
	assert.Len(t, tok, 15)
	for _, r := range tok {
		assert.True(t, strings.ContainsRune(AlphabetHumanReadable, r),
			"token contains %q outside the alphabet", r)
	}
}

func TestGenerateUnique(t *testing.T) {
	g := NewGenerator(AlphabetAlphanumeric)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := g.Generate(15)
		require.NoError(t, err)
		assert.False(t, seen[tok], "token repeated")
		seen[tok] = true
	}
}

func TestGenerateRejectsBadLength(t *testing.T) {
	g := NewGenerator("")
	_, err := g.Generate(0)
	assert.Error(t, err)
	_, err = g.Generate(-3)
	assert.Error(t, err)
}

func TestHumanReadableAlphabetAvoidsAmbiguity(t *testing.T) {
	for _, r := range "01lIOUuVvh" {
		assert.False(t, strings.ContainsRune(AlphabetHumanReadable, r),
			"ambiguous character %q in alphabet", r)
	}
}
