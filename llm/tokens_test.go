package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Tests pin the byte heuristic used for models without a known encoding; the
// exact tiktoken counts for known models are the library's business.

func TestTokenizerCountEmptyText(t *testing.T) {
	tok := NewTokenizer(nil)
	assert.Zero(t, tok.Count("some-local-model", ""))
}

func TestTokenizerFallbackForUnknownModel(t *testing.T) {
	tok := NewTokenizer(nil)

	// 9 bytes at 4 bytes per token, rounded up.
	assert.Equal(t, 3, tok.Count("some-local-model", "nine char"))
	assert.Equal(t, 1, tok.Count("some-local-model", "hi"))
	assert.Equal(t, 1, tok.Count("some-local-model", "four"))
	assert.Equal(t, 2, tok.Count("some-local-model", "fives"))
}

func TestTokenizerCachesUnknownModels(t *testing.T) {
	tok := NewTokenizer(nil)
	first := tok.Count("some-local-model", "hello world")
	second := tok.Count("some-local-model", "hello world")
	assert.Equal(t, first, second)
}
