package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sirupsen/logrus"
)

// fallbackBytesPerToken is the conservative estimate used when no encoding is
// known for a model. English prose averages about four bytes per token;
// rounding up keeps the retriever's budget math on the safe side.
const fallbackBytesPerToken = 4

// Tokenizer counts tokens the way a specific model counts them. Context budgets
// are meaningless against the wrong tokenizer, so the retriever always counts
// with the model that will consume the prompt.
type Tokenizer struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	logger    *logrus.Logger
}

func NewTokenizer(logger *logrus.Logger) *Tokenizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Tokenizer{
		encodings: make(map[string]*tiktoken.Tiktoken),
		logger:    logger,
	}
}

// Count returns the token count of text under the given model's encoding. It
// never fails: models without a known encoding fall back to a byte heuristic,
// and non-empty text always counts as at least one token.
func (t *Tokenizer) Count(model, text string) int {
	if text == "" {
		return 0
	}

	if enc := t.encodingFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}

	n := (len(text) + fallbackBytesPerToken - 1) / fallbackBytesPerToken
	if n < 1 {
		n = 1
	}
	return n
}

func (t *Tokenizer) encodingFor(model string) *tiktoken.Tiktoken {
	t.mu.Lock()
	defer t.mu.Unlock()

	if enc, ok := t.encodings[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		t.logger.WithField("model", model).Debug("no tiktoken encoding for model, using byte heuristic")
		enc = nil
	}
	t.encodings[model] = enc
	return enc
}
