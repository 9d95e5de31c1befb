package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/nkwachiabel/docdocgo-core/llm"
)

// synthesize renders the grounded prompt and generates the answer. Passages
// are serialized with their source identifiers so the model can cite them
// verbatim.
func (e *Engine) synthesize(ctx context.Context, question string, state State, passages []Passage, prompt QAPrompt) (string, bool, error) {
	evidence := serializePassages(passages)
	messages := prompt(question, evidence, historyToMessages(state.History))

	if e.opts.VerboseQAPrompt {
		for _, msg := range messages {
			e.logger.WithField("role", msg.Role).WithField("content", msg.Content).Debug("qa prompt message")
		}
	}

	return e.generate(ctx, state, messages)
}

// generate runs one generation call, streaming fragments to the turn's
// callback when one is set. The aggregate text is always returned; the bool
// reports whether it was already streamed and must not be printed again.
func (e *Engine) generate(ctx context.Context, state State, messages []llm.Message) (string, bool, error) {
	if state.Stream != nil {
		if streamer, ok := e.llm.(llm.StreamClient); ok {
			answer, err := streamer.GenerateStream(ctx, messages, state.Settings, state.Stream)
			if err != nil {
				return "", false, fmt.Errorf("llm stream generate: %w", err)
			}
			return strings.TrimSpace(answer), true, nil
		}

		// No streaming support: deliver the whole answer as one fragment so
		// the caller's display path stays uniform.
		answer, err := e.llm.Generate(ctx, messages, state.Settings)
		if err != nil {
			return "", false, fmt.Errorf("llm generate: %w", err)
		}
		answer = strings.TrimSpace(answer)
		if err := state.Stream(answer); err != nil {
			return "", false, err
		}
		return answer, true, nil
	}

	answer, err := e.llm.Generate(ctx, messages, state.Settings)
	if err != nil {
		return "", false, fmt.Errorf("llm generate: %w", err)
	}
	return strings.TrimSpace(answer), false, nil
}

func serializePassages(passages []Passage) string {
	if len(passages) == 0 {
		return "(nothing relevant was found in the knowledge base)"
	}

	var sb strings.Builder
	for i, passage := range passages {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString("SOURCE: ")
		sb.WriteString(passage.Source)
		sb.WriteString("\n")
		sb.WriteString(passage.Text)
	}
	return sb.String()
}
