package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/nkwachiabel/docdocgo-core/llm"
)

// condenseQuestion folds the chat history and the new message into one
// standalone query. With no history the message already is standalone, so no
// generation call is made; that short-circuit also guarantees first turns add
// no latency.
func (e *Engine) condenseQuestion(ctx context.Context, state State) (string, error) {
	if len(state.History) == 0 {
		return state.Message, nil
	}

	prompt := renderCondensePrompt(state.History, state.Message)
	if e.opts.VerboseCondensePrompt {
		e.logger.WithField("prompt", prompt).Debug("condense prompt")
	}

	// The standalone query feeds retrieval; variance here destabilizes the
	// whole pipeline, so generation is pinned to temperature zero.
	settings := state.Settings
	settings.Temperature = 0

	out, err := e.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, settings)
	if err != nil {
		return "", fmt.Errorf("condense question: %w", err)
	}

	return cleanStandaloneQuery(out, state.Message), nil
}

// cleanStandaloneQuery trims narration the model sometimes wraps around the
// question. The model is only trusted so far: an empty result falls back to
// the original message.
func cleanStandaloneQuery(out, original string) string {
	query := strings.TrimSpace(out)

	for _, label := range []string{
		"standalone version of last query:",
		"standalone query:",
		"standalone question:",
	} {
		if len(query) >= len(label) && strings.EqualFold(query[:len(label)], label) {
			query = strings.TrimSpace(query[len(label):])
		}
	}

	if len(query) >= 2 && query[0] == '"' && query[len(query)-1] == '"' {
		query = strings.TrimSpace(query[1 : len(query)-1])
	}

	if query == "" {
		return original
	}
	return query
}
