package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondenseQuestionEmptyHistoryIsVerbatim(t *testing.T) {
	client := &stubLLM{}
	engine := newTestEngine(client, Collaborators{}, Options{})

	out, err := engine.condenseQuestion(context.Background(), State{Message: "what is go?"})
	require.NoError(t, err)
	assert.Equal(t, "what is go?", out)
	// The first turn must not pay for a generation call.
	assert.Empty(t, client.calls)
}

func TestCondenseQuestionUsesHistory(t *testing.T) {
	client := &stubLLM{answers: []string{"what are goroutines in Go?"}}
	engine := newTestEngine(client, Collaborators{}, Options{})

	state := State{
		Message: "and those?",
		History: []Exchange{{User: "tell me about go", Assistant: "it has goroutines"}},
	}

	out, err := engine.condenseQuestion(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "what are goroutines in Go?", out)

	require.Len(t, client.calls, 1)
	prompt := client.calls[0][0].Content
	assert.Contains(t, prompt, "Human: tell me about go")
	assert.Contains(t, prompt, "Assistant: it has goroutines")
	assert.Contains(t, prompt, "and those?")
	assert.Zero(t, client.settings[0].Temperature)
}

func TestCleanStandaloneQuery(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		original string
		want     string
	}{
		{"plain", "what is go?", "orig", "what is go?"},
		{"label", "Standalone query: what is go?", "orig", "what is go?"},
		{"question label", "standalone question: what is go?", "orig", "what is go?"},
		{"quoted", `"what is go?"`, "orig", "what is go?"},
		{"label then quotes", `Standalone query: "what is go?"`, "orig", "what is go?"},
		{"whitespace", "  what is go?  ", "orig", "what is go?"},
		{"empty falls back", "   ", "original question", "original question"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cleanStandaloneQuery(tc.in, tc.original))
		})
	}
}
