package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkwachiabel/docdocgo-core/llm"
	"github.com/nkwachiabel/docdocgo-core/store"
)

type stubLLM struct {
	answers  []string
	err      error
	calls    [][]llm.Message
	settings []llm.Settings
}

func (s *stubLLM) Generate(_ context.Context, messages []llm.Message, settings llm.Settings) (string, error) {
	s.calls = append(s.calls, messages)
	s.settings = append(s.settings, settings)
	if s.err != nil {
		return "", s.err
	}
	if len(s.answers) == 0 {
		return "stub answer", nil
	}
	answer := s.answers[0]
	if len(s.answers) > 1 {
		s.answers = s.answers[1:]
	}
	return answer, nil
}

var _ llm.Client = (*stubLLM)(nil)

type stubStreamLLM struct {
	stubLLM
	fragments []string
}

func (s *stubStreamLLM) GenerateStream(ctx context.Context, messages []llm.Message, settings llm.Settings, fn func(string) error) (string, error) {
	aggregate := ""
	for _, fragment := range s.fragments {
		if err := fn(fragment); err != nil {
			return "", err
		}
		aggregate += fragment
	}
	s.calls = append(s.calls, messages)
	s.settings = append(s.settings, settings)
	return aggregate, nil
}

var _ llm.StreamClient = (*stubStreamLLM)(nil)

type stubCollection struct {
	name string
	hits []store.Hit
	err  error
}

func (c *stubCollection) Name() string { return c.name }

func (c *stubCollection) Count(context.Context) (int, error) { return len(c.hits), nil }

func (c *stubCollection) SimilaritySearch(_ context.Context, _ string, k int) ([]store.Hit, error) {
	if c.err != nil {
		return nil, c.err
	}
	if k < len(c.hits) {
		return c.hits[:k], nil
	}
	return c.hits, nil
}

var _ store.Collection = (*stubCollection)(nil)

// byteTokenizer charges one token per byte, making budget arithmetic exact in
// tests.
type byteTokenizer struct{}

func (byteTokenizer) Count(_, text string) int { return len(text) }

var _ Tokenizer = byteTokenizer{}

type stubSearcher struct {
	answer string
	links  []string
	err    error
}

func (s *stubSearcher) Search(context.Context, string) (string, []string, error) {
	return s.answer, s.links, s.err
}

var _ WebSearcher = (*stubSearcher)(nil)

type stubResearcher struct {
	result ResearchResult
	err    error
}

func (s *stubResearcher) Research(context.Context, State) (ResearchResult, error) {
	return s.result, s.err
}

var _ Researcher = (*stubResearcher)(nil)

type stubManager struct {
	answer     string
	collection store.Collection
	gotMessage string
}

func (s *stubManager) HandleCommand(_ context.Context, message string, _ store.Collection) (string, store.Collection, error) {
	s.gotMessage = message
	return s.answer, s.collection, nil
}

var _ CollectionManager = (*stubManager)(nil)

type stubOpener struct {
	opened map[string]store.Collection
}

func (s *stubOpener) Open(_ context.Context, name string) (store.Collection, error) {
	if col, ok := s.opened[name]; ok {
		return col, nil
	}
	return nil, fmt.Errorf("no such collection: %s", name)
}

var _ CollectionOpener = (*stubOpener)(nil)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(client llm.Client, collab Collaborators, opts Options) *Engine {
	return NewEngine(client, byteTokenizer{}, collab, opts, testLogger())
}

func TestNewEngineDefaultsNilTokenizer(t *testing.T) {
	client := &stubLLM{answers: []string{"answer"}}
	engine := NewEngine(client, nil, Collaborators{}, Options{}, testLogger())

	collection := &stubCollection{name: "docs", hits: []store.Hit{
		{Text: "some passage", Score: 0.9, Source: "a.md"},
	}}

	resp, err := engine.GetResponse(context.Background(), State{
		Mode:       ModeChatWithDocs,
		Message:    "q",
		Collection: collection,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, resp.Sources)
}

func TestGetResponseDocsMode(t *testing.T) {
	client := &stubLLM{answers: []string{"grounded answer"}}
	engine := newTestEngine(client, Collaborators{}, Options{})

	collection := &stubCollection{name: "docs", hits: []store.Hit{
		{Text: "go is a language", Score: 0.9, Source: "intro.md"},
		{Text: "go has goroutines", Score: 0.8, Source: "concurrency.md"},
	}}

	state := State{
		Mode:       ModeChatWithDocs,
		Message:    "what is go?",
		Collection: collection,
	}

	resp, err := engine.GetResponse(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "grounded answer", resp.Answer)
	assert.Equal(t, []string{"intro.md", "concurrency.md"}, resp.Sources)
	// No history: the message is already standalone, no condense call.
	assert.Equal(t, "what is go?", resp.GeneratedQuestion)
	require.Len(t, client.calls, 1)

	system := client.calls[0][0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "SOURCE: intro.md")
	assert.Contains(t, system.Content, "go has goroutines")
}

func TestGetResponseDocsModeWithoutEvidence(t *testing.T) {
	client := &stubLLM{answers: []string{"I don't know based on the provided documents."}}
	engine := newTestEngine(client, Collaborators{}, Options{})

	state := State{
		Mode:       ModeChatWithDocs,
		Message:    "anything?",
		Collection: &stubCollection{name: "empty"},
	}

	resp, err := engine.GetResponse(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)

	require.Len(t, client.calls, 1)
	assert.Contains(t, client.calls[0][0].Content, "nothing relevant was found")
}

func TestGetResponseDocsModeCondensesWithHistory(t *testing.T) {
	client := &stubLLM{answers: []string{"what are goroutines in Go?", "final answer"}}
	engine := newTestEngine(client, Collaborators{}, Options{})

	state := State{
		Mode:       ModeChatWithDocs,
		Message:    "and what are those?",
		History:    []Exchange{{User: "tell me about go", Assistant: "go has goroutines"}},
		Collection: &stubCollection{name: "docs"},
	}

	resp, err := engine.GetResponse(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "what are goroutines in Go?", resp.GeneratedQuestion)
	assert.Equal(t, "final answer", resp.Answer)
	require.Len(t, client.calls, 2)
	// The condense call must be deterministic.
	assert.Zero(t, client.settings[0].Temperature)
}

func TestGetResponseWebMode(t *testing.T) {
	searcher := &stubSearcher{answer: "from the web", links: []string{"https://example.com"}}
	engine := newTestEngine(&stubLLM{}, Collaborators{Searcher: searcher}, Options{})

	resp, err := engine.GetResponse(context.Background(), State{Mode: ModeWebSearch, Message: "latest news"})
	require.NoError(t, err)
	assert.Equal(t, "from the web", resp.Answer)
	assert.Equal(t, []string{"https://example.com"}, resp.SourceLinks)
}

func TestGetResponseWebModeUnconfigured(t *testing.T) {
	engine := newTestEngine(&stubLLM{}, Collaborators{}, Options{})

	_, err := engine.GetResponse(context.Background(), State{Mode: ModeWebSearch, Message: "hi"})
	assert.Error(t, err)
}

func TestGetResponseResearchModeSwapsCollection(t *testing.T) {
	newCollection := &stubCollection{name: "research-abc12345"}
	researcher := &stubResearcher{result: ResearchResult{
		Answer:         "report",
		SourceLinks:    []string{"https://a.example"},
		CollectionName: "research-abc12345",
	}}
	opener := &stubOpener{opened: map[string]store.Collection{"research-abc12345": newCollection}}

	engine := newTestEngine(&stubLLM{}, Collaborators{Researcher: researcher, Opener: opener}, Options{})

	resp, err := engine.GetResponse(context.Background(), State{
		Mode:       ModeResearch,
		Message:    "deep dive",
		Collection: &stubCollection{name: "docs"},
	})
	require.NoError(t, err)
	assert.Equal(t, "report", resp.Answer)
	require.NotNil(t, resp.Collection)
	assert.Equal(t, "research-abc12345", resp.Collection.Name())
}

func TestGetResponseResearchModeKeepsCollection(t *testing.T) {
	researcher := &stubResearcher{result: ResearchResult{Answer: "report", CollectionName: "docs"}}
	engine := newTestEngine(&stubLLM{}, Collaborators{Researcher: researcher}, Options{})

	resp, err := engine.GetResponse(context.Background(), State{
		Mode:       ModeResearch,
		Collection: &stubCollection{name: "docs"},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Collection)
}

func TestGetResponseJustChat(t *testing.T) {
	client := &stubLLM{answers: []string{"hello there"}}
	engine := newTestEngine(client, Collaborators{}, Options{})

	resp, err := engine.GetResponse(context.Background(), State{Mode: ModeJustChat, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Answer)

	require.Len(t, client.calls, 1)
	assert.Equal(t, llm.RoleSystem, client.calls[0][0].Role)
}

func TestGetResponseDBCommand(t *testing.T) {
	manager := &stubManager{answer: "Switched.", collection: &stubCollection{name: "other"}}
	engine := newTestEngine(&stubLLM{}, Collaborators{Collections: manager}, Options{})

	resp, err := engine.GetResponse(context.Background(), State{Mode: ModeDBCommand, Message: "use other"})
	require.NoError(t, err)
	assert.Equal(t, "use other", manager.gotMessage)
	assert.Equal(t, "Switched.", resp.Answer)
	require.NotNil(t, resp.Collection)
	assert.Equal(t, "other", resp.Collection.Name())
}

func TestGetResponseHelp(t *testing.T) {
	engine := newTestEngine(&stubLLM{}, Collaborators{}, Options{})

	resp, err := engine.GetResponse(context.Background(), State{Mode: ModeHelp})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "/docs")
	assert.Contains(t, resp.Answer, "/research")
}

func TestGetResponseIngestByOperationMode(t *testing.T) {
	engine := newTestEngine(&stubLLM{}, Collaborators{}, Options{})

	console, err := engine.GetResponse(context.Background(), State{Mode: ModeIngest, Operation: OpConsole})
	require.NoError(t, err)
	assert.Contains(t, console.Answer, "docdocgo ingest")

	hosted, err := engine.GetResponse(context.Background(), State{Mode: ModeIngest, Operation: OpHosted})
	require.NoError(t, err)
	assert.Contains(t, hosted.Answer, "upload")
}

func TestGetResponseInvalidMode(t *testing.T) {
	engine := newTestEngine(&stubLLM{}, Collaborators{}, Options{})

	_, err := engine.GetResponse(context.Background(), State{Mode: Mode(42)})
	assert.Error(t, err)
}

func TestGetResponsePropagatesGenerationFailure(t *testing.T) {
	client := &stubLLM{err: errors.New("model unavailable")}
	engine := newTestEngine(client, Collaborators{}, Options{})

	_, err := engine.GetResponse(context.Background(), State{
		Mode:       ModeChatWithDocs,
		Message:    "q",
		Collection: &stubCollection{name: "docs"},
	})
	assert.ErrorContains(t, err, "model unavailable")
}

func TestGenerateStreamsFragments(t *testing.T) {
	client := &stubStreamLLM{fragments: []string{"hel", "lo"}}
	engine := newTestEngine(client, Collaborators{}, Options{})

	var received []string
	state := State{
		Mode:    ModeJustChat,
		Message: "hi",
		Stream: func(fragment string) error {
			received = append(received, fragment)
			return nil
		},
	}

	resp, err := engine.GetResponse(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, resp.Streamed)
	assert.Equal(t, "hello", resp.Answer)
	assert.Equal(t, []string{"hel", "lo"}, received)
}

func TestGenerateFallsBackToSingleFragment(t *testing.T) {
	// A non-streaming client still honors the callback with one fragment.
	client := &stubLLM{answers: []string{"whole answer"}}
	engine := newTestEngine(client, Collaborators{}, Options{})

	var received []string
	state := State{
		Mode:    ModeJustChat,
		Message: "hi",
		Stream: func(fragment string) error {
			received = append(received, fragment)
			return nil
		},
	}

	resp, err := engine.GetResponse(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, resp.Streamed)
	assert.Equal(t, []string{"whole answer"}, received)
}
