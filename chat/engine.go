package chat

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nkwachiabel/docdocgo-core/llm"
	"github.com/nkwachiabel/docdocgo-core/store"
)

// WebSearcher answers a query from the open web and reports its source links.
type WebSearcher interface {
	Search(ctx context.Context, query string) (answer string, links []string, err error)
}

// ResearchResult is what the iterative researcher hands back. A non-empty
// CollectionName signals that the research produced (or targeted) a
// collection other than the caller's current one.
type ResearchResult struct {
	Answer         string
	SourceLinks    []string
	CollectionName string
}

type Researcher interface {
	Research(ctx context.Context, state State) (ResearchResult, error)
}

// CollectionManager serves the /db mode. The returned collection is non-nil
// only when the active collection should change.
type CollectionManager interface {
	HandleCommand(ctx context.Context, message string, current store.Collection) (string, store.Collection, error)
}

// CollectionOpener resolves a collection name into a handle; the dispatcher
// uses it to hot-swap collections after research.
type CollectionOpener interface {
	Open(ctx context.Context, name string) (store.Collection, error)
}

// Tokenizer counts tokens under a specific model's encoding.
type Tokenizer interface {
	Count(model, text string) int
}

// Collaborators are the external services the dispatcher delegates to. Any of
// them may be nil; the corresponding mode then reports itself unavailable.
type Collaborators struct {
	Searcher    WebSearcher
	Researcher  Researcher
	Collections CollectionManager
	Opener      CollectionOpener
}

// Options configure the engine. Verbose flags replace the original's
// environment-toggled debug prints.
type Options struct {
	MaxDocs            int
	RelevanceThreshold float64
	ContextTokenBudget int
	OverFetchFactor    int

	VerboseCondensePrompt bool
	VerboseQAPrompt       bool
	VerboseSimilarities   bool
}

const (
	defaultMaxDocs            = 6
	defaultContextTokenBudget = 3000
	defaultOverFetchFactor    = 3
)

// Engine routes each turn to its mode handler. It holds no per-turn state:
// everything a turn needs travels in the State value, so concurrent turns
// need no locking at this layer.
type Engine struct {
	llm       llm.Client
	tokenizer Tokenizer
	collab    Collaborators
	opts      Options
	logger    *logrus.Logger
}

// byteEstimateTokenizer stands in when no tokenizer is supplied, charging four
// bytes per token like the unknown-model fallback in llm.Tokenizer.
type byteEstimateTokenizer struct{}

func (byteEstimateTokenizer) Count(_, text string) int {
	if text == "" {
		return 0
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func NewEngine(client llm.Client, tokenizer Tokenizer, collab Collaborators, opts Options, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if tokenizer == nil {
		tokenizer = byteEstimateTokenizer{}
	}
	if opts.MaxDocs <= 0 {
		opts.MaxDocs = defaultMaxDocs
	}
	if opts.ContextTokenBudget <= 0 {
		opts.ContextTokenBudget = defaultContextTokenBudget
	}
	if opts.OverFetchFactor <= 0 {
		opts.OverFetchFactor = defaultOverFetchFactor
	}

	return &Engine{
		llm:       client,
		tokenizer: tokenizer,
		collab:    collab,
		opts:      opts,
		logger:    logger,
	}
}

// GetResponse processes one turn. Recoverable problems (malformed parameters,
// empty retrieval) never surface as errors; a returned error means the turn
// failed and must not be appended to history. An unknown mode is a contract
// violation between parser and dispatcher and is returned as an error the
// hosting shell should treat as fatal.
func (e *Engine) GetResponse(ctx context.Context, state State) (Response, error) {
	if e.llm == nil {
		return Response{}, fmt.Errorf("llm client is not configured")
	}

	for _, parseErr := range state.ParseErrors {
		e.logger.WithField("detail", parseErr).Warn("ignoring malformed search parameter")
	}

	switch state.Mode {
	case ModeChatWithDocs:
		return e.docsPipeline(ctx, state, ChatWithDocsPrompt)

	case ModeDetails:
		return e.docsPipeline(ctx, state, SummarizeKBPrompt)

	case ModeQuotes:
		return e.docsPipeline(ctx, state, QuotesPrompt)

	case ModeWebSearch:
		if e.collab.Searcher == nil {
			return Response{}, fmt.Errorf("web search is not configured")
		}
		answer, links, err := e.collab.Searcher.Search(ctx, state.Message)
		if err != nil {
			return Response{}, fmt.Errorf("web search: %w", err)
		}
		return Response{Answer: answer, SourceLinks: links}, nil

	case ModeResearch:
		return e.researchTurn(ctx, state)

	case ModeJustChat:
		answer, streamed, err := e.generate(ctx, state, justChatMessages(state.Message, historyToMessages(state.History)))
		if err != nil {
			return Response{}, err
		}
		return Response{Answer: answer, Streamed: streamed}, nil

	case ModeDBCommand:
		if e.collab.Collections == nil {
			return Response{}, fmt.Errorf("collection management is not configured")
		}
		answer, collection, err := e.collab.Collections.HandleCommand(ctx, state.Message, state.Collection)
		if err != nil {
			return Response{}, fmt.Errorf("collection command: %w", err)
		}
		return Response{Answer: answer, Collection: collection}, nil

	case ModeHelp:
		return Response{Answer: HelpMessage}, nil

	case ModeIngest:
		if state.Operation == OpHosted {
			return Response{Answer: "Please select the documents you want to upload and ingest."}, nil
		}
		return Response{Answer: "Sorry, ingesting documents is not supported inside the chat in console mode. " +
			"Run `docdocgo ingest --dir <path> --collection <name>` from a terminal, then ask your question here."}, nil

	default:
		// The parser's output space is closed; reaching this is a bug.
		return Response{}, fmt.Errorf("invalid chat mode: %d", int(state.Mode))
	}
}

// docsPipeline is the grounded path: condense, retrieve, synthesize.
func (e *Engine) docsPipeline(ctx context.Context, state State, prompt QAPrompt) (Response, error) {
	standalone, err := e.condenseQuestion(ctx, state)
	if err != nil {
		return Response{}, err
	}

	passages := e.retrievePassages(ctx, standalone, state)

	answer, streamed, err := e.synthesize(ctx, standalone, state, passages, prompt)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Answer:            answer,
		Sources:           passageSources(passages),
		GeneratedQuestion: standalone,
		Streamed:          streamed,
	}, nil
}

func (e *Engine) researchTurn(ctx context.Context, state State) (Response, error) {
	if e.collab.Researcher == nil {
		return Response{}, fmt.Errorf("research is not configured")
	}

	result, err := e.collab.Researcher.Research(ctx, state)
	if err != nil {
		return Response{}, fmt.Errorf("research: %w", err)
	}

	resp := Response{Answer: result.Answer, SourceLinks: result.SourceLinks}

	if result.CollectionName != "" && (state.Collection == nil || result.CollectionName != state.Collection.Name()) {
		if e.collab.Opener == nil {
			return Response{}, fmt.Errorf("research produced collection %q but no opener is configured", result.CollectionName)
		}
		collection, err := e.collab.Opener.Open(ctx, result.CollectionName)
		if err != nil {
			return Response{}, fmt.Errorf("open research collection %q: %w", result.CollectionName, err)
		}
		resp.Collection = collection
	}

	return resp, nil
}
