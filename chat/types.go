// Package chat implements the conversation core: parsing a raw user line into
// a mode and parameters, dispatching the turn, condensing follow-up questions
// into standalone queries, retrieving evidence under a token budget, and
// synthesizing a grounded answer with source attribution.
package chat

import (
	"github.com/nkwachiabel/docdocgo-core/llm"
	"github.com/nkwachiabel/docdocgo-core/store"
)

// Mode is the conversational behavior selected for one turn. The set is
// closed; ParseQuery never produces a value outside it.
type Mode int

const (
	ModeChatWithDocs Mode = iota // grounded QA over the active collection
	ModeDetails                  // detailed summary of retrieved material
	ModeQuotes                   // verbatim quote extraction
	ModeWebSearch
	ModeResearch
	ModeJustChat
	ModeDBCommand // collection management
	ModeHelp
	ModeIngest
)

func (m Mode) String() string {
	switch m {
	case ModeChatWithDocs:
		return "docs"
	case ModeDetails:
		return "details"
	case ModeQuotes:
		return "quotes"
	case ModeWebSearch:
		return "web"
	case ModeResearch:
		return "research"
	case ModeJustChat:
		return "chat"
	case ModeDBCommand:
		return "db"
	case ModeHelp:
		return "help"
	case ModeIngest:
		return "ingest"
	default:
		return "unknown"
	}
}

// OperationMode describes the hosting environment. Ingestion behaves
// differently in a console, which cannot offer an upload dialog.
type OperationMode int

const (
	OpConsole OperationMode = iota
	OpHosted
)

// SearchParams are the optional per-turn retrieval overrides a user can embed
// in the message. Zero values with the corresponding Has flag unset mean "use
// the configured default".
type SearchParams struct {
	MaxDocs            int
	RelevanceThreshold float64
	HasThreshold       bool
}

// ParsedQuery is the structured form of one raw input line. Parameter values
// that failed coercion are reported in Errors; the turn proceeds with
// defaults rather than aborting.
type ParsedQuery struct {
	Mode    Mode
	Message string
	Params  SearchParams
	Errors  []string
}

// Exchange is one (user message, assistant answer) pair. History is ordered
// oldest first.
type Exchange struct {
	User      string
	Assistant string
}

// StreamFunc receives generated fragments in generation order. Returning an
// error cancels the stream.
type StreamFunc func(fragment string) error

// State is the per-turn bundle the dispatcher works on. It is a value: the
// pipeline never mutates it, and anything that must change for subsequent
// turns (the collection handle, history) is returned on the Response and
// applied by the caller.
type State struct {
	History     []Exchange
	Mode        Mode
	Message     string
	Params      SearchParams
	ParseErrors []string
	Collection  store.Collection
	Settings    llm.Settings
	Operation   OperationMode
	Stream      StreamFunc
}

// NewState assembles a turn's state from the session-level pieces.
func NewState(parsed ParsedQuery, history []Exchange, collection store.Collection, settings llm.Settings, op OperationMode) State {
	return State{
		History:     history,
		Mode:        parsed.Mode,
		Message:     parsed.Message,
		Params:      parsed.Params,
		ParseErrors: parsed.Errors,
		Collection:  collection,
		Settings:    settings,
		Operation:   op,
	}
}

// Passage is one evidence unit handed from the retriever to the synthesizer.
type Passage struct {
	Text     string
	Score    float64
	Source   string
	Metadata map[string]string
}

// Response is the pipeline output for one turn.
type Response struct {
	Answer string

	// Sources are identifiers of the retrieved passages behind the answer,
	// deduplicated in first-seen order. SourceLinks are auxiliary links from
	// non-retrieval modes such as web search.
	Sources     []string
	SourceLinks []string

	// GeneratedQuestion is the standalone query used for retrieval, when the
	// turn went through the grounded pipeline.
	GeneratedQuestion string

	// Collection, when non-nil, replaces the caller's active collection
	// handle for subsequent turns.
	Collection store.Collection

	// Streamed reports that the answer was already delivered fragment by
	// fragment; the caller must not print it again.
	Streamed bool
}
