package chat

import (
	"fmt"
	"strconv"
	"strings"
)

var commandModes = map[string]Mode{
	"/docs":     ModeChatWithDocs,
	"/details":  ModeDetails,
	"/quotes":   ModeQuotes,
	"/web":      ModeWebSearch,
	"/research": ModeResearch,
	"/chat":     ModeJustChat,
	"/db":       ModeDBCommand,
	"/help":     ModeHelp,
	"/ingest":   ModeIngest,
	"/upload":   ModeIngest,
}

// ParseMode resolves a bare mode name ("docs", "chat", ...) as used in
// configuration. Unknown names fall back to grounded QA.
func ParseMode(name string) Mode {
	if mode, ok := commandModes["/"+strings.ToLower(strings.TrimSpace(name))]; ok {
		return mode
	}
	return ModeChatWithDocs
}

// ParseQuery turns one raw input line into a ParsedQuery. The command token is
// case-insensitive and must lead the line; its absence selects defaultMode.
// Retrieval parameters (docs=N, threshold=F) may follow the command token;
// recognized keys with malformed values are stripped and reported in Errors so
// the turn can proceed with defaults. ParseQuery has no side effects.
func ParseQuery(raw string, defaultMode Mode) ParsedQuery {
	parsed := ParsedQuery{Mode: defaultMode}

	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "/") {
		token := text
		rest := ""
		if idx := strings.IndexAny(text, " \t"); idx >= 0 {
			token, rest = text[:idx], text[idx+1:]
		}
		if mode, ok := commandModes[strings.ToLower(token)]; ok {
			parsed.Mode = mode
			text = strings.TrimSpace(rest)
		}
		// An unrecognized slash token stays in the message; users do start
		// sentences with paths and fractions.
	}

	parsed.Message, parsed.Params, parsed.Errors = extractParams(text)
	return parsed
}

// extractParams consumes leading key=value tokens and returns the remaining
// message verbatim.
func extractParams(text string) (string, SearchParams, []string) {
	var params SearchParams
	var errs []string

	for {
		token := text
		rest := ""
		if idx := strings.IndexAny(text, " \t"); idx >= 0 {
			token, rest = text[:idx], text[idx+1:]
		}

		key, value, ok := strings.Cut(token, "=")
		if !ok {
			break
		}

		switch strings.ToLower(key) {
		case "docs":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				errs = append(errs, fmt.Sprintf("invalid docs=%s: expected a positive integer", value))
			} else {
				params.MaxDocs = n
			}
		case "threshold":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f < 0 || f > 1 {
				errs = append(errs, fmt.Sprintf("invalid threshold=%s: expected a number in [0,1]", value))
			} else {
				params.RelevanceThreshold = f
				params.HasThreshold = true
			}
		default:
			// Not a recognized parameter; it belongs to the message.
			return text, params, errs
		}

		text = strings.TrimSpace(rest)
	}

	return text, params, errs
}
