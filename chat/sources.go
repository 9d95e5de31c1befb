package chat

// passageSources extracts the source identifiers of the passages behind an
// answer, deduplicated in first-seen order.
func passageSources(passages []Passage) []string {
	if len(passages) == 0 {
		return nil
	}
	sources := make([]string, 0, len(passages))
	for _, passage := range passages {
		if passage.Source != "" {
			sources = append(sources, passage.Source)
		}
	}
	return dedupeKeepOrder(sources)
}

// SourceLinks resolves the full source list for a response: retrieval-sourced
// identifiers first, then auxiliary links from non-retrieval modes, with
// duplicates removed in first-seen order.
func SourceLinks(resp Response) []string {
	// Fast path: the common turn has no sources at all.
	if len(resp.Sources) == 0 && len(resp.SourceLinks) == 0 {
		return nil
	}
	if len(resp.SourceLinks) == 0 {
		return dedupeKeepOrder(resp.Sources)
	}

	combined := make([]string, 0, len(resp.Sources)+len(resp.SourceLinks))
	combined = append(combined, resp.Sources...)
	combined = append(combined, resp.SourceLinks...)
	return dedupeKeepOrder(combined)
}

func dedupeKeepOrder(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
