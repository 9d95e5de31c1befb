package ingestion

import (
	"strings"
	"unicode/utf8"
)

// SplitText cuts text into chunks of roughly size bytes with the given
// overlap, preferring to break at paragraph and then word boundaries. Output
// is deterministic and never contains empty chunks.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	if len(text) <= size {
		return []string{text}
	}

	chunks := make([]string, 0, len(text)/size+1)
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = snapToBoundary(text, start, end)
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(text) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}

	return chunks
}

// snapToBoundary moves the cut point back to the nearest paragraph break, or
// failing that the nearest space, so chunks do not split words. Space-free
// text (CJK prose, minified data) still snaps to a rune boundary so no chunk
// edge lands inside a multi-byte character. It never moves the cut before the
// midpoint of the window.
func snapToBoundary(text string, start, end int) int {
	limit := start + (end-start)/2

	if idx := strings.LastIndex(text[start:end], "\n\n"); idx >= 0 && start+idx > limit {
		return start + idx
	}
	if idx := strings.LastIndexAny(text[start:end], " \t\n"); idx >= 0 && start+idx > limit {
		return start + idx
	}
	for end > limit && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
