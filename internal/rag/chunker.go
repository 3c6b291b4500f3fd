package rag

import "strings"

const (
	defaultChunkSize    = 1200
	defaultChunkOverlap = 150
)

// SplitChunks breaks document text into overlapping chunks, preferring to cut
// at paragraph then sentence boundaries so a chunk stays self-contained.
func SplitChunks(text string) []string {
	return SplitChunksSize(text, defaultChunkSize, defaultChunkOverlap)
}

// SplitChunksSize is SplitChunks with explicit size and overlap (in bytes).
func SplitChunksSize(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		cut := findBreak(text, start, end)
		chunks = append(chunks, strings.TrimSpace(text[start:cut]))
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// findBreak looks backwards from end for a paragraph break, then a sentence
// end, then a space; failing all three it cuts mid-word at end.
func findBreak(text string, start, end int) int {
	window := text[start:end]
	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return start + idx + 2
	}
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + idx + len(sep)
		}
	}
	if idx := strings.LastIndex(window, " "); idx > 0 {
		return start + idx + 1
	}
	return end
}
