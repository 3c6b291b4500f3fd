package rag

import (
	"strings"
	"testing"
)

func TestSplitChunksShortText(t *testing.T) {
	chunks := SplitChunks("just a short note")
	if len(chunks) != 1 || chunks[0] != "just a short note" {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestSplitChunksEmpty(t *testing.T) {
	if got := SplitChunks("   \n  "); got != nil {
		t.Errorf("chunks = %v, want nil", got)
	}
}

func TestSplitChunksPrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	chunks := SplitChunksSize(text, 60, 0)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %v", chunks)
	}
	if strings.Contains(chunks[0], "b") {
		t.Errorf("first chunk crossed the paragraph break: %q", chunks[0])
	}
}

func TestSplitChunksSentenceBreak(t *testing.T) {
	text := "First sentence here. Second sentence follows. Third one closes it out."
	chunks := SplitChunksSize(text, 30, 0)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %v", chunks)
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("first chunk should end at a sentence: %q", chunks[0])
	}
}

func TestSplitChunksOverlap(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")
	chunks := SplitChunksSize(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %v", chunks)
	}
	// Every byte of the input must be covered.
	joined := strings.Join(chunks, " ")
	if len(joined) < len(text) {
		t.Errorf("chunks lost content: %d < %d", len(joined), len(text))
	}
}

func TestSplitChunksNoSpaces(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := SplitChunksSize(text, 100, 10)
	var total int
	for _, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk exceeds size: %d", len(c))
		}
		total += len(c)
	}
	if total < 250 {
		t.Errorf("content lost: %d bytes across chunks", total)
	}
}
