package token

import (
	"fmt"
	"strings"
	"testing"
)

// wordCodec treats each whitespace-separated word as one token. It keeps the
// chunker tests hermetic: the arithmetic under test is identical for any
// codec, and the word boundary stands in for a BPE token boundary.
type wordCodec struct {
	words map[int]string
	ids   map[string]int
}

func newWordCodec() *wordCodec {
	return &wordCodec{words: make(map[int]string), ids: make(map[string]int)}
}

func (c *wordCodec) Encode(text string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, 0, len(fields))
	for _, f := range fields {
		id, ok := c.ids[f]
		if !ok {
			id = len(c.ids)
			c.ids[f] = id
			c.words[id] = f
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func (c *wordCodec) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = c.words[t]
	}
	return strings.Join(parts, " ") + " "
}

func (c *wordCodec) Count(text string) int {
	return len(strings.Fields(text))
}

func fillerText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}
	return b.String()
}

func TestSplitThresholdSingleChunk(t *testing.T) {
	chunker := NewChunker(newWordCodec())
	text := fillerText(3000)

	chunks := chunker.SplitThreshold(text, 3000, 2000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0] != text {
		t.Error("single chunk should be the input text unchanged")
	}
}

func TestSplitChunkSizes(t *testing.T) {
	tests := []struct {
		words     int
		maxTokens int
		want      []int // expected token count per chunk
	}{
		{4500, 2000, []int{2000, 2000, 500}},
		{4000, 2000, []int{2000, 2000}},
		{2001, 2000, []int{2000, 1}},
		{1, 2000, []int{1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dwords", tt.words), func(t *testing.T) {
			codec := newWordCodec()
			chunker := NewChunker(codec)
			chunks := chunker.Split(fillerText(tt.words), tt.maxTokens)

			if len(chunks) != len(tt.want) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.want))
			}
			total := 0
			for i, chunk := range chunks {
				n := codec.Count(chunk)
				if n != tt.want[i] {
					t.Errorf("chunk %d has %d tokens, want %d", i, n, tt.want[i])
				}
				total += n
			}
			if total != tt.words {
				t.Errorf("total tokens across chunks = %d, want %d", total, tt.words)
			}
		})
	}
}

func TestSplitLosslessAtTokenLevel(t *testing.T) {
	codec := newWordCodec()
	chunker := NewChunker(codec)
	text := fillerText(4500)

	original := codec.Encode(text)
	chunks := chunker.Split(text, 2000)

	rejoined := codec.Encode(strings.Join(chunks, ""))
	if len(rejoined) != len(original) {
		t.Fatalf("rejoined token count = %d, want %d", len(rejoined), len(original))
	}
	for i := range original {
		if rejoined[i] != original[i] {
			t.Fatalf("token %d differs after split/rejoin", i)
		}
	}
}

func TestSplitEmptyText(t *testing.T) {
	chunker := NewChunker(newWordCodec())
	if chunks := chunker.Split("", 2000); len(chunks) != 0 {
		t.Errorf("got %d chunks for empty text, want 0", len(chunks))
	}
}
