package token

// Chunker splits text into token-bounded pieces using a Codec.
type Chunker struct {
	codec Codec
}

// NewChunker creates a Chunker over the given codec.
func NewChunker(codec Codec) *Chunker {
	return &Chunker{codec: codec}
}

// Count returns the number of tokens in text.
func (c *Chunker) Count(text string) int {
	return c.codec.Count(text)
}

// Split partitions text into chunks of at most maxTokens tokens each.
// Chunks are contiguous and exhaustive over the token stream: every chunk
// except possibly the last holds exactly maxTokens tokens, and re-encoding
// the concatenation of all chunks yields the original token sequence.
func (c *Chunker) Split(text string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	tokens := c.codec.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	chunks := make([]string, 0, len(tokens)/maxTokens+1)
	for start := 0; start < len(tokens); start += maxTokens {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.codec.Decode(tokens[start:end]))
	}
	return chunks
}

// SplitThreshold returns text as a single chunk when it is at or below
// threshold tokens, otherwise it splits at maxTokens per chunk. Documents
// under the threshold skip the merge stage entirely.
func (c *Chunker) SplitThreshold(text string, threshold, maxTokens int) []string {
	if c.Count(text) <= threshold {
		return []string{text}
	}
	return c.Split(text, maxTokens)
}
