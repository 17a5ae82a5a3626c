// Package token provides subword token counting and token-bounded text
// chunking. The production codec uses the cl100k_base byte-pair encoding so
// chunk sizes line up with what the model service bills and accepts.
package token

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Codec encodes text to a token sequence and back. Decode tolerates
// sequences cut mid-multibyte-unit; concatenating the decoded pieces of a
// contiguous split reconstructs the original token stream.
type Codec interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Count(text string) int
}

// cl100kCodec wraps tiktoken's cl100k_base encoding.
type cl100kCodec struct {
	enc *tiktoken.Tiktoken
}

// NewCL100K returns a Codec backed by the cl100k_base encoding.
func NewCL100K() (Codec, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading cl100k_base encoding: %w", err)
	}
	return &cl100kCodec{enc: enc}, nil
}

func (c *cl100kCodec) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

func (c *cl100kCodec) Decode(tokens []int) string {
	return c.enc.Decode(tokens)
}

func (c *cl100kCodec) Count(text string) int {
	return len(c.Encode(text))
}
